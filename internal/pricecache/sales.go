package pricecache

import (
	"sync"
	"time"
)

// salesEntry holds the K most recent sale prices per quality, most recent
// first. Recency, not magnitude, is the retention criterion.
type salesEntry struct {
	mu          sync.Mutex
	nq          []int64
	hq          []int64
	lastUpdated time.Time
}

// RecentSalesCache keeps the K most recent sale prices per (item, world).
type RecentSalesCache struct {
	staleAfter time.Duration

	mu      sync.RWMutex
	entries map[Key]*salesEntry
}

// NewRecentSalesCache creates an empty sales cache.
func NewRecentSalesCache(staleAfter time.Duration) *RecentSalesCache {
	return &RecentSalesCache{
		staleAfter: staleAfter,
		entries:    make(map[Key]*salesEntry),
	}
}

func (c *RecentSalesCache) entry(key Key) *salesEntry {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return e
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok = c.entries[key]; ok {
		return e
	}
	e = &salesEntry{}
	c.entries[key] = e
	return e
}

// AddSale records a sale price as the most recent observation. The oldest
// price falls off the tail once the list is full. Returns whether the cache
// changed, which for a sale is always true.
func (c *RecentSalesCache) AddSale(itemID, worldID uint32, price int64, hq bool) bool {
	e := c.entry(Key{ItemID: itemID, WorldID: worldID})

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastUpdated = time.Now()

	list := e.nq
	if hq {
		list = e.hq
	}

	list = append([]int64{price}, list...)
	if len(list) > K {
		list = list[:K]
	}

	if hq {
		e.hq = list
	} else {
		e.nq = list
	}
	return true
}

// SetSales replaces one quality's list wholesale from a batch fetch. Input
// must be most-recent-first; it is trimmed to K.
func (c *RecentSalesCache) SetSales(itemID, worldID uint32, prices []int64, hq bool) {
	trimmed := make([]int64, 0, K)
	for i, p := range prices {
		if i >= K {
			break
		}
		trimmed = append(trimmed, p)
	}

	e := c.entry(Key{ItemID: itemID, WorldID: worldID})
	e.mu.Lock()
	defer e.mu.Unlock()
	if hq {
		e.hq = trimmed
	} else {
		e.nq = trimmed
	}
	e.lastUpdated = time.Now()
}

// Get returns a snapshot of the entry, or ok=false if no sale has ever been
// observed for the pair.
func (c *RecentSalesCache) Get(itemID, worldID uint32) (Snapshot, bool) {
	c.mu.RLock()
	e, ok := c.entries[Key{ItemID: itemID, WorldID: worldID}]
	c.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		NQ:          append([]int64(nil), e.nq...),
		HQ:          append([]int64(nil), e.hq...),
		LastUpdated: e.lastUpdated,
	}, true
}

// IsStale reports whether the entry's last update is older than the
// configured threshold. Unknown entries are stale.
func (c *RecentSalesCache) IsStale(itemID, worldID uint32) bool {
	snap, ok := c.Get(itemID, worldID)
	if !ok {
		return true
	}
	return time.Since(snap.LastUpdated) > c.staleAfter
}

// Len returns the number of (item, world) entries.
func (c *RecentSalesCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
