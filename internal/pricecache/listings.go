package pricecache

import (
	"sort"
	"sync"
	"time"
)

// K is the per-quality capacity of a cache entry.
const K = 5

// Key identifies a cache entry.
type Key struct {
	ItemID  uint32
	WorldID uint32
}

// Snapshot is a point-in-time copy of one cache entry's prices.
type Snapshot struct {
	NQ          []int64
	HQ          []int64
	LastUpdated time.Time
}

// Prices returns the list for the requested quality.
func (s Snapshot) Prices(hq bool) []int64 {
	if hq {
		return s.HQ
	}
	return s.NQ
}

// listingsEntry holds the K lowest listing prices per quality, sorted
// ascending. Mutations take the entry lock so insert-and-trim is atomic.
type listingsEntry struct {
	mu          sync.Mutex
	nq          []int64
	hq          []int64
	lastUpdated time.Time
}

// ListingsCache keeps the K lowest active listing prices per (item, world).
type ListingsCache struct {
	staleAfter time.Duration

	mu      sync.RWMutex
	entries map[Key]*listingsEntry
}

// NewListingsCache creates an empty listings cache. staleAfter controls
// IsStale only; stale data is still served.
func NewListingsCache(staleAfter time.Duration) *ListingsCache {
	return &ListingsCache{
		staleAfter: staleAfter,
		entries:    make(map[Key]*listingsEntry),
	}
}

func (c *ListingsCache) entry(key Key) *listingsEntry {
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
	e = &listingsEntry{}
	c.entries[key] = e
	return e
}

// AddPrice offers one listing price to the cache. The price is kept only if
// the list has room or it beats the current maximum; the list is trimmed back
// to K. Returns whether the cache changed.
func (c *ListingsCache) AddPrice(itemID, worldID uint32, price int64, hq bool) bool {
	e := c.entry(Key{ItemID: itemID, WorldID: worldID})

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastUpdated = time.Now()

	list := e.nq
	if hq {
		list = e.hq
	}

	if len(list) >= K && price >= list[len(list)-1] {
		return false
	}

	idx := sort.Search(len(list), func(i int) bool { return list[i] >= price })
	list = append(list, 0)
	copy(list[idx+1:], list[idx:])
	list[idx] = price
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

// SetPrices replaces one quality's list wholesale from a batch fetch. Input
// order does not matter; the K smallest are kept sorted ascending.
func (c *ListingsCache) SetPrices(itemID, worldID uint32, prices []int64, hq bool) {
	sorted := make([]int64, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	if len(sorted) > K {
		sorted = sorted[:K]
	}

	e := c.entry(Key{ItemID: itemID, WorldID: worldID})
	e.mu.Lock()
	defer e.mu.Unlock()
	if hq {
		e.hq = sorted
	} else {
		e.nq = sorted
	}
	e.lastUpdated = time.Now()
}

// Get returns a snapshot of the entry, or ok=false if no price has ever been
// observed for the pair.
func (c *ListingsCache) Get(itemID, worldID uint32) (Snapshot, bool) {
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
func (c *ListingsCache) IsStale(itemID, worldID uint32) bool {
	snap, ok := c.Get(itemID, worldID)
	if !ok {
		return true
	}
	return time.Since(snap.LastUpdated) > c.staleAfter
}

// Len returns the number of (item, world) entries.
func (c *ListingsCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
