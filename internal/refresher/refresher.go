package refresher

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/solren/marketledger/internal/api"
	"github.com/solren/marketledger/internal/metrics"
	"github.com/solren/marketledger/internal/pricecache"
)

// Fetcher is the REST surface the refresher needs. Satisfied by *api.Client.
type Fetcher interface {
	GetCurrentPrices(ctx context.Context, scope string, itemIDs []uint32, listingLimit int) (map[uint32]api.ItemPriceData, error)
	GetSaleHistory(ctx context.Context, scope string, itemIDs []uint32, maxEntries int) (map[uint32]api.ItemHistory, error)
}

// Tracker provides the scopes and item set to keep fresh.
type Tracker interface {
	ActiveScopes() []string
	TrackedItems() []uint32
}

// Config holds refresher configuration.
type Config struct {
	Interval    time.Duration // Refresh interval (default: 15m)
	Concurrency int           // Max concurrent chunk fetches (default: 4)
	Timeout     time.Duration // Per-request timeout (default: 10s)
	ChunkSize   int           // Item IDs per request (default: backend cap)
	MaxSales    int           // Sale entries requested per item
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    15 * time.Minute,
		Concurrency: 4,
		Timeout:     10 * time.Second,
		ChunkSize:   api.MaxIDsPerRequest,
		MaxSales:    pricecache.K,
	}
}

// Stats is a snapshot of refresher counters.
type Stats struct {
	Cycles int64
	Chunks int64
	Items  int64
	Errors int64
}

// Refresher periodically re-fetches current prices and recent sales for all
// tracked items over REST and pushes them into the price caches. It is the
// degraded path while the live feed is down, and the warm-up path at start.
type Refresher struct {
	cfg      Config
	fetcher  Fetcher
	tracker  Tracker
	listings *pricecache.ListingsCache
	sales    *pricecache.RecentSalesCache
	logger   *slog.Logger

	// Collapses identical in-flight (scope, chunk) fetches.
	sf singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cycles atomic.Int64
	chunks atomic.Int64
	items  atomic.Int64
	errs   atomic.Int64
}

// New creates a new Refresher.
func New(cfg Config, fetcher Fetcher, tracker Tracker, listings *pricecache.ListingsCache, sales *pricecache.RecentSalesCache, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		cfg:      cfg,
		fetcher:  fetcher,
		tracker:  tracker,
		listings: listings,
		sales:    sales,
		logger:   logger,
	}
}

// Start begins the refresh loop.
func (r *Refresher) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.run()

	r.logger.Info("price refresher started",
		"interval", r.cfg.Interval,
		"concurrency", r.cfg.Concurrency,
	)

	return nil
}

// Stop gracefully shuts down the refresher.
func (r *Refresher) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("price refresher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current counters.
func (r *Refresher) Stats() Stats {
	return Stats{
		Cycles: r.cycles.Load(),
		Chunks: r.chunks.Load(),
		Items:  r.items.Load(),
		Errors: r.errs.Load(),
	}
}

// run is the main refresh loop. The first cycle fires immediately so the
// caches are warm before the feed delivers anything.
func (r *Refresher) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.refreshAll()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.refreshAll()
		}
	}
}

// refreshAll fetches every (scope, chunk) pair with bounded concurrency.
func (r *Refresher) refreshAll() {
	start := time.Now()

	scopes := r.tracker.ActiveScopes()
	items := r.tracker.TrackedItems()
	if len(scopes) == 0 || len(items) == 0 {
		r.logger.Debug("nothing to refresh")
		return
	}

	chunkSize := r.cfg.ChunkSize
	if chunkSize <= 0 || chunkSize > api.MaxIDsPerRequest {
		chunkSize = api.MaxIDsPerRequest
	}

	sem := make(chan struct{}, r.cfg.Concurrency)
	var wg sync.WaitGroup

	for _, scope := range scopes {
		for _, chunk := range chunkIDs(items, chunkSize) {
			wg.Add(1)
			go func(scope string, ids []uint32) {
				defer wg.Done()

				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-r.ctx.Done():
					return
				}

				r.refreshChunk(scope, ids)
			}(scope, chunk)
		}
	}

	wg.Wait()
	r.cycles.Add(1)
	metrics.RefreshCycles.Inc()

	r.logger.Info("refresh cycle complete",
		"scopes", len(scopes),
		"items", len(items),
		"duration", time.Since(start),
	)
}

// refreshChunk fetches one id chunk in one scope and applies it to the
// caches. Identical in-flight fetches are collapsed.
func (r *Refresher) refreshChunk(scope string, ids []uint32) {
	r.chunks.Add(1)

	key := scope + "|" + joinKey(ids)

	pricesAny, err, _ := r.sf.Do("prices|"+key, func() (any, error) {
		ctx, cancel := context.WithTimeout(r.ctx, r.cfg.Timeout)
		defer cancel()
		return r.fetcher.GetCurrentPrices(ctx, scope, ids, pricecache.K)
	})
	if err != nil {
		r.errs.Add(1)
		metrics.RefreshErrors.Inc()
		r.logger.Warn("price refresh failed", "scope", scope, "err", err)
	} else {
		for itemID, data := range pricesAny.(map[uint32]api.ItemPriceData) {
			r.applyPrices(itemID, data)
			r.items.Add(1)
		}
	}

	historyAny, err, _ := r.sf.Do("history|"+key, func() (any, error) {
		ctx, cancel := context.WithTimeout(r.ctx, r.cfg.Timeout)
		defer cancel()
		return r.fetcher.GetSaleHistory(ctx, scope, ids, r.cfg.MaxSales)
	})
	if err != nil {
		r.errs.Add(1)
		metrics.RefreshErrors.Inc()
		r.logger.Warn("history refresh failed", "scope", scope, "err", err)
		return
	}
	for itemID, hist := range historyAny.(map[uint32]api.ItemHistory) {
		r.applySales(itemID, hist)
	}
}

type priceBucket struct {
	world uint32
	hq    bool
}

// applyPrices replaces the listings cache contents for every (world, quality)
// bucket present in the response.
func (r *Refresher) applyPrices(itemID uint32, data api.ItemPriceData) {
	groups := make(map[priceBucket][]int64)
	for _, wire := range data.Listings {
		l := api.ToListing(itemID, data.WorldID, wire)
		if l.WorldID == 0 {
			// No way to key the entry; scope-level response without
			// per-listing world attribution.
			continue
		}
		b := priceBucket{world: l.WorldID, hq: l.HQ}
		groups[b] = append(groups[b], l.PricePerUnit)
	}

	for b, prices := range groups {
		r.listings.SetPrices(itemID, b.world, prices, b.hq)
	}
}

// applySales replaces the recent-sales cache contents. History entries arrive
// most-recent-first and are kept in that order.
func (r *Refresher) applySales(itemID uint32, hist api.ItemHistory) {
	groups := make(map[priceBucket][]int64)
	for _, wire := range hist.Entries {
		s := api.ToSale(itemID, 0, wire)
		if s.WorldID == 0 {
			continue
		}
		b := priceBucket{world: s.WorldID, hq: s.HQ}
		groups[b] = append(groups[b], s.PricePerUnit)
	}

	for b, prices := range groups {
		r.sales.SetSales(itemID, b.world, prices, b.hq)
	}
}

// chunkIDs splits ids into slices of at most size.
func chunkIDs(ids []uint32, size int) [][]uint32 {
	var out [][]uint32
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

// joinKey renders an id chunk as a stable singleflight key component.
func joinKey(ids []uint32) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, ",")
}
