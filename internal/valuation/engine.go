package valuation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/solren/marketledger/internal/model"
	"github.com/solren/marketledger/internal/pricecache"
)

// Currency is the unit all totals are denominated in.
const Currency = "gil"

// InventoryProvider supplies current item holdings. Retainer inventories
// carry the owning character's entity ID with Source "retainer".
type InventoryProvider interface {
	GetAllInventories() []model.Inventory
}

// LatestReader reads the newest sample per entity for one variable.
// Satisfied by *timeseries.Store.
type LatestReader interface {
	GetLatestPerEntity(ctx context.Context, variable string) (map[uint64]int64, error)
}

// PriceSource is the cache read surface. Satisfied by both
// *pricecache.ListingsCache and *pricecache.RecentSalesCache.
type PriceSource interface {
	Get(itemID, worldID uint32) (pricecache.Snapshot, bool)
}

// Blend and outlier modes.
const (
	BlendAverage = "average"
	BlendMedian  = "median"

	OutlierPercent = "percent"
	OutlierStdDev  = "stddev"
)

// Config holds valuation settings.
type Config struct {
	HomeWorldID      uint32  // World whose prices value the inventory
	BlendMode        string  // Chart reference statistic: "average" or "median"
	OutlierMode      string  // "percent" or "stddev"
	OutlierPercent   float64 // Fractional tolerance (0.1 = ±10%)
	OutlierStdDevs   float64
	WorkerCount      int // Roster fan-out width
	IncludeRetainers bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BlendMode:        BlendAverage,
		OutlierMode:      OutlierPercent,
		OutlierPercent:   0.5,
		OutlierStdDevs:   3,
		WorkerCount:      4,
		IncludeRetainers: true,
	}
}

// ItemValue is one valued inventory line.
type ItemValue struct {
	ItemID    uint32
	Quantity  int64
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

// Value is the full valuation of one entity.
type Value struct {
	EntityID uint64
	Total    decimal.Decimal
	Currency decimal.Decimal // Latest tracked gil balance
	Items    decimal.Decimal // Sum of inventory line subtotals
	Lines    []ItemValue
}

// Engine resolves reference prices from the caches and values inventories.
type Engine struct {
	cfg       Config
	inventory InventoryProvider
	store     LatestReader
	listings  PriceSource
	sales     PriceSource
	logger    *slog.Logger
}

// NewEngine creates a valuation engine.
func NewEngine(cfg Config, inventory InventoryProvider, store LatestReader, listings, sales PriceSource, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:       cfg,
		inventory: inventory,
		store:     store,
		listings:  listings,
		sales:     sales,
		logger:    logger,
	}
}

// CalculateInventoryValue values one entity: the latest tracked gil balance
// plus quantity times reference unit price for every held item. An item with
// no resolvable reference price contributes zero; that is a conservative
// default, not an error.
func (e *Engine) CalculateInventoryValue(ctx context.Context, entityID uint64, includeRetainers bool) (Value, error) {
	balances, err := e.store.GetLatestPerEntity(ctx, model.CurrencyVariable)
	if err != nil {
		return Value{}, fmt.Errorf("read currency balances: %w", err)
	}

	v := Value{
		EntityID: entityID,
		Currency: decimal.NewFromInt(balances[entityID]),
	}

	for itemID, qty := range e.holdings(entityID, includeRetainers) {
		unit := e.referenceUnitPrice(itemID)
		subtotal := unit.Mul(decimal.NewFromInt(qty))
		v.Lines = append(v.Lines, ItemValue{
			ItemID:    itemID,
			Quantity:  qty,
			UnitPrice: unit,
			Subtotal:  subtotal,
		})
		v.Items = v.Items.Add(subtotal)
	}

	sort.Slice(v.Lines, func(i, j int) bool { return v.Lines[i].ItemID < v.Lines[j].ItemID })
	v.Total = v.Currency.Add(v.Items)
	return v, nil
}

// CalculateAllValues values every known entity concurrently and returns the
// per-entity results plus the roster total.
func (e *Engine) CalculateAllValues(ctx context.Context) (map[uint64]Value, decimal.Decimal, error) {
	entities := e.entities()

	var mu sync.Mutex
	values := make(map[uint64]Value, len(entities))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.WorkerCount)

	for _, id := range entities {
		id := id
		g.Go(func() error {
			v, err := e.CalculateInventoryValue(ctx, id, e.cfg.IncludeRetainers)
			if err != nil {
				return err
			}
			mu.Lock()
			values[id] = v
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, decimal.Zero, err
	}

	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v.Total)
	}
	return values, total, nil
}

// holdings merges quantities per item across the entity's inventories.
func (e *Engine) holdings(entityID uint64, includeRetainers bool) map[uint32]int64 {
	out := make(map[uint32]int64)
	for _, inv := range e.inventory.GetAllInventories() {
		if inv.EntityID != entityID {
			continue
		}
		if inv.Source == model.SourceRetainer && !includeRetainers {
			continue
		}
		for _, item := range inv.Items {
			out[item.ItemID] += item.Quantity
		}
	}
	return out
}

// entities returns the distinct entity IDs present in the inventory data,
// sorted for deterministic fan-out order.
func (e *Engine) entities() []uint64 {
	seen := make(map[uint64]struct{})
	for _, inv := range e.inventory.GetAllInventories() {
		if inv.Source == model.SourceRetainer && !e.cfg.IncludeRetainers {
			continue
		}
		seen[inv.EntityID] = struct{}{}
	}

	out := make([]uint64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// referenceUnitPrice blends the lowest cached listing with the most recent
// cached sale on the home world: the average when both are present, otherwise
// whichever is present, otherwise zero.
func (e *Engine) referenceUnitPrice(itemID uint32) decimal.Decimal {
	listing, haveListing := e.lowestListing(itemID)
	sale, haveSale := e.recentSale(itemID)

	switch {
	case haveListing && haveSale:
		return decimal.NewFromInt(listing).
			Add(decimal.NewFromInt(sale)).
			Div(decimal.NewFromInt(2))
	case haveListing:
		return decimal.NewFromInt(listing)
	case haveSale:
		return decimal.NewFromInt(sale)
	default:
		return decimal.Zero
	}
}

// lowestListing is the cheapest listed price across both qualities.
func (e *Engine) lowestListing(itemID uint32) (int64, bool) {
	snap, ok := e.listings.Get(itemID, e.cfg.HomeWorldID)
	if !ok {
		return 0, false
	}

	best := int64(0)
	found := false
	for _, hq := range []bool{false, true} {
		if prices := snap.Prices(hq); len(prices) > 0 {
			if !found || prices[0] < best {
				best = prices[0]
				found = true
			}
		}
	}
	return best, found
}

// recentSale is the most recent sale price, preferring normal quality.
func (e *Engine) recentSale(itemID uint32) (int64, bool) {
	snap, ok := e.sales.Get(itemID, e.cfg.HomeWorldID)
	if !ok {
		return 0, false
	}
	if prices := snap.Prices(false); len(prices) > 0 {
		return prices[0], true
	}
	if prices := snap.Prices(true); len(prices) > 0 {
		return prices[0], true
	}
	return 0, false
}
