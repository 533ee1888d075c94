package model

import (
	"time"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Time-Series Types
// -----------------------------------------------------------------------------

// Tracked variable names. Per-item count variables are ItemVariablePrefix
// plus the numeric item ID ("item.5057").
const (
	CurrencyVariable   = "currency.gil"
	ItemVariablePrefix = "item."
)

// Sample is one recorded fact in the time-series store: the value of a tracked
// variable for one entity at one instant. Samples are write-once; they are
// removed only by the retention sweep.
type Sample struct {
	Variable  string    // Variable name (e.g., "currency.gil", "item.5057")
	EntityID  uint64    // Character or retainer ID
	Timestamp time.Time // UTC
	Value     int64
}

// SeriesPoint is one aggregated point of a queried series.
type SeriesPoint struct {
	EntityID  uint64
	Timestamp time.Time // Bucket start (UTC)
	Value     int64     // Sum of raw samples in the bucket
}

// -----------------------------------------------------------------------------
// Market Types
// -----------------------------------------------------------------------------

// Listing is a single market board listing for an item on a world.
type Listing struct {
	ItemID       uint32
	WorldID      uint32
	PricePerUnit int64
	Quantity     int64
	HQ           bool
	RetainerName string
	SellerID     string
}

// Sale is a completed market board sale.
type Sale struct {
	ItemID       uint32
	WorldID      uint32
	PricePerUnit int64
	Quantity     int64
	HQ           bool
	BuyerName    string
	Timestamp    time.Time // Sale time reported by the backend (UTC)
}

// FeedEventKind identifies the kind of a feed event.
type FeedEventKind string

const (
	EventListingsAdd    FeedEventKind = "listings/add"
	EventListingsRemove FeedEventKind = "listings/remove"
	EventSalesAdd       FeedEventKind = "sales/add"
)

// PriceFeedEntry is a transient record derived from one raw feed event. It is
// never persisted; it exists for live display and cache updates only.
type PriceFeedEntry struct {
	ID           uuid.UUID // Assigned at ingest, for display dedup
	Kind         FeedEventKind
	ItemID       uint32
	WorldID      uint32
	PricePerUnit int64
	Quantity     int64
	HQ           bool
	ReceivedAt   time.Time
}

// -----------------------------------------------------------------------------
// Inventory Types
// -----------------------------------------------------------------------------

// ItemCount is a held quantity of one item.
type ItemCount struct {
	ItemID   uint32
	Quantity int64
}

// Inventory sources.
const (
	SourceCharacter = "character"
	SourceRetainer  = "retainer"
)

// Inventory is the item holdings of one entity (character or retainer).
// Retainer inventories carry the owning character's entity ID.
type Inventory struct {
	EntityID uint64
	Source   string // SourceCharacter or SourceRetainer
	Items    []ItemCount
}
