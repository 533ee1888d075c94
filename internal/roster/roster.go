// Package roster reads the game-side state snapshot: which characters and
// retainers exist, their gil balances, and their item holdings. The snapshot
// is a JSON file rewritten by the in-game exporter; the roster reloads it on
// a fixed interval and serves reads from memory.
package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/solren/marketledger/internal/model"
)

// snapshotEntity is one entity in the snapshot file.
type snapshotEntity struct {
	ID     uint64 `json:"id"`
	Source string `json:"source"` // "character" or "retainer"
	Gil    *int64 `json:"gil"`    // Absent when the entity is not readable
	Items  []struct {
		ID       uint32 `json:"id"`
		Quantity int64  `json:"quantity"`
	} `json:"items"`
}

type snapshotFile struct {
	Entities []snapshotEntity `json:"entities"`
}

// Roster serves entity state from the most recent snapshot load. It is the
// state reader behind the sampler and the inventory provider behind the
// valuation engine.
type Roster struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	entities []snapshotEntity
	loadedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a roster over the given snapshot path. The file is not read
// until Reload or Start.
func New(path string, logger *slog.Logger) *Roster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Roster{
		path:   path,
		logger: logger,
	}
}

// Reload reads and replaces the in-memory snapshot. A missing or malformed
// file leaves the previous snapshot in place.
func (r *Roster) Reload() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read state snapshot: %w", err)
	}

	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parse state snapshot: %w", err)
	}

	r.mu.Lock()
	r.entities = snap.Entities
	r.loadedAt = time.Now()
	r.mu.Unlock()

	return nil
}

// Start begins periodic reloads. The first reload happens immediately; a
// missing file at startup is logged and retried, not fatal.
func (r *Roster) Start(ctx context.Context, interval time.Duration) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	if err := r.Reload(); err != nil {
		r.logger.Warn("initial state snapshot load failed", "path", r.path, "error", err)
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.ctx.Done():
				return
			case <-ticker.C:
				if err := r.Reload(); err != nil {
					r.logger.Warn("state snapshot reload failed", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop halts the reload loop.
func (r *Roster) Stop(ctx context.Context) error {
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
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LoadedAt reports when the current snapshot was read. Zero when nothing has
// loaded yet.
func (r *Roster) LoadedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadedAt
}

// Entities returns the known entity IDs, sorted.
func (r *Roster) Entities() []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[uint64]struct{}, len(r.entities))
	for _, e := range r.entities {
		seen[e.ID] = struct{}{}
	}

	out := make([]uint64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ReadCurrentValue resolves one tracked variable for one entity. It returns
// false when the entity is absent or the value is not currently readable.
func (r *Roster) ReadCurrentValue(variable string, entityID uint64) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if variable == model.CurrencyVariable {
		for _, e := range r.entities {
			if e.ID == entityID && e.Source == model.SourceCharacter {
				if e.Gil == nil {
					return 0, false
				}
				return *e.Gil, true
			}
		}
		return 0, false
	}

	if itemStr, ok := strings.CutPrefix(variable, model.ItemVariablePrefix); ok {
		itemID, err := strconv.ParseUint(itemStr, 10, 32)
		if err != nil {
			return 0, false
		}

		found := false
		var total int64
		for _, e := range r.entities {
			if e.ID != entityID {
				continue
			}
			found = true
			for _, item := range e.Items {
				if item.ID == uint32(itemID) {
					total += item.Quantity
				}
			}
		}
		return total, found
	}

	return 0, false
}

// GetAllInventories returns current holdings in the valuation engine's shape.
func (r *Roster) GetAllInventories() []model.Inventory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Inventory, 0, len(r.entities))
	for _, e := range r.entities {
		inv := model.Inventory{
			EntityID: e.ID,
			Source:   e.Source,
			Items:    make([]model.ItemCount, 0, len(e.Items)),
		}
		for _, item := range e.Items {
			inv.Items = append(inv.Items, model.ItemCount{ItemID: item.ID, Quantity: item.Quantity})
		}
		out = append(out, inv)
	}
	return out
}
