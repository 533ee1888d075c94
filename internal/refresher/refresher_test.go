package refresher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/solren/marketledger/internal/api"
	"github.com/solren/marketledger/internal/pricecache"
)

// fakeTracker returns fixed scopes and items.
type fakeTracker struct {
	scopes []string
	items  []uint32
}

func (t *fakeTracker) ActiveScopes() []string { return t.scopes }
func (t *fakeTracker) TrackedItems() []uint32 { return t.items }

func priceResponse() map[string]any {
	return map[string]any{
		"items": map[string]any{
			"101": map[string]any{
				"itemID": 101,
				"listings": []map[string]any{
					{"pricePerUnit": 300, "quantity": 1, "hq": false, "worldID": 73},
					{"pricePerUnit": 100, "quantity": 2, "hq": false, "worldID": 73},
					{"pricePerUnit": 200, "quantity": 1, "hq": true, "worldID": 73},
				},
			},
			"102": map[string]any{
				"itemID": 102,
				"listings": []map[string]any{
					{"pricePerUnit": 50, "quantity": 5, "hq": false, "worldID": 66},
				},
			},
		},
	}
}

func historyResponse() map[string]any {
	return map[string]any{
		"items": map[string]any{
			"101": map[string]any{
				"itemID": 101,
				"entries": []map[string]any{
					{"pricePerUnit": 95, "quantity": 1, "hq": false, "worldID": 73, "timestamp": 1700000300},
					{"pricePerUnit": 90, "quantity": 2, "hq": false, "worldID": 73, "timestamp": 1700000200},
				},
			},
			"102": map[string]any{
				"itemID":  102,
				"entries": []map[string]any{},
			},
		},
	}
}

func newTestRefresher(t *testing.T, handler http.Handler, tracker Tracker, cfg Config) (*Refresher, *pricecache.ListingsCache, *pricecache.RecentSalesCache, func()) {
	t.Helper()

	server := httptest.NewServer(handler)
	client := api.NewClient(server.URL, "test/1.0",
		api.WithTimeout(5*time.Second),
		api.WithRetries(0, time.Millisecond))

	listings := pricecache.NewListingsCache(time.Hour)
	sales := pricecache.NewRecentSalesCache(time.Hour)

	r := New(cfg, client, tracker, listings, sales, nil)
	r.ctx = context.Background()

	return r, listings, sales, server.Close
}

func TestRefresher_RefreshAll(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasPrefix(req.URL.Path, "/history/") {
			json.NewEncoder(w).Encode(historyResponse())
			return
		}
		json.NewEncoder(w).Encode(priceResponse())
	})

	tracker := &fakeTracker{scopes: []string{"Chaos"}, items: []uint32{101, 102}}
	cfg := DefaultConfig()
	cfg.Interval = time.Hour

	r, listings, sales, closeServer := newTestRefresher(t, handler, tracker, cfg)
	defer closeServer()

	r.refreshAll()

	snap, ok := listings.Get(101, 73)
	if !ok {
		t.Fatal("listings.Get(101, 73) not found after refresh")
	}
	if got, want := snap.Prices(false), []int64{100, 300}; !reflect.DeepEqual(got, want) {
		t.Errorf("NQ prices = %v, want %v", got, want)
	}
	if got, want := snap.Prices(true), []int64{200}; !reflect.DeepEqual(got, want) {
		t.Errorf("HQ prices = %v, want %v", got, want)
	}

	snap, ok = listings.Get(102, 66)
	if !ok {
		t.Fatal("listings.Get(102, 66) not found after refresh")
	}
	if got, want := snap.Prices(false), []int64{50}; !reflect.DeepEqual(got, want) {
		t.Errorf("item 102 NQ prices = %v, want %v", got, want)
	}

	snap, ok = sales.Get(101, 73)
	if !ok {
		t.Fatal("sales.Get(101, 73) not found after refresh")
	}
	if got, want := snap.Prices(false), []int64{95, 90}; !reflect.DeepEqual(got, want) {
		t.Errorf("recent sales = %v, want %v (most recent first)", got, want)
	}

	stats := r.Stats()
	if stats.Cycles != 1 {
		t.Errorf("Cycles = %d, want 1", stats.Cycles)
	}
	if stats.Errors != 0 {
		t.Errorf("Errors = %d, want 0", stats.Errors)
	}
}

func TestRefresher_ChunksLargeItemLists(t *testing.T) {
	var priceRequests, historyRequests atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasPrefix(req.URL.Path, "/history/") {
			historyRequests.Add(1)
			json.NewEncoder(w).Encode(map[string]any{"items": map[string]any{}})
			return
		}
		priceRequests.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"items": map[string]any{}})
	})

	tracker := &fakeTracker{scopes: []string{"Odin"}, items: []uint32{1, 2, 3}}
	cfg := DefaultConfig()
	cfg.ChunkSize = 2

	r, _, _, closeServer := newTestRefresher(t, handler, tracker, cfg)
	defer closeServer()

	r.refreshAll()

	// 3 items at chunk size 2 means two chunks per endpoint.
	if got := priceRequests.Load(); got != 2 {
		t.Errorf("price requests = %d, want 2", got)
	}
	if got := historyRequests.Load(); got != 2 {
		t.Errorf("history requests = %d, want 2", got)
	}
	if got := r.Stats().Chunks; got != 2 {
		t.Errorf("Chunks = %d, want 2", got)
	}
}

func TestRefresher_CountsFetchErrors(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	})

	tracker := &fakeTracker{scopes: []string{"Odin"}, items: []uint32{1}}
	cfg := DefaultConfig()
	cfg.Interval = time.Hour

	r, _, _, closeServer := newTestRefresher(t, handler, tracker, cfg)
	defer closeServer()

	r.refreshAll()

	if got := r.Stats().Errors; got == 0 {
		t.Error("Errors = 0, want > 0 after server failures")
	}
}

func TestChunkIDs(t *testing.T) {
	ids := []uint32{1, 2, 3, 4, 5}

	chunks := chunkIDs(ids, 2)
	want := [][]uint32{{1, 2}, {3, 4}, {5}}
	if !reflect.DeepEqual(chunks, want) {
		t.Errorf("chunkIDs(%v, 2) = %v, want %v", ids, chunks, want)
	}

	if got := chunkIDs(nil, 2); got != nil {
		t.Errorf("chunkIDs(nil, 2) = %v, want nil", got)
	}

	if got := chunkIDs(ids, 10); len(got) != 1 || len(got[0]) != 5 {
		t.Errorf("chunkIDs(%v, 10) = %v, want one full chunk", ids, got)
	}
}
