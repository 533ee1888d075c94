package timeseries

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// newIntegrationStore connects to the database named by TEST_DATABASE_URL,
// runs the migration, and starts a store with a fast flush. Tests using it
// are skipped when the variable is unset.
func newIntegrationStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("pgxpool.New failed: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := Migrate(ctx, pool); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	store := NewStore(StoreConfig{
		QueueSize:     64,
		BatchSize:     16,
		FlushInterval: 50 * time.Millisecond,
		Bucket:        time.Minute,
	}, pool, nil)
	if err := store.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return store
}

// uniquePrefix keeps runs isolated in a shared test database.
func uniquePrefix(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("it.%d.", time.Now().UnixNano())
}

func drainStore(t *testing.T, store *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestAppendGetLatestRoundTrip(t *testing.T) {
	store := newIntegrationStore(t)
	variable := uniquePrefix(t) + "currency.gil"
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	store.Append(variable, 1, t0, 100)
	store.Append(variable, 1, t0.Add(30*time.Second), 150)
	store.Append(variable, 2, t0, 40)
	// Same (variable, entity, ts) as the first append; must be a no-op.
	store.Append(variable, 1, t0, 999)

	drainStore(t, store)

	stats := store.Stats()
	if stats.Written != 3 {
		t.Errorf("Written = %d, want 3", stats.Written)
	}
	if stats.Dupes != 1 {
		t.Errorf("Dupes = %d, want 1", stats.Dupes)
	}

	got, err := store.GetLatestPerEntity(context.Background(), variable)
	if err != nil {
		t.Fatalf("GetLatestPerEntity failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("GetLatestPerEntity returned %d entities, want 2", len(got))
	}
	if got[1] != 150 {
		t.Errorf("entity 1 = %d, want latest value 150", got[1])
	}
	if got[2] != 40 {
		t.Errorf("entity 2 = %d, want 40", got[2])
	}
}

func TestQueryBatchBucketsAndCutoff(t *testing.T) {
	store := newIntegrationStore(t)
	prefix := uniquePrefix(t)
	variable := prefix + "item.5057"
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) // Minute-aligned

	store.Append(variable, 1, t0, 3)
	store.Append(variable, 1, t0.Add(30*time.Second), 2) // Same bucket
	store.Append(variable, 1, t0.Add(90*time.Second), 4) // Next bucket

	drainStore(t, store)

	series, err := store.QueryBatch(context.Background(), []string{prefix + "item."}, time.Time{})
	if err != nil {
		t.Fatalf("QueryBatch failed: %v", err)
	}

	points := series[variable]
	if len(points) != 2 {
		t.Fatalf("QueryBatch returned %d points, want 2: %+v", len(points), points)
	}
	if !points[0].Timestamp.Equal(t0) || points[0].Value != 5 {
		t.Errorf("points[0] = %+v, want bucket %v value 5", points[0], t0)
	}
	next := t0.Add(time.Minute)
	if !points[1].Timestamp.Equal(next) || points[1].Value != 4 {
		t.Errorf("points[1] = %+v, want bucket %v value 4", points[1], next)
	}
	if points[0].EntityID != 1 || points[1].EntityID != 1 {
		t.Errorf("entity ids = %d, %d, want 1, 1", points[0].EntityID, points[1].EntityID)
	}

	// Cutoff excludes the first bucket's raw samples.
	series, err = store.QueryBatch(context.Background(), []string{prefix + "item."}, t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("QueryBatch with cutoff failed: %v", err)
	}
	points = series[variable]
	if len(points) != 1 || points[0].Value != 4 {
		t.Fatalf("QueryBatch since cutoff = %+v, want single point of value 4", points)
	}

	// A prefix that matches nothing returns no series for it.
	series, err = store.QueryBatch(context.Background(), []string{prefix + "other."}, time.Time{})
	if err != nil {
		t.Fatalf("QueryBatch with unmatched prefix failed: %v", err)
	}
	if len(series) != 0 {
		t.Errorf("QueryBatch unmatched prefix = %+v, want empty", series)
	}
}
