package timeseries

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solren/marketledger/internal/metrics"
	"github.com/solren/marketledger/internal/model"
)

// StoreConfig holds sample store settings.
type StoreConfig struct {
	QueueSize     int           // Append queue capacity
	BatchSize     int           // Max samples per insert batch
	FlushInterval time.Duration // Max time a sample waits in the batch
	Bucket        time.Duration // Aggregation bucket for QueryBatch
}

// DefaultStoreConfig returns sensible defaults.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		QueueSize:     4096,
		BatchSize:     500,
		FlushInterval: time.Second,
		Bucket:        time.Minute,
	}
}

// Store is the append-only time-series sample store backed by Postgres.
//
// Writes are serialized through a single queue-draining goroutine; reads go
// straight to the pool and never contend with the writer.
type Store struct {
	cfg    StoreConfig
	db     *pgxpool.Pool
	logger *slog.Logger

	queue chan model.Sample

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	statsMu sync.Mutex
	stats   StoreStats
}

// StoreStats contains counters for monitoring.
type StoreStats struct {
	Appended int64 // Samples accepted into the queue
	Dropped  int64 // Samples dropped because the queue was full
	Written  int64 // Samples written to the database
	Dupes    int64 // Samples skipped as duplicates within a bucket
	Errors   int64 // Failed insert batches
}

// NewStore creates a sample store. Call Start before appending.
func NewStore(cfg StoreConfig, db *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = DefaultStoreConfig().QueueSize
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultStoreConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultStoreConfig().FlushInterval
	}
	if cfg.Bucket <= 0 {
		cfg.Bucket = DefaultStoreConfig().Bucket
	}

	return &Store{
		cfg:    cfg,
		db:     db,
		logger: logger,
		queue:  make(chan model.Sample, cfg.QueueSize),
	}
}

// Start begins the background writer.
func (s *Store) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.writeLoop()

	s.logger.Info("sample store started",
		"queue_size", s.cfg.QueueSize,
		"batch_size", s.cfg.BatchSize,
		"flush_interval", s.cfg.FlushInterval,
	)
	return nil
}

// Stop drains the queue and shuts down the writer.
func (s *Store) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("sample store stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("sample store stop timed out")
		return ctx.Err()
	}
}

// Stats returns current counters.
func (s *Store) Stats() StoreStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

// Append records a sample. It never blocks and never returns an error: the
// sample is queued for the background writer, and if the queue is full the
// sample is dropped and logged.
func (s *Store) Append(variable string, entityID uint64, ts time.Time, value int64) {
	sample := model.Sample{
		Variable:  variable,
		EntityID:  entityID,
		Timestamp: ts.UTC().Truncate(time.Second),
		Value:     value,
	}

	select {
	case s.queue <- sample:
		s.statsMu.Lock()
		s.stats.Appended++
		s.statsMu.Unlock()
		metrics.SamplesAppended.Inc()
	default:
		s.statsMu.Lock()
		s.stats.Dropped++
		s.statsMu.Unlock()
		metrics.SamplesDropped.Inc()
		s.logger.Warn("sample queue full, dropping sample",
			"variable", variable,
			"entity", entityID,
		)
	}
}

// writeLoop drains the queue into insert batches.
func (s *Store) writeLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]model.Sample, 0, s.cfg.BatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		s.insertBatch(batch)
		batch = batch[:0]
	}

	for {
		select {
		case <-s.ctx.Done():
			// Drain whatever is still queued before exiting.
			for {
				select {
				case sample := <-s.queue:
					batch = append(batch, sample)
					if len(batch) >= s.cfg.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}

		case <-ticker.C:
			flush()

		case sample := <-s.queue:
			batch = append(batch, sample)
			if len(batch) >= s.cfg.BatchSize {
				flush()
			}
		}
	}
}

// insertBatch writes samples using pgx.Batch with ON CONFLICT DO NOTHING.
// The primary key on (variable, entity_id, ts) makes Append idempotent at
// one-second granularity.
func (s *Store) insertBatch(samples []model.Sample) {
	start := time.Now()

	batch := &pgx.Batch{}
	for _, smp := range samples {
		batch.Queue(`
			INSERT INTO samples (variable, entity_id, ts, value)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (variable, entity_id, ts) DO NOTHING
		`, smp.Variable, int64(smp.EntityID), smp.Timestamp, smp.Value)
	}

	// Inserts run against a background context: a canceled caller must not
	// lose already-queued telemetry.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	var written, dupes int64
	for range samples {
		ct, err := results.Exec()
		if err != nil {
			s.statsMu.Lock()
			s.stats.Errors++
			s.statsMu.Unlock()
			s.logger.Error("sample insert batch failed", "error", err, "count", len(samples))
			return
		}
		if ct.RowsAffected() == 0 {
			dupes++
		} else {
			written++
		}
	}

	s.statsMu.Lock()
	s.stats.Written += written
	s.stats.Dupes += dupes
	s.statsMu.Unlock()
	metrics.SamplesWritten.Add(float64(written))

	s.logger.Debug("flushed samples",
		"count", len(samples),
		"dupes", dupes,
		"duration", time.Since(start),
	)
}

// QueryBatch returns bucket-aggregated series for every variable matching one
// of the given prefixes, across all entities, in a single round trip. Samples
// in the same bucket for the same (variable, entity) are summed. A zero since
// means no lower bound.
func (s *Store) QueryBatch(ctx context.Context, prefixes []string, since time.Time) (map[string][]model.SeriesPoint, error) {
	if len(prefixes) == 0 {
		return map[string][]model.SeriesPoint{}, nil
	}

	bucketSecs := int64(s.cfg.Bucket / time.Second)

	rows, err := s.db.Query(ctx, `
		SELECT variable,
		       entity_id,
		       to_timestamp(floor(extract(epoch FROM ts) / $1) * $1) AS bucket,
		       sum(value) AS value
		FROM samples
		WHERE variable LIKE ANY($2)
		  AND ($3::timestamptz IS NULL OR ts >= $3)
		GROUP BY variable, entity_id, bucket
		ORDER BY variable, entity_id, bucket
	`, bucketSecs, likePatterns(prefixes), nullableTime(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]model.SeriesPoint)
	for rows.Next() {
		var (
			variable string
			entityID int64
			bucket   time.Time
			value    int64
		)
		if err := rows.Scan(&variable, &entityID, &bucket, &value); err != nil {
			return nil, err
		}
		out[variable] = append(out[variable], model.SeriesPoint{
			EntityID:  uint64(entityID),
			Timestamp: bucket.UTC(),
			Value:     value,
		})
	}
	return out, rows.Err()
}

// GetLatestPerEntity returns the most recent value of a variable for every
// entity that has ever recorded it.
func (s *Store) GetLatestPerEntity(ctx context.Context, variable string) (map[uint64]int64, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT ON (entity_id) entity_id, value
		FROM samples
		WHERE variable = $1
		ORDER BY entity_id, ts DESC
	`, variable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uint64]int64)
	for rows.Next() {
		var (
			entityID int64
			value    int64
		)
		if err := rows.Scan(&entityID, &value); err != nil {
			return nil, err
		}
		out[uint64(entityID)] = value
	}
	return out, rows.Err()
}

// likePatterns converts variable prefixes into LIKE patterns, escaping the
// LIKE metacharacters that can appear in variable names.
func likePatterns(prefixes []string) []string {
	patterns := make([]string, len(prefixes))
	for i, p := range prefixes {
		patterns[i] = escapeLike(p) + "%"
	}
	return patterns
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

// nullableTime maps the zero time to SQL NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
