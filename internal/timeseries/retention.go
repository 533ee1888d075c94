package timeseries

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solren/marketledger/internal/metrics"
)

// Retention policies.
const (
	PolicyAge  = "age"
	PolicySize = "size"
)

// RetentionConfig holds the pruning policy for the sample store.
type RetentionConfig struct {
	Policy        string        // PolicyAge or PolicySize
	MaxAge        time.Duration // Age policy: samples older than this are pruned
	MaxBytes      int64         // Size policy: total relation size cap
	SweepInterval time.Duration // How often the sweep runs
	DeleteChunk   int           // Max rows deleted per statement
}

// DefaultRetentionConfig returns sensible defaults.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		Policy:        PolicyAge,
		MaxAge:        90 * 24 * time.Hour,
		SweepInterval: time.Hour,
		DeleteChunk:   10000,
	}
}

// Sweeper prunes old samples in the background. Deletes run in bounded
// chunks on their own pool connection so a sweep never blocks Append.
type Sweeper struct {
	cfg    RetentionConfig
	db     *pgxpool.Pool
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a retention sweeper.
func NewSweeper(cfg RetentionConfig, db *pgxpool.Pool, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DeleteChunk < 1 {
		cfg.DeleteChunk = DefaultRetentionConfig().DeleteChunk
	}
	return &Sweeper{
		cfg:    cfg,
		db:     db,
		logger: logger,
	}
}

// Start begins the periodic sweep loop.
func (s *Sweeper) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run()

	s.logger.Info("retention sweeper started",
		"policy", s.cfg.Policy,
		"interval", s.cfg.SweepInterval,
	)
	return nil
}

// Stop shuts down the sweep loop. The current chunk is allowed to finish.
func (s *Sweeper) Stop(ctx context.Context) error {
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
		s.logger.Info("retention sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(s.ctx); err != nil {
				s.logger.Error("retention sweep failed", "error", err)
			}
		}
	}
}

// Sweep runs one pruning pass under the configured policy.
func (s *Sweeper) Sweep(ctx context.Context) error {
	start := time.Now()

	var (
		deleted int64
		err     error
	)
	switch s.cfg.Policy {
	case PolicyAge:
		deleted, err = s.sweepByAge(ctx)
	case PolicySize:
		deleted, err = s.sweepBySize(ctx)
	default:
		return fmt.Errorf("unknown retention policy %q", s.cfg.Policy)
	}
	if err != nil {
		return err
	}
	metrics.RetentionDeleted.Add(float64(deleted))

	if deleted > 0 {
		s.logger.Info("retention sweep complete",
			"policy", s.cfg.Policy,
			"deleted", deleted,
			"duration", time.Since(start),
		)
	}
	return nil
}

// sweepByAge deletes samples older than MaxAge in chunks.
func (s *Sweeper) sweepByAge(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.MaxAge)

	var total int64
	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		ct, err := s.db.Exec(ctx, `
			DELETE FROM samples
			WHERE ctid IN (
				SELECT ctid FROM samples WHERE ts < $1 LIMIT $2
			)
		`, cutoff, s.cfg.DeleteChunk)
		if err != nil {
			return total, err
		}

		total += ct.RowsAffected()
		if ct.RowsAffected() < int64(s.cfg.DeleteChunk) {
			return total, nil
		}
	}
}

// sweepBySize deletes the oldest samples in chunks until the relation fits
// under the byte cap again.
func (s *Sweeper) sweepBySize(ctx context.Context) (int64, error) {
	var total int64
	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		var size int64
		if err := s.db.QueryRow(ctx,
			`SELECT pg_total_relation_size('samples')`,
		).Scan(&size); err != nil {
			return total, err
		}
		if size <= s.cfg.MaxBytes {
			return total, nil
		}

		ct, err := s.db.Exec(ctx, `
			DELETE FROM samples
			WHERE ctid IN (
				SELECT ctid FROM samples ORDER BY ts ASC LIMIT $1
			)
		`, s.cfg.DeleteChunk)
		if err != nil {
			return total, err
		}
		total += ct.RowsAffected()

		if ct.RowsAffected() == 0 {
			// Table is empty but the relation is still over cap; size will
			// only come back after VACUUM, nothing more to delete.
			return total, nil
		}
	}
}
