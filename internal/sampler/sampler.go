// Package sampler periodically snapshots tracked game-state variables into
// the time-series store.
package sampler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// StateReader exposes live game state to the sampler. Implementations must
// never block for long and never panic; a value that cannot be read right now
// is simply reported as absent.
type StateReader interface {
	// Entities returns the currently known entity IDs.
	Entities() []uint64

	// ReadCurrentValue returns the current value of a variable for an
	// entity, or ok=false when the entity is not readable this tick.
	ReadCurrentValue(variable string, entityID uint64) (value int64, ok bool)
}

// Appender receives sampled values. Satisfied by timeseries.Store.
type Appender interface {
	Append(variable string, entityID uint64, ts time.Time, value int64)
}

// Config holds sampler settings.
type Config struct {
	Interval   time.Duration // Tick interval
	Quiescence time.Duration // Re-append unchanged values after this long
	Variables  []string      // Tracked variable names
}

// Stats contains sampler counters.
type Stats struct {
	Ticks    int64
	Appended int64
	Skipped  int64 // Unreadable (variable, entity) pairs
}

type lastWrite struct {
	value int64
	at    time.Time
}

// Sampler drives the periodic sampling loop. A value is appended when it
// changed since the last write or when the quiescence interval elapsed, so
// constant series still get periodic freshness markers.
type Sampler struct {
	cfg    Config
	reader StateReader
	store  Appender
	logger *slog.Logger

	last map[sampleKey]lastWrite

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	statsMu sync.Mutex
	stats   Stats
}

type sampleKey struct {
	variable string
	entityID uint64
}

// New creates a sampler.
func New(cfg Config, reader StateReader, store Appender, logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{
		cfg:    cfg,
		reader: reader,
		store:  store,
		logger: logger,
		last:   make(map[sampleKey]lastWrite),
	}
}

// Start begins the tick loop.
func (s *Sampler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run()

	s.logger.Info("sampler started",
		"interval", s.cfg.Interval,
		"quiescence", s.cfg.Quiescence,
		"variables", len(s.cfg.Variables),
	)
	return nil
}

// Stop cancels the tick loop. An in-flight tick is allowed to finish.
func (s *Sampler) Stop(ctx context.Context) error {
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
		s.logger.Info("sampler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current counters.
func (s *Sampler) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

func (s *Sampler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.tick(time.Now())
		}
	}
}

// tick samples every tracked variable for every known entity. An unreadable
// pair is skipped for this tick and retried on the next one; nothing here is
// ever fatal to the loop.
func (s *Sampler) tick(now time.Time) {
	var appended, skipped int64

	for _, entityID := range s.reader.Entities() {
		for _, variable := range s.cfg.Variables {
			value, ok := s.reader.ReadCurrentValue(variable, entityID)
			if !ok {
				skipped++
				continue
			}

			key := sampleKey{variable: variable, entityID: entityID}
			prev, seen := s.last[key]
			if seen && prev.value == value && now.Sub(prev.at) < s.cfg.Quiescence {
				continue
			}

			s.store.Append(variable, entityID, now, value)
			s.last[key] = lastWrite{value: value, at: now}
			appended++
		}
	}

	s.statsMu.Lock()
	s.stats.Ticks++
	s.stats.Appended += appended
	s.stats.Skipped += skipped
	s.statsMu.Unlock()

	if skipped > 0 {
		s.logger.Debug("sampler tick finished with unreadable pairs",
			"appended", appended,
			"skipped", skipped,
		)
	}
}
