// Package status serves the operational HTTP surface: health probe, status
// snapshot, and Prometheus metrics.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/solren/marketledger/internal/feed"
	"github.com/solren/marketledger/internal/metrics"
	"github.com/solren/marketledger/internal/pricecache"
	"github.com/solren/marketledger/internal/refresher"
	"github.com/solren/marketledger/internal/timeseries"
	"github.com/solren/marketledger/internal/version"
)

// Pinger checks storage liveness. Satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Sources are the components the server reports on. Any field may be nil;
// nil components are simply omitted from the report.
type Sources struct {
	DB        Pinger
	Feed      *feed.Manager
	Store     *timeseries.Store
	Refresher *refresher.Refresher
	Listings  *pricecache.ListingsCache
	Sales     *pricecache.RecentSalesCache
}

// Server is the status HTTP server.
type Server struct {
	srv    *http.Server
	src    Sources
	logger *slog.Logger

	cancel context.CancelFunc
}

// New creates a status server listening on the given port.
func New(port int, src Sources, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		src:    src,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", metrics.Handler())

	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}

	return s
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start launches the listener and the cache gauge sync loop.
func (s *Server) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		s.logger.Info("status server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("status server failed", "error", err)
		}
	}()

	go s.syncGauges(ctx)

	return nil
}

// Stop shuts the listener down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	return s.srv.Shutdown(ctx)
}

// syncGauges keeps the cache size gauges current.
func (s *Server) syncGauges(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.src.Listings != nil {
				metrics.CacheEntries.WithLabelValues("listings").Set(float64(s.src.Listings.Len()))
			}
			if s.src.Sales != nil {
				metrics.CacheEntries.WithLabelValues("sales").Set(float64(s.src.Sales.Len()))
			}
		}
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := struct {
		Status     string         `json:"status"`
		Components map[string]any `json:"components"`
	}{
		Status:     "healthy",
		Components: make(map[string]any),
	}

	if s.src.DB != nil {
		if err := s.src.DB.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["database"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["database"] = "connected"
		}
	}

	if s.src.Feed != nil {
		state := s.src.Feed.State()
		health.Components["feed"] = string(state)
		// A down feed degrades to batch refresh; it does not fail the probe.
		if state != feed.StateSubscribed && health.Status == "healthy" {
			health.Status = "degraded"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if health.Status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(health)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"version": version.String(),
	}

	if s.src.Feed != nil {
		out["feed"] = s.src.Feed.Stats()
	}
	if s.src.Store != nil {
		out["store"] = s.src.Store.Stats()
	}
	if s.src.Refresher != nil {
		out["refresher"] = s.src.Refresher.Stats()
	}
	if s.src.Listings != nil && s.src.Sales != nil {
		out["caches"] = map[string]int{
			"listings": s.src.Listings.Len(),
			"sales":    s.src.Sales.Len(),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}
