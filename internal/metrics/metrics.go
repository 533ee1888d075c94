// Package metrics provides Prometheus instrumentation for ledgerd.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SamplesAppended counts samples accepted into the write queue.
	SamplesAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgerd_samples_appended_total",
		Help: "Samples accepted into the time-series write queue",
	})

	// SamplesDropped counts samples dropped because the write queue was full.
	SamplesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgerd_samples_dropped_total",
		Help: "Samples dropped due to a full write queue",
	})

	// SamplesWritten counts rows actually inserted into storage.
	SamplesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgerd_samples_written_total",
		Help: "Sample rows inserted into storage",
	})

	// FeedConnected is 1 while the market feed is connected and subscribed.
	FeedConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledgerd_feed_connected",
		Help: "Whether the market feed is connected and subscribed",
	})

	// FeedEventsTotal counts feed events by kind.
	FeedEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerd_feed_events_total",
		Help: "Market feed events received",
	}, []string{"kind"})

	// FeedEventsDropped counts malformed feed events discarded.
	FeedEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgerd_feed_events_dropped_total",
		Help: "Malformed market feed events discarded",
	})

	// FeedReconnects counts feed reconnect attempts.
	FeedReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgerd_feed_reconnects_total",
		Help: "Market feed reconnect attempts",
	})

	// RefreshCycles counts completed batch refresh cycles.
	RefreshCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgerd_refresh_cycles_total",
		Help: "Completed REST price refresh cycles",
	})

	// RefreshErrors counts failed refresh fetches.
	RefreshErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgerd_refresh_errors_total",
		Help: "Failed REST price refresh fetches",
	})

	// CacheEntries tracks cache sizes by cache name.
	CacheEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ledgerd_cache_entries",
		Help: "Entries held per price cache",
	}, []string{"cache"})

	// RetentionDeleted counts rows removed by the retention sweep.
	RetentionDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgerd_retention_deleted_total",
		Help: "Sample rows removed by the retention sweep",
	})

	// ValuationDuration tracks whole-roster valuation latency.
	ValuationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledgerd_valuation_duration_seconds",
		Help:    "Whole-roster valuation latency in seconds",
		Buckets: prometheus.DefBuckets,
	})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
