// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Dispatch metrics
	EventsDispatched   *prometheus.CounterVec
	DispatchLatency    *prometheus.HistogramVec
	InvalidEvents      prometheus.Counter
	BookInvariantFails prometheus.Counter
	OutOfOrderEvents   prometheus.Counter

	// Handler metrics
	HandlerIssues       *prometheus.CounterVec
	UnclassifiedTrades  prometheus.Counter
	DegenerateDivisions prometheus.Counter
	HandlersByPhase     *prometheus.GaugeVec
	FeaturesWritten     prometheus.Counter

	// Feed metrics
	FeedMessages     *prometheus.CounterVec
	FeedDecodeErrors *prometheus.CounterVec
	QueueDepth       prometheus.Gauge
	FeedReconnects   *prometheus.CounterVec

	// Storage metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Run metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration prometheus.Histogram
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg uses the default Prometheus registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "feature_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Dispatch metrics
		EventsDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "events_dispatched_total",
			Help:      "Total number of market events dispatched to handlers by kind",
		}, []string{"kind"}),
		DispatchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "dispatch_latency_seconds",
			Help:      "Time to dispatch one event to every handler",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
		}, []string{"kind"}),
		InvalidEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "invalid_events_total",
			Help:      "Total number of malformed events rejected by the registry",
		}),
		BookInvariantFails: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "book_invariant_failures_total",
			Help:      "Total number of snapshots violating bid <= ask or non-negative depth",
		}),
		OutOfOrderEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "out_of_order_events_total",
			Help:      "Total number of events dropped because an instrument's timestamp went backwards",
		}),

		// Handler metrics
		HandlerIssues: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handlers",
			Name:      "issues_total",
			Help:      "Total number of per-handler issues by handler kind and error type",
		}, []string{"handler_kind", "error_type"}),
		UnclassifiedTrades: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handlers",
			Name:      "unclassified_trades_total",
			Help:      "Total number of trades discounted because the aggressor side was ambiguous",
		}),
		DegenerateDivisions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handlers",
			Name:      "degenerate_divisions_total",
			Help:      "Total number of ratio features written as signed infinity",
		}),
		HandlersByPhase: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "handlers",
			Name:      "by_phase",
			Help:      "Current number of registered handlers in each lifecycle phase",
		}, []string{"phase"}),
		FeaturesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handlers",
			Name:      "features_written_total",
			Help:      "Total number of result cells written",
		}),

		// Feed metrics
		FeedMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "messages_total",
			Help:      "Total number of feed messages received by source",
		}, []string{"source"}),
		FeedDecodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "decode_errors_total",
			Help:      "Total number of feed messages that failed to decode by source",
		}, []string{"source"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "queue_depth",
			Help:      "Current number of events waiting in the dispatch queue",
		}),
		FeedReconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of feed reconnect attempts by source",
		}, []string{"source"}),

		// Storage metrics
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Run metrics
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "total",
			Help:      "Total number of feature runs by mode and status",
		}, []string{"mode", "status"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Feature run duration in seconds",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 300, 900, 3600},
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns an HTTP handler serving the given gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordRun records a finished feature run.
func (m *Metrics) RecordRun(mode, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(mode, status).Inc()
	m.RunDuration.Observe(durationSeconds)
}

// RecordFeedMessage counts a received feed message and its decode outcome.
func (m *Metrics) RecordFeedMessage(source string, err error) {
	if m == nil {
		return
	}
	m.FeedMessages.WithLabelValues(source).Inc()
	if err != nil {
		m.FeedDecodeErrors.WithLabelValues(source).Inc()
	}
}

// RecordReconnect counts a feed reconnect attempt.
func (m *Metrics) RecordReconnect(source string) {
	if m == nil {
		return
	}
	m.FeedReconnects.WithLabelValues(source).Inc()
}

// SetQueueDepth updates the dispatch queue gauge.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

// RecordOutOfOrder counts an event dropped by the ordering guard.
func (m *Metrics) RecordOutOfOrder() {
	if m == nil {
		return
	}
	m.OutOfOrderEvents.Inc()
}
