package ingest

import (
	"crypto/subtle"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics names as constants for consistency.
const (
	MetricEventsProcessed = "ingest_events_processed_total"
	MetricEventsRejected  = "ingest_events_rejected_total"
	MetricAppendErrors    = "ingest_append_errors_total"
	MetricIngestLatency   = "ingest_latency_seconds"
)

// Metrics contains Prometheus metrics for the ingestion loop.
// All operations are thread-safe.
type Metrics struct {
	eventsProcessed prometheus.Counter
	eventsRejected  prometheus.Counter
	appendErrors    prometheus.Counter
	ingestLatency   prometheus.Histogram
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		eventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricEventsProcessed,
			Help: "Total number of interaction events appended to the store",
		}),
		eventsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricEventsRejected,
			Help: "Total number of firehose events skipped as malformed or unknown",
		}),
		appendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricAppendErrors,
			Help: "Total number of store append failures",
		}),
		ingestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricIngestLatency,
			Help:    "Histogram of event ingestion latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncEventsProcessed increments the processed counter.
func (m *Metrics) IncEventsProcessed() {
	m.eventsProcessed.Inc()
}

// IncEventsRejected increments the rejected counter.
func (m *Metrics) IncEventsRejected() {
	m.eventsRejected.Inc()
}

// IncAppendErrors increments the append error counter.
func (m *Metrics) IncAppendErrors() {
	m.appendErrors.Inc()
}

// ObserveIngestLatency records an ingestion latency sample.
func (m *Metrics) ObserveIngestLatency(seconds float64) {
	m.ingestLatency.Observe(seconds)
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.eventsProcessed,
		m.eventsRejected,
		m.appendErrors,
		m.ingestLatency,
	}
}

// MetricsHandler creates an HTTP handler for the Prometheus metrics endpoint.
// It uses the provided registry to gather metrics.
func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// InternalAuthMiddleware restricts access to requests with a valid token.
// If token is empty, no authentication is required.
// The token is checked against the X-Internal-Token header.
// Uses constant-time comparison to prevent timing attacks.
func InternalAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// If no token is configured, allow all requests
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			headerToken := r.Header.Get("X-Internal-Token")
			if subtle.ConstantTimeCompare([]byte(headerToken), []byte(token)) != 1 {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
