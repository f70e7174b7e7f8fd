package trending

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricCacheHits         = "trending_cache_hits_total"
	MetricCacheMisses       = "trending_cache_misses_total"
	MetricStaleServes       = "trending_cache_stale_serves_total"
	MetricRecomputes        = "trending_recomputes_total"
	MetricRecomputeErrors   = "trending_recompute_errors_total"
	MetricRecomputeDuration = "trending_recompute_duration_seconds"
)

// Metrics contains Prometheus metrics for the trending cache.
// All operations are thread-safe.
type Metrics struct {
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	staleServes       prometheus.Counter
	recomputes        prometheus.Counter
	recomputeErrors   prometheus.Counter
	recomputeDuration prometheus.Histogram
}

// NewMetrics creates a Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricCacheHits,
			Help: "Total number of trending lookups served from a fresh cache entry",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricCacheMisses,
			Help: "Total number of trending lookups that required a cold computation",
		}),
		staleServes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricStaleServes,
			Help: "Total number of trending lookups served stale while a refresh ran",
		}),
		recomputes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRecomputes,
			Help: "Total number of trending score recomputations",
		}),
		recomputeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRecomputeErrors,
			Help: "Total number of failed trending score recomputations",
		}),
		recomputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricRecomputeDuration,
			Help:    "Histogram of trending recomputation duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.cacheHits,
		m.cacheMisses,
		m.staleServes,
		m.recomputes,
		m.recomputeErrors,
		m.recomputeDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncHits increments the fresh cache hit counter.
func (m *Metrics) IncHits() { m.cacheHits.Inc() }

// IncMisses increments the cold lookup counter.
func (m *Metrics) IncMisses() { m.cacheMisses.Inc() }

// IncStaleServes increments the stale-while-revalidate serve counter.
func (m *Metrics) IncStaleServes() { m.staleServes.Inc() }

// IncRecomputes increments the recomputation counter.
func (m *Metrics) IncRecomputes() { m.recomputes.Inc() }

// IncRecomputeErrors increments the failed recomputation counter.
func (m *Metrics) IncRecomputeErrors() { m.recomputeErrors.Inc() }

// ObserveRecomputeDuration records one recomputation's duration in seconds.
func (m *Metrics) ObserveRecomputeDuration(seconds float64) {
	m.recomputeDuration.Observe(seconds)
}
