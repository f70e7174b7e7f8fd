package trending

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/newsloom/newsloom/internal/geo"
)

// ErrRetrievalFailed is returned when a trending computation fails and no
// previously cached results exist to fall back on.
var ErrRetrievalFailed = errors.New("trending retrieval failed")

// DefaultTTL is how long a cached cluster result stays fresh.
const DefaultTTL = 5 * time.Minute

// ComputeFunc produces the scored articles for a cluster centered at center.
type ComputeFunc func(ctx context.Context, center geo.Point) ([]ScoredArticle, error)

// Result is a trending lookup outcome.
type Result struct {
	Articles   []ScoredArticle `json:"articles"`
	ClusterKey string          `json:"cluster_key"`
	ComputedAt time.Time       `json:"computed_at"`
	Cached     bool            `json:"cached"`
}

type entry struct {
	articles   []ScoredArticle
	computedAt time.Time
}

// inflight coordinates concurrent lookups of the same cluster: one caller
// computes, everyone else waits on done.
type inflight struct {
	done     chan struct{}
	articles []ScoredArticle
	err      error
}

// Cache is a cluster-keyed trending result cache with TTL-based freshness,
// per-key single-flight recomputation, and stale-while-revalidate serving.
// It is safe for concurrent use.
type Cache struct {
	compute ComputeFunc
	ttl     time.Duration
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time

	mu       sync.Mutex
	entries  map[string]*entry
	inflight map[string]*inflight
}

// NewCache creates a Cache over the given compute function. A zero ttl
// selects DefaultTTL. Metrics may be nil.
func NewCache(compute ComputeFunc, ttl time.Duration, logger *slog.Logger, metrics *Metrics) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		compute:  compute,
		ttl:      ttl,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
		entries:  make(map[string]*entry),
		inflight: make(map[string]*inflight),
	}
}

// Get returns the trending results for the cluster containing (lat, lon).
//
// A fresh cached entry is returned as-is unless forceRefresh is set. A stale
// entry is served immediately while a single background refresh runs; only
// one recomputation per cluster is ever in flight, and concurrent cold
// lookups share its outcome. forceRefresh joins an existing in-flight
// computation rather than starting a second one.
//
// When a recomputation fails, a stale entry of any age is served and the
// failure logged; with nothing cached the caller gets ErrRetrievalFailed.
func (c *Cache) Get(ctx context.Context, lat, lon float64, forceRefresh bool) (Result, error) {
	key := geo.ClusterKey(lat, lon)
	center := geo.ClusterCenter(lat, lon)

	c.mu.Lock()
	e := c.entries[key]
	fresh := e != nil && c.now().Sub(e.computedAt) < c.ttl

	if fresh && !forceRefresh {
		res := c.resultLocked(key, e, true)
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.IncHits()
		}
		return res, nil
	}

	if fl, ok := c.inflight[key]; ok {
		// Someone is already recomputing this cluster.
		if e != nil && !forceRefresh {
			res := c.resultLocked(key, e, true)
			c.mu.Unlock()
			if c.metrics != nil {
				c.metrics.IncStaleServes()
			}
			return res, nil
		}
		c.mu.Unlock()
		return c.await(ctx, key, fl)
	}

	// This caller is the winner: it owns the recomputation.
	fl := &inflight{done: make(chan struct{})}
	c.inflight[key] = fl

	if e != nil && !forceRefresh {
		// Stale-while-revalidate: serve the stale entry now, refresh in
		// the background.
		res := c.resultLocked(key, e, true)
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.IncStaleServes()
		}
		go c.recompute(context.WithoutCancel(ctx), key, center, fl)
		return res, nil
	}
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.IncMisses()
	}
	go c.recompute(context.WithoutCancel(ctx), key, center, fl)
	return c.await(ctx, key, fl)
}

// await blocks until the in-flight computation for key settles or the
// caller's context is cancelled. The computation itself is never cancelled.
func (c *Cache) await(ctx context.Context, key string, fl *inflight) (Result, error) {
	// A settled computation wins over a cancelled caller.
	select {
	case <-fl.done:
	default:
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-fl.done:
		}
	}

	if fl.err != nil {
		return Result{}, fl.err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e := c.entries[key]; e != nil {
		return c.resultLocked(key, e, false), nil
	}
	// Entry swept between completion and read; hand back the raw outcome.
	return Result{Articles: fl.articles, ClusterKey: key, ComputedAt: c.now()}, nil
}

// recompute runs the compute function for a cluster and settles its
// in-flight record. It runs on a detached context so cache population
// survives cancellation of the request that triggered it.
func (c *Cache) recompute(ctx context.Context, key string, center geo.Point, fl *inflight) {
	start := c.now()
	articles, err := c.compute(ctx, center)
	if c.metrics != nil {
		c.metrics.ObserveRecomputeDuration(c.now().Sub(start).Seconds())
		c.metrics.IncRecomputes()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, key)

	if err != nil {
		if c.metrics != nil {
			c.metrics.IncRecomputeErrors()
		}
		if stale := c.entries[key]; stale != nil {
			// Keep serving the stale entry; waiters get it too.
			c.logger.Warn("trending recompute failed, keeping stale results",
				"cluster_key", key,
				"stale_age", c.now().Sub(stale.computedAt),
				"error", err)
			fl.articles = stale.articles
			close(fl.done)
			return
		}
		c.logger.Error("trending recompute failed with nothing cached",
			"cluster_key", key,
			"error", err)
		fl.err = fmt.Errorf("%w: %v", ErrRetrievalFailed, err)
		close(fl.done)
		return
	}

	c.entries[key] = &entry{articles: articles, computedAt: c.now()}
	fl.articles = articles
	close(fl.done)
}

// resultLocked builds a Result from a cache entry. Callers hold c.mu.
func (c *Cache) resultLocked(key string, e *entry, cached bool) Result {
	return Result{
		Articles:   e.articles,
		ClusterKey: key,
		ComputedAt: e.computedAt,
		Cached:     cached,
	}
}

// Sweep removes expired entries and returns how many were dropped. Entries
// with an in-flight refresh are kept: their staleness is already being
// repaired.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if _, busy := c.inflight[key]; busy {
			continue
		}
		if now.Sub(e.computedAt) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of cached cluster entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
