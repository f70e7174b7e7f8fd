package trending

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/newsloom/newsloom/internal/geo"
	"github.com/newsloom/newsloom/internal/news"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedResults(ids ...string) []ScoredArticle {
	out := make([]ScoredArticle, len(ids))
	for i, id := range ids {
		out[i] = ScoredArticle{Article: news.Article{ID: id}, Score: float64(100 - i)}
	}
	return out
}

func TestCacheColdLookupComputesOnce(t *testing.T) {
	var calls atomic.Int64
	compute := func(ctx context.Context, center geo.Point) ([]ScoredArticle, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return fixedResults("a1", "a2"), nil
	}
	c := NewCache(compute, time.Minute, discardLogger(), nil)

	const workers = 16
	var wg sync.WaitGroup
	results := make([]Result, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Get(context.Background(), 19.076, 72.877, false)
		}(i)
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("compute calls = %d, want 1", got)
	}
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d error = %v", i, errs[i])
		}
		if len(results[i].Articles) != 2 || results[i].Articles[0].Article.ID != "a1" {
			t.Errorf("worker %d articles = %+v", i, results[i].Articles)
		}
	}
}

func TestCacheFreshHitSkipsCompute(t *testing.T) {
	var calls atomic.Int64
	compute := func(ctx context.Context, center geo.Point) ([]ScoredArticle, error) {
		calls.Add(1)
		return fixedResults("a1"), nil
	}
	c := NewCache(compute, time.Minute, discardLogger(), nil)

	first, err := c.Get(context.Background(), 19.076, 72.877, false)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Get(context.Background(), 19.076, 72.877, false)
	if err != nil {
		t.Fatal(err)
	}

	if calls.Load() != 1 {
		t.Fatalf("compute calls = %d, want 1", calls.Load())
	}
	if !second.Cached {
		t.Error("second lookup should be marked cached")
	}
	if second.ClusterKey != first.ClusterKey {
		t.Errorf("cluster keys differ: %q vs %q", first.ClusterKey, second.ClusterKey)
	}
	if len(second.Articles) != len(first.Articles) {
		t.Fatalf("article counts differ")
	}
	for i := range first.Articles {
		if !reflect.DeepEqual(first.Articles[i], second.Articles[i]) {
			t.Errorf("article %d differs between lookups", i)
		}
	}
	if !second.ComputedAt.Equal(first.ComputedAt) {
		t.Errorf("computed_at changed on a cached hit")
	}
}

func TestCacheDistinctClustersComputeIndependently(t *testing.T) {
	var calls atomic.Int64
	compute := func(ctx context.Context, center geo.Point) ([]ScoredArticle, error) {
		calls.Add(1)
		return fixedResults("a1"), nil
	}
	c := NewCache(compute, time.Minute, discardLogger(), nil)

	mumbaiRes, err := c.Get(context.Background(), 19.076, 72.877, false)
	if err != nil {
		t.Fatal(err)
	}
	delhiRes, err := c.Get(context.Background(), 28.61, 77.21, false)
	if err != nil {
		t.Fatal(err)
	}

	if calls.Load() != 2 {
		t.Errorf("compute calls = %d, want 2", calls.Load())
	}
	if mumbaiRes.ClusterKey == delhiRes.ClusterKey {
		t.Errorf("distinct cities share cluster key %q", mumbaiRes.ClusterKey)
	}
}

func TestCacheForceRefreshRecomputes(t *testing.T) {
	var calls atomic.Int64
	compute := func(ctx context.Context, center geo.Point) ([]ScoredArticle, error) {
		n := calls.Add(1)
		if n == 1 {
			return fixedResults("old"), nil
		}
		return fixedResults("new"), nil
	}
	c := NewCache(compute, time.Minute, discardLogger(), nil)

	if _, err := c.Get(context.Background(), 19.076, 72.877, false); err != nil {
		t.Fatal(err)
	}
	res, err := c.Get(context.Background(), 19.076, 72.877, true)
	if err != nil {
		t.Fatal(err)
	}

	if calls.Load() != 2 {
		t.Fatalf("compute calls = %d, want 2", calls.Load())
	}
	if res.Articles[0].Article.ID != "new" {
		t.Errorf("article = %q, want %q", res.Articles[0].Article.ID, "new")
	}
}

func TestCacheStaleServedWhileRevalidating(t *testing.T) {
	refreshed := make(chan struct{})
	var calls atomic.Int64
	compute := func(ctx context.Context, center geo.Point) ([]ScoredArticle, error) {
		n := calls.Add(1)
		if n == 1 {
			return fixedResults("old"), nil
		}
		defer close(refreshed)
		return fixedResults("new"), nil
	}
	c := NewCache(compute, time.Minute, discardLogger(), nil)

	now := time.Now()
	c.now = func() time.Time { return now }

	if _, err := c.Get(context.Background(), 19.076, 72.877, false); err != nil {
		t.Fatal(err)
	}

	// Entry expires; the next lookup serves it stale and refreshes behind
	// the scenes.
	now = now.Add(6 * time.Minute)
	stale, err := c.Get(context.Background(), 19.076, 72.877, false)
	if err != nil {
		t.Fatal(err)
	}
	if stale.Articles[0].Article.ID != "old" {
		t.Errorf("stale serve returned %q, want %q", stale.Articles[0].Article.ID, "old")
	}

	select {
	case <-refreshed:
	case <-time.After(time.Second):
		t.Fatal("background refresh never ran")
	}

	// The refresh settled; the cache now holds the new results.
	deadline := time.Now().Add(time.Second)
	for {
		res, err := c.Get(context.Background(), 19.076, 72.877, false)
		if err != nil {
			t.Fatal(err)
		}
		if res.Articles[0].Article.ID == "new" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("refreshed results never became visible")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCacheFailureServesStale(t *testing.T) {
	var calls atomic.Int64
	settled := make(chan struct{})
	var settleOnce sync.Once
	compute := func(ctx context.Context, center geo.Point) ([]ScoredArticle, error) {
		if calls.Add(1) == 1 {
			return fixedResults("old"), nil
		}
		// The cache retries the refresh on later stale Gets; only the
		// first failure should settle the channel.
		defer settleOnce.Do(func() { close(settled) })
		return nil, errors.New("store unavailable")
	}
	c := NewCache(compute, time.Minute, discardLogger(), nil)

	now := time.Now()
	c.now = func() time.Time { return now }

	if _, err := c.Get(context.Background(), 19.076, 72.877, false); err != nil {
		t.Fatal(err)
	}

	now = now.Add(10 * time.Minute)
	res, err := c.Get(context.Background(), 19.076, 72.877, false)
	if err != nil {
		t.Fatalf("stale serve error = %v", err)
	}
	if res.Articles[0].Article.ID != "old" {
		t.Errorf("got %q, want stale %q", res.Articles[0].Article.ID, "old")
	}

	<-settled

	// Even after the failed refresh, the stale entry keeps being served.
	res, err = c.Get(context.Background(), 19.076, 72.877, false)
	if err != nil {
		t.Fatalf("post-failure serve error = %v", err)
	}
	if res.Articles[0].Article.ID != "old" {
		t.Errorf("got %q, want stale %q", res.Articles[0].Article.ID, "old")
	}
}

func TestCacheColdFailureReturnsError(t *testing.T) {
	compute := func(ctx context.Context, center geo.Point) ([]ScoredArticle, error) {
		return nil, errors.New("store unavailable")
	}
	c := NewCache(compute, time.Minute, discardLogger(), nil)

	_, err := c.Get(context.Background(), 19.076, 72.877, false)
	if !errors.Is(err, ErrRetrievalFailed) {
		t.Fatalf("error = %v, want ErrRetrievalFailed", err)
	}
}

func TestCacheSweepRemovesExpired(t *testing.T) {
	compute := func(ctx context.Context, center geo.Point) ([]ScoredArticle, error) {
		return fixedResults("a1"), nil
	}
	c := NewCache(compute, time.Minute, discardLogger(), nil)

	now := time.Now()
	c.now = func() time.Time { return now }

	if _, err := c.Get(context.Background(), 19.076, 72.877, false); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(context.Background(), 28.61, 77.21, false); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}

	if removed := c.Sweep(); removed != 0 {
		t.Errorf("Sweep() on fresh entries removed %d", removed)
	}

	now = now.Add(10 * time.Minute)
	if removed := c.Sweep(); removed != 2 {
		t.Errorf("Sweep() removed %d, want 2", removed)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after sweep, want 0", c.Len())
	}
}

func TestCachePopulationSurvivesCallerCancellation(t *testing.T) {
	started := make(chan struct{})
	var calls atomic.Int64
	compute := func(ctx context.Context, center geo.Point) ([]ScoredArticle, error) {
		calls.Add(1)
		close(started)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
			return fixedResults("a1"), nil
		}
	}
	c := NewCache(compute, time.Minute, discardLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx, 19.076, 72.877, false)
		done <- err
	}()

	<-started
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller error = %v, want context.Canceled", err)
	}

	// The computation keeps running on a detached context and eventually
	// populates the cache.
	deadline := time.Now().Add(time.Second)
	for c.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("cache never populated after caller cancellation")
		}
		time.Sleep(5 * time.Millisecond)
	}

	res, err := c.Get(context.Background(), 19.076, 72.877, false)
	if err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 1 {
		t.Errorf("compute calls = %d, want 1", calls.Load())
	}
	if !res.Cached {
		t.Error("expected cached result after detached population")
	}
}

func TestSweeperStartStop(t *testing.T) {
	compute := func(ctx context.Context, center geo.Point) ([]ScoredArticle, error) {
		return fixedResults("a1"), nil
	}
	c := NewCache(compute, time.Minute, discardLogger(), nil)
	s := NewSweeper(SweeperConfig{Interval: 10 * time.Millisecond, Logger: discardLogger()}, c)

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !s.IsRunning() {
		t.Error("sweeper should be running after Start")
	}
	// Starting twice is a no-op.
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	s.Stop()
	if s.IsRunning() {
		t.Error("sweeper should not be running after Stop")
	}
	// Stopping twice is a no-op.
	s.Stop()
}
