// Package enrich backfills article summaries from the language-analysis
// service, falling back to a local extract when the service is unavailable.
package enrich

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/newsloom/newsloom/internal/news"
)

// Summarizer produces a short summary from an article's title and description.
type Summarizer interface {
	Summarize(ctx context.Context, title, description string) (string, error)
}

// DefaultBackfillInterval is the default interval between backfill cycles.
const DefaultBackfillInterval = 1 * time.Minute

// DefaultBackfillTimeout is the default timeout for a single backfill cycle.
const DefaultBackfillTimeout = 30 * time.Second

// DefaultBatchSize is how many unsummarized articles one cycle picks up.
const DefaultBatchSize = 25

// fallbackSummaryLen caps the locally-derived summary length in runes.
const fallbackSummaryLen = 240

// BackfillJobConfig configures the summary backfill job.
type BackfillJobConfig struct {
	// Interval is the duration between backfill cycles.
	Interval time.Duration
	// BatchSize is the maximum number of articles processed per cycle.
	BatchSize int
	// Timeout for each backfill cycle.
	Timeout time.Duration
	// Logger for job activity.
	Logger *slog.Logger
}

// BackfillJob periodically finds articles without summaries and fills them in.
type BackfillJob struct {
	config     BackfillJobConfig
	store      news.ArticleStore
	summarizer Summarizer

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewBackfillJob creates a summary backfill job.
// summarizer may be nil, in which case every summary is derived locally.
func NewBackfillJob(config BackfillJobConfig, store news.ArticleStore, summarizer Summarizer) *BackfillJob {
	if config.Interval == 0 {
		config.Interval = DefaultBackfillInterval
	}
	if config.BatchSize == 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultBackfillTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &BackfillJob{
		config:     config,
		store:      store,
		summarizer: summarizer,
	}
}

// Start begins the periodic backfill job.
// Returns immediately; the job runs in a background goroutine.
func (j *BackfillJob) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return nil
	}
	j.running = true
	j.stopCh = make(chan struct{})
	j.doneCh = make(chan struct{})
	j.mu.Unlock()

	go j.run(ctx)
	return nil
}

// Stop signals the backfill job to stop and waits for it to finish.
func (j *BackfillJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	stopCh := j.stopCh
	doneCh := j.doneCh
	j.mu.Unlock()

	close(stopCh)
	<-doneCh

	j.mu.Lock()
	j.running = false
	j.mu.Unlock()
}

// IsRunning returns whether the job is currently running.
func (j *BackfillJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// run is the main loop for the backfill job.
func (j *BackfillJob) run(ctx context.Context) {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.config.Logger.Info("summary backfill job stopping due to context cancellation")
			return
		case <-j.stopCh:
			j.config.Logger.Info("summary backfill job stopping due to stop signal")
			return
		case <-ticker.C:
			j.backfill(ctx)
		}
	}
}

// backfill processes one batch of unsummarized articles.
func (j *BackfillJob) backfill(parentCtx context.Context) {
	ctx, cancel := context.WithTimeout(parentCtx, j.config.Timeout)
	defer cancel()

	articles, err := j.store.MissingSummary(ctx, j.config.BatchSize)
	if err != nil {
		j.config.Logger.Error("failed to list unsummarized articles", "error", err)
		return
	}
	if len(articles) == 0 {
		return
	}

	startTime := time.Now()
	var filled, fellBack, failed int

	for _, a := range articles {
		select {
		case <-ctx.Done():
			j.config.Logger.Error("summary backfill timeout exceeded",
				"processed", filled+fellBack,
				"total", len(articles),
				"timeout", j.config.Timeout)
			return
		default:
		}

		summary, local := j.summarize(ctx, a)
		if summary == "" {
			failed++
			continue
		}

		if err := j.store.SetSummary(ctx, a.ID, summary); err != nil {
			j.config.Logger.Error("failed to store summary",
				"article_id", a.ID,
				"error", err)
			failed++
			continue
		}

		if local {
			fellBack++
		} else {
			filled++
		}
	}

	j.config.Logger.Info("summary backfill completed",
		"duration_seconds", time.Since(startTime).Seconds(),
		"summarized", filled,
		"fallback", fellBack,
		"failed", failed)
}

// summarize asks the language-analysis service for a summary and falls back
// to a local extract on error. The bool return reports whether the fallback
// was used.
func (j *BackfillJob) summarize(ctx context.Context, a news.Article) (string, bool) {
	if j.summarizer != nil {
		summary, err := j.summarizer.Summarize(ctx, a.Title, a.Description)
		if err == nil && summary != "" {
			return summary, false
		}
		if err != nil {
			j.config.Logger.Warn("summarizer unavailable, using local extract",
				"article_id", a.ID,
				"error", err)
		}
	}
	return FallbackSummary(a), true
}

// BackfillNow immediately runs one backfill cycle without waiting for the ticker.
// This is useful for testing or forcing immediate updates.
func (j *BackfillJob) BackfillNow() {
	j.backfill(context.Background())
}

// FallbackSummary derives a summary from the article text alone: the first
// sentence of the description, or the title when there is no description.
func FallbackSummary(a news.Article) string {
	text := strings.TrimSpace(a.Description)
	if text == "" {
		return strings.TrimSpace(a.Title)
	}

	if idx := strings.IndexAny(text, ".!?"); idx != -1 {
		text = text[:idx+1]
	}

	runes := []rune(text)
	if len(runes) > fallbackSummaryLen {
		text = string(runes[:fallbackSummaryLen-3]) + "..."
	}
	return text
}
