package enrich

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/newsloom/newsloom/internal/news"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSummarizer returns a canned summary or error and counts calls.
type fakeSummarizer struct {
	summary string
	err     error
	calls   int32
}

func (f *fakeSummarizer) Summarize(ctx context.Context, title, description string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.summary, f.err
}

func seedStore(t *testing.T, articles ...news.Article) *news.InMemoryArticleStore {
	t.Helper()
	store := news.NewInMemoryArticleStore()
	for _, a := range articles {
		if err := store.Insert(context.Background(), a); err != nil {
			t.Fatalf("Insert(%s) error = %v", a.ID, err)
		}
	}
	return store
}

func TestBackfillNow_UsesSummarizer(t *testing.T) {
	store := seedStore(t,
		news.Article{ID: "a1", Title: "Port strike", Description: "Dockworkers walked out. Talks continue."},
		news.Article{ID: "a2", Title: "Quake update", Description: "Aftershocks reported.", Summary: "already set"},
	)
	summarizer := &fakeSummarizer{summary: "A dockworker strike has begun."}

	job := NewBackfillJob(BackfillJobConfig{Logger: testLogger()}, store, summarizer)
	job.BackfillNow()

	a1, err := store.GetByID(context.Background(), "a1")
	if err != nil {
		t.Fatalf("GetByID(a1) error = %v", err)
	}
	if a1.Summary != "A dockworker strike has begun." {
		t.Errorf("a1 summary = %q, want the summarizer output", a1.Summary)
	}

	// Articles that already have a summary must not be touched.
	a2, err := store.GetByID(context.Background(), "a2")
	if err != nil {
		t.Fatalf("GetByID(a2) error = %v", err)
	}
	if a2.Summary != "already set" {
		t.Errorf("a2 summary = %q, want unchanged", a2.Summary)
	}

	if calls := atomic.LoadInt32(&summarizer.calls); calls != 1 {
		t.Errorf("summarizer calls = %d, want 1", calls)
	}
}

func TestBackfillNow_FallsBackOnError(t *testing.T) {
	store := seedStore(t,
		news.Article{ID: "a1", Title: "Election results", Description: "Counting finished overnight. Turnout was high."},
	)
	summarizer := &fakeSummarizer{err: errors.New("service down")}

	job := NewBackfillJob(BackfillJobConfig{Logger: testLogger()}, store, summarizer)
	job.BackfillNow()

	a1, err := store.GetByID(context.Background(), "a1")
	if err != nil {
		t.Fatalf("GetByID(a1) error = %v", err)
	}
	if a1.Summary != "Counting finished overnight." {
		t.Errorf("a1 summary = %q, want local first-sentence extract", a1.Summary)
	}
}

func TestBackfillNow_NilSummarizer(t *testing.T) {
	store := seedStore(t,
		news.Article{ID: "a1", Title: "Headline only"},
	)

	job := NewBackfillJob(BackfillJobConfig{Logger: testLogger()}, store, nil)
	job.BackfillNow()

	a1, err := store.GetByID(context.Background(), "a1")
	if err != nil {
		t.Fatalf("GetByID(a1) error = %v", err)
	}
	if a1.Summary != "Headline only" {
		t.Errorf("a1 summary = %q, want title fallback", a1.Summary)
	}
}

func TestBackfillNow_RespectsBatchSize(t *testing.T) {
	store := seedStore(t,
		news.Article{ID: "a1", Title: "One", Description: "First."},
		news.Article{ID: "a2", Title: "Two", Description: "Second."},
		news.Article{ID: "a3", Title: "Three", Description: "Third."},
	)
	summarizer := &fakeSummarizer{summary: "s"}

	job := NewBackfillJob(BackfillJobConfig{BatchSize: 2, Logger: testLogger()}, store, summarizer)
	job.BackfillNow()

	if calls := atomic.LoadInt32(&summarizer.calls); calls != 2 {
		t.Errorf("summarizer calls = %d, want 2 (batch size)", calls)
	}

	remaining, err := store.MissingSummary(context.Background(), 0)
	if err != nil {
		t.Fatalf("MissingSummary() error = %v", err)
	}
	if len(remaining) != 1 {
		t.Errorf("remaining unsummarized = %d, want 1", len(remaining))
	}
}

func TestFallbackSummary(t *testing.T) {
	tests := []struct {
		name    string
		article news.Article
		want    string
	}{
		{
			name:    "first sentence",
			article: news.Article{Title: "T", Description: "Snow closed the pass. Crews are plowing."},
			want:    "Snow closed the pass.",
		},
		{
			name:    "question mark terminates",
			article: news.Article{Title: "T", Description: "Will rates rise? Analysts disagree."},
			want:    "Will rates rise?",
		},
		{
			name:    "no punctuation keeps whole description",
			article: news.Article{Title: "T", Description: "an unpunctuated fragment"},
			want:    "an unpunctuated fragment",
		},
		{
			name:    "empty description uses title",
			article: news.Article{Title: "Only a headline"},
			want:    "Only a headline",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FallbackSummary(tt.article); got != tt.want {
				t.Errorf("FallbackSummary() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFallbackSummary_Truncates(t *testing.T) {
	long := strings.Repeat("x", 500)
	got := FallbackSummary(news.Article{Title: "T", Description: long})
	if len([]rune(got)) != fallbackSummaryLen {
		t.Errorf("truncated length = %d, want %d", len([]rune(got)), fallbackSummaryLen)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated summary should end with ellipsis, got %q", got[len(got)-10:])
	}
}

func TestBackfillJob_StartStop(t *testing.T) {
	store := seedStore(t,
		news.Article{ID: "a1", Title: "One", Description: "First."},
	)

	job := NewBackfillJob(BackfillJobConfig{
		Interval: 10 * time.Millisecond,
		Logger:   testLogger(),
	}, store, &fakeSummarizer{summary: "s"})

	if job.IsRunning() {
		t.Fatal("job should not be running before Start")
	}

	if err := job.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !job.IsRunning() {
		t.Error("job should be running after Start")
	}

	// Starting again is a no-op
	if err := job.Start(context.Background()); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}

	// Wait for at least one tick
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		a1, err := store.GetByID(context.Background(), "a1")
		if err != nil {
			t.Fatalf("GetByID(a1) error = %v", err)
		}
		if a1.Summary != "" {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	job.Stop()
	if job.IsRunning() {
		t.Error("job should not be running after Stop")
	}

	// Stopping again is a no-op
	job.Stop()

	a1, err := store.GetByID(context.Background(), "a1")
	if err != nil {
		t.Fatalf("GetByID(a1) error = %v", err)
	}
	if a1.Summary == "" {
		t.Error("expected the periodic job to have filled the summary")
	}
}
