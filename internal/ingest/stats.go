package ingest

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Stats tracks cumulative counts for the ingestion loop.
// All operations are thread-safe using atomic counters.
type Stats struct {
	accepted int64 // Events appended to the store
	rejected int64 // Events skipped as malformed or unknown
}

// NewStats creates a new Stats instance.
func NewStats() *Stats {
	return &Stats{}
}

// RecordAccepted increments the accepted counter.
func (s *Stats) RecordAccepted() {
	atomic.AddInt64(&s.accepted, 1)
}

// RecordRejected increments the rejected counter.
func (s *Stats) RecordRejected() {
	atomic.AddInt64(&s.rejected, 1)
}

// Accepted returns the total number of accepted events.
func (s *Stats) Accepted() int64 {
	return atomic.LoadInt64(&s.accepted)
}

// Rejected returns the total number of rejected events.
func (s *Stats) Rejected() int64 {
	return atomic.LoadInt64(&s.rejected)
}

// Total returns the total number of events seen (accepted + rejected).
func (s *Stats) Total() int64 {
	return s.Accepted() + s.Rejected()
}

// Reset resets all counters to zero.
func (s *Stats) Reset() {
	atomic.StoreInt64(&s.accepted, 0)
	atomic.StoreInt64(&s.rejected, 0)
}

// String returns a human-readable summary of the statistics.
func (s *Stats) String() string {
	return fmt.Sprintf("accepted=%d rejected=%d total=%d", s.Accepted(), s.Rejected(), s.Total())
}

// LogSummary logs a summary of ingestion statistics at INFO level.
// Useful for periodic reporting during long-running consumption.
func (s *Stats) LogSummary(logger *slog.Logger) {
	logger.Info("ingestion statistics",
		slog.Int64("accepted", s.Accepted()),
		slog.Int64("rejected", s.Rejected()),
		slog.Int64("total", s.Total()),
	)
}
