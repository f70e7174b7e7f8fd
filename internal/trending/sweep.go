package trending

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultSweepInterval is the default interval between cache sweeps.
const DefaultSweepInterval = time.Minute

// SweeperConfig configures the cache sweep job.
type SweeperConfig struct {
	// Interval is the duration between sweep cycles.
	Interval time.Duration
	// Logger for job activity.
	Logger *slog.Logger
}

// Sweeper periodically evicts expired entries from a trending cache. Expiry
// is also enforced lazily on lookup; the sweeper only bounds memory held by
// clusters nobody asks about anymore.
type Sweeper struct {
	config SweeperConfig
	cache  *Cache

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSweeper creates a sweep job for the given cache.
func NewSweeper(config SweeperConfig, cache *Cache) *Sweeper {
	if config.Interval <= 0 {
		config.Interval = DefaultSweepInterval
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Sweeper{config: config, cache: cache}
}

// Start begins the periodic sweep job.
// Returns immediately; the job runs in a background goroutine.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.run(ctx)
	return nil
}

// Stop signals the sweep job to stop and waits for it to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	stopCh := s.stopCh
	doneCh := s.doneCh
	s.mu.Unlock()

	close(stopCh)
	<-doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the job is currently running.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.config.Logger.Info("trending cache sweeper stopping due to context cancellation")
			return
		case <-s.stopCh:
			s.config.Logger.Info("trending cache sweeper stopping due to stop signal")
			return
		case <-ticker.C:
			if removed := s.cache.Sweep(); removed > 0 {
				s.config.Logger.Debug("swept expired trending entries",
					"removed", removed,
					"remaining", s.cache.Len())
			}
		}
	}
}
