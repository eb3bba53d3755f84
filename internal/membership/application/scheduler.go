package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/axyra/membership/pkg/observability"
)

// UsageRefresher refreshes every known subscription and expires the ones
// whose billing period has lapsed.
type UsageRefresher interface {
	RefreshAll(ctx context.Context) (int, error)
	ExpireLapsed(ctx context.Context) (int, error)
}

// SchedulerConfig holds configuration for the refresh scheduler.
type SchedulerConfig struct {
	Interval time.Duration
	// RunOnStart refreshes immediately instead of waiting one interval.
	RunOnStart bool
}

// DefaultSchedulerConfig returns sensible defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:   5 * time.Minute,
		RunOnStart: true,
	}
}

// RefreshScheduler periodically expires lapsed subscriptions and recounts
// usage for all of them.
type RefreshScheduler struct {
	refresher UsageRefresher
	config    SchedulerConfig
	logger    *slog.Logger
	metrics   observability.Metrics

	wg       sync.WaitGroup
	stopChan chan struct{}
	running  bool
	mu       sync.Mutex

	statsMu sync.Mutex
	stats   SchedulerStats
}

// SchedulerStats reports what the scheduler has done so far.
type SchedulerStats struct {
	IsRunning     bool       `json:"running"`
	Runs          uint64     `json:"runs"`
	LastRefreshed int        `json:"last_refreshed"`
	LastExpired   int        `json:"last_expired"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	LastErrorAt   *time.Time `json:"last_error_at,omitempty"`
}

// NewRefreshScheduler creates a scheduler around refresher.
func NewRefreshScheduler(refresher UsageRefresher, config SchedulerConfig, logger *slog.Logger, metrics observability.Metrics) *RefreshScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if config.Interval <= 0 {
		config.Interval = DefaultSchedulerConfig().Interval
	}
	return &RefreshScheduler{
		refresher: refresher,
		config:    config,
		logger:    logger,
		metrics:   metrics,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the refresh loop in a goroutine.
func (s *RefreshScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("usage refresh scheduler started", "interval", s.config.Interval)
}

// Stop waits for the current run to finish and stops the loop.
func (s *RefreshScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("usage refresh scheduler stopped")
}

// IsRunning returns true if the loop is running.
func (s *RefreshScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *RefreshScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	if s.config.RunOnStart {
		_ = s.RunOnce(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			_ = s.RunOnce(ctx)
		}
	}
}

// RunOnce expires lapsed subscriptions, then refreshes all usage
// synchronously. An expiry failure does not skip the refresh.
func (s *RefreshScheduler) RunOnce(ctx context.Context) error {
	expired, expireErr := observability.TimeOperationResult(ctx, s.logger, s.metrics, "membership.expire_lapsed", func() (int, error) {
		return s.refresher.ExpireLapsed(ctx)
	})
	n, err := observability.TimeOperationResult(ctx, s.logger, s.metrics, "usage.refresh_all", func() (int, error) {
		return s.refresher.RefreshAll(ctx)
	})
	err = errors.Join(expireErr, err)

	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	now := time.Now()
	s.stats.Runs++
	s.stats.LastRunAt = &now
	s.stats.LastRefreshed = n
	s.stats.LastExpired = expired
	if err != nil {
		s.stats.LastError = err.Error()
		s.stats.LastErrorAt = &now
	}
	return err
}

// GetStats returns current scheduler statistics.
func (s *RefreshScheduler) GetStats() SchedulerStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	stats := s.stats
	stats.IsRunning = s.IsRunning()
	return stats
}
