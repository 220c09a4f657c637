package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RateChangeApplier applies approved interest rate changes that have reached
// their effective date, returning the number of changes applied
type RateChangeApplier interface {
	ApplyDueRateChanges(ctx context.Context, now time.Time) (int, error)
}

// RateChangeSweeperConfig holds configuration for the rate change sweeper
type RateChangeSweeperConfig struct {
	// Enabled indicates if the sweeper is enabled
	Enabled bool
	// SweepInterval is how often the sweeper looks for due rate changes
	SweepInterval time.Duration
	// JobTimeout is the maximum time a single sweep can run
	JobTimeout time.Duration
}

// DefaultRateChangeSweeperConfig returns default sweeper configuration
func DefaultRateChangeSweeperConfig() RateChangeSweeperConfig {
	return RateChangeSweeperConfig{
		Enabled:       true,
		SweepInterval: time.Hour,
		JobTimeout:    5 * time.Minute,
	}
}

// Validate validates the configuration
func (c *RateChangeSweeperConfig) Validate() error {
	if c.SweepInterval <= 0 {
		return ErrInvalidConfig
	}
	if c.JobTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// RateChangeSweeper periodically applies approved interest rate changes whose
// effective date has arrived. Each sweep is idempotent: a change is applied at
// most once, so overlapping or repeated sweeps are harmless.
type RateChangeSweeper struct {
	config  RateChangeSweeperConfig
	applier RateChangeApplier
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	lastRunAt    *time.Time
	lastApplied  int
	totalSweeps  int
	totalApplied int
}

// NewRateChangeSweeper creates a new rate change sweeper
func NewRateChangeSweeper(config RateChangeSweeperConfig, applier RateChangeApplier, logger *zap.Logger) (*RateChangeSweeper, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &RateChangeSweeper{
		config:  config,
		applier: applier,
		logger:  logger,
	}, nil
}

// Start starts the sweeper loop
func (s *RateChangeSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.sweepLoop(ctx)

	s.logger.Info("Rate change sweeper started",
		zap.Duration("sweep_interval", s.config.SweepInterval),
	)
	return nil
}

// Stop gracefully stops the sweeper
func (s *RateChangeSweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Rate change sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Rate change sweeper stop timed out")
		return ctx.Err()
	}
}

// sweepLoop runs the periodic sweep
func (s *RateChangeSweeper) sweepLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	// Run one sweep at startup to catch changes that came due while down
	s.runSweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runSweep(ctx)
		}
	}
}

// runSweep executes a single sweep pass
func (s *RateChangeSweeper) runSweep(ctx context.Context) {
	now := time.Now()

	sweepCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	applied, err := s.applier.ApplyDueRateChanges(sweepCtx, now)
	if err != nil {
		s.logger.Error("Rate change sweep failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.lastRunAt = &now
	s.lastApplied = applied
	s.totalSweeps++
	s.totalApplied += applied
	s.mu.Unlock()

	if applied > 0 {
		s.logger.Info("Rate change sweep completed",
			zap.Int("applied_count", applied),
		)
	} else {
		s.logger.Debug("Rate change sweep completed, nothing due")
	}
}

// TriggerManualSweep triggers a sweep outside the regular interval
func (s *RateChangeSweeper) TriggerManualSweep(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.mu.Unlock()

	// Use background context to prevent premature cancellation when the
	// triggering HTTP request completes
	go s.runSweep(context.Background())
	return nil
}

// GetStatus returns the current status of the sweeper
func (s *RateChangeSweeper) GetStatus() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]any{
		"enabled":        s.config.Enabled,
		"is_running":     s.isRunning,
		"sweep_interval": s.config.SweepInterval.String(),
		"last_run_at":    s.lastRunAt,
		"last_applied":   s.lastApplied,
		"total_sweeps":   s.totalSweeps,
		"total_applied":  s.totalApplied,
	}
}
