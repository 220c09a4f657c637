package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	approvalapp "github.com/mfi/backend/internal/application/approval"
)

// OverdueRequestLister lists open approval requests whose SLA deadline has passed
type OverdueRequestLister interface {
	ListOverdue(ctx context.Context, now time.Time) ([]approvalapp.RequestResponse, error)
}

// SLAScannerConfig holds configuration for the SLA scanner
type SLAScannerConfig struct {
	// Enabled indicates if the scanner is enabled
	Enabled bool
	// ScanInterval is how often the scanner checks for overdue requests
	ScanInterval time.Duration
	// JobTimeout is the maximum time a single scan can run
	JobTimeout time.Duration
}

// DefaultSLAScannerConfig returns default scanner configuration
func DefaultSLAScannerConfig() SLAScannerConfig {
	return SLAScannerConfig{
		Enabled:      true,
		ScanInterval: 15 * time.Minute,
		JobTimeout:   5 * time.Minute,
	}
}

// Validate validates the configuration
func (c *SLAScannerConfig) Validate() error {
	if c.ScanInterval <= 0 {
		return ErrInvalidConfig
	}
	if c.JobTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// SLAScanner periodically scans for approval requests that have breached
// their SLA and surfaces them in the logs. The scan never mutates the
// requests; escalation stays a human decision.
type SLAScanner struct {
	config SLAScannerConfig
	lister OverdueRequestLister
	logger *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	lastRunAt    *time.Time
	lastOverdue  int
	totalScans   int
	totalOverdue int
}

// NewSLAScanner creates a new SLA scanner
func NewSLAScanner(config SLAScannerConfig, lister OverdueRequestLister, logger *zap.Logger) (*SLAScanner, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &SLAScanner{
		config: config,
		lister: lister,
		logger: logger,
	}, nil
}

// Start starts the scanner loop
func (s *SLAScanner) Start(ctx context.Context) error {
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
	go s.scanLoop(ctx)

	s.logger.Info("SLA scanner started",
		zap.Duration("scan_interval", s.config.ScanInterval),
	)
	return nil
}

// Stop gracefully stops the scanner
func (s *SLAScanner) Stop(ctx context.Context) error {
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
		s.logger.Info("SLA scanner stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("SLA scanner stop timed out")
		return ctx.Err()
	}
}

// scanLoop runs the periodic scan
func (s *SLAScanner) scanLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.ScanInterval)
	defer ticker.Stop()

	// Run one scan at startup so a restart does not delay detection
	s.runScan(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runScan(ctx)
		}
	}
}

// runScan executes a single scan pass
func (s *SLAScanner) runScan(ctx context.Context) {
	now := time.Now()

	scanCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	overdue, err := s.lister.ListOverdue(scanCtx, now)
	if err != nil {
		s.logger.Error("SLA scan failed", zap.Error(err))
		return
	}

	for _, req := range overdue {
		fields := []zap.Field{
			zap.String("request_number", req.RequestNumber),
			zap.String("entity_type", req.EntityType),
			zap.String("entity_id", req.EntityID.String()),
			zap.Int("current_level", req.CurrentLevel),
			zap.Int("total_levels", req.TotalLevels),
		}
		if req.SLADueAt != nil {
			fields = append(fields,
				zap.Time("sla_due_at", *req.SLADueAt),
				zap.Duration("overdue_by", now.Sub(*req.SLADueAt)),
			)
		}
		s.logger.Warn("approval request past SLA deadline", fields...)
	}

	s.mu.Lock()
	s.lastRunAt = &now
	s.lastOverdue = len(overdue)
	s.totalScans++
	s.totalOverdue += len(overdue)
	s.mu.Unlock()

	if len(overdue) > 0 {
		s.logger.Info("SLA scan completed",
			zap.Int("overdue_count", len(overdue)),
		)
	} else {
		s.logger.Debug("SLA scan completed, no overdue requests")
	}
}

// TriggerManualScan triggers a scan outside the regular interval
func (s *SLAScanner) TriggerManualScan(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.mu.Unlock()

	// Use background context to prevent premature cancellation when the
	// triggering HTTP request completes
	go s.runScan(context.Background())
	return nil
}

// GetStatus returns the current status of the scanner
func (s *SLAScanner) GetStatus() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]any{
		"enabled":       s.config.Enabled,
		"is_running":    s.isRunning,
		"scan_interval": s.config.ScanInterval.String(),
		"last_run_at":   s.lastRunAt,
		"last_overdue":  s.lastOverdue,
		"total_scans":   s.totalScans,
		"total_overdue": s.totalOverdue,
	}
}
