package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.uber.org/zap"

	approvalapp "github.com/mfi/backend/internal/application/approval"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

// mockOverdueLister implements OverdueRequestLister for testing
type mockOverdueLister struct {
	listFunc  func(ctx context.Context, now time.Time) ([]approvalapp.RequestResponse, error)
	callCount int32
}

func (m *mockOverdueLister) ListOverdue(ctx context.Context, now time.Time) ([]approvalapp.RequestResponse, error) {
	atomic.AddInt32(&m.callCount, 1)
	if m.listFunc != nil {
		return m.listFunc(ctx, now)
	}
	return nil, nil
}

func TestSLAScannerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  SLAScannerConfig
		wantErr bool
	}{
		{
			name:    "Valid default config",
			config:  DefaultSLAScannerConfig(),
			wantErr: false,
		},
		{
			name: "Invalid scan interval",
			config: SLAScannerConfig{
				ScanInterval: 0,
				JobTimeout:   time.Minute,
			},
			wantErr: true,
		},
		{
			name: "Invalid job timeout",
			config: SLAScannerConfig{
				ScanInterval: time.Minute,
				JobTimeout:   0,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewSLAScanner_InvalidConfig(t *testing.T) {
	scanner, err := NewSLAScanner(SLAScannerConfig{}, &mockOverdueLister{}, newTestLogger())

	assert.Error(t, err)
	assert.Nil(t, scanner)
}

func TestSLAScanner_StartStop(t *testing.T) {
	config := DefaultSLAScannerConfig()
	lister := &mockOverdueLister{}

	scanner, err := NewSLAScanner(config, lister, newTestLogger())
	require.NoError(t, err)

	ctx := context.Background()

	err = scanner.Start(ctx)
	require.NoError(t, err)

	// Start again should be idempotent
	err = scanner.Start(ctx)
	require.NoError(t, err)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err = scanner.Stop(stopCtx)
	require.NoError(t, err)

	// Stop again should be idempotent
	err = scanner.Stop(stopCtx)
	require.NoError(t, err)
}

func TestSLAScanner_RunsInitialScanOnStart(t *testing.T) {
	config := DefaultSLAScannerConfig()
	lister := &mockOverdueLister{}

	scanner, err := NewSLAScanner(config, lister, newTestLogger())
	require.NoError(t, err)

	ctx := context.Background()
	err = scanner.Start(ctx)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err = scanner.Stop(stopCtx)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&lister.callCount))
}

func TestSLAScanner_ScansOnInterval(t *testing.T) {
	config := DefaultSLAScannerConfig()
	config.ScanInterval = 20 * time.Millisecond
	lister := &mockOverdueLister{}

	scanner, err := NewSLAScanner(config, lister, newTestLogger())
	require.NoError(t, err)

	ctx := context.Background()
	err = scanner.Start(ctx)
	require.NoError(t, err)

	time.Sleep(150 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err = scanner.Stop(stopCtx)
	require.NoError(t, err)

	// Initial scan plus at least a few ticks
	assert.GreaterOrEqual(t, atomic.LoadInt32(&lister.callCount), int32(3))
}

func TestSLAScanner_RecordsOverdueCounts(t *testing.T) {
	config := DefaultSLAScannerConfig()
	slaDue := time.Now().Add(-2 * time.Hour)
	lister := &mockOverdueLister{
		listFunc: func(ctx context.Context, now time.Time) ([]approvalapp.RequestResponse, error) {
			return []approvalapp.RequestResponse{
				{
					ID:            uuid.New(),
					RequestNumber: "AR-20260831-0007",
					EntityType:    "LOAN_APPROVAL",
					EntityID:      uuid.New(),
					Status:        "IN_PROGRESS",
					CurrentLevel:  2,
					TotalLevels:   3,
					SLADueAt:      &slaDue,
				},
				{
					ID:            uuid.New(),
					RequestNumber: "AR-20260831-0009",
					EntityType:    "LOAN_WRITE_OFF",
					EntityID:      uuid.New(),
					Status:        "SUBMITTED",
					CurrentLevel:  1,
					TotalLevels:   2,
					SLADueAt:      &slaDue,
				},
			}, nil
		},
	}

	scanner, err := NewSLAScanner(config, lister, newTestLogger())
	require.NoError(t, err)

	ctx := context.Background()
	err = scanner.Start(ctx)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err = scanner.Stop(stopCtx)
	require.NoError(t, err)

	status := scanner.GetStatus()
	assert.Equal(t, 2, status["last_overdue"])
	assert.Equal(t, 1, status["total_scans"])
	assert.NotNil(t, status["last_run_at"])
}

func TestSLAScanner_ListerErrorDoesNotStopLoop(t *testing.T) {
	config := DefaultSLAScannerConfig()
	config.ScanInterval = 20 * time.Millisecond
	lister := &mockOverdueLister{
		listFunc: func(ctx context.Context, now time.Time) ([]approvalapp.RequestResponse, error) {
			return nil, errors.New("database unavailable")
		},
	}

	scanner, err := NewSLAScanner(config, lister, newTestLogger())
	require.NoError(t, err)

	ctx := context.Background()
	err = scanner.Start(ctx)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err = scanner.Stop(stopCtx)
	require.NoError(t, err)

	// Errors are logged and the next tick still scans
	assert.GreaterOrEqual(t, atomic.LoadInt32(&lister.callCount), int32(2))

	// Failed scans do not count as completed runs
	status := scanner.GetStatus()
	assert.Equal(t, 0, status["total_scans"])
}

func TestSLAScanner_TriggerManualScan_NotRunning(t *testing.T) {
	scanner, err := NewSLAScanner(DefaultSLAScannerConfig(), &mockOverdueLister{}, newTestLogger())
	require.NoError(t, err)

	err = scanner.TriggerManualScan(context.Background())
	assert.Equal(t, ErrSchedulerNotRunning, err)
}

func TestSLAScanner_TriggerManualScan(t *testing.T) {
	lister := &mockOverdueLister{}
	scanner, err := NewSLAScanner(DefaultSLAScannerConfig(), lister, newTestLogger())
	require.NoError(t, err)

	ctx := context.Background()
	err = scanner.Start(ctx)
	require.NoError(t, err)

	err = scanner.TriggerManualScan(ctx)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err = scanner.Stop(stopCtx)
	require.NoError(t, err)

	// Initial scan plus the manual one
	assert.Equal(t, int32(2), atomic.LoadInt32(&lister.callCount))
}
