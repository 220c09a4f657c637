package amortization

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mfi/backend/internal/application/ledger"
)

// defaultQueueKey is the Redis list the amortization worker consumes
const defaultQueueKey = "amortization:recalc"

// RecalcTask is the message pushed to the amortization worker
type RecalcTask struct {
	LoanID        uuid.UUID       `json:"loan_id"`
	NewRate       decimal.Decimal `json:"new_rate"`
	EffectiveFrom time.Time       `json:"effective_from"`
	EnqueuedAt    time.Time       `json:"enqueued_at"`
}

// RedisRecalcQueue hands schedule recalculations to the external amortization
// worker over a Redis list. The worker owns the actual schedule math; this
// side only enqueues.
type RedisRecalcQueue struct {
	client   *redis.Client
	queueKey string
	logger   *zap.Logger
}

// NewRedisRecalcQueue creates a new RedisRecalcQueue
func NewRedisRecalcQueue(client *redis.Client, queueKey string, logger *zap.Logger) *RedisRecalcQueue {
	if queueKey == "" {
		queueKey = defaultQueueKey
	}
	return &RedisRecalcQueue{
		client:   client,
		queueKey: queueKey,
		logger:   logger,
	}
}

// RecalculateSchedule enqueues a recalculation task
func (q *RedisRecalcQueue) RecalculateSchedule(ctx context.Context, loanID uuid.UUID, newRate decimal.Decimal, effectiveFrom time.Time) error {
	task := RecalcTask{
		LoanID:        loanID,
		NewRate:       newRate,
		EffectiveFrom: effectiveFrom,
		EnqueuedAt:    time.Now(),
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal recalc task: %w", err)
	}

	if err := q.client.RPush(ctx, q.queueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue recalc task: %w", err)
	}

	q.logger.Debug("schedule recalculation enqueued",
		zap.String("loan_id", loanID.String()),
		zap.String("new_rate", newRate.String()),
	)
	return nil
}

// QueueDepth returns the number of pending tasks, for monitoring
func (q *RedisRecalcQueue) QueueDepth(ctx context.Context) (int64, error) {
	depth, err := q.client.LLen(ctx, q.queueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue depth: %w", err)
	}
	return depth, nil
}

var _ ledger.ScheduleRecalculator = (*RedisRecalcQueue)(nil)
