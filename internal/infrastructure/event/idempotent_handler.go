package event

import (
	"context"
	"sync/atomic"

	"github.com/mfi/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// IdempotentHandler wraps an EventHandler so redelivered events are
// processed at most once. The outbox processor retries failed batches, so
// every downstream handler that mutates ledger or loan state sits behind
// this wrapper.
type IdempotentHandler struct {
	inner  shared.EventHandler
	store  shared.IdempotencyStore
	config shared.IdempotencyConfig
	logger *zap.Logger

	processed atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
}

type IdempotentHandlerOption func(*IdempotentHandler)

// WithIdempotencyConfig overrides the default TTL and enablement.
func WithIdempotencyConfig(config shared.IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.config = config
	}
}

func NewIdempotentHandler(
	inner shared.EventHandler,
	store shared.IdempotencyStore,
	logger *zap.Logger,
	opts ...IdempotentHandlerOption,
) *IdempotentHandler {
	h := &IdempotentHandler{
		inner:  inner,
		store:  store,
		config: shared.DefaultIdempotencyConfig(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *IdempotentHandler) EventTypes() []string {
	return h.inner.EventTypes()
}

// Handle marks the event processed before invoking the inner handler. The
// mark is an atomic check-and-set, so concurrent deliveries of the same
// event resolve to exactly one processing. On inner failure the mark is
// left in place; the TTL acts as the retry cooldown.
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if !h.config.Enabled {
		return h.inner.Handle(ctx, event)
	}

	eventID := event.EventID().String()

	isNew, err := h.store.MarkProcessed(ctx, eventID, h.config.TTL)
	switch {
	case err != nil:
		// A broken store must not drop events. Process and accept the
		// duplicate risk.
		h.logger.Warn("idempotency check failed, processing anyway",
			zap.String("event_id", eventID),
			zap.String("event_type", event.EventType()),
			zap.Error(err),
		)
	case !isNew:
		h.skipped.Add(1)
		h.logger.Debug("duplicate event skipped",
			zap.String("event_id", eventID),
			zap.String("event_type", event.EventType()),
		)
		return nil
	}

	if err := h.inner.Handle(ctx, event); err != nil {
		h.failed.Add(1)
		h.logger.Error("event handler failed",
			zap.String("event_id", eventID),
			zap.String("event_type", event.EventType()),
			zap.Error(err),
		)
		return err
	}

	h.processed.Add(1)
	return nil
}

// Stats reports how many events this wrapper processed, skipped as
// duplicates, and saw fail.
func (h *IdempotentHandler) Stats() (processed, skipped, failed int64) {
	return h.processed.Load(), h.skipped.Load(), h.failed.Load()
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
