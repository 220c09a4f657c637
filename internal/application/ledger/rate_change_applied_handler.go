package ledger

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mfi/backend/internal/domain/lending"
	"github.com/mfi/backend/internal/domain/shared"
)

// RateChangeAppliedHandler asks the amortization collaborator to rebuild a
// loan's repayment schedule after a rate change takes effect
type RateChangeAppliedHandler struct {
	recalculator ScheduleRecalculator
	logger       *zap.Logger
}

// NewRateChangeAppliedHandler creates a new handler for rate change applied events
func NewRateChangeAppliedHandler(recalculator ScheduleRecalculator, logger *zap.Logger) *RateChangeAppliedHandler {
	return &RateChangeAppliedHandler{recalculator: recalculator, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *RateChangeAppliedHandler) EventTypes() []string {
	return []string{"LoanRateChangeApplied"}
}

// Handle triggers the schedule recalculation
func (h *RateChangeAppliedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	applied, ok := event.(*lending.RateChangeAppliedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected LoanRateChangeApplied, got %s", event.EventType())
	}

	if err := h.recalculator.RecalculateSchedule(ctx, applied.LoanID, applied.NewRate, applied.AppliedDate); err != nil {
		return fmt.Errorf("failed to recalculate schedule: %w", err)
	}

	h.logger.Info("repayment schedule recalculated",
		zap.String("loan_number", applied.LoanNumber),
		zap.String("previous_rate", applied.PreviousRate.String()),
		zap.String("new_rate", applied.NewRate.String()),
	)
	return nil
}

var _ shared.EventHandler = (*RateChangeAppliedHandler)(nil)
