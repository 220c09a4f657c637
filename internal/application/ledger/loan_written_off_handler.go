package ledger

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mfi/backend/internal/domain/lending"
	"github.com/mfi/backend/internal/domain/shared"
)

// LoanWrittenOffHandler posts the written-off balance to the ledger
type LoanWrittenOffHandler struct {
	poster Poster
	logger *zap.Logger
}

// NewLoanWrittenOffHandler creates a new handler for loan written off events
func NewLoanWrittenOffHandler(poster Poster, logger *zap.Logger) *LoanWrittenOffHandler {
	return &LoanWrittenOffHandler{poster: poster, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *LoanWrittenOffHandler) EventTypes() []string {
	return []string{"LoanWrittenOff"}
}

// Handle posts the total written-off balance, principal plus interest
func (h *LoanWrittenOffHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	writtenOff, ok := event.(*lending.LoanWrittenOffEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected LoanWrittenOff, got %s", event.EventType())
	}

	total := writtenOff.WrittenOffPrincipal.Add(writtenOff.WrittenOffInterest)
	posting := Posting{
		EventID:     writtenOff.EventID(),
		Type:        PostingTypeWriteOff,
		LoanID:      writtenOff.LoanID,
		LoanNumber:  writtenOff.LoanNumber,
		Amount:      total,
		Description: fmt.Sprintf("Write-off of loan %s: %s", writtenOff.LoanNumber, writtenOff.Reason),
		OccurredAt:  writtenOff.WrittenOffAt,
	}

	if err := h.poster.Post(ctx, posting); err != nil {
		return fmt.Errorf("failed to post write-off: %w", err)
	}

	h.logger.Info("write-off posted to ledger",
		zap.String("loan_number", writtenOff.LoanNumber),
		zap.String("written_off_principal", writtenOff.WrittenOffPrincipal.String()),
		zap.String("written_off_interest", writtenOff.WrittenOffInterest.String()),
		zap.String("reason", writtenOff.Reason),
	)
	return nil
}

var _ shared.EventHandler = (*LoanWrittenOffHandler)(nil)
