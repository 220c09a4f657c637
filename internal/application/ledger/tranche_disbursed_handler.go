package ledger

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mfi/backend/internal/domain/lending"
	"github.com/mfi/backend/internal/domain/shared"
)

// TrancheDisbursedHandler posts released tranche funds to the ledger
type TrancheDisbursedHandler struct {
	poster Poster
	logger *zap.Logger
}

// NewTrancheDisbursedHandler creates a new handler for tranche disbursed events
func NewTrancheDisbursedHandler(poster Poster, logger *zap.Logger) *TrancheDisbursedHandler {
	return &TrancheDisbursedHandler{poster: poster, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *TrancheDisbursedHandler) EventTypes() []string {
	return []string{"LoanTrancheDisbursed"}
}

// Handle posts the net disbursed amount
func (h *TrancheDisbursedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	disbursed, ok := event.(*lending.TrancheDisbursedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected LoanTrancheDisbursed, got %s", event.EventType())
	}

	posting := Posting{
		EventID:    disbursed.EventID(),
		Type:       PostingTypeDisbursement,
		LoanID:     disbursed.LoanID,
		LoanNumber: disbursed.LoanNumber,
		Amount:     disbursed.NetAmount,
		Description: fmt.Sprintf("Disbursement of tranche %d for loan %s",
			disbursed.TrancheSequence, disbursed.LoanNumber),
		OccurredAt: disbursed.DisbursedAt,
	}

	if err := h.poster.Post(ctx, posting); err != nil {
		return fmt.Errorf("failed to post disbursement: %w", err)
	}

	h.logger.Info("disbursement posted to ledger",
		zap.String("loan_number", disbursed.LoanNumber),
		zap.Int("tranche_sequence", disbursed.TrancheSequence),
		zap.String("net_amount", disbursed.NetAmount.String()),
		zap.Bool("fully_disbursed", disbursed.FullyDisbursed),
	)
	return nil
}

var _ shared.EventHandler = (*TrancheDisbursedHandler)(nil)
