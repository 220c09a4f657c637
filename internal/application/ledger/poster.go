package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PostingType classifies a ledger posting by the loan event that produced it
type PostingType string

const (
	PostingTypeDisbursement PostingType = "DISBURSEMENT"
	PostingTypeWriteOff     PostingType = "WRITE_OFF"
)

// Posting is one journal entry handed to the ledger collaborator. EventID is
// the producing domain event's id; the ledger side dedupes on it because
// delivery is at-least-once.
type Posting struct {
	EventID     uuid.UUID
	Type        PostingType
	LoanID      uuid.UUID
	LoanNumber  string
	Amount      decimal.Decimal
	Description string
	OccurredAt  time.Time
}

// Poster is the ledger collaborator port. Implementations must be idempotent
// on Posting.EventID.
type Poster interface {
	Post(ctx context.Context, posting Posting) error
}

// ScheduleRecalculator is the amortization collaborator port, invoked when an
// applied rate change invalidates a loan's repayment schedule
type ScheduleRecalculator interface {
	RecalculateSchedule(ctx context.Context, loanID uuid.UUID, newRate decimal.Decimal, effectiveFrom time.Time) error
}
