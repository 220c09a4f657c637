package lending

import (
	"time"

	"github.com/google/uuid"
	"github.com/mfi/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// LoanCreatedEvent is raised when a new loan draft is created
type LoanCreatedEvent struct {
	shared.BaseDomainEvent
	LoanID     uuid.UUID       `json:"loan_id"`
	LoanNumber string          `json:"loan_number"`
	BorrowerID uuid.UUID       `json:"borrower_id"`
	Principal  decimal.Decimal `json:"principal"`
	Rate       decimal.Decimal `json:"rate"`
	TermMonths int             `json:"term_months"`
}

// EventType returns the event type name
func (e *LoanCreatedEvent) EventType() string {
	return "LoanCreated"
}

// NewLoanCreatedEvent creates a new LoanCreatedEvent
func NewLoanCreatedEvent(l *Loan) *LoanCreatedEvent {
	return &LoanCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("LoanCreated", "Loan", l.ID),
		LoanID:          l.ID,
		LoanNumber:      l.LoanNumber,
		BorrowerID:      l.BorrowerID,
		Principal:       l.ApprovedPrincipal,
		Rate:            l.InterestRate,
		TermMonths:      l.TermMonths,
	}
}

// LoanApprovedEvent is raised when the approval engine approves a loan
type LoanApprovedEvent struct {
	shared.BaseDomainEvent
	LoanID     uuid.UUID       `json:"loan_id"`
	LoanNumber string          `json:"loan_number"`
	Principal  decimal.Decimal `json:"principal"`
	ApprovedAt time.Time       `json:"approved_at"`
}

// EventType returns the event type name
func (e *LoanApprovedEvent) EventType() string {
	return "LoanApproved"
}

// NewLoanApprovedEvent creates a new LoanApprovedEvent
func NewLoanApprovedEvent(l *Loan) *LoanApprovedEvent {
	approvedAt := time.Now()
	if l.ApprovedAt != nil {
		approvedAt = *l.ApprovedAt
	}
	return &LoanApprovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("LoanApproved", "Loan", l.ID),
		LoanID:          l.ID,
		LoanNumber:      l.LoanNumber,
		Principal:       l.ApprovedPrincipal,
		ApprovedAt:      approvedAt,
	}
}

// LoanRejectedEvent is raised when the approval engine rejects a loan
type LoanRejectedEvent struct {
	shared.BaseDomainEvent
	LoanID          uuid.UUID `json:"loan_id"`
	LoanNumber      string    `json:"loan_number"`
	RejectionReason string    `json:"rejection_reason"`
}

// EventType returns the event type name
func (e *LoanRejectedEvent) EventType() string {
	return "LoanRejected"
}

// NewLoanRejectedEvent creates a new LoanRejectedEvent
func NewLoanRejectedEvent(l *Loan) *LoanRejectedEvent {
	return &LoanRejectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("LoanRejected", "Loan", l.ID),
		LoanID:          l.ID,
		LoanNumber:      l.LoanNumber,
		RejectionReason: l.RejectionReason,
	}
}

// TrancheDisbursedEvent is raised when tranche funds are released.
// The ledger collaborator consumes it to post the disbursement; delivery is
// at-least-once, so consumers dedupe by event id.
type TrancheDisbursedEvent struct {
	shared.BaseDomainEvent
	LoanID          uuid.UUID       `json:"loan_id"`
	LoanNumber      string          `json:"loan_number"`
	TrancheID       uuid.UUID       `json:"tranche_id"`
	TrancheSequence int             `json:"tranche_sequence"`
	NetAmount       decimal.Decimal `json:"net_amount"`
	DisbursedAt     time.Time       `json:"disbursed_at"`
	FullyDisbursed  bool            `json:"fully_disbursed"`
}

// EventType returns the event type name
func (e *TrancheDisbursedEvent) EventType() string {
	return "LoanTrancheDisbursed"
}

// NewTrancheDisbursedEvent creates a new TrancheDisbursedEvent
func NewTrancheDisbursedEvent(l *Loan, t *LoanDisbursementTranche) *TrancheDisbursedEvent {
	disbursedAt := time.Now()
	if t.DisbursedAt != nil {
		disbursedAt = *t.DisbursedAt
	}
	return &TrancheDisbursedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("LoanTrancheDisbursed", "Loan", l.ID),
		LoanID:          l.ID,
		LoanNumber:      l.LoanNumber,
		TrancheID:       t.ID,
		TrancheSequence: t.TrancheSequence,
		NetAmount:       t.NetAmount,
		DisbursedAt:     disbursedAt,
		FullyDisbursed:  l.Status == LoanStatusActive,
	}
}

// RateChangeAppliedEvent is raised when an approved rate change takes effect.
// The amortization collaborator consumes it to recalculate schedules.
type RateChangeAppliedEvent struct {
	shared.BaseDomainEvent
	LoanID       uuid.UUID       `json:"loan_id"`
	LoanNumber   string          `json:"loan_number"`
	RateChangeID uuid.UUID       `json:"rate_change_id"`
	PreviousRate decimal.Decimal `json:"previous_rate"`
	NewRate      decimal.Decimal `json:"new_rate"`
	AppliedDate  time.Time       `json:"applied_date"`
}

// EventType returns the event type name
func (e *RateChangeAppliedEvent) EventType() string {
	return "LoanRateChangeApplied"
}

// NewRateChangeAppliedEvent creates a new RateChangeAppliedEvent
func NewRateChangeAppliedEvent(l *Loan, rc *InterestRateChange) *RateChangeAppliedEvent {
	appliedDate := time.Now()
	if rc.AppliedDate != nil {
		appliedDate = *rc.AppliedDate
	}
	return &RateChangeAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("LoanRateChangeApplied", "Loan", l.ID),
		LoanID:          l.ID,
		LoanNumber:      l.LoanNumber,
		RateChangeID:    rc.ID,
		PreviousRate:    rc.PreviousRate,
		NewRate:         rc.NewRate,
		AppliedDate:     appliedDate,
	}
}

// LoanDelinquentEvent is raised when a loan is flagged as past due
type LoanDelinquentEvent struct {
	shared.BaseDomainEvent
	LoanID               uuid.UUID       `json:"loan_id"`
	LoanNumber           string          `json:"loan_number"`
	OutstandingPrincipal decimal.Decimal `json:"outstanding_principal"`
	OutstandingInterest  decimal.Decimal `json:"outstanding_interest"`
}

// EventType returns the event type name
func (e *LoanDelinquentEvent) EventType() string {
	return "LoanDelinquent"
}

// NewLoanDelinquentEvent creates a new LoanDelinquentEvent
func NewLoanDelinquentEvent(l *Loan) *LoanDelinquentEvent {
	return &LoanDelinquentEvent{
		BaseDomainEvent:      shared.NewBaseDomainEvent("LoanDelinquent", "Loan", l.ID),
		LoanID:               l.ID,
		LoanNumber:           l.LoanNumber,
		OutstandingPrincipal: l.OutstandingPrincipal,
		OutstandingInterest:  l.OutstandingInterest,
	}
}

// RepaymentRecordedEvent is raised when a repayment reduces the balances
type RepaymentRecordedEvent struct {
	shared.BaseDomainEvent
	LoanID               uuid.UUID       `json:"loan_id"`
	LoanNumber           string          `json:"loan_number"`
	PrincipalPaid        decimal.Decimal `json:"principal_paid"`
	InterestPaid         decimal.Decimal `json:"interest_paid"`
	OutstandingPrincipal decimal.Decimal `json:"outstanding_principal"`
	OutstandingInterest  decimal.Decimal `json:"outstanding_interest"`
	Closed               bool            `json:"closed"`
}

// EventType returns the event type name
func (e *RepaymentRecordedEvent) EventType() string {
	return "LoanRepaymentRecorded"
}

// NewRepaymentRecordedEvent creates a new RepaymentRecordedEvent
func NewRepaymentRecordedEvent(l *Loan, principalPaid, interestPaid decimal.Decimal, closed bool) *RepaymentRecordedEvent {
	return &RepaymentRecordedEvent{
		BaseDomainEvent:      shared.NewBaseDomainEvent("LoanRepaymentRecorded", "Loan", l.ID),
		LoanID:               l.ID,
		LoanNumber:           l.LoanNumber,
		PrincipalPaid:        principalPaid,
		InterestPaid:         interestPaid,
		OutstandingPrincipal: l.OutstandingPrincipal,
		OutstandingInterest:  l.OutstandingInterest,
		Closed:               closed,
	}
}

// LoanWrittenOffEvent is raised when a loan's balance is written off.
// The ledger collaborator consumes it to post the write-off; delivery is
// at-least-once, so consumers dedupe by event id.
type LoanWrittenOffEvent struct {
	shared.BaseDomainEvent
	LoanID              uuid.UUID       `json:"loan_id"`
	LoanNumber          string          `json:"loan_number"`
	WrittenOffPrincipal decimal.Decimal `json:"written_off_principal"`
	WrittenOffInterest  decimal.Decimal `json:"written_off_interest"`
	Reason              string          `json:"reason"`
	WrittenOffAt        time.Time       `json:"written_off_at"`
}

// EventType returns the event type name
func (e *LoanWrittenOffEvent) EventType() string {
	return "LoanWrittenOff"
}

// NewLoanWrittenOffEvent creates a new LoanWrittenOffEvent
func NewLoanWrittenOffEvent(l *Loan, result *WriteOffResult) *LoanWrittenOffEvent {
	writtenOffAt := time.Now()
	if l.WrittenOffAt != nil {
		writtenOffAt = *l.WrittenOffAt
	}
	return &LoanWrittenOffEvent{
		BaseDomainEvent:     shared.NewBaseDomainEvent("LoanWrittenOff", "Loan", l.ID),
		LoanID:              l.ID,
		LoanNumber:          l.LoanNumber,
		WrittenOffPrincipal: result.WrittenOffPrincipal,
		WrittenOffInterest:  result.WrittenOffInterest,
		Reason:              l.WriteOffReason,
		WrittenOffAt:        writtenOffAt,
	}
}
