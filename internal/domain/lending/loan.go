package lending

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mfi/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// LoanStatus represents the lifecycle status of a loan
type LoanStatus string

const (
	LoanStatusDraft           LoanStatus = "DRAFT"            // Being prepared
	LoanStatusPendingApproval LoanStatus = "PENDING_APPROVAL" // Routed through an approval workflow
	LoanStatusApproved        LoanStatus = "APPROVED"         // Approved, nothing disbursed yet
	LoanStatusDisbursing      LoanStatus = "DISBURSING"       // Some tranches still undisbursed
	LoanStatusActive          LoanStatus = "ACTIVE"           // Fully disbursed, repayments running
	LoanStatusDelinquent      LoanStatus = "DELINQUENT"       // Past due
	LoanStatusWrittenOff      LoanStatus = "WRITTEN_OFF"      // Terminal, balances zeroed
	LoanStatusRejected        LoanStatus = "REJECTED"         // Terminal, approval rejected
	LoanStatusClosed          LoanStatus = "CLOSED"           // Terminal, fully repaid
)

// IsValid checks if the status is a valid LoanStatus
func (s LoanStatus) IsValid() bool {
	switch s {
	case LoanStatusDraft, LoanStatusPendingApproval, LoanStatusApproved,
		LoanStatusDisbursing, LoanStatusActive, LoanStatusDelinquent,
		LoanStatusWrittenOff, LoanStatusRejected, LoanStatusClosed:
		return true
	}
	return false
}

// String returns the string representation of LoanStatus
func (s LoanStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further lifecycle transitions are possible
func (s LoanStatus) IsTerminal() bool {
	return s == LoanStatusWrittenOff || s == LoanStatusRejected || s == LoanStatusClosed
}

// CanDisburse returns true if tranches may be released in this status
func (s LoanStatus) CanDisburse() bool {
	return s == LoanStatusApproved || s == LoanStatusDisbursing
}

// CanWriteOff returns true if the loan carries a balance that can be written off
func (s LoanStatus) CanWriteOff() bool {
	return s == LoanStatusDisbursing || s == LoanStatusActive || s == LoanStatusDelinquent
}

// WriteOffResult captures the balances recognized as uncollectible
type WriteOffResult struct {
	WrittenOffPrincipal decimal.Decimal `json:"written_off_principal"`
	WrittenOffInterest  decimal.Decimal `json:"written_off_interest"`
}

// Loan is the aggregate root for a microfinance loan. It owns its
// disbursement tranches and interest rate change records; cross-aggregate
// effects (ledger posting, amortization recalculation) leave the aggregate as
// domain events, never as direct references.
type Loan struct {
	shared.BranchAggregateRoot
	LoanNumber           string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	BorrowerID           uuid.UUID       `gorm:"type:uuid;not null;index"`
	BorrowerName         string          `gorm:"type:varchar(200);not null"`
	ApprovedPrincipal    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	InterestRate         decimal.Decimal `gorm:"type:decimal(8,4);not null"` // Annual percentage
	TermMonths           int             `gorm:"not null"`
	OutstandingPrincipal decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	OutstandingInterest  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Status               LoanStatus      `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	Purpose              string          `gorm:"type:varchar(500)"`
	WriteOffReason       string          `gorm:"type:varchar(500)"`
	WrittenOffAt         *time.Time
	ApprovedAt           *time.Time
	ApprovedByID         *uuid.UUID `gorm:"type:uuid"`
	RejectionReason      string     `gorm:"type:varchar(500)"`
	ClosedAt             *time.Time
	Tranches             []LoanDisbursementTranche `gorm:"foreignKey:LoanID;references:ID"`
	RateChanges          []InterestRateChange      `gorm:"foreignKey:LoanID;references:ID"`
}

// TableName returns the table name for GORM
func (Loan) TableName() string {
	return "loans"
}

// NewLoan creates a new loan in Draft status
func NewLoan(
	loanNumber string,
	borrowerID uuid.UUID,
	borrowerName string,
	branchID *uuid.UUID,
	principal decimal.Decimal,
	annualRate decimal.Decimal,
	termMonths int,
	purpose string,
) (*Loan, error) {
	if loanNumber == "" {
		return nil, shared.NewDomainError("INVALID_LOAN_NUMBER", "Loan number cannot be empty")
	}
	if borrowerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_BORROWER", "Borrower ID cannot be empty")
	}
	if borrowerName == "" {
		return nil, shared.NewDomainError("INVALID_BORROWER_NAME", "Borrower name cannot be empty")
	}
	if principal.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Principal must be positive")
	}
	if annualRate.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_RATE", "Interest rate must be positive")
	}
	if termMonths < 1 {
		return nil, shared.NewDomainError("INVALID_TERM", "Term must be at least one month")
	}

	l := &Loan{
		BranchAggregateRoot:  shared.NewBranchAggregateRoot(branchID),
		LoanNumber:           loanNumber,
		BorrowerID:           borrowerID,
		BorrowerName:         borrowerName,
		ApprovedPrincipal:    principal,
		InterestRate:         annualRate,
		TermMonths:           termMonths,
		OutstandingPrincipal: decimal.Zero,
		OutstandingInterest:  decimal.Zero,
		Status:               LoanStatusDraft,
		Purpose:              purpose,
		Tranches:             make([]LoanDisbursementTranche, 0),
		RateChanges:          make([]InterestRateChange, 0),
	}

	l.AddDomainEvent(NewLoanCreatedEvent(l))

	return l, nil
}

// ScheduleTranche appends a tranche to the disbursement schedule. Tranches can
// only be scheduled while the loan is still a draft; the net amounts of the
// full schedule must stay within the approved principal.
func (l *Loan) ScheduleTranche(amount, netAmount decimal.Decimal, milestone string) (*LoanDisbursementTranche, error) {
	if l.Status != LoanStatusDraft {
		return nil, shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot schedule tranches on a loan in %s status", l.Status))
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Tranche amount must be positive")
	}
	if netAmount.LessThanOrEqual(decimal.Zero) || netAmount.GreaterThan(amount) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Tranche net amount must be positive and not exceed the gross amount")
	}
	scheduled := l.scheduledNetTotal().Add(netAmount)
	if scheduled.GreaterThan(l.ApprovedPrincipal) {
		return nil, shared.NewDomainError("BUSINESS_RULE_VIOLATION",
			fmt.Sprintf("Scheduled net amounts %.2f would exceed approved principal %.2f",
				scheduled.InexactFloat64(), l.ApprovedPrincipal.InexactFloat64()))
	}

	tranche := LoanDisbursementTranche{
		ID:              uuid.New(),
		LoanID:          l.ID,
		TrancheSequence: len(l.Tranches) + 1,
		Amount:          amount,
		NetAmount:       netAmount,
		Status:          TrancheStatusScheduled,
		Milestone:       milestone,
		CreatedAt:       time.Now(),
	}
	l.Tranches = append(l.Tranches, tranche)

	return &l.Tranches[len(l.Tranches)-1], nil
}

// SubmitForApproval moves a draft loan into the approval pipeline
func (l *Loan) SubmitForApproval() error {
	if l.Status != LoanStatusDraft {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot submit a loan in %s status for approval", l.Status))
	}
	if len(l.Tranches) == 0 {
		return shared.NewDomainError("BUSINESS_RULE_VIOLATION", "A loan needs at least one disbursement tranche before submission")
	}

	l.Status = LoanStatusPendingApproval
	l.UpdatedAt = time.Now()
	l.IncrementVersion()

	return nil
}

// Approve marks the loan approved. Driven by the approval engine's completion
// callback, never called directly by request handlers.
func (l *Loan) Approve(approvedBy uuid.UUID) error {
	if l.Status != LoanStatusPendingApproval {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot approve a loan in %s status", l.Status))
	}

	now := time.Now()
	l.Status = LoanStatusApproved
	l.ApprovedAt = &now
	if approvedBy != uuid.Nil {
		l.ApprovedByID = &approvedBy
	}
	for i := range l.Tranches {
		if l.Tranches[i].Status == TrancheStatusScheduled {
			l.Tranches[i].Status = TrancheStatusApproved
		}
	}
	l.UpdatedAt = now
	l.IncrementVersion()

	l.AddDomainEvent(NewLoanApprovedEvent(l))

	return nil
}

// Reject terminates a loan whose approval was rejected
func (l *Loan) Reject(reason string) error {
	if l.Status != LoanStatusPendingApproval {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot reject a loan in %s status", l.Status))
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REJECTION_REASON", "A rejection requires a reason")
	}

	l.Status = LoanStatusRejected
	l.RejectionReason = reason
	l.UpdatedAt = time.Now()
	l.IncrementVersion()

	l.AddDomainEvent(NewLoanRejectedEvent(l))

	return nil
}

// ReturnToDraft moves a loan back to draft after its approval request was
// withdrawn. The loan can be amended and resubmitted afterwards.
func (l *Loan) ReturnToDraft() error {
	if l.Status != LoanStatusPendingApproval {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot return a loan in %s status to draft", l.Status))
	}

	l.Status = LoanStatusDraft
	l.UpdatedAt = time.Now()
	l.IncrementVersion()

	return nil
}

// VerifyMilestone confirms a tranche's release condition has been met
func (l *Loan) VerifyMilestone(trancheSequence int, verifiedBy uuid.UUID) error {
	tranche := l.TrancheBySequence(trancheSequence)
	if tranche == nil {
		return shared.NewDomainError("NOT_FOUND", fmt.Sprintf("Tranche %d not found", trancheSequence))
	}
	if !tranche.RequiresMilestone() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Tranche %d has no milestone to verify", trancheSequence))
	}
	if tranche.IsDisbursed() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Tranche %d is already disbursed", trancheSequence))
	}
	if verifiedBy == uuid.Nil {
		return shared.NewDomainError("INVALID_USER", "Verifying user ID is required")
	}

	tranche.MilestoneVerified = true
	tranche.MilestoneVerifiedBy = &verifiedBy
	l.UpdatedAt = time.Now()
	l.IncrementVersion()

	return nil
}

// DisburseTranche releases tranche funds. Tranches disburse strictly in
// sequence order, milestones must be verified first, and the disbursed net
// total can never exceed the approved principal.
func (l *Loan) DisburseTranche(trancheSequence int) (*LoanDisbursementTranche, error) {
	if !l.Status.CanDisburse() {
		return nil, shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot disburse on a loan in %s status", l.Status))
	}

	tranche := l.TrancheBySequence(trancheSequence)
	if tranche == nil {
		return nil, shared.NewDomainError("NOT_FOUND", fmt.Sprintf("Tranche %d not found", trancheSequence))
	}
	if tranche.IsDisbursed() {
		return nil, shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Tranche %d is already disbursed", trancheSequence))
	}
	if next := l.nextDisbursableSequence(); trancheSequence != next {
		return nil, shared.NewDomainError("BUSINESS_RULE_VIOLATION",
			fmt.Sprintf("Out-of-sequence disbursement: tranche %d must be disbursed before tranche %d", next, trancheSequence))
	}
	if tranche.RequiresMilestone() && !tranche.MilestoneVerified {
		return nil, shared.NewDomainError("BUSINESS_RULE_VIOLATION",
			fmt.Sprintf("Milestone %q for tranche %d has not been verified", tranche.Milestone, trancheSequence))
	}
	disbursed := l.disbursedNetTotal().Add(tranche.NetAmount)
	if disbursed.GreaterThan(l.ApprovedPrincipal) {
		return nil, shared.NewDomainError("BUSINESS_RULE_VIOLATION",
			fmt.Sprintf("Over-disbursement: net total %.2f would exceed approved principal %.2f",
				disbursed.InexactFloat64(), l.ApprovedPrincipal.InexactFloat64()))
	}

	now := time.Now()
	tranche.Status = TrancheStatusDisbursed
	tranche.DisbursedAt = &now
	l.OutstandingPrincipal = l.OutstandingPrincipal.Add(tranche.Amount)

	if l.allTranchesDisbursed() {
		l.Status = LoanStatusActive
	} else {
		l.Status = LoanStatusDisbursing
	}
	l.UpdatedAt = now
	l.IncrementVersion()

	l.AddDomainEvent(NewTrancheDisbursedEvent(l, tranche))

	return tranche, nil
}

// RequestRateChange records a pending interest rate change. The change is
// gated through the approval engine and, once approved, waits for its
// effective date before the sweep applies it.
func (l *Loan) RequestRateChange(newRate decimal.Decimal, effectiveDate time.Time, reason string) (*InterestRateChange, error) {
	if l.Status.IsTerminal() || l.Status == LoanStatusDraft || l.Status == LoanStatusPendingApproval {
		return nil, shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot change the rate of a loan in %s status", l.Status))
	}
	if newRate.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_RATE", "New interest rate must be positive")
	}
	if newRate.Equal(l.InterestRate) {
		return nil, shared.NewDomainError("INVALID_RATE", "New interest rate equals the current rate")
	}
	if effectiveDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_EFFECTIVE_DATE", "Effective date is required")
	}
	for i := range l.RateChanges {
		if l.RateChanges[i].Status == RateChangeStatusPending || l.RateChanges[i].Status == RateChangeStatusApproved {
			return nil, shared.NewDomainError("INVALID_STATE", "A rate change is already pending for this loan")
		}
	}

	rc := InterestRateChange{
		ID:            uuid.New(),
		LoanID:        l.ID,
		PreviousRate:  l.InterestRate,
		NewRate:       newRate,
		RequestDate:   time.Now(),
		EffectiveDate: effectiveDate,
		Status:        RateChangeStatusPending,
		Reason:        reason,
	}
	l.RateChanges = append(l.RateChanges, rc)
	l.UpdatedAt = time.Now()
	l.IncrementVersion()

	return &l.RateChanges[len(l.RateChanges)-1], nil
}

// ApproveRateChange marks a pending rate change approved. Driven by the
// approval engine's completion callback. The rate itself changes only when
// the sweep applies the record on or after its effective date.
func (l *Loan) ApproveRateChange(rateChangeID uuid.UUID) error {
	rc := l.rateChangeByID(rateChangeID)
	if rc == nil {
		return shared.NewDomainError("NOT_FOUND", "Rate change not found")
	}
	if rc.Status != RateChangeStatusPending {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot approve a rate change in %s status", rc.Status))
	}

	rc.Status = RateChangeStatusApproved
	l.UpdatedAt = time.Now()
	l.IncrementVersion()

	return nil
}

// RejectRateChange marks a pending rate change rejected
func (l *Loan) RejectRateChange(rateChangeID uuid.UUID, reason string) error {
	rc := l.rateChangeByID(rateChangeID)
	if rc == nil {
		return shared.NewDomainError("NOT_FOUND", "Rate change not found")
	}
	if rc.Status != RateChangeStatusPending {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot reject a rate change in %s status", rc.Status))
	}

	rc.Status = RateChangeStatusRejected
	rc.Reason = reason
	l.UpdatedAt = time.Now()
	l.IncrementVersion()

	return nil
}

// ApplyDueRateChange applies the earliest approved rate change whose effective
// date has been reached. Returns nil without error when nothing is due; the
// Applied status check makes a second application a no-op.
func (l *Loan) ApplyDueRateChange(now time.Time) (*InterestRateChange, error) {
	if l.Status.IsTerminal() {
		return nil, shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot apply rate changes to a loan in %s status", l.Status))
	}

	var due *InterestRateChange
	for i := range l.RateChanges {
		rc := &l.RateChanges[i]
		if !rc.IsDue(now) {
			continue
		}
		if due == nil || rc.EffectiveDate.Before(due.EffectiveDate) {
			due = rc
		}
	}
	if due == nil {
		return nil, nil
	}

	due.Status = RateChangeStatusApplied
	applied := now
	due.AppliedDate = &applied
	l.InterestRate = due.NewRate
	l.UpdatedAt = now
	l.IncrementVersion()

	l.AddDomainEvent(NewRateChangeAppliedEvent(l, due))

	return due, nil
}

// MarkDelinquent flags an active loan as past due
func (l *Loan) MarkDelinquent() error {
	if l.Status != LoanStatusActive && l.Status != LoanStatusDisbursing {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot mark a loan in %s status delinquent", l.Status))
	}

	l.Status = LoanStatusDelinquent
	l.UpdatedAt = time.Now()
	l.IncrementVersion()

	l.AddDomainEvent(NewLoanDelinquentEvent(l))

	return nil
}

// RecordRepayment reduces the outstanding balances. Balances never go
// negative; a loan whose balances reach zero with nothing left to disburse is
// closed as fully repaid.
func (l *Loan) RecordRepayment(principalPaid, interestPaid decimal.Decimal) error {
	if l.Status != LoanStatusActive && l.Status != LoanStatusDelinquent && l.Status != LoanStatusDisbursing {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot record a repayment on a loan in %s status", l.Status))
	}
	if principalPaid.IsNegative() || interestPaid.IsNegative() {
		return shared.NewDomainError("INVALID_AMOUNT", "Repayment amounts cannot be negative")
	}
	if principalPaid.IsZero() && interestPaid.IsZero() {
		return shared.NewDomainError("INVALID_AMOUNT", "Repayment must carry a positive amount")
	}
	if principalPaid.GreaterThan(l.OutstandingPrincipal) {
		return shared.NewDomainError("INVALID_AMOUNT",
			fmt.Sprintf("Principal payment %.2f exceeds outstanding principal %.2f",
				principalPaid.InexactFloat64(), l.OutstandingPrincipal.InexactFloat64()))
	}
	if interestPaid.GreaterThan(l.OutstandingInterest) {
		return shared.NewDomainError("INVALID_AMOUNT",
			fmt.Sprintf("Interest payment %.2f exceeds outstanding interest %.2f",
				interestPaid.InexactFloat64(), l.OutstandingInterest.InexactFloat64()))
	}

	now := time.Now()
	l.OutstandingPrincipal = l.OutstandingPrincipal.Sub(principalPaid)
	l.OutstandingInterest = l.OutstandingInterest.Sub(interestPaid)

	closed := false
	if l.OutstandingPrincipal.IsZero() && l.OutstandingInterest.IsZero() && l.allTranchesDisbursed() {
		l.Status = LoanStatusClosed
		l.ClosedAt = &now
		closed = true
	}
	l.UpdatedAt = now
	l.IncrementVersion()

	l.AddDomainEvent(NewRepaymentRecordedEvent(l, principalPaid, interestPaid, closed))

	return nil
}

// AccrueInterest adds accrued interest to the outstanding interest balance
func (l *Loan) AccrueInterest(amount decimal.Decimal) error {
	if l.Status != LoanStatusActive && l.Status != LoanStatusDelinquent && l.Status != LoanStatusDisbursing {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot accrue interest on a loan in %s status", l.Status))
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_AMOUNT", "Accrued interest must be positive")
	}

	l.OutstandingInterest = l.OutstandingInterest.Add(amount)
	l.UpdatedAt = time.Now()
	l.IncrementVersion()

	return nil
}

// WriteOff irreversibly recognizes the outstanding balance as uncollectible.
// The pre-write-off balances are returned for the caller, both fields are
// zeroed, and the loan becomes terminal. A second write-off fails rather than
// silently succeeding: write-off is a one-time, audited event.
func (l *Loan) WriteOff(reason string) (*WriteOffResult, error) {
	if !l.Status.CanWriteOff() {
		return nil, shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot write off a loan in %s status", l.Status))
	}
	if reason == "" {
		return nil, shared.NewDomainError("INVALID_WRITE_OFF_REASON", "A write-off requires a reason")
	}

	result := &WriteOffResult{
		WrittenOffPrincipal: l.OutstandingPrincipal,
		WrittenOffInterest:  l.OutstandingInterest,
	}

	now := time.Now()
	l.OutstandingPrincipal = decimal.Zero
	l.OutstandingInterest = decimal.Zero
	l.Status = LoanStatusWrittenOff
	l.WriteOffReason = reason
	l.WrittenOffAt = &now
	l.UpdatedAt = now
	l.IncrementVersion()

	l.AddDomainEvent(NewLoanWrittenOffEvent(l, result))

	return result, nil
}

// TrancheBySequence returns the tranche with the given sequence, or nil
func (l *Loan) TrancheBySequence(sequence int) *LoanDisbursementTranche {
	for i := range l.Tranches {
		if l.Tranches[i].TrancheSequence == sequence {
			return &l.Tranches[i]
		}
	}
	return nil
}

// rateChangeByID returns the rate change with the given ID, or nil
func (l *Loan) rateChangeByID(id uuid.UUID) *InterestRateChange {
	for i := range l.RateChanges {
		if l.RateChanges[i].ID == id {
			return &l.RateChanges[i]
		}
	}
	return nil
}

// nextDisbursableSequence returns the lowest undisbursed tranche sequence,
// or 0 when everything has been disbursed
func (l *Loan) nextDisbursableSequence() int {
	next := 0
	for i := range l.Tranches {
		t := &l.Tranches[i]
		if t.IsDisbursed() {
			continue
		}
		if next == 0 || t.TrancheSequence < next {
			next = t.TrancheSequence
		}
	}
	return next
}

// disbursedNetTotal sums the net amounts of all disbursed tranches
func (l *Loan) disbursedNetTotal() decimal.Decimal {
	total := decimal.Zero
	for i := range l.Tranches {
		if l.Tranches[i].IsDisbursed() {
			total = total.Add(l.Tranches[i].NetAmount)
		}
	}
	return total
}

// scheduledNetTotal sums the net amounts of every tranche in the schedule
func (l *Loan) scheduledNetTotal() decimal.Decimal {
	total := decimal.Zero
	for i := range l.Tranches {
		total = total.Add(l.Tranches[i].NetAmount)
	}
	return total
}

// allTranchesDisbursed reports whether every scheduled tranche has been released
func (l *Loan) allTranchesDisbursed() bool {
	for i := range l.Tranches {
		if !l.Tranches[i].IsDisbursed() {
			return false
		}
	}
	return len(l.Tranches) > 0
}
