package lending

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	approvalapp "github.com/mfi/backend/internal/application/approval"
	"github.com/mfi/backend/internal/domain/approval"
	"github.com/mfi/backend/internal/domain/lending"
	"github.com/mfi/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ApprovalGateway is the slice of the approval engine the loan lifecycle
// needs: opening requests and withdrawing them. Satisfied by
// approvalapp.ApprovalService.
type ApprovalGateway interface {
	Submit(ctx context.Context, req approvalapp.SubmitRequest) (*approvalapp.RequestResponse, error)
	Cancel(ctx context.Context, requestID, cancelledBy uuid.UUID, reason string) (*approvalapp.RequestResponse, error)
}

// LoanService provides application-level loan lifecycle operations. Approval
// gated transitions (loan approval, rate changes, write-offs, gated
// disbursements) are routed through the approval engine; their terminal
// outcomes come back through the completion handlers in this package.
type LoanService struct {
	loanRepo    lending.LoanRepository
	approvalSvc ApprovalGateway
	logger      *zap.Logger
}

// NewLoanService creates a new LoanService
func NewLoanService(
	loanRepo lending.LoanRepository,
	approvalSvc ApprovalGateway,
	logger *zap.Logger,
) *LoanService {
	return &LoanService{
		loanRepo:    loanRepo,
		approvalSvc: approvalSvc,
		logger:      logger,
	}
}

// TrancheInput describes one tranche of the requested disbursement schedule
type TrancheInput struct {
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	NetAmount decimal.Decimal `json:"net_amount" binding:"required"`
	Milestone string          `json:"milestone" binding:"max=200"`
}

// CreateLoanRequest carries the parameters for a new loan application
type CreateLoanRequest struct {
	BorrowerID   uuid.UUID       `json:"borrower_id" binding:"required"`
	BorrowerName string          `json:"borrower_name" binding:"required,max=200"`
	BranchID     *uuid.UUID      `json:"branch_id"`
	Principal    decimal.Decimal `json:"principal" binding:"required"`
	InterestRate decimal.Decimal `json:"interest_rate" binding:"required"`
	TermMonths   int             `json:"term_months" binding:"required,min=1"`
	Purpose      string          `json:"purpose" binding:"max=500"`
	Tranches     []TrancheInput  `json:"tranches"`
}

// TrancheResponse represents a disbursement tranche in API responses
type TrancheResponse struct {
	ID                uuid.UUID       `json:"id"`
	TrancheSequence   int             `json:"tranche_sequence"`
	Amount            decimal.Decimal `json:"amount"`
	NetAmount         decimal.Decimal `json:"net_amount"`
	Status            string          `json:"status"`
	Milestone         string          `json:"milestone,omitempty"`
	MilestoneVerified bool            `json:"milestone_verified"`
	DisbursedAt       *time.Time      `json:"disbursed_at,omitempty"`
}

// RateChangeResponse represents an interest rate change in API responses
type RateChangeResponse struct {
	ID            uuid.UUID       `json:"id"`
	PreviousRate  decimal.Decimal `json:"previous_rate"`
	NewRate       decimal.Decimal `json:"new_rate"`
	RequestDate   time.Time       `json:"request_date"`
	EffectiveDate time.Time       `json:"effective_date"`
	Status        string          `json:"status"`
	AppliedDate   *time.Time      `json:"applied_date,omitempty"`
	Reason        string          `json:"reason,omitempty"`
}

// LoanResponse represents a loan in API responses
type LoanResponse struct {
	ID                   uuid.UUID            `json:"id"`
	LoanNumber           string               `json:"loan_number"`
	BorrowerID           uuid.UUID            `json:"borrower_id"`
	BorrowerName         string               `json:"borrower_name"`
	BranchID             *uuid.UUID           `json:"branch_id,omitempty"`
	ApprovedPrincipal    decimal.Decimal      `json:"approved_principal"`
	InterestRate         decimal.Decimal      `json:"interest_rate"`
	TermMonths           int                  `json:"term_months"`
	OutstandingPrincipal decimal.Decimal      `json:"outstanding_principal"`
	OutstandingInterest  decimal.Decimal      `json:"outstanding_interest"`
	Status               string               `json:"status"`
	Purpose              string               `json:"purpose,omitempty"`
	WriteOffReason       string               `json:"write_off_reason,omitempty"`
	WrittenOffAt         *time.Time           `json:"written_off_at,omitempty"`
	ApprovedAt           *time.Time           `json:"approved_at,omitempty"`
	RejectionReason      string               `json:"rejection_reason,omitempty"`
	ClosedAt             *time.Time           `json:"closed_at,omitempty"`
	Tranches             []TrancheResponse    `json:"tranches,omitempty"`
	RateChanges          []RateChangeResponse `json:"rate_changes,omitempty"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
	Version              int                  `json:"version"`
}

// CreateLoan creates a draft loan with its disbursement schedule
func (s *LoanService) CreateLoan(ctx context.Context, req CreateLoanRequest) (*LoanResponse, error) {
	loanNumber, err := s.loanRepo.GenerateLoanNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate loan number: %w", err)
	}

	loan, err := lending.NewLoan(
		loanNumber,
		req.BorrowerID,
		req.BorrowerName,
		req.BranchID,
		req.Principal,
		req.InterestRate,
		req.TermMonths,
		req.Purpose,
	)
	if err != nil {
		return nil, err
	}

	for _, t := range req.Tranches {
		if _, err := loan.ScheduleTranche(t.Amount, t.NetAmount, t.Milestone); err != nil {
			return nil, err
		}
	}

	if err := s.loanRepo.Save(ctx, loan); err != nil {
		if !errors.Is(err, shared.ErrDuplicateNumber) {
			return nil, fmt.Errorf("failed to save loan: %w", err)
		}
		// A concurrent creation took the generated number first.
		// Regenerate once against the fresh high-water mark.
		number, genErr := s.loanRepo.GenerateLoanNumber(ctx)
		if genErr != nil {
			return nil, fmt.Errorf("failed to generate loan number: %w", genErr)
		}
		loan.LoanNumber = number
		if err := s.loanRepo.Save(ctx, loan); err != nil {
			return nil, fmt.Errorf("failed to save loan: %w", err)
		}
	}

	s.logger.Info("loan created",
		zap.String("loan_number", loan.LoanNumber),
		zap.String("borrower_id", req.BorrowerID.String()),
		zap.String("principal", req.Principal.String()),
	)

	return toLoanResponse(loan), nil
}

// ScheduleTranche appends a tranche to a draft loan's disbursement schedule
func (s *LoanService) ScheduleTranche(ctx context.Context, loanID uuid.UUID, input TrancheInput) (*LoanResponse, error) {
	loan, err := s.findLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	if _, err := loan.ScheduleTranche(input.Amount, input.NetAmount, input.Milestone); err != nil {
		return nil, err
	}

	if err := s.loanRepo.SaveWithLock(ctx, loan); err != nil {
		return nil, err
	}
	return toLoanResponse(loan), nil
}

// SubmitForApproval routes a draft loan into the approval engine. The
// approval request is opened first so a routing failure, e.g. no workflow
// matching the amount, leaves the loan untouched in Draft.
func (s *LoanService) SubmitForApproval(ctx context.Context, loanID, submittedBy uuid.UUID) (*LoanResponse, error) {
	loan, err := s.findLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != lending.LoanStatusDraft {
		return nil, shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot submit a loan in %s status for approval", loan.Status))
	}

	request, err := s.approvalSvc.Submit(ctx, approvalapp.SubmitRequest{
		EntityType:  approval.EntityTypeLoan,
		EntityID:    loan.ID,
		Amount:      &loan.ApprovedPrincipal,
		BranchID:    loan.BranchID,
		SubmittedBy: submittedBy,
		Comments:    loan.Purpose,
	})
	if err != nil {
		return nil, err
	}

	if err := loan.SubmitForApproval(); err != nil {
		return nil, err
	}
	if err := s.loanRepo.SaveWithLock(ctx, loan); err != nil {
		// The request is already open; withdraw it so the entity and the
		// engine do not disagree about what is pending.
		if _, cancelErr := s.approvalSvc.Cancel(ctx, request.ID, submittedBy, "loan submission failed"); cancelErr != nil {
			s.logger.Error("failed to withdraw approval request after loan save failure",
				zap.String("request_number", request.RequestNumber),
				zap.Error(cancelErr),
			)
		}
		return nil, err
	}

	s.logger.Info("loan submitted for approval",
		zap.String("loan_number", loan.LoanNumber),
		zap.String("request_number", request.RequestNumber),
	)

	return toLoanResponse(loan), nil
}

// VerifyMilestone confirms a tranche's release condition has been met
func (s *LoanService) VerifyMilestone(ctx context.Context, loanID uuid.UUID, trancheSequence int, verifiedBy uuid.UUID) (*LoanResponse, error) {
	loan, err := s.findLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	if err := loan.VerifyMilestone(trancheSequence, verifiedBy); err != nil {
		return nil, err
	}
	if err := s.loanRepo.SaveWithLock(ctx, loan); err != nil {
		return nil, err
	}
	return toLoanResponse(loan), nil
}

// DisburseTranche releases a tranche's funds immediately
func (s *LoanService) DisburseTranche(ctx context.Context, loanID uuid.UUID, trancheSequence int) (*LoanResponse, error) {
	loan, err := s.findLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	tranche, err := loan.DisburseTranche(trancheSequence)
	if err != nil {
		return nil, err
	}
	if err := s.loanRepo.SaveWithLock(ctx, loan); err != nil {
		return nil, err
	}

	s.logger.Info("tranche disbursed",
		zap.String("loan_number", loan.LoanNumber),
		zap.Int("sequence", tranche.TrancheSequence),
		zap.String("net_amount", tranche.NetAmount.String()),
		zap.String("loan_status", loan.Status.String()),
	)

	return toLoanResponse(loan), nil
}

// RequestDisbursementApproval routes a tranche disbursement through the
// approval engine instead of releasing it directly
func (s *LoanService) RequestDisbursementApproval(ctx context.Context, loanID uuid.UUID, trancheSequence int, requestedBy uuid.UUID) (*approvalapp.RequestResponse, error) {
	loan, err := s.findLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if !loan.Status.CanDisburse() {
		return nil, shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot disburse on a loan in %s status", loan.Status))
	}
	tranche := loan.TrancheBySequence(trancheSequence)
	if tranche == nil {
		return nil, shared.NewDomainError("NOT_FOUND", fmt.Sprintf("Tranche %d not found", trancheSequence))
	}
	if tranche.IsDisbursed() {
		return nil, shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Tranche %d is already disbursed", trancheSequence))
	}

	return s.approvalSvc.Submit(ctx, approvalapp.SubmitRequest{
		EntityType:  approval.EntityTypeDisbursement,
		EntityID:    tranche.ID,
		Amount:      &tranche.NetAmount,
		BranchID:    loan.BranchID,
		SubmittedBy: requestedBy,
		Comments:    fmt.Sprintf("Disbursement of tranche %d of loan %s", trancheSequence, loan.LoanNumber),
	})
}

// RequestRateChange records a rate change and routes it through approval. The
// record is persisted first because the approval request references its ID; a
// routing failure rejects the record again so the slot is freed.
func (s *LoanService) RequestRateChange(ctx context.Context, loanID uuid.UUID, newRate decimal.Decimal, effectiveDate time.Time, reason string, requestedBy uuid.UUID) (*LoanResponse, error) {
	loan, err := s.findLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	rateChange, err := loan.RequestRateChange(newRate, effectiveDate, reason)
	if err != nil {
		return nil, err
	}
	if err := s.loanRepo.SaveWithLock(ctx, loan); err != nil {
		return nil, err
	}

	if _, err := s.approvalSvc.Submit(ctx, approvalapp.SubmitRequest{
		EntityType:  approval.EntityTypeRateChange,
		EntityID:    rateChange.ID,
		BranchID:    loan.BranchID,
		SubmittedBy: requestedBy,
		Comments:    reason,
	}); err != nil {
		if rollbackErr := s.rejectRateChange(ctx, loan.ID, rateChange.ID, "approval routing failed"); rollbackErr != nil {
			s.logger.Error("failed to roll back rate change after routing failure",
				zap.String("loan_number", loan.LoanNumber),
				zap.String("rate_change_id", rateChange.ID.String()),
				zap.Error(rollbackErr),
			)
		}
		return nil, err
	}

	return toLoanResponse(loan), nil
}

func (s *LoanService) rejectRateChange(ctx context.Context, loanID, rateChangeID uuid.UUID, reason string) error {
	loan, err := s.findLoan(ctx, loanID)
	if err != nil {
		return err
	}
	if err := loan.RejectRateChange(rateChangeID, reason); err != nil {
		return err
	}
	return s.loanRepo.SaveWithLock(ctx, loan)
}

// RequestWriteOff routes a write-off through the approval engine. The loan is
// untouched until the request is approved; the reason travels on the request
// and is applied by the completion handler.
func (s *LoanService) RequestWriteOff(ctx context.Context, loanID uuid.UUID, reason string, requestedBy uuid.UUID) (*approvalapp.RequestResponse, error) {
	loan, err := s.findLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if !loan.Status.CanWriteOff() {
		return nil, shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot write off a loan in %s status", loan.Status))
	}
	if reason == "" {
		return nil, shared.NewDomainError("INVALID_WRITE_OFF_REASON", "A write-off requires a reason")
	}

	return s.approvalSvc.Submit(ctx, approvalapp.SubmitRequest{
		EntityType:  approval.EntityTypeWriteOff,
		EntityID:    loan.ID,
		Amount:      &loan.OutstandingPrincipal,
		BranchID:    loan.BranchID,
		SubmittedBy: requestedBy,
		Comments:    reason,
	})
}

// WriteOffLoan recognizes the outstanding balance as uncollectible
func (s *LoanService) WriteOffLoan(ctx context.Context, loanID uuid.UUID, reason string) (*lending.WriteOffResult, error) {
	loan, err := s.findLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	result, err := loan.WriteOff(reason)
	if err != nil {
		return nil, err
	}
	if err := s.loanRepo.SaveWithLock(ctx, loan); err != nil {
		return nil, err
	}

	s.logger.Info("loan written off",
		zap.String("loan_number", loan.LoanNumber),
		zap.String("written_off_principal", result.WrittenOffPrincipal.String()),
		zap.String("written_off_interest", result.WrittenOffInterest.String()),
		zap.String("reason", reason),
	)

	return result, nil
}

// RecordRepayment applies a repayment to the loan's outstanding balances
func (s *LoanService) RecordRepayment(ctx context.Context, loanID uuid.UUID, principalPaid, interestPaid decimal.Decimal) (*LoanResponse, error) {
	loan, err := s.findLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	if err := loan.RecordRepayment(principalPaid, interestPaid); err != nil {
		return nil, err
	}
	if err := s.loanRepo.SaveWithLock(ctx, loan); err != nil {
		return nil, err
	}

	if loan.Status == lending.LoanStatusClosed {
		s.logger.Info("loan fully repaid and closed", zap.String("loan_number", loan.LoanNumber))
	}

	return toLoanResponse(loan), nil
}

// AccrueInterest adds accrued interest to the outstanding interest balance
func (s *LoanService) AccrueInterest(ctx context.Context, loanID uuid.UUID, amount decimal.Decimal) (*LoanResponse, error) {
	loan, err := s.findLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	if err := loan.AccrueInterest(amount); err != nil {
		return nil, err
	}
	if err := s.loanRepo.SaveWithLock(ctx, loan); err != nil {
		return nil, err
	}
	return toLoanResponse(loan), nil
}

// MarkDelinquent flags a loan as past due
func (s *LoanService) MarkDelinquent(ctx context.Context, loanID uuid.UUID) (*LoanResponse, error) {
	loan, err := s.findLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	if err := loan.MarkDelinquent(); err != nil {
		return nil, err
	}
	if err := s.loanRepo.SaveWithLock(ctx, loan); err != nil {
		return nil, err
	}
	return toLoanResponse(loan), nil
}

// ApplyDueRateChanges applies every approved rate change whose effective date
// has been reached. Called by the scheduled sweep; failures on one loan do
// not stop the rest.
func (s *LoanService) ApplyDueRateChanges(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.loanRepo.FindIDsWithDueRateChanges(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to find due rate changes: %w", err)
	}

	applied := 0
	for _, id := range ids {
		loan, err := s.findLoan(ctx, id)
		if err != nil {
			s.logger.Error("rate change sweep failed to load loan", zap.String("loan_id", id.String()), zap.Error(err))
			continue
		}
		change, err := loan.ApplyDueRateChange(now)
		if err != nil {
			s.logger.Error("rate change sweep failed to apply", zap.String("loan_number", loan.LoanNumber), zap.Error(err))
			continue
		}
		if change == nil {
			continue
		}
		if err := s.loanRepo.SaveWithLock(ctx, loan); err != nil {
			s.logger.Error("rate change sweep failed to save loan", zap.String("loan_number", loan.LoanNumber), zap.Error(err))
			continue
		}
		s.logger.Info("interest rate change applied",
			zap.String("loan_number", loan.LoanNumber),
			zap.String("previous_rate", change.PreviousRate.String()),
			zap.String("new_rate", change.NewRate.String()),
		)
		applied++
	}
	return applied, nil
}

// GetLoanByID gets a loan by ID
func (s *LoanService) GetLoanByID(ctx context.Context, id uuid.UUID) (*LoanResponse, error) {
	loan, err := s.findLoan(ctx, id)
	if err != nil {
		return nil, err
	}
	return toLoanResponse(loan), nil
}

// LoanListFilter defines filtering options for loan list queries
type LoanListFilter struct {
	BorrowerID *uuid.UUID `form:"borrower_id"`
	BranchID   *uuid.UUID `form:"branch_id"`
	Status     string     `form:"status"`
	Search     string     `form:"search"`
	Page       int        `form:"page"`
	PageSize   int        `form:"page_size"`
}

// ListLoans lists loans with filtering
func (s *LoanService) ListLoans(ctx context.Context, filter LoanListFilter) ([]LoanResponse, int64, error) {
	domainFilter := lending.LoanFilter{
		BorrowerID: filter.BorrowerID,
		BranchID:   filter.BranchID,
		Search:     filter.Search,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
	}
	if filter.Status != "" {
		status := lending.LoanStatus(filter.Status)
		domainFilter.Status = &status
	}

	loans, err := s.loanRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.loanRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]LoanResponse, len(loans))
	for i := range loans {
		responses[i] = *toLoanResponse(&loans[i])
	}
	return responses, total, nil
}

func (s *LoanService) findLoan(ctx context.Context, id uuid.UUID) (*lending.Loan, error) {
	loan, err := s.loanRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load loan: %w", err)
	}
	if loan == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Loan not found")
	}
	return loan, nil
}

func toLoanResponse(l *lending.Loan) *LoanResponse {
	tranches := make([]TrancheResponse, len(l.Tranches))
	for i, t := range l.Tranches {
		tranches[i] = TrancheResponse{
			ID:                t.ID,
			TrancheSequence:   t.TrancheSequence,
			Amount:            t.Amount,
			NetAmount:         t.NetAmount,
			Status:            t.Status.String(),
			Milestone:         t.Milestone,
			MilestoneVerified: t.MilestoneVerified,
			DisbursedAt:       t.DisbursedAt,
		}
	}
	rateChanges := make([]RateChangeResponse, len(l.RateChanges))
	for i, rc := range l.RateChanges {
		rateChanges[i] = RateChangeResponse{
			ID:            rc.ID,
			PreviousRate:  rc.PreviousRate,
			NewRate:       rc.NewRate,
			RequestDate:   rc.RequestDate,
			EffectiveDate: rc.EffectiveDate,
			Status:        rc.Status.String(),
			AppliedDate:   rc.AppliedDate,
			Reason:        rc.Reason,
		}
	}
	return &LoanResponse{
		ID:                   l.ID,
		LoanNumber:           l.LoanNumber,
		BorrowerID:           l.BorrowerID,
		BorrowerName:         l.BorrowerName,
		BranchID:             l.BranchID,
		ApprovedPrincipal:    l.ApprovedPrincipal,
		InterestRate:         l.InterestRate,
		TermMonths:           l.TermMonths,
		OutstandingPrincipal: l.OutstandingPrincipal,
		OutstandingInterest:  l.OutstandingInterest,
		Status:               l.Status.String(),
		Purpose:              l.Purpose,
		WriteOffReason:       l.WriteOffReason,
		WrittenOffAt:         l.WrittenOffAt,
		ApprovedAt:           l.ApprovedAt,
		RejectionReason:      l.RejectionReason,
		ClosedAt:             l.ClosedAt,
		Tranches:             tranches,
		RateChanges:          rateChanges,
		CreatedAt:            l.CreatedAt,
		UpdatedAt:            l.UpdatedAt,
		Version:              l.Version,
	}
}
