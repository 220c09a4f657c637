package lending

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mfi/backend/internal/domain/approval"
	"github.com/mfi/backend/internal/domain/lending"
	"github.com/mfi/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// finalApprover returns the approver of the most recent decision on a request.
// Used to attribute the entity-side transition to the person who completed
// the chain.
func finalApprover(request *approval.ApprovalRequest) uuid.UUID {
	var approver uuid.UUID
	var latest time.Time
	for i := range request.Decisions {
		d := &request.Decisions[i]
		if approver == uuid.Nil || d.DecidedAt.After(latest) {
			approver = d.ApproverID
			latest = d.DecidedAt
		}
	}
	return approver
}

// LoanApprovalHandler applies the outcome of a LOAN approval request
type LoanApprovalHandler struct {
	loanRepo lending.LoanRepository
	logger   *zap.Logger
}

// NewLoanApprovalHandler creates a new LoanApprovalHandler
func NewLoanApprovalHandler(loanRepo lending.LoanRepository, logger *zap.Logger) *LoanApprovalHandler {
	return &LoanApprovalHandler{loanRepo: loanRepo, logger: logger}
}

// OnApproved moves the loan from PendingApproval to Approved
func (h *LoanApprovalHandler) OnApproved(ctx context.Context, request *approval.ApprovalRequest) error {
	loan, err := h.findLoan(ctx, request.EntityID)
	if err != nil {
		return err
	}
	if err := loan.Approve(finalApprover(request)); err != nil {
		return err
	}
	if err := h.loanRepo.SaveWithLock(ctx, loan); err != nil {
		return err
	}
	h.logger.Info("loan approved",
		zap.String("loan_number", loan.LoanNumber),
		zap.String("request_number", request.RequestNumber),
	)
	return nil
}

// OnRejected terminates the loan with the rejection reason from the request
func (h *LoanApprovalHandler) OnRejected(ctx context.Context, request *approval.ApprovalRequest) error {
	loan, err := h.findLoan(ctx, request.EntityID)
	if err != nil {
		return err
	}
	reason := request.RejectionReason
	if reason == "" {
		reason = "Approval request rejected"
	}
	if err := loan.Reject(reason); err != nil {
		return err
	}
	if err := h.loanRepo.SaveWithLock(ctx, loan); err != nil {
		return err
	}
	h.logger.Info("loan rejected",
		zap.String("loan_number", loan.LoanNumber),
		zap.String("request_number", request.RequestNumber),
		zap.String("reason", reason),
	)
	return nil
}

// OnCancelled returns the loan to draft so it can be amended and resubmitted
func (h *LoanApprovalHandler) OnCancelled(ctx context.Context, request *approval.ApprovalRequest) error {
	loan, err := h.findLoan(ctx, request.EntityID)
	if err != nil {
		return err
	}
	if err := loan.ReturnToDraft(); err != nil {
		return err
	}
	if err := h.loanRepo.SaveWithLock(ctx, loan); err != nil {
		return err
	}
	h.logger.Info("loan returned to draft after request cancellation",
		zap.String("loan_number", loan.LoanNumber),
		zap.String("request_number", request.RequestNumber),
	)
	return nil
}

func (h *LoanApprovalHandler) findLoan(ctx context.Context, id uuid.UUID) (*lending.Loan, error) {
	loan, err := h.loanRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load loan: %w", err)
	}
	if loan == nil {
		return nil, shared.NewDomainError("NOT_FOUND", fmt.Sprintf("Loan %s not found", id))
	}
	return loan, nil
}

// DisbursementApprovalHandler applies the outcome of a DISBURSEMENT approval
// request. The request's entity ID is the tranche ID.
type DisbursementApprovalHandler struct {
	loanRepo lending.LoanRepository
	logger   *zap.Logger
}

// NewDisbursementApprovalHandler creates a new DisbursementApprovalHandler
func NewDisbursementApprovalHandler(loanRepo lending.LoanRepository, logger *zap.Logger) *DisbursementApprovalHandler {
	return &DisbursementApprovalHandler{loanRepo: loanRepo, logger: logger}
}

// OnApproved releases the tranche's funds
func (h *DisbursementApprovalHandler) OnApproved(ctx context.Context, request *approval.ApprovalRequest) error {
	loan, err := h.loanRepo.FindByTrancheID(ctx, request.EntityID)
	if err != nil {
		return fmt.Errorf("failed to load loan: %w", err)
	}
	if loan == nil {
		return shared.NewDomainError("NOT_FOUND", fmt.Sprintf("No loan owns tranche %s", request.EntityID))
	}

	var sequence int
	for i := range loan.Tranches {
		if loan.Tranches[i].ID == request.EntityID {
			sequence = loan.Tranches[i].TrancheSequence
			break
		}
	}
	if sequence == 0 {
		return shared.NewDomainError("NOT_FOUND", fmt.Sprintf("Tranche %s not found on loan %s", request.EntityID, loan.LoanNumber))
	}

	if _, err := loan.DisburseTranche(sequence); err != nil {
		return err
	}
	if err := h.loanRepo.SaveWithLock(ctx, loan); err != nil {
		return err
	}
	h.logger.Info("approved tranche disbursed",
		zap.String("loan_number", loan.LoanNumber),
		zap.Int("sequence", sequence),
		zap.String("request_number", request.RequestNumber),
	)
	return nil
}

// OnRejected leaves the tranche untouched; it stays releasable through a
// later request
func (h *DisbursementApprovalHandler) OnRejected(ctx context.Context, request *approval.ApprovalRequest) error {
	h.logger.Info("disbursement request rejected",
		zap.String("tranche_id", request.EntityID.String()),
		zap.String("request_number", request.RequestNumber),
		zap.String("reason", request.RejectionReason),
	)
	return nil
}

// OnCancelled leaves the tranche untouched, same as a rejection
func (h *DisbursementApprovalHandler) OnCancelled(ctx context.Context, request *approval.ApprovalRequest) error {
	h.logger.Info("disbursement request cancelled",
		zap.String("tranche_id", request.EntityID.String()),
		zap.String("request_number", request.RequestNumber),
	)
	return nil
}

// RateChangeApprovalHandler applies the outcome of a RATE_CHANGE approval
// request. The request's entity ID is the rate change record ID; the rate
// itself changes later when the sweep reaches the effective date.
type RateChangeApprovalHandler struct {
	loanRepo lending.LoanRepository
	logger   *zap.Logger
}

// NewRateChangeApprovalHandler creates a new RateChangeApprovalHandler
func NewRateChangeApprovalHandler(loanRepo lending.LoanRepository, logger *zap.Logger) *RateChangeApprovalHandler {
	return &RateChangeApprovalHandler{loanRepo: loanRepo, logger: logger}
}

// OnApproved marks the rate change approved
func (h *RateChangeApprovalHandler) OnApproved(ctx context.Context, request *approval.ApprovalRequest) error {
	loan, err := h.findOwningLoan(ctx, request.EntityID)
	if err != nil {
		return err
	}
	if err := loan.ApproveRateChange(request.EntityID); err != nil {
		return err
	}
	if err := h.loanRepo.SaveWithLock(ctx, loan); err != nil {
		return err
	}
	h.logger.Info("rate change approved",
		zap.String("loan_number", loan.LoanNumber),
		zap.String("rate_change_id", request.EntityID.String()),
	)
	return nil
}

// OnRejected marks the rate change rejected, freeing the loan's pending slot
func (h *RateChangeApprovalHandler) OnRejected(ctx context.Context, request *approval.ApprovalRequest) error {
	loan, err := h.findOwningLoan(ctx, request.EntityID)
	if err != nil {
		return err
	}
	reason := request.RejectionReason
	if reason == "" {
		reason = "Approval request rejected"
	}
	if err := loan.RejectRateChange(request.EntityID, reason); err != nil {
		return err
	}
	return h.loanRepo.SaveWithLock(ctx, loan)
}

// OnCancelled rejects the pending rate change record, freeing the loan's
// pending slot for a new request
func (h *RateChangeApprovalHandler) OnCancelled(ctx context.Context, request *approval.ApprovalRequest) error {
	loan, err := h.findOwningLoan(ctx, request.EntityID)
	if err != nil {
		return err
	}
	if err := loan.RejectRateChange(request.EntityID, "Approval request cancelled"); err != nil {
		return err
	}
	return h.loanRepo.SaveWithLock(ctx, loan)
}

func (h *RateChangeApprovalHandler) findOwningLoan(ctx context.Context, rateChangeID uuid.UUID) (*lending.Loan, error) {
	loan, err := h.loanRepo.FindByRateChangeID(ctx, rateChangeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load loan: %w", err)
	}
	if loan == nil {
		return nil, shared.NewDomainError("NOT_FOUND", fmt.Sprintf("No loan owns rate change %s", rateChangeID))
	}
	return loan, nil
}

// WriteOffApprovalHandler applies the outcome of a WRITE_OFF approval
// request. The write-off reason travels in the request's comments.
type WriteOffApprovalHandler struct {
	loanRepo lending.LoanRepository
	logger   *zap.Logger
}

// NewWriteOffApprovalHandler creates a new WriteOffApprovalHandler
func NewWriteOffApprovalHandler(loanRepo lending.LoanRepository, logger *zap.Logger) *WriteOffApprovalHandler {
	return &WriteOffApprovalHandler{loanRepo: loanRepo, logger: logger}
}

// OnApproved executes the write-off
func (h *WriteOffApprovalHandler) OnApproved(ctx context.Context, request *approval.ApprovalRequest) error {
	loan, err := h.loanRepo.FindByID(ctx, request.EntityID)
	if err != nil {
		return fmt.Errorf("failed to load loan: %w", err)
	}
	if loan == nil {
		return shared.NewDomainError("NOT_FOUND", fmt.Sprintf("Loan %s not found", request.EntityID))
	}

	reason := request.Comments
	if reason == "" {
		reason = "Approved write-off"
	}
	result, err := loan.WriteOff(reason)
	if err != nil {
		return err
	}
	if err := h.loanRepo.SaveWithLock(ctx, loan); err != nil {
		return err
	}
	h.logger.Info("approved write-off executed",
		zap.String("loan_number", loan.LoanNumber),
		zap.String("written_off_principal", result.WrittenOffPrincipal.String()),
		zap.String("written_off_interest", result.WrittenOffInterest.String()),
	)
	return nil
}

// OnRejected leaves the loan untouched
func (h *WriteOffApprovalHandler) OnRejected(ctx context.Context, request *approval.ApprovalRequest) error {
	h.logger.Info("write-off request rejected",
		zap.String("loan_id", request.EntityID.String()),
		zap.String("request_number", request.RequestNumber),
		zap.String("reason", request.RejectionReason),
	)
	return nil
}

// OnCancelled leaves the loan untouched
func (h *WriteOffApprovalHandler) OnCancelled(ctx context.Context, request *approval.ApprovalRequest) error {
	h.logger.Info("write-off request cancelled",
		zap.String("loan_id", request.EntityID.String()),
		zap.String("request_number", request.RequestNumber),
	)
	return nil
}
