package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mfi/backend/internal/domain/approval"
	"github.com/mfi/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ApprovalService routes actions through approval workflows and processes
// approver decisions. It is the only writer of approval requests.
type ApprovalService struct {
	workflowRepo approval.WorkflowRepository
	requestRepo  approval.ApprovalRequestRepository
	authorizer   approval.LevelAuthorizer
	selector     *approval.WorkflowSelector
	registry     *CompletionRegistry
	logger       *zap.Logger
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(
	workflowRepo approval.WorkflowRepository,
	requestRepo approval.ApprovalRequestRepository,
	authorizer approval.LevelAuthorizer,
	registry *CompletionRegistry,
	logger *zap.Logger,
) *ApprovalService {
	return &ApprovalService{
		workflowRepo: workflowRepo,
		requestRepo:  requestRepo,
		authorizer:   authorizer,
		selector:     approval.NewWorkflowSelector(),
		registry:     registry,
		logger:       logger,
	}
}

// SubmitRequest carries the parameters for routing an action into approval
type SubmitRequest struct {
	EntityType  approval.EntityType
	EntityID    uuid.UUID
	Amount      *decimal.Decimal
	BranchID    *uuid.UUID
	SubmittedBy uuid.UUID
	Comments    string
}

// DecideRequest carries one approver decision on a pending request
type DecideRequest struct {
	RequestID  uuid.UUID
	Level      int
	ApproverID uuid.UUID
	Outcome    approval.DecisionOutcome
	Comment    string
}

// DecisionResponse represents a recorded decision in API responses
type DecisionResponse struct {
	ID         uuid.UUID `json:"id"`
	Level      int       `json:"level"`
	ApproverID uuid.UUID `json:"approver_id"`
	Decision   string    `json:"decision"`
	Comment    string    `json:"comment,omitempty"`
	DecidedAt  time.Time `json:"decided_at"`
}

// RequestResponse represents an approval request in API responses
type RequestResponse struct {
	ID              uuid.UUID          `json:"id"`
	RequestNumber   string             `json:"request_number"`
	WorkflowID      uuid.UUID          `json:"workflow_id"`
	WorkflowCode    string             `json:"workflow_code"`
	EntityType      string             `json:"entity_type"`
	EntityID        uuid.UUID          `json:"entity_id"`
	Amount          *decimal.Decimal   `json:"amount,omitempty"`
	BranchID        *uuid.UUID         `json:"branch_id,omitempty"`
	Status          string             `json:"status"`
	CurrentLevel    int                `json:"current_level"`
	TotalLevels     int                `json:"total_levels"`
	IsSequential    bool               `json:"is_sequential"`
	SubmittedAt     time.Time          `json:"submitted_at"`
	SubmittedByID   uuid.UUID          `json:"submitted_by_id"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
	SLADueAt        *time.Time         `json:"sla_due_at,omitempty"`
	Comments        string             `json:"comments,omitempty"`
	RejectionReason string             `json:"rejection_reason,omitempty"`
	CancelReason    string             `json:"cancel_reason,omitempty"`
	Decisions       []DecisionResponse `json:"decisions,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	Version         int                `json:"version"`
}

// Submit resolves the workflow for an action and opens an approval request.
// At most one open request may exist per entity; a second submission while the
// first is still pending fails rather than forking the approval chain.
func (s *ApprovalService) Submit(ctx context.Context, req SubmitRequest) (*RequestResponse, error) {
	if !req.EntityType.IsValid() {
		return nil, shared.NewDomainError("INVALID_ENTITY_TYPE", fmt.Sprintf("Entity type %q is not valid", req.EntityType))
	}
	if req.EntityID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ENTITY", "Entity ID cannot be empty")
	}

	open, err := s.requestRepo.FindOpenByEntity(ctx, req.EntityType, req.EntityID)
	if err != nil {
		return nil, fmt.Errorf("failed to check open requests: %w", err)
	}
	if open != nil {
		return nil, shared.NewDomainError("DUPLICATE_REQUEST",
			fmt.Sprintf("Request %s is already open for this entity", open.RequestNumber))
	}

	workflows, err := s.workflowRepo.FindActiveByEntityType(ctx, req.EntityType)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflows: %w", err)
	}

	workflow, err := s.selector.Select(workflows, req.EntityType, req.Amount, req.BranchID)
	if err != nil {
		return nil, err
	}

	requestNumber, err := s.requestRepo.GenerateRequestNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate request number: %w", err)
	}

	request, err := approval.NewApprovalRequest(
		workflow,
		requestNumber,
		req.EntityID,
		req.Amount,
		req.BranchID,
		req.SubmittedBy,
		req.Comments,
	)
	if err != nil {
		return nil, err
	}

	if err := s.requestRepo.Save(ctx, request); err != nil {
		if !errors.Is(err, shared.ErrDuplicateNumber) {
			return nil, fmt.Errorf("failed to save request: %w", err)
		}
		// A concurrent submission took the generated number first.
		// Regenerate once against the fresh high-water mark.
		number, genErr := s.requestRepo.GenerateRequestNumber(ctx)
		if genErr != nil {
			return nil, fmt.Errorf("failed to generate request number: %w", genErr)
		}
		request.RequestNumber = number
		if err := s.requestRepo.Save(ctx, request); err != nil {
			return nil, fmt.Errorf("failed to save request: %w", err)
		}
	}

	s.logger.Info("approval request submitted",
		zap.String("request_number", request.RequestNumber),
		zap.String("workflow_code", workflow.Code),
		zap.String("entity_type", req.EntityType.String()),
		zap.String("entity_id", req.EntityID.String()),
	)

	return toRequestResponse(request), nil
}

// Decide records one approver decision. A replayed decision with an identical
// payload returns the current request state as a success; a version conflict
// from a concurrent approver is retried once against the fresh state.
func (s *ApprovalService) Decide(ctx context.Context, req DecideRequest) (*RequestResponse, error) {
	response, err := s.decideOnce(ctx, req)
	if err != nil && errors.Is(err, shared.ErrConcurrencyConflict) {
		s.logger.Debug("decision hit a version conflict, retrying",
			zap.String("request_id", req.RequestID.String()),
			zap.Int("level", req.Level),
		)
		response, err = s.decideOnce(ctx, req)
	}
	return response, err
}

func (s *ApprovalService) decideOnce(ctx context.Context, req DecideRequest) (*RequestResponse, error) {
	request, err := s.requestRepo.FindByID(ctx, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	if request == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Approval request not found")
	}

	// State is validated before authorization so a decision against a
	// completed request reports the request's state, not the approver's
	// assignment.
	if !request.Status.CanDecide() {
		return nil, shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot decide on a request in %s status", request.Status))
	}

	authorized, err := s.authorizer.IsAuthorizedForLevel(ctx, req.ApproverID, request.WorkflowCode, req.Level, request.Amount)
	if err != nil {
		return nil, fmt.Errorf("failed to check authorization: %w", err)
	}
	if !authorized {
		return nil, shared.NewDomainError("UNAUTHORIZED",
			fmt.Sprintf("Approver is not authorized for level %d of workflow %s", req.Level, request.WorkflowCode))
	}

	if _, err := request.RecordDecision(req.Level, req.ApproverID, req.Outcome, req.Comment); err != nil {
		if errors.Is(err, shared.ErrDuplicateDecision) {
			// Exact replay of an already recorded decision, e.g. a client
			// retry after a lost response. Return the current state.
			return toRequestResponse(request), nil
		}
		return nil, err
	}

	if err := s.requestRepo.SaveWithLock(ctx, request); err != nil {
		return nil, err
	}

	s.logger.Info("approval decision recorded",
		zap.String("request_number", request.RequestNumber),
		zap.Int("level", req.Level),
		zap.String("outcome", string(req.Outcome)),
		zap.String("status", request.Status.String()),
	)

	if err := s.dispatchCompletion(ctx, request); err != nil {
		return nil, err
	}

	return toRequestResponse(request), nil
}

// dispatchCompletion invokes the entity's completion handler after a request
// reaches a terminal decision. The decision is already durable at this point;
// a handler failure leaves the system inconsistent and is surfaced loudly so
// an operator can reconcile.
func (s *ApprovalService) dispatchCompletion(ctx context.Context, request *approval.ApprovalRequest) error {
	if request.Status != approval.RequestStatusApproved && request.Status != approval.RequestStatusRejected {
		return nil
	}

	handler := s.registry.HandlerFor(request.EntityType)
	if handler == nil {
		s.logger.Warn("no completion handler registered",
			zap.String("entity_type", request.EntityType.String()),
			zap.String("request_number", request.RequestNumber),
		)
		return nil
	}

	var err error
	if request.Status == approval.RequestStatusApproved {
		err = handler.OnApproved(ctx, request)
	} else {
		err = handler.OnRejected(ctx, request)
	}
	if err != nil {
		s.logger.Error("approval completed but the entity update failed, manual reconciliation required",
			zap.String("request_number", request.RequestNumber),
			zap.String("entity_type", request.EntityType.String()),
			zap.String("entity_id", request.EntityID.String()),
			zap.String("status", request.Status.String()),
			zap.Error(err),
		)
		return shared.NewDomainErrorWithCause("APPROVAL_COMPLETION_FAILED",
			fmt.Sprintf("Request %s completed but applying the outcome to the entity failed", request.RequestNumber), err)
	}

	return nil
}

// Cancel withdraws an open approval request
func (s *ApprovalService) Cancel(ctx context.Context, requestID, cancelledBy uuid.UUID, reason string) (*RequestResponse, error) {
	request, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	if request == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Approval request not found")
	}

	if err := request.Cancel(cancelledBy, reason); err != nil {
		return nil, err
	}

	if err := s.requestRepo.SaveWithLock(ctx, request); err != nil {
		return nil, err
	}

	s.logger.Info("approval request cancelled",
		zap.String("request_number", request.RequestNumber),
		zap.String("reason", reason),
	)

	if err := s.dispatchCancellation(ctx, request); err != nil {
		return nil, err
	}

	return toRequestResponse(request), nil
}

// dispatchCancellation releases the governed entity after its request was
// withdrawn, e.g. returning a pending loan to draft so it can be amended and
// resubmitted.
func (s *ApprovalService) dispatchCancellation(ctx context.Context, request *approval.ApprovalRequest) error {
	handler := s.registry.HandlerFor(request.EntityType)
	if handler == nil {
		s.logger.Warn("no completion handler registered",
			zap.String("entity_type", request.EntityType.String()),
			zap.String("request_number", request.RequestNumber),
		)
		return nil
	}

	if err := handler.OnCancelled(ctx, request); err != nil {
		s.logger.Error("request cancelled but the entity release failed, manual reconciliation required",
			zap.String("request_number", request.RequestNumber),
			zap.String("entity_type", request.EntityType.String()),
			zap.String("entity_id", request.EntityID.String()),
			zap.Error(err),
		)
		return shared.NewDomainErrorWithCause("APPROVAL_COMPLETION_FAILED",
			fmt.Sprintf("Request %s was cancelled but releasing the entity failed", request.RequestNumber), err)
	}

	return nil
}

// GetRequestByID gets an approval request by ID
func (s *ApprovalService) GetRequestByID(ctx context.Context, id uuid.UUID) (*RequestResponse, error) {
	request, err := s.requestRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Approval request not found")
	}
	return toRequestResponse(request), nil
}

// RequestListFilter defines filtering options for request list queries
type RequestListFilter struct {
	EntityType  string     `form:"entity_type"`
	EntityID    *uuid.UUID `form:"entity_id"`
	Status      string     `form:"status"`
	BranchID    *uuid.UUID `form:"branch_id"`
	SubmittedBy *uuid.UUID `form:"submitted_by"`
	FromDate    *time.Time `form:"from_date"`
	ToDate      *time.Time `form:"to_date"`
	Page        int        `form:"page"`
	PageSize    int        `form:"page_size"`
}

// ListRequests lists approval requests with filtering
func (s *ApprovalService) ListRequests(ctx context.Context, filter RequestListFilter) ([]RequestResponse, int64, error) {
	domainFilter := approval.RequestFilter{
		EntityID:    filter.EntityID,
		BranchID:    filter.BranchID,
		SubmittedBy: filter.SubmittedBy,
		FromDate:    filter.FromDate,
		ToDate:      filter.ToDate,
		Page:        filter.Page,
		PageSize:    filter.PageSize,
	}
	if filter.EntityType != "" {
		entityType := approval.EntityType(filter.EntityType)
		domainFilter.EntityType = &entityType
	}
	if filter.Status != "" {
		status := approval.ApprovalRequestStatus(filter.Status)
		domainFilter.Status = &status
	}

	requests, err := s.requestRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.requestRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]RequestResponse, len(requests))
	for i := range requests {
		responses[i] = *toRequestResponse(&requests[i])
	}
	return responses, total, nil
}

// ListOverdue returns open requests whose SLA due time has passed
func (s *ApprovalService) ListOverdue(ctx context.Context, now time.Time) ([]RequestResponse, error) {
	requests, err := s.requestRepo.FindOverdue(ctx, now)
	if err != nil {
		return nil, err
	}
	responses := make([]RequestResponse, len(requests))
	for i := range requests {
		responses[i] = *toRequestResponse(&requests[i])
	}
	return responses, nil
}

func toRequestResponse(r *approval.ApprovalRequest) *RequestResponse {
	decisions := make([]DecisionResponse, len(r.Decisions))
	for i, d := range r.Decisions {
		decisions[i] = DecisionResponse{
			ID:         d.ID,
			Level:      d.Level,
			ApproverID: d.ApproverID,
			Decision:   string(d.Decision),
			Comment:    d.Comment,
			DecidedAt:  d.DecidedAt,
		}
	}
	return &RequestResponse{
		ID:              r.ID,
		RequestNumber:   r.RequestNumber,
		WorkflowID:      r.WorkflowID,
		WorkflowCode:    r.WorkflowCode,
		EntityType:      r.EntityType.String(),
		EntityID:        r.EntityID,
		Amount:          r.Amount,
		BranchID:        r.BranchID,
		Status:          r.Status.String(),
		CurrentLevel:    r.CurrentLevel,
		TotalLevels:     r.TotalLevels,
		IsSequential:    r.IsSequential,
		SubmittedAt:     r.SubmittedAt,
		SubmittedByID:   r.SubmittedByID,
		CompletedAt:     r.CompletedAt,
		SLADueAt:        r.SLADueAt,
		Comments:        r.Comments,
		RejectionReason: r.RejectionReason,
		CancelReason:    r.CancelReason,
		Decisions:       decisions,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		Version:         r.Version,
	}
}
