package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mfi/backend/internal/domain/approval"
	"github.com/mfi/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WorkflowService manages approval workflow definitions
type WorkflowService struct {
	workflowRepo approval.WorkflowRepository
	logger       *zap.Logger
}

// NewWorkflowService creates a new WorkflowService
func NewWorkflowService(workflowRepo approval.WorkflowRepository, logger *zap.Logger) *WorkflowService {
	return &WorkflowService{
		workflowRepo: workflowRepo,
		logger:       logger,
	}
}

// CreateWorkflowRequest carries the parameters for a new workflow definition
type CreateWorkflowRequest struct {
	Code             string           `json:"code" binding:"required,max=50"`
	Name             string           `json:"name" binding:"required,max=200"`
	EntityType       string           `json:"entity_type" binding:"required"`
	MinAmount        *decimal.Decimal `json:"min_amount"`
	MaxAmount        *decimal.Decimal `json:"max_amount"`
	BranchID         *uuid.UUID       `json:"branch_id"`
	NumberOfLevels   int              `json:"number_of_levels" binding:"required,min=1"`
	IsSequential     bool             `json:"is_sequential"`
	Priority         int              `json:"priority"`
	SLAHoursPerLevel int              `json:"sla_hours_per_level" binding:"min=0"`
	Description      string           `json:"description" binding:"max=500"`
}

// UpdateWorkflowRequest carries the mutable workflow attributes
type UpdateWorkflowRequest struct {
	Name             string           `json:"name" binding:"required,max=200"`
	MinAmount        *decimal.Decimal `json:"min_amount"`
	MaxAmount        *decimal.Decimal `json:"max_amount"`
	NumberOfLevels   int              `json:"number_of_levels" binding:"required,min=1"`
	IsSequential     bool             `json:"is_sequential"`
	Priority         int              `json:"priority"`
	SLAHoursPerLevel int              `json:"sla_hours_per_level" binding:"min=0"`
	Description      string           `json:"description" binding:"max=500"`
}

// WorkflowResponse represents a workflow definition in API responses
type WorkflowResponse struct {
	ID               uuid.UUID        `json:"id"`
	Code             string           `json:"code"`
	Name             string           `json:"name"`
	EntityType       string           `json:"entity_type"`
	MinAmount        *decimal.Decimal `json:"min_amount,omitempty"`
	MaxAmount        *decimal.Decimal `json:"max_amount,omitempty"`
	BranchID         *uuid.UUID       `json:"branch_id,omitempty"`
	NumberOfLevels   int              `json:"number_of_levels"`
	IsSequential     bool             `json:"is_sequential"`
	Priority         int              `json:"priority"`
	SLAHoursPerLevel int              `json:"sla_hours_per_level"`
	IsActive         bool             `json:"is_active"`
	Description      string           `json:"description,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	Version          int              `json:"version"`
}

// CreateWorkflow creates a new workflow definition
func (s *WorkflowService) CreateWorkflow(ctx context.Context, req CreateWorkflowRequest) (*WorkflowResponse, error) {
	existing, err := s.workflowRepo.FindByCode(ctx, req.Code)
	if err != nil {
		return nil, fmt.Errorf("failed to check workflow code: %w", err)
	}
	if existing != nil {
		return nil, shared.NewDomainError("ALREADY_EXISTS", fmt.Sprintf("Workflow with code %s already exists", req.Code))
	}

	workflow, err := approval.NewApprovalWorkflow(
		req.Code,
		req.Name,
		approval.EntityType(req.EntityType),
		req.MinAmount,
		req.MaxAmount,
		req.BranchID,
		req.NumberOfLevels,
		req.IsSequential,
		req.Priority,
		req.SLAHoursPerLevel,
	)
	if err != nil {
		return nil, err
	}
	workflow.Description = req.Description

	if err := s.workflowRepo.Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	s.logger.Info("approval workflow created",
		zap.String("code", workflow.Code),
		zap.String("entity_type", workflow.EntityType.String()),
		zap.Int("levels", workflow.NumberOfLevels),
	)

	return toWorkflowResponse(workflow), nil
}

// UpdateWorkflow updates a workflow definition. Requests already in flight
// keep the level count they were submitted with.
func (s *WorkflowService) UpdateWorkflow(ctx context.Context, id uuid.UUID, req UpdateWorkflowRequest) (*WorkflowResponse, error) {
	workflow, err := s.workflowRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if workflow == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Workflow not found")
	}

	if err := workflow.UpdateDefinition(
		req.Name,
		req.MinAmount,
		req.MaxAmount,
		req.NumberOfLevels,
		req.IsSequential,
		req.Priority,
		req.SLAHoursPerLevel,
	); err != nil {
		return nil, err
	}
	workflow.Description = req.Description

	if err := s.workflowRepo.SaveWithLock(ctx, workflow); err != nil {
		return nil, err
	}

	return toWorkflowResponse(workflow), nil
}

// DeactivateWorkflow removes a workflow from selection for new requests
func (s *WorkflowService) DeactivateWorkflow(ctx context.Context, id uuid.UUID) (*WorkflowResponse, error) {
	workflow, err := s.workflowRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if workflow == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Workflow not found")
	}

	if err := workflow.Deactivate(); err != nil {
		return nil, err
	}
	if err := s.workflowRepo.SaveWithLock(ctx, workflow); err != nil {
		return nil, err
	}

	s.logger.Info("approval workflow deactivated", zap.String("code", workflow.Code))

	return toWorkflowResponse(workflow), nil
}

// ActivateWorkflow returns a deactivated workflow to selection
func (s *WorkflowService) ActivateWorkflow(ctx context.Context, id uuid.UUID) (*WorkflowResponse, error) {
	workflow, err := s.workflowRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if workflow == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Workflow not found")
	}

	if err := workflow.Activate(); err != nil {
		return nil, err
	}
	if err := s.workflowRepo.SaveWithLock(ctx, workflow); err != nil {
		return nil, err
	}

	return toWorkflowResponse(workflow), nil
}

// GetWorkflowByID gets a workflow by ID
func (s *WorkflowService) GetWorkflowByID(ctx context.Context, id uuid.UUID) (*WorkflowResponse, error) {
	workflow, err := s.workflowRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if workflow == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Workflow not found")
	}
	return toWorkflowResponse(workflow), nil
}

// WorkflowListFilter defines filtering options for workflow list queries
type WorkflowListFilter struct {
	EntityType string     `form:"entity_type"`
	BranchID   *uuid.UUID `form:"branch_id"`
	IsActive   *bool      `form:"is_active"`
	Search     string     `form:"search"`
	Page       int        `form:"page"`
	PageSize   int        `form:"page_size"`
}

// ListWorkflows lists workflow definitions with filtering
func (s *WorkflowService) ListWorkflows(ctx context.Context, filter WorkflowListFilter) ([]WorkflowResponse, int64, error) {
	domainFilter := approval.WorkflowFilter{
		BranchID: filter.BranchID,
		IsActive: filter.IsActive,
		Search:   filter.Search,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}
	if filter.EntityType != "" {
		entityType := approval.EntityType(filter.EntityType)
		domainFilter.EntityType = &entityType
	}

	workflows, err := s.workflowRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.workflowRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]WorkflowResponse, len(workflows))
	for i := range workflows {
		responses[i] = *toWorkflowResponse(&workflows[i])
	}
	return responses, total, nil
}

func toWorkflowResponse(w *approval.ApprovalWorkflow) *WorkflowResponse {
	return &WorkflowResponse{
		ID:               w.ID,
		Code:             w.Code,
		Name:             w.Name,
		EntityType:       w.EntityType.String(),
		MinAmount:        w.MinAmount,
		MaxAmount:        w.MaxAmount,
		BranchID:         w.BranchID,
		NumberOfLevels:   w.NumberOfLevels,
		IsSequential:     w.IsSequential,
		Priority:         w.Priority,
		SLAHoursPerLevel: w.SLAHoursPerLevel,
		IsActive:         w.IsActive,
		Description:      w.Description,
		CreatedAt:        w.CreatedAt,
		UpdatedAt:        w.UpdatedAt,
		Version:          w.Version,
	}
}
