package approval

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WorkflowFilter represents filter options for workflow queries
type WorkflowFilter struct {
	EntityType *EntityType
	BranchID   *uuid.UUID
	IsActive   *bool
	Search     string
	Page       int
	PageSize   int
}

// WorkflowRepository defines the persistence interface for approval workflows
type WorkflowRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*ApprovalWorkflow, error)
	FindByCode(ctx context.Context, code string) (*ApprovalWorkflow, error)
	// FindActiveByEntityType returns every active workflow for an entity
	// type; the selector narrows them down to one.
	FindActiveByEntityType(ctx context.Context, entityType EntityType) ([]ApprovalWorkflow, error)
	FindAll(ctx context.Context, filter WorkflowFilter) ([]ApprovalWorkflow, error)
	Count(ctx context.Context, filter WorkflowFilter) (int64, error)
	Save(ctx context.Context, workflow *ApprovalWorkflow) error
	SaveWithLock(ctx context.Context, workflow *ApprovalWorkflow) error
}

// RequestFilter represents filter options for approval request queries
type RequestFilter struct {
	EntityType  *EntityType
	EntityID    *uuid.UUID
	Status      *ApprovalRequestStatus
	BranchID    *uuid.UUID
	SubmittedBy *uuid.UUID
	FromDate    *time.Time
	ToDate      *time.Time
	Page        int
	PageSize    int
}

// ApprovalRequestRepository defines the persistence interface for approval requests
type ApprovalRequestRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*ApprovalRequest, error)
	FindByRequestNumber(ctx context.Context, requestNumber string) (*ApprovalRequest, error)
	// FindOpenByEntity returns the in-flight request for an entity, or nil.
	// The router uses this to enforce at most one open request per entity.
	FindOpenByEntity(ctx context.Context, entityType EntityType, entityID uuid.UUID) (*ApprovalRequest, error)
	// FindOverdue returns open requests whose SLA due time has passed.
	// Read-only: the SLA scanner flags, it never mutates.
	FindOverdue(ctx context.Context, now time.Time) ([]ApprovalRequest, error)
	FindAll(ctx context.Context, filter RequestFilter) ([]ApprovalRequest, error)
	Count(ctx context.Context, filter RequestFilter) (int64, error)
	Save(ctx context.Context, request *ApprovalRequest) error
	// SaveWithLock persists the request under an optimistic version check and
	// appends its pending domain events to the outbox in the same transaction.
	SaveWithLock(ctx context.Context, request *ApprovalRequest) error
	GenerateRequestNumber(ctx context.Context) (string, error)
}

// LevelAuthorizer is the external authorization collaborator consulted before
// a decision is accepted. Implementations typically check role assignments and
// per-approver amount caps.
type LevelAuthorizer interface {
	IsAuthorizedForLevel(ctx context.Context, approverID uuid.UUID, workflowCode string, level int, amount *decimal.Decimal) (bool, error)
}
