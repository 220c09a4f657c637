package approval

import (
	"github.com/google/uuid"
	"github.com/mfi/backend/internal/domain/shared"
)

// WorkflowCreatedEvent is raised when a new approval workflow is defined
type WorkflowCreatedEvent struct {
	shared.BaseDomainEvent
	WorkflowID     uuid.UUID  `json:"workflow_id"`
	Code           string     `json:"code"`
	EntityType     EntityType `json:"entity_type"`
	NumberOfLevels int        `json:"number_of_levels"`
	IsSequential   bool       `json:"is_sequential"`
}

// EventType returns the event type name
func (e *WorkflowCreatedEvent) EventType() string {
	return "ApprovalWorkflowCreated"
}

// NewWorkflowCreatedEvent creates a new WorkflowCreatedEvent
func NewWorkflowCreatedEvent(w *ApprovalWorkflow) *WorkflowCreatedEvent {
	return &WorkflowCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("ApprovalWorkflowCreated", "ApprovalWorkflow", w.ID),
		WorkflowID:      w.ID,
		Code:            w.Code,
		EntityType:      w.EntityType,
		NumberOfLevels:  w.NumberOfLevels,
		IsSequential:    w.IsSequential,
	}
}

// WorkflowUpdatedEvent is raised when a workflow definition is edited.
// In-flight requests are unaffected; only future routing changes.
type WorkflowUpdatedEvent struct {
	shared.BaseDomainEvent
	WorkflowID     uuid.UUID `json:"workflow_id"`
	Code           string    `json:"code"`
	NumberOfLevels int       `json:"number_of_levels"`
	Priority       int       `json:"priority"`
}

// EventType returns the event type name
func (e *WorkflowUpdatedEvent) EventType() string {
	return "ApprovalWorkflowUpdated"
}

// NewWorkflowUpdatedEvent creates a new WorkflowUpdatedEvent
func NewWorkflowUpdatedEvent(w *ApprovalWorkflow) *WorkflowUpdatedEvent {
	return &WorkflowUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("ApprovalWorkflowUpdated", "ApprovalWorkflow", w.ID),
		WorkflowID:      w.ID,
		Code:            w.Code,
		NumberOfLevels:  w.NumberOfLevels,
		Priority:        w.Priority,
	}
}

// WorkflowDeactivatedEvent is raised when a workflow is removed from selection
type WorkflowDeactivatedEvent struct {
	shared.BaseDomainEvent
	WorkflowID uuid.UUID `json:"workflow_id"`
	Code       string    `json:"code"`
}

// EventType returns the event type name
func (e *WorkflowDeactivatedEvent) EventType() string {
	return "ApprovalWorkflowDeactivated"
}

// NewWorkflowDeactivatedEvent creates a new WorkflowDeactivatedEvent
func NewWorkflowDeactivatedEvent(w *ApprovalWorkflow) *WorkflowDeactivatedEvent {
	return &WorkflowDeactivatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("ApprovalWorkflowDeactivated", "ApprovalWorkflow", w.ID),
		WorkflowID:      w.ID,
		Code:            w.Code,
	}
}
