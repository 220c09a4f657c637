package approval

import (
	"time"

	"github.com/google/uuid"
	"github.com/mfi/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// RequestSubmittedEvent is raised when an action is routed through a workflow
type RequestSubmittedEvent struct {
	shared.BaseDomainEvent
	RequestID     uuid.UUID        `json:"request_id"`
	RequestNumber string           `json:"request_number"`
	WorkflowCode  string           `json:"workflow_code"`
	EntityType    EntityType       `json:"entity_type"`
	EntityID      uuid.UUID        `json:"entity_id"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	TotalLevels   int              `json:"total_levels"`
	SubmittedByID uuid.UUID        `json:"submitted_by_id"`
	SLADueAt      *time.Time       `json:"sla_due_at,omitempty"`
}

// EventType returns the event type name
func (e *RequestSubmittedEvent) EventType() string {
	return "ApprovalRequestSubmitted"
}

// NewRequestSubmittedEvent creates a new RequestSubmittedEvent
func NewRequestSubmittedEvent(r *ApprovalRequest) *RequestSubmittedEvent {
	return &RequestSubmittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("ApprovalRequestSubmitted", "ApprovalRequest", r.ID),
		RequestID:       r.ID,
		RequestNumber:   r.RequestNumber,
		WorkflowCode:    r.WorkflowCode,
		EntityType:      r.EntityType,
		EntityID:        r.EntityID,
		Amount:          r.Amount,
		TotalLevels:     r.TotalLevels,
		SubmittedByID:   r.SubmittedByID,
		SLADueAt:        r.SLADueAt,
	}
}

// RequestAdvancedEvent is raised when an approve decision lands without
// completing the request
type RequestAdvancedEvent struct {
	shared.BaseDomainEvent
	RequestID     uuid.UUID `json:"request_id"`
	RequestNumber string    `json:"request_number"`
	DecidedLevel  int       `json:"decided_level"`
	CurrentLevel  int       `json:"current_level"`
	TotalLevels   int       `json:"total_levels"`
	ApproverID    uuid.UUID `json:"approver_id"`
}

// EventType returns the event type name
func (e *RequestAdvancedEvent) EventType() string {
	return "ApprovalRequestAdvanced"
}

// NewRequestAdvancedEvent creates a new RequestAdvancedEvent
func NewRequestAdvancedEvent(r *ApprovalRequest, approverID uuid.UUID, decidedLevel int) *RequestAdvancedEvent {
	return &RequestAdvancedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("ApprovalRequestAdvanced", "ApprovalRequest", r.ID),
		RequestID:       r.ID,
		RequestNumber:   r.RequestNumber,
		DecidedLevel:    decidedLevel,
		CurrentLevel:    r.CurrentLevel,
		TotalLevels:     r.TotalLevels,
		ApproverID:      approverID,
	}
}

// RequestApprovedEvent is raised when the final required level approves
type RequestApprovedEvent struct {
	shared.BaseDomainEvent
	RequestID     uuid.UUID        `json:"request_id"`
	RequestNumber string           `json:"request_number"`
	EntityType    EntityType       `json:"entity_type"`
	EntityID      uuid.UUID        `json:"entity_id"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	CompletedAt   time.Time        `json:"completed_at"`
}

// EventType returns the event type name
func (e *RequestApprovedEvent) EventType() string {
	return "ApprovalRequestApproved"
}

// NewRequestApprovedEvent creates a new RequestApprovedEvent
func NewRequestApprovedEvent(r *ApprovalRequest) *RequestApprovedEvent {
	completedAt := time.Now()
	if r.CompletedAt != nil {
		completedAt = *r.CompletedAt
	}
	return &RequestApprovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("ApprovalRequestApproved", "ApprovalRequest", r.ID),
		RequestID:       r.ID,
		RequestNumber:   r.RequestNumber,
		EntityType:      r.EntityType,
		EntityID:        r.EntityID,
		Amount:          r.Amount,
		CompletedAt:     completedAt,
	}
}

// RequestRejectedEvent is raised when any level rejects the request
type RequestRejectedEvent struct {
	shared.BaseDomainEvent
	RequestID       uuid.UUID  `json:"request_id"`
	RequestNumber   string     `json:"request_number"`
	EntityType      EntityType `json:"entity_type"`
	EntityID        uuid.UUID  `json:"entity_id"`
	RejectedAtLevel int        `json:"rejected_at_level"`
	RejectedByID    uuid.UUID  `json:"rejected_by_id"`
	RejectionReason string     `json:"rejection_reason"`
}

// EventType returns the event type name
func (e *RequestRejectedEvent) EventType() string {
	return "ApprovalRequestRejected"
}

// NewRequestRejectedEvent creates a new RequestRejectedEvent
func NewRequestRejectedEvent(r *ApprovalRequest, rejectedBy uuid.UUID, level int) *RequestRejectedEvent {
	return &RequestRejectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("ApprovalRequestRejected", "ApprovalRequest", r.ID),
		RequestID:       r.ID,
		RequestNumber:   r.RequestNumber,
		EntityType:      r.EntityType,
		EntityID:        r.EntityID,
		RejectedAtLevel: level,
		RejectedByID:    rejectedBy,
		RejectionReason: r.RejectionReason,
	}
}

// RequestCancelledEvent is raised when an in-flight request is withdrawn
type RequestCancelledEvent struct {
	shared.BaseDomainEvent
	RequestID     uuid.UUID  `json:"request_id"`
	RequestNumber string     `json:"request_number"`
	EntityType    EntityType `json:"entity_type"`
	EntityID      uuid.UUID  `json:"entity_id"`
	CancelledByID uuid.UUID  `json:"cancelled_by_id"`
	CancelReason  string     `json:"cancel_reason"`
}

// EventType returns the event type name
func (e *RequestCancelledEvent) EventType() string {
	return "ApprovalRequestCancelled"
}

// NewRequestCancelledEvent creates a new RequestCancelledEvent
func NewRequestCancelledEvent(r *ApprovalRequest, cancelledBy uuid.UUID) *RequestCancelledEvent {
	return &RequestCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("ApprovalRequestCancelled", "ApprovalRequest", r.ID),
		RequestID:       r.ID,
		RequestNumber:   r.RequestNumber,
		EntityType:      r.EntityType,
		EntityID:        r.EntityID,
		CancelledByID:   cancelledBy,
		CancelReason:    r.CancelReason,
	}
}
