package approval

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mfi/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ApprovalRequestStatus represents the status of an approval request
type ApprovalRequestStatus string

const (
	RequestStatusSubmitted  ApprovalRequestStatus = "SUBMITTED"   // Routed, no decision recorded yet
	RequestStatusInProgress ApprovalRequestStatus = "IN_PROGRESS" // At least one level decided
	RequestStatusApproved   ApprovalRequestStatus = "APPROVED"    // All required levels approved
	RequestStatusRejected   ApprovalRequestStatus = "REJECTED"    // Rejected at some level
	RequestStatusCancelled  ApprovalRequestStatus = "CANCELLED"   // Withdrawn before completion
)

// IsValid checks if the status is a valid ApprovalRequestStatus
func (s ApprovalRequestStatus) IsValid() bool {
	switch s {
	case RequestStatusSubmitted, RequestStatusInProgress, RequestStatusApproved,
		RequestStatusRejected, RequestStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of ApprovalRequestStatus
func (s ApprovalRequestStatus) String() string {
	return string(s)
}

// IsTerminal returns true once no further decisions are accepted
func (s ApprovalRequestStatus) IsTerminal() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected || s == RequestStatusCancelled
}

// CanDecide returns true if decisions are still accepted in this status
func (s ApprovalRequestStatus) CanDecide() bool {
	return s == RequestStatusSubmitted || s == RequestStatusInProgress
}

// CanCancel returns true if the request can still be withdrawn
func (s ApprovalRequestStatus) CanCancel() bool {
	return s == RequestStatusSubmitted || s == RequestStatusInProgress
}

// DecisionOutcome represents an individual approve/reject decision
type DecisionOutcome string

const (
	DecisionApprove DecisionOutcome = "APPROVE"
	DecisionReject  DecisionOutcome = "REJECT"
)

// IsValid checks if the outcome is a known value
func (d DecisionOutcome) IsValid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// ApprovalDecision records one approver's decision at one level.
// At most one decision exists per (request, level, approver).
type ApprovalDecision struct {
	ID                uuid.UUID       `gorm:"type:uuid;primary_key"`
	ApprovalRequestID uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:idx_decision_request_level_approver,priority:1"`
	Level             int             `gorm:"not null;uniqueIndex:idx_decision_request_level_approver,priority:2"`
	ApproverID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_decision_request_level_approver,priority:3"`
	Decision          DecisionOutcome `gorm:"type:varchar(10);not null"`
	Comment           string          `gorm:"type:varchar(500)"`
	DecidedAt         time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ApprovalDecision) TableName() string {
	return "approval_decisions"
}

// Matches reports whether the recorded decision carries the same payload
func (d *ApprovalDecision) Matches(outcome DecisionOutcome, comment string) bool {
	return d.Decision == outcome && d.Comment == comment
}

// ApprovalRequest is one instance of routing an action through its resolved
// workflow. The level count and mode are snapshotted from the workflow at
// submission time; later workflow edits never affect an in-flight request.
type ApprovalRequest struct {
	shared.BaseAggregateRoot
	RequestNumber   string                `gorm:"type:varchar(50);not null;uniqueIndex"`
	WorkflowID      uuid.UUID             `gorm:"type:uuid;not null;index"`
	WorkflowCode    string                `gorm:"type:varchar(50);not null"` // Denormalized for authorization checks
	EntityType      EntityType            `gorm:"type:varchar(30);not null;index"`
	EntityID        uuid.UUID             `gorm:"type:uuid;not null;index"`
	Amount          *decimal.Decimal      `gorm:"type:decimal(18,4)"` // nil for actions without a monetary amount
	BranchID        *uuid.UUID            `gorm:"type:uuid;index"`
	Status          ApprovalRequestStatus `gorm:"type:varchar(20);not null;default:'SUBMITTED';index"`
	CurrentLevel    int                   `gorm:"not null"`
	TotalLevels     int                   `gorm:"not null"`
	IsSequential    bool                  `gorm:"not null"`
	SubmittedAt     time.Time             `gorm:"not null"`
	SubmittedByID   uuid.UUID             `gorm:"type:uuid;not null;index"`
	CompletedAt     *time.Time
	SLADueAt        *time.Time         `gorm:"index"`
	Comments        string             `gorm:"type:varchar(1000)"`
	RejectionReason string             `gorm:"type:varchar(500)"`
	CancelReason    string             `gorm:"type:varchar(500)"`
	CancelledByID   *uuid.UUID         `gorm:"type:uuid"`
	Decisions       []ApprovalDecision `gorm:"foreignKey:ApprovalRequestID;references:ID"`
}

// TableName returns the table name for GORM
func (ApprovalRequest) TableName() string {
	return "approval_requests"
}

// NewApprovalRequest routes an action through the given workflow. The level
// count, mode and SLA clock are copied onto the request; the workflow itself
// is only referenced for traceability.
func NewApprovalRequest(
	workflow *ApprovalWorkflow,
	requestNumber string,
	entityID uuid.UUID,
	amount *decimal.Decimal,
	branchID *uuid.UUID,
	submittedBy uuid.UUID,
	comments string,
) (*ApprovalRequest, error) {
	if workflow == nil {
		return nil, shared.NewDomainError("INVALID_WORKFLOW", "Workflow is required")
	}
	if requestNumber == "" {
		return nil, shared.NewDomainError("INVALID_REQUEST_NUMBER", "Request number cannot be empty")
	}
	if entityID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ENTITY", "Entity ID cannot be empty")
	}
	if submittedBy == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER", "Submitting user ID is required")
	}
	if amount != nil && amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Amount must be positive when provided")
	}

	now := time.Now()
	r := &ApprovalRequest{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		RequestNumber:     requestNumber,
		WorkflowID:        workflow.ID,
		WorkflowCode:      workflow.Code,
		EntityType:        workflow.EntityType,
		EntityID:          entityID,
		Amount:            amount,
		BranchID:          branchID,
		Status:            RequestStatusSubmitted,
		CurrentLevel:      1,
		TotalLevels:       workflow.NumberOfLevels,
		IsSequential:      workflow.IsSequential,
		SubmittedAt:       now,
		SubmittedByID:     submittedBy,
		Comments:          comments,
		Decisions:         make([]ApprovalDecision, 0),
	}

	// SLA clock covers the whole request: submission time plus the per-level
	// duration for every level. Wall-clock hours, not business days.
	if workflow.SLAHoursPerLevel > 0 {
		due := now.Add(time.Duration(workflow.SLAHoursPerLevel*workflow.NumberOfLevels) * time.Hour)
		r.SLADueAt = &due
	}

	r.AddDomainEvent(NewRequestSubmittedEvent(r))

	return r, nil
}

// DecisionFor returns the decision recorded by an approver at a level, if any
func (r *ApprovalRequest) DecisionFor(level int, approverID uuid.UUID) *ApprovalDecision {
	for i := range r.Decisions {
		if r.Decisions[i].Level == level && r.Decisions[i].ApproverID == approverID {
			return &r.Decisions[i]
		}
	}
	return nil
}

// DecisionAtLevel returns the decision recorded at a level, if any
func (r *ApprovalRequest) DecisionAtLevel(level int) *ApprovalDecision {
	for i := range r.Decisions {
		if r.Decisions[i].Level == level {
			return &r.Decisions[i]
		}
	}
	return nil
}

// RecordDecision applies one approver's decision at one level and advances or
// terminates the request.
//
// Sequential mode only accepts decisions at the current level; a reject at any
// level terminates the request immediately. Parallel mode accepts decisions at
// any undecided level and approves only once every level has approved
// (unanimity).
//
// A repeated decision with the identical payload fails with
// ErrDuplicateDecision so the caller can treat it as idempotent success; a
// repeated decision with a different payload fails with ErrDecisionConflict.
func (r *ApprovalRequest) RecordDecision(level int, approverID uuid.UUID, outcome DecisionOutcome, comment string) (*ApprovalDecision, error) {
	if !r.Status.CanDecide() {
		return nil, shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot decide on a request in %s status", r.Status))
	}
	if level < 1 || level > r.TotalLevels {
		return nil, shared.NewDomainError("INVALID_LEVEL", fmt.Sprintf("Level must be between 1 and %d", r.TotalLevels))
	}
	if approverID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER", "Approver ID is required")
	}
	if !outcome.IsValid() {
		return nil, shared.NewDomainError("INVALID_DECISION", fmt.Sprintf("Decision %q is not valid", outcome))
	}
	if outcome == DecisionReject && comment == "" {
		return nil, shared.NewDomainError("INVALID_REJECTION_REASON", "A rejection requires a reason")
	}

	if existing := r.DecisionFor(level, approverID); existing != nil {
		if existing.Matches(outcome, comment) {
			return nil, shared.ErrDuplicateDecision
		}
		return nil, shared.ErrDecisionConflict
	}

	if r.IsSequential {
		if level != r.CurrentLevel {
			return nil, shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Sequential workflow expects a decision at level %d, got level %d", r.CurrentLevel, level))
		}
	} else if r.DecisionAtLevel(level) != nil {
		return nil, shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Level %d has already been decided", level))
	}

	now := time.Now()
	decision := ApprovalDecision{
		ID:                uuid.New(),
		ApprovalRequestID: r.ID,
		Level:             level,
		ApproverID:        approverID,
		Decision:          outcome,
		Comment:           comment,
		DecidedAt:         now,
	}
	r.Decisions = append(r.Decisions, decision)

	if outcome == DecisionReject {
		r.Status = RequestStatusRejected
		r.RejectionReason = comment
		r.CompletedAt = &now
	} else {
		r.applyApproval(level, now)
	}

	r.UpdatedAt = now
	r.IncrementVersion()

	switch r.Status {
	case RequestStatusApproved:
		r.AddDomainEvent(NewRequestApprovedEvent(r))
	case RequestStatusRejected:
		r.AddDomainEvent(NewRequestRejectedEvent(r, approverID, level))
	default:
		r.AddDomainEvent(NewRequestAdvancedEvent(r, approverID, level))
	}

	return &r.Decisions[len(r.Decisions)-1], nil
}

// applyApproval advances the request after an approve decision landed
func (r *ApprovalRequest) applyApproval(level int, now time.Time) {
	if r.IsSequential {
		if level == r.TotalLevels {
			r.Status = RequestStatusApproved
			r.CompletedAt = &now
			return
		}
		r.CurrentLevel = level + 1
		r.Status = RequestStatusInProgress
		return
	}

	// Parallel: approved once every level carries an approve decision;
	// currentLevel tracks the lowest still-undecided level.
	if next := r.lowestUndecidedLevel(); next > 0 {
		r.CurrentLevel = next
		r.Status = RequestStatusInProgress
		return
	}
	r.CurrentLevel = r.TotalLevels
	r.Status = RequestStatusApproved
	r.CompletedAt = &now
}

// lowestUndecidedLevel returns the lowest level without a decision, or 0 if
// every level has been decided
func (r *ApprovalRequest) lowestUndecidedLevel() int {
	for level := 1; level <= r.TotalLevels; level++ {
		if r.DecisionAtLevel(level) == nil {
			return level
		}
	}
	return 0
}

// Cancel withdraws an in-flight request, e.g. when the underlying action is
// withdrawn. Completed requests cannot be cancelled.
func (r *ApprovalRequest) Cancel(cancelledBy uuid.UUID, reason string) error {
	if !r.Status.CanCancel() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot cancel a request in %s status", r.Status))
	}
	if cancelledBy == uuid.Nil {
		return shared.NewDomainError("INVALID_USER", "Cancelling user ID is required")
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_CANCEL_REASON", "A cancellation requires a reason")
	}

	now := time.Now()
	r.Status = RequestStatusCancelled
	r.CancelReason = reason
	r.CancelledByID = &cancelledBy
	r.CompletedAt = &now
	r.UpdatedAt = now
	r.IncrementVersion()

	r.AddDomainEvent(NewRequestCancelledEvent(r, cancelledBy))

	return nil
}

// IsOverdue reports whether the SLA clock has expired for a still-open request
func (r *ApprovalRequest) IsOverdue(now time.Time) bool {
	return r.SLADueAt != nil && r.Status.CanDecide() && now.After(*r.SLADueAt)
}
