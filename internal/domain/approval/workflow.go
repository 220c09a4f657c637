package approval

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/mfi/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// EntityType identifies the kind of action an approval workflow gates
type EntityType string

const (
	EntityTypeLoan         EntityType = "LOAN"         // Loan approval
	EntityTypeDisbursement EntityType = "DISBURSEMENT" // Tranche disbursement release
	EntityTypeRateChange   EntityType = "RATE_CHANGE"  // Interest rate change
	EntityTypeWriteOff     EntityType = "WRITE_OFF"    // Loan write-off
	EntityTypeFeeWaiver    EntityType = "FEE_WAIVER"   // Fee waiver
)

// IsValid checks if the entity type is a known value
func (t EntityType) IsValid() bool {
	switch t {
	case EntityTypeLoan, EntityTypeDisbursement, EntityTypeRateChange,
		EntityTypeWriteOff, EntityTypeFeeWaiver:
		return true
	}
	return false
}

// String returns the string representation of EntityType
func (t EntityType) String() string {
	return string(t)
}

// ApprovalWorkflow defines how many approval levels an action needs.
// A workflow is selected by entity type, amount band and branch scope.
// In-flight requests snapshot the level count at submission, so editing a
// workflow never changes requests already routed through it.
type ApprovalWorkflow struct {
	shared.BaseAggregateRoot
	Code             string           `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name             string           `gorm:"type:varchar(200);not null"`
	EntityType       EntityType       `gorm:"type:varchar(30);not null;index"`
	MinAmount        *decimal.Decimal `gorm:"type:decimal(18,4)"` // nil = unbounded below
	MaxAmount        *decimal.Decimal `gorm:"type:decimal(18,4)"` // nil = unbounded above
	BranchID         *uuid.UUID       `gorm:"type:uuid;index"`    // nil = global
	NumberOfLevels   int              `gorm:"not null"`
	IsSequential     bool             `gorm:"not null;default:true"`
	Priority         int              `gorm:"not null;default:0"`
	SLAHoursPerLevel int              `gorm:"not null;default:24"` // wall-clock hours per level, 0 disables the SLA clock
	IsActive         bool             `gorm:"not null;default:true;index"`
	Description      string           `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (ApprovalWorkflow) TableName() string {
	return "approval_workflows"
}

// NewApprovalWorkflow creates a new approval workflow definition
func NewApprovalWorkflow(
	code string,
	name string,
	entityType EntityType,
	minAmount, maxAmount *decimal.Decimal,
	branchID *uuid.UUID,
	numberOfLevels int,
	isSequential bool,
	priority int,
	slaHoursPerLevel int,
) (*ApprovalWorkflow, error) {
	if code == "" {
		return nil, shared.NewDomainError("INVALID_WORKFLOW_CODE", "Workflow code cannot be empty")
	}
	if len(code) > 50 {
		return nil, shared.NewDomainError("INVALID_WORKFLOW_CODE", "Workflow code cannot exceed 50 characters")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_WORKFLOW_NAME", "Workflow name cannot be empty")
	}
	if !entityType.IsValid() {
		return nil, shared.NewDomainError("INVALID_ENTITY_TYPE", fmt.Sprintf("Entity type %q is not valid", entityType))
	}
	if numberOfLevels < 1 {
		return nil, shared.NewDomainError("INVALID_LEVEL_COUNT", "Workflow must have at least one approval level")
	}
	if minAmount != nil && minAmount.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT_BAND", "Minimum amount cannot be negative")
	}
	if minAmount != nil && maxAmount != nil && maxAmount.LessThan(*minAmount) {
		return nil, shared.NewDomainError("INVALID_AMOUNT_BAND", "Maximum amount cannot be below minimum amount")
	}
	if slaHoursPerLevel < 0 {
		return nil, shared.NewDomainError("INVALID_SLA", "SLA hours per level cannot be negative")
	}

	w := &ApprovalWorkflow{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Code:              code,
		Name:              name,
		EntityType:        entityType,
		MinAmount:         minAmount,
		MaxAmount:         maxAmount,
		BranchID:          branchID,
		NumberOfLevels:    numberOfLevels,
		IsSequential:      isSequential,
		Priority:          priority,
		SLAHoursPerLevel:  slaHoursPerLevel,
		IsActive:          true,
	}

	w.AddDomainEvent(NewWorkflowCreatedEvent(w))

	return w, nil
}

// Matches reports whether this workflow is a candidate for the given action.
// A nil amount matches workflows with no amount bounds on the violated side;
// a workflow with no bounds matches any amount. A nil branch only matches
// global workflows.
func (w *ApprovalWorkflow) Matches(entityType EntityType, amount *decimal.Decimal, branchID *uuid.UUID) bool {
	if !w.IsActive || w.EntityType != entityType {
		return false
	}
	if amount != nil {
		if w.MinAmount != nil && amount.LessThan(*w.MinAmount) {
			return false
		}
		if w.MaxAmount != nil && amount.GreaterThan(*w.MaxAmount) {
			return false
		}
	} else if w.MinAmount != nil || w.MaxAmount != nil {
		// An amount-less action never satisfies a bounded band.
		return false
	}
	if w.BranchID != nil {
		if branchID == nil || *w.BranchID != *branchID {
			return false
		}
	}
	return true
}

// IsBranchScoped returns true if this workflow applies to a single branch
func (w *ApprovalWorkflow) IsBranchScoped() bool {
	return w.BranchID != nil
}

// AmountBandWidth returns max-min, or nil if the band is unbounded on either side
func (w *ApprovalWorkflow) AmountBandWidth() *decimal.Decimal {
	if w.MinAmount == nil || w.MaxAmount == nil {
		return nil
	}
	width := w.MaxAmount.Sub(*w.MinAmount)
	return &width
}

// UpdateDefinition updates the mutable workflow attributes. In-flight requests
// are unaffected because routing snapshots the level count at submission.
func (w *ApprovalWorkflow) UpdateDefinition(
	name string,
	minAmount, maxAmount *decimal.Decimal,
	numberOfLevels int,
	isSequential bool,
	priority int,
	slaHoursPerLevel int,
) error {
	if name == "" {
		return shared.NewDomainError("INVALID_WORKFLOW_NAME", "Workflow name cannot be empty")
	}
	if numberOfLevels < 1 {
		return shared.NewDomainError("INVALID_LEVEL_COUNT", "Workflow must have at least one approval level")
	}
	if minAmount != nil && maxAmount != nil && maxAmount.LessThan(*minAmount) {
		return shared.NewDomainError("INVALID_AMOUNT_BAND", "Maximum amount cannot be below minimum amount")
	}
	if slaHoursPerLevel < 0 {
		return shared.NewDomainError("INVALID_SLA", "SLA hours per level cannot be negative")
	}

	w.Name = name
	w.MinAmount = minAmount
	w.MaxAmount = maxAmount
	w.NumberOfLevels = numberOfLevels
	w.IsSequential = isSequential
	w.Priority = priority
	w.SLAHoursPerLevel = slaHoursPerLevel
	w.IncrementVersion()

	w.AddDomainEvent(NewWorkflowUpdatedEvent(w))

	return nil
}

// Deactivate removes the workflow from selection for new requests
func (w *ApprovalWorkflow) Deactivate() error {
	if !w.IsActive {
		return shared.NewDomainError("INVALID_STATE", "Workflow is already inactive")
	}
	w.IsActive = false
	w.IncrementVersion()

	w.AddDomainEvent(NewWorkflowDeactivatedEvent(w))

	return nil
}

// Activate returns a deactivated workflow to selection
func (w *ApprovalWorkflow) Activate() error {
	if w.IsActive {
		return shared.NewDomainError("INVALID_STATE", "Workflow is already active")
	}
	w.IsActive = true
	w.IncrementVersion()
	return nil
}
