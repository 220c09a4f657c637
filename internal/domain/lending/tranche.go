package lending

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TrancheStatus represents the status of a disbursement tranche
type TrancheStatus string

const (
	TrancheStatusScheduled TrancheStatus = "SCHEDULED" // Planned, loan not yet approved
	TrancheStatusApproved  TrancheStatus = "APPROVED"  // Loan approved, tranche releasable
	TrancheStatusDisbursed TrancheStatus = "DISBURSED" // Funds released
)

// IsValid checks if the status is a valid TrancheStatus
func (s TrancheStatus) IsValid() bool {
	switch s {
	case TrancheStatusScheduled, TrancheStatusApproved, TrancheStatusDisbursed:
		return true
	}
	return false
}

// String returns the string representation of TrancheStatus
func (s TrancheStatus) String() string {
	return string(s)
}

// LoanDisbursementTranche is one scheduled partial disbursement of a loan's
// approved principal. Tranches disburse strictly in sequence order; a tranche
// that declares a milestone needs the milestone verified before release.
type LoanDisbursementTranche struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primary_key"`
	LoanID              uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:idx_tranche_loan_sequence,priority:1"`
	TrancheSequence     int             `gorm:"not null;uniqueIndex:idx_tranche_loan_sequence,priority:2"`
	Amount              decimal.Decimal `gorm:"type:decimal(18,4);not null"` // Gross principal released
	NetAmount           decimal.Decimal `gorm:"type:decimal(18,4);not null"` // Paid out after fees/deductions
	Status              TrancheStatus   `gorm:"type:varchar(20);not null;default:'SCHEDULED'"`
	Milestone           string          `gorm:"type:varchar(200)"` // Optional release condition
	MilestoneVerified   bool            `gorm:"not null;default:false"`
	MilestoneVerifiedBy *uuid.UUID      `gorm:"type:uuid"`
	DisbursedAt         *time.Time
	CreatedAt           time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LoanDisbursementTranche) TableName() string {
	return "loan_disbursement_tranches"
}

// IsDisbursed returns true once funds have been released
func (t *LoanDisbursementTranche) IsDisbursed() bool {
	return t.Status == TrancheStatusDisbursed
}

// RequiresMilestone returns true if a release condition is attached
func (t *LoanDisbursementTranche) RequiresMilestone() bool {
	return t.Milestone != ""
}
