package lending

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RateChangeStatus represents the status of an interest rate change
type RateChangeStatus string

const (
	RateChangeStatusPending  RateChangeStatus = "PENDING"  // Awaiting approval
	RateChangeStatusApproved RateChangeStatus = "APPROVED" // Approved, waiting for the effective date
	RateChangeStatusRejected RateChangeStatus = "REJECTED" // Rejected by approval
	RateChangeStatusApplied  RateChangeStatus = "APPLIED"  // Effective rate recomputed
)

// IsValid checks if the status is a valid RateChangeStatus
func (s RateChangeStatus) IsValid() bool {
	switch s {
	case RateChangeStatusPending, RateChangeStatusApproved,
		RateChangeStatusRejected, RateChangeStatusApplied:
		return true
	}
	return false
}

// String returns the string representation of RateChangeStatus
func (s RateChangeStatus) String() string {
	return string(s)
}

// InterestRateChange records a requested change of a loan's interest rate.
// An approved change is not applied immediately: a scheduled sweep applies it
// on or after its effective date. The Applied status guards against applying
// twice.
type InterestRateChange struct {
	ID            uuid.UUID        `gorm:"type:uuid;primary_key"`
	LoanID        uuid.UUID        `gorm:"type:uuid;not null;index"`
	PreviousRate  decimal.Decimal  `gorm:"type:decimal(8,4);not null"` // Annual percentage at request time
	NewRate       decimal.Decimal  `gorm:"type:decimal(8,4);not null"`
	RequestDate   time.Time        `gorm:"not null"`
	EffectiveDate time.Time        `gorm:"not null;index"`
	Status        RateChangeStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	AppliedDate   *time.Time
	Reason        string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (InterestRateChange) TableName() string {
	return "interest_rate_changes"
}

// IsDue reports whether an approved change can be applied at the given time
func (rc *InterestRateChange) IsDue(now time.Time) bool {
	return rc.Status == RateChangeStatusApproved && !rc.EffectiveDate.After(now)
}
