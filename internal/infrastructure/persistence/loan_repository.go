package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mfi/backend/internal/domain/lending"
	"github.com/mfi/backend/internal/domain/shared"
	"github.com/mfi/backend/internal/infrastructure/persistence/datascope"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormLoanRepository implements LoanRepository using GORM
type GormLoanRepository struct {
	db          *gorm.DB
	outboxSaver shared.OutboxEventSaver // optional, for transactional outbox pattern
}

// NewGormLoanRepository creates a new GormLoanRepository
func NewGormLoanRepository(db *gorm.DB) *GormLoanRepository {
	return &GormLoanRepository{db: db}
}

// SetOutboxEventSaver sets the outbox event saver for transactional event publishing
func (r *GormLoanRepository) SetOutboxEventSaver(saver shared.OutboxEventSaver) {
	r.outboxSaver = saver
}

// FindByID finds a loan by ID
func (r *GormLoanRepository) FindByID(ctx context.Context, id uuid.UUID) (*lending.Loan, error) {
	var loan lending.Loan
	if err := r.db.WithContext(ctx).
		Preload("Tranches").
		Preload("RateChanges").
		First(&loan, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &loan, nil
}

// FindByLoanNumber finds a loan by loan number
func (r *GormLoanRepository) FindByLoanNumber(ctx context.Context, loanNumber string) (*lending.Loan, error) {
	var loan lending.Loan
	if err := r.db.WithContext(ctx).
		Preload("Tranches").
		Preload("RateChanges").
		First(&loan, "loan_number = ?", loanNumber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &loan, nil
}

// FindByRateChangeID resolves the loan owning a rate change record
func (r *GormLoanRepository) FindByRateChangeID(ctx context.Context, rateChangeID uuid.UUID) (*lending.Loan, error) {
	var rc lending.InterestRateChange
	if err := r.db.WithContext(ctx).
		Select("loan_id").
		First(&rc, "id = ?", rateChangeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.FindByID(ctx, rc.LoanID)
}

// FindByTrancheID resolves the loan owning a disbursement tranche
func (r *GormLoanRepository) FindByTrancheID(ctx context.Context, trancheID uuid.UUID) (*lending.Loan, error) {
	var tranche lending.LoanDisbursementTranche
	if err := r.db.WithContext(ctx).
		Select("loan_id").
		First(&tranche, "id = ?", trancheID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.FindByID(ctx, tranche.LoanID)
}

// FindIDsWithDueRateChanges returns the IDs of loans holding an approved rate
// change whose effective date has been reached
func (r *GormLoanRepository) FindIDsWithDueRateChanges(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&lending.InterestRateChange{}).
		Where("status = ? AND effective_date <= ?", lending.RateChangeStatusApproved, now).
		Distinct("loan_id").
		Pluck("loan_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// FindAll finds loans with filtering. The caller's data scopes narrow the
// result, e.g. branch staff only see loans of their own branches.
func (r *GormLoanRepository) FindAll(ctx context.Context, filter lending.LoanFilter) ([]lending.Loan, error) {
	var loans []lending.Loan
	query := r.applyLoanFilter(r.db.WithContext(ctx), filter)
	query = datascope.NewFilterFromContext(ctx).Apply(query, "loan")

	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize)
		if filter.Page > 0 {
			query = query.Offset((filter.Page - 1) * filter.PageSize)
		}
	}

	if err := query.
		Preload("Tranches").
		Preload("RateChanges").
		Order("created_at DESC").
		Find(&loans).Error; err != nil {
		return nil, err
	}
	return loans, nil
}

// Count counts loans matching the filter, under the same data scoping as FindAll
func (r *GormLoanRepository) Count(ctx context.Context, filter lending.LoanFilter) (int64, error) {
	var count int64
	query := r.applyLoanFilter(r.db.WithContext(ctx).Model(&lending.Loan{}), filter)
	query = datascope.NewFilterFromContext(ctx).Apply(query, "loan")
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates a loan, its tranches and rate changes, and its
// pending domain events atomically. A loan number collision from a concurrent
// writer surfaces as shared.ErrDuplicateNumber.
func (r *GormLoanRepository) Save(ctx context.Context, loan *lending.Loan) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Tranches", "RateChanges").Save(loan).Error; err != nil {
			return err
		}
		if err := r.saveChildren(tx, loan); err != nil {
			return err
		}
		return r.saveEvents(ctx, tx, loan.GetDomainEvents())
	})
	if err != nil {
		if isUniqueViolation(err, "idx_loans_loan_number") {
			return shared.ErrDuplicateNumber
		}
		return err
	}
	loan.ClearDomainEvents()
	return nil
}

// SaveWithLock saves with optimistic locking (version check). The domain layer
// has already incremented the version, so the row must still carry version-1.
// Tranches, rate changes and outbox events are written in the same transaction.
func (r *GormLoanRepository) SaveWithLock(ctx context.Context, loan *lending.Loan) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&lending.Loan{}).
			Where("id = ? AND version = ?", loan.ID, loan.Version-1).
			Updates(map[string]interface{}{
				"interest_rate":         loan.InterestRate,
				"outstanding_principal": loan.OutstandingPrincipal,
				"outstanding_interest":  loan.OutstandingInterest,
				"status":                loan.Status,
				"write_off_reason":      loan.WriteOffReason,
				"written_off_at":        loan.WrittenOffAt,
				"approved_at":           loan.ApprovedAt,
				"approved_by_id":        loan.ApprovedByID,
				"rejection_reason":      loan.RejectionReason,
				"closed_at":             loan.ClosedAt,
				"version":               loan.Version,
				"updated_at":            loan.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}
		if err := r.saveChildren(tx, loan); err != nil {
			return err
		}
		return r.saveEvents(ctx, tx, loan.GetDomainEvents())
	})
	if err != nil {
		return err
	}
	loan.ClearDomainEvents()
	return nil
}

// GenerateLoanNumber generates a unique loan number
// Format: LN-YYYY-NNNN (e.g., LN-2026-0001)
func (r *GormLoanRepository) GenerateLoanNumber(ctx context.Context) (string, error) {
	prefix := fmt.Sprintf("LN-%d-", time.Now().Year())

	var maxNumber string
	if err := r.db.WithContext(ctx).
		Model(&lending.Loan{}).
		Select("loan_number").
		Where("loan_number LIKE ?", prefix+"%").
		Order("loan_number DESC").
		Limit(1).
		Scan(&maxNumber).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	nextSeq := 1
	if len(maxNumber) >= 4 {
		var seq int
		if _, err := fmt.Sscanf(maxNumber[len(maxNumber)-4:], "%04d", &seq); err == nil {
			nextSeq = seq + 1
		}
	}

	return fmt.Sprintf("%s%04d", prefix, nextSeq), nil
}

// saveChildren upserts the tranche and rate change rows. Both collections are
// append-only, so removed rows never need cleaning up.
func (r *GormLoanRepository) saveChildren(tx *gorm.DB, loan *lending.Loan) error {
	for i := range loan.Tranches {
		loan.Tranches[i].LoanID = loan.ID
		if err := tx.Save(&loan.Tranches[i]).Error; err != nil {
			return err
		}
	}
	for i := range loan.RateChanges {
		loan.RateChanges[i].LoanID = loan.ID
		if err := tx.Save(&loan.RateChanges[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

// saveEvents saves domain events to the outbox within the current transaction
func (r *GormLoanRepository) saveEvents(ctx context.Context, tx *gorm.DB, events []shared.DomainEvent) error {
	if r.outboxSaver == nil || len(events) == 0 {
		return nil
	}
	if err := r.outboxSaver.SaveEvents(ctx, tx, events...); err != nil {
		return fmt.Errorf("failed to save events to outbox: %w", err)
	}
	return nil
}

// applyLoanFilter applies filter options to the query
func (r *GormLoanRepository) applyLoanFilter(query *gorm.DB, filter lending.LoanFilter) *gorm.DB {
	if filter.BorrowerID != nil {
		query = query.Where("borrower_id = ?", *filter.BorrowerID)
	}
	if filter.BranchID != nil {
		query = query.Where("branch_id = ?", *filter.BranchID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("loan_number ILIKE ? OR borrower_name ILIKE ?", pattern, pattern)
	}
	return query
}

// Ensure GormLoanRepository implements the interface
var _ lending.LoanRepository = (*GormLoanRepository)(nil)
