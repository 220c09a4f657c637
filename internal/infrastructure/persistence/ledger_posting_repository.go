package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mfi/backend/internal/application/ledger"
)

// LedgerPostingModel is the hand-off row the external ledger pulls from.
// EventID carries the producing event's id and is unique, so redelivered
// events insert nothing.
type LedgerPostingModel struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	EventID     uuid.UUID       `gorm:"column:event_id;type:uuid;not null;uniqueIndex:idx_ledger_postings_event"`
	PostingType string          `gorm:"column:posting_type;size:30;not null"`
	LoanID      uuid.UUID       `gorm:"column:loan_id;type:uuid;not null;index:idx_ledger_postings_loan"`
	LoanNumber  string          `gorm:"column:loan_number;size:30;not null"`
	Amount      decimal.Decimal `gorm:"column:amount;type:decimal(20,4);not null"`
	Description string          `gorm:"column:description;type:text"`
	OccurredAt  time.Time       `gorm:"column:occurred_at;not null"`
	CreatedAt   time.Time       `gorm:"column:created_at"`
}

// TableName returns the table name for GORM
func (LedgerPostingModel) TableName() string {
	return "ledger_postings"
}

// GormLedgerPoster implements the ledger collaborator port against a staging
// table the external ledger system drains
type GormLedgerPoster struct {
	db *gorm.DB
}

// NewGormLedgerPoster creates a new GormLedgerPoster
func NewGormLedgerPoster(db *gorm.DB) *GormLedgerPoster {
	return &GormLedgerPoster{db: db}
}

// Post stages one posting. Duplicate event ids are dropped on conflict, which
// makes redelivery a no-op.
func (p *GormLedgerPoster) Post(ctx context.Context, posting ledger.Posting) error {
	model := &LedgerPostingModel{
		ID:          uuid.New(),
		EventID:     posting.EventID,
		PostingType: string(posting.Type),
		LoanID:      posting.LoanID,
		LoanNumber:  posting.LoanNumber,
		Amount:      posting.Amount,
		Description: posting.Description,
		OccurredAt:  posting.OccurredAt,
		CreatedAt:   time.Now(),
	}

	err := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to stage ledger posting: %w", err)
	}
	return nil
}

// FindByLoan returns the staged postings for a loan, newest first
func (p *GormLedgerPoster) FindByLoan(ctx context.Context, loanID uuid.UUID) ([]LedgerPostingModel, error) {
	var postings []LedgerPostingModel
	err := p.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("occurred_at DESC").
		Find(&postings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find ledger postings: %w", err)
	}
	return postings, nil
}

var _ ledger.Poster = (*GormLedgerPoster)(nil)
