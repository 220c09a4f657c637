package lending

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LoanFilter represents filter options for loan queries
type LoanFilter struct {
	BorrowerID *uuid.UUID
	BranchID   *uuid.UUID
	Status     *LoanStatus
	Search     string
	Page       int
	PageSize   int
}

// LoanRepository defines the persistence interface for loans
type LoanRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Loan, error)
	FindByLoanNumber(ctx context.Context, loanNumber string) (*Loan, error)
	// FindByRateChangeID resolves the loan owning a rate change record; the
	// approval completion callback only carries the rate change ID.
	FindByRateChangeID(ctx context.Context, rateChangeID uuid.UUID) (*Loan, error)
	// FindByTrancheID resolves the loan owning a disbursement tranche
	FindByTrancheID(ctx context.Context, trancheID uuid.UUID) (*Loan, error)
	// FindIDsWithDueRateChanges returns loans holding an approved rate change
	// whose effective date has been reached. Used by the periodic sweep.
	FindIDsWithDueRateChanges(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	FindAll(ctx context.Context, filter LoanFilter) ([]Loan, error)
	Count(ctx context.Context, filter LoanFilter) (int64, error)
	Save(ctx context.Context, loan *Loan) error
	// SaveWithLock persists the loan under an optimistic version check and
	// appends its pending domain events to the outbox in the same transaction.
	SaveWithLock(ctx context.Context, loan *Loan) error
	GenerateLoanNumber(ctx context.Context) (string, error)
}
