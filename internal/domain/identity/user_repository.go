package identity

import (
	"context"

	"github.com/google/uuid"
)

// UserRepository persists staff accounts and their role assignments.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id uuid.UUID) error

	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindAll(ctx context.Context, filter UserFilter) ([]*User, int64, error)

	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// SaveUserRoles replaces the account's role assignments with the
	// set currently on the aggregate.
	SaveUserRoles(ctx context.Context, user *User) error
	LoadUserRoles(ctx context.Context, user *User) error

	Count(ctx context.Context) (int64, error)
}

// UserFilter narrows and paginates staff account queries.
type UserFilter struct {
	Keyword  string // matches username, email, display name or phone
	Status   *UserStatus
	RoleID   *uuid.UUID
	BranchID *uuid.UUID

	Page     int
	PageSize int

	SortBy    string
	SortOrder string // "asc" or "desc"
}

// NewUserFilter returns a filter with default pagination.
func NewUserFilter() UserFilter {
	return UserFilter{
		Page:      1,
		PageSize:  20,
		SortBy:    "created_at",
		SortOrder: "desc",
	}
}

// Offset returns the row offset for the current page.
func (f UserFilter) Offset() int {
	page := f.Page
	if page < 1 {
		page = 1
	}
	return (page - 1) * f.Limit()
}

// Limit returns the page size, clamped to a sane range.
func (f UserFilter) Limit() int {
	switch {
	case f.PageSize < 1:
		return 20
	case f.PageSize > 100:
		return 100
	default:
		return f.PageSize
	}
}
