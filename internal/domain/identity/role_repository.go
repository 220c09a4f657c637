package identity

import (
	"context"

	"github.com/google/uuid"
)

// RoleFilter narrows role queries.
type RoleFilter struct {
	Keyword      string // matches code and name
	IsEnabled    *bool
	IsSystemRole *bool

	Page  int
	Limit int
}

// RoleRepository persists roles together with their permission grants
// and data scope rules. Grants and scopes live in child tables and are
// loaded on demand.
type RoleRepository interface {
	Create(ctx context.Context, role *Role) error
	Update(ctx context.Context, role *Role) error
	Delete(ctx context.Context, id uuid.UUID) error

	FindByID(ctx context.Context, id uuid.UUID) (*Role, error)
	FindByCode(ctx context.Context, code string) (*Role, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*Role, error)
	FindAll(ctx context.Context, filter *RoleFilter) ([]*Role, error)
	FindSystemRoles(ctx context.Context) ([]*Role, error)

	Count(ctx context.Context, filter *RoleFilter) (int64, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	ExistsByID(ctx context.Context, id uuid.UUID) (bool, error)

	// SavePermissions and SaveDataScopes replace the stored child rows
	// with the set currently on the aggregate.
	SavePermissions(ctx context.Context, role *Role) error
	LoadPermissions(ctx context.Context, role *Role) error
	SaveDataScopes(ctx context.Context, role *Role) error
	LoadDataScopes(ctx context.Context, role *Role) error
	LoadPermissionsAndDataScopes(ctx context.Context, role *Role) error

	// CountUsersWithRole reports how many accounts hold the role. A
	// role with holders cannot be deleted.
	CountUsersWithRole(ctx context.Context, roleID uuid.UUID) (int64, error)

	GetAllPermissionCodes(ctx context.Context) ([]string, error)
}
