package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mfi/backend/internal/domain/identity"
	"github.com/mfi/backend/internal/domain/shared"
)

// GormRoleRepository stores roles in the roles table with permission
// grants and data scope rules in child tables.
type GormRoleRepository struct {
	db *gorm.DB
}

func NewGormRoleRepository(db *gorm.DB) *GormRoleRepository {
	return &GormRoleRepository{db: db}
}

var _ identity.RoleRepository = (*GormRoleRepository)(nil)

func (r *GormRoleRepository) Create(ctx context.Context, role *identity.Role) error {
	return r.db.WithContext(ctx).Create(role).Error
}

func (r *GormRoleRepository) Update(ctx context.Context, role *identity.Role) error {
	result := r.db.WithContext(ctx).Save(role)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes the role with its grants and scope rules.
func (r *GormRoleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", id).Delete(&identity.RolePermission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("role_id = ?", id).Delete(&identity.RoleDataScope{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&identity.Role{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

func (r *GormRoleRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.Role, error) {
	return r.oneRole(ctx, "id = ?", id)
}

// FindByCode matches case-insensitively; role codes are stored
// uppercase.
func (r *GormRoleRepository) FindByCode(ctx context.Context, code string) (*identity.Role, error) {
	return r.oneRole(ctx, "UPPER(code) = ?", strings.ToUpper(code))
}

func (r *GormRoleRepository) oneRole(ctx context.Context, cond string, args ...any) (*identity.Role, error) {
	var role identity.Role
	if err := r.db.WithContext(ctx).Where(cond, args...).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

func (r *GormRoleRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*identity.Role, error) {
	if len(ids) == 0 {
		return []*identity.Role{}, nil
	}
	var roles []*identity.Role
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&roles).Error
	return roles, err
}

func (r *GormRoleRepository) FindAll(ctx context.Context, filter *identity.RoleFilter) ([]*identity.Role, error) {
	query := roleFilterQuery(r.db.WithContext(ctx).Model(&identity.Role{}), filter).
		Order("sort_order ASC, name ASC")

	if filter != nil && filter.Limit > 0 {
		query = query.Limit(filter.Limit)
		if filter.Page > 0 {
			query = query.Offset((filter.Page - 1) * filter.Limit)
		}
	}

	var roles []*identity.Role
	err := query.Find(&roles).Error
	return roles, err
}

func (r *GormRoleRepository) FindSystemRoles(ctx context.Context) ([]*identity.Role, error) {
	var roles []*identity.Role
	err := r.db.WithContext(ctx).
		Where("is_system_role = ?", true).
		Order("sort_order ASC, name ASC").
		Find(&roles).Error
	return roles, err
}

func (r *GormRoleRepository) Count(ctx context.Context, filter *identity.RoleFilter) (int64, error) {
	var count int64
	err := roleFilterQuery(r.db.WithContext(ctx).Model(&identity.Role{}), filter).
		Count(&count).Error
	return count, err
}

func (r *GormRoleRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&identity.Role{}).
		Where("UPPER(code) = ?", strings.ToUpper(code)).
		Count(&count).Error
	return count > 0, err
}

func (r *GormRoleRepository) ExistsByID(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&identity.Role{}).
		Where("id = ?", id).
		Count(&count).Error
	return count > 0, err
}

// SavePermissions replaces the stored grants with the set on the
// aggregate, atomically.
func (r *GormRoleRepository) SavePermissions(ctx context.Context, role *identity.Role) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", role.ID).Delete(&identity.RolePermission{}).Error; err != nil {
			return err
		}
		if len(role.Permissions) == 0 {
			return nil
		}

		grants := make([]identity.RolePermission, len(role.Permissions))
		for i, perm := range role.Permissions {
			grants[i] = identity.RolePermission{
				RoleID:      role.ID,
				Code:        perm.Code,
				Resource:    perm.Resource,
				Action:      perm.Action,
				Description: perm.Description,
				CreatedAt:   time.Now(),
			}
		}
		return tx.Create(&grants).Error
	})
}

func (r *GormRoleRepository) LoadPermissions(ctx context.Context, role *identity.Role) error {
	var grants []identity.RolePermission
	if err := r.db.WithContext(ctx).
		Where("role_id = ?", role.ID).
		Find(&grants).Error; err != nil {
		return err
	}

	role.Permissions = make([]identity.Permission, len(grants))
	for i, g := range grants {
		role.Permissions[i] = identity.Permission{
			Code:        g.Code,
			Resource:    g.Resource,
			Action:      g.Action,
			Description: g.Description,
		}
	}
	return nil
}

// SaveDataScopes replaces the stored scope rules with the set on the
// aggregate. Scope values are persisted as a JSON array.
func (r *GormRoleRepository) SaveDataScopes(ctx context.Context, role *identity.Role) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", role.ID).Delete(&identity.RoleDataScope{}).Error; err != nil {
			return err
		}
		if len(role.DataScopes) == 0 {
			return nil
		}

		rules := make([]identity.RoleDataScope, len(role.DataScopes))
		for i, scope := range role.DataScopes {
			values := ""
			if len(scope.ScopeValues) > 0 {
				encoded, err := json.Marshal(scope.ScopeValues)
				if err != nil {
					return err
				}
				values = string(encoded)
			}
			rules[i] = identity.RoleDataScope{
				RoleID:      role.ID,
				Resource:    scope.Resource,
				ScopeType:   scope.ScopeType,
				ScopeField:  scope.ScopeField,
				ScopeValues: values,
				Description: scope.Description,
				CreatedAt:   time.Now(),
			}
		}
		return tx.Create(&rules).Error
	})
}

func (r *GormRoleRepository) LoadDataScopes(ctx context.Context, role *identity.Role) error {
	var rules []identity.RoleDataScope
	if err := r.db.WithContext(ctx).
		Where("role_id = ?", role.ID).
		Find(&rules).Error; err != nil {
		return err
	}

	role.DataScopes = make([]identity.DataScope, len(rules))
	for i, rule := range rules {
		var values []string
		if rule.ScopeValues != "" {
			if err := json.Unmarshal([]byte(rule.ScopeValues), &values); err != nil {
				return err
			}
		}
		role.DataScopes[i] = identity.DataScope{
			Resource:    rule.Resource,
			ScopeType:   rule.ScopeType,
			ScopeField:  rule.ScopeField,
			ScopeValues: values,
			Description: rule.Description,
		}
	}
	return nil
}

func (r *GormRoleRepository) LoadPermissionsAndDataScopes(ctx context.Context, role *identity.Role) error {
	if err := r.LoadPermissions(ctx, role); err != nil {
		return err
	}
	return r.LoadDataScopes(ctx, role)
}

func (r *GormRoleRepository) CountUsersWithRole(ctx context.Context, roleID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&identity.UserRole{}).
		Where("role_id = ?", roleID).
		Count(&count).Error
	return count, err
}

func (r *GormRoleRepository) GetAllPermissionCodes(ctx context.Context) ([]string, error) {
	var codes []string
	err := r.db.WithContext(ctx).
		Model(&identity.RolePermission{}).
		Distinct("code").
		Pluck("code", &codes).Error
	return codes, err
}

// roleFilterQuery translates the filter into WHERE clauses.
func roleFilterQuery(query *gorm.DB, filter *identity.RoleFilter) *gorm.DB {
	if filter == nil {
		return query
	}
	if filter.Keyword != "" {
		pattern := "%" + filter.Keyword + "%"
		query = query.Where("code ILIKE ? OR name ILIKE ?", pattern, pattern)
	}
	if filter.IsEnabled != nil {
		query = query.Where("is_enabled = ?", *filter.IsEnabled)
	}
	if filter.IsSystemRole != nil {
		query = query.Where("is_system_role = ?", *filter.IsSystemRole)
	}
	return query
}
