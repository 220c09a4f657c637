package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mfi/backend/internal/domain/identity"
	"github.com/mfi/backend/internal/domain/shared"
)

// RoleService manages roles and their permission grants. Branch-level
// roles like LOAN_OFFICER and BRANCH_MANAGER are seeded as system roles
// and cannot be deleted through this service.
type RoleService struct {
	roleRepo identity.RoleRepository
	logger   *zap.Logger
}

func NewRoleService(roleRepo identity.RoleRepository, logger *zap.Logger) *RoleService {
	return &RoleService{
		roleRepo: roleRepo,
		logger:   logger,
	}
}

// CreateRoleInput contains input for creating a role.
type CreateRoleInput struct {
	Code        string
	Name        string
	Description string
	Permissions []string // permission codes, e.g. "loan:create"
	SortOrder   int
}

// UpdateRoleInput contains input for updating a role. Nil fields are
// left unchanged.
type UpdateRoleInput struct {
	ID          uuid.UUID
	Name        *string
	Description *string
	SortOrder   *int
}

// RoleDTO represents role data returned to the API layer.
type RoleDTO struct {
	ID           uuid.UUID `json:"id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	IsSystemRole bool      `json:"is_system_role"`
	IsEnabled    bool      `json:"is_enabled"`
	SortOrder    int       `json:"sort_order"`
	Permissions  []string  `json:"permissions"`
	UserCount    int64     `json:"user_count,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RoleListResult represents a paginated role list.
type RoleListResult struct {
	Roles      []RoleDTO `json:"roles"`
	Total      int64     `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalPages int       `json:"total_pages"`
}

// findRole loads a role and maps repository errors to domain errors.
func (s *RoleService) findRole(ctx context.Context, id uuid.UUID) (*identity.Role, error) {
	role, err := s.roleRepo.FindByID(ctx, id)
	if err == shared.ErrNotFound {
		return nil, shared.NewDomainError("ROLE_NOT_FOUND", "Role not found")
	}
	if err != nil {
		s.logger.Error("Failed to find role", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to find role")
	}
	return role, nil
}

// attachPermissions loads a role's permission grants. Failure is logged
// but does not abort the caller.
func (s *RoleService) attachPermissions(ctx context.Context, role *identity.Role) {
	if err := s.roleRepo.LoadPermissions(ctx, role); err != nil {
		s.logger.Error("Failed to load role permissions",
			zap.String("role_id", role.ID.String()),
			zap.Error(err))
	}
}

// dtoWithUsage builds a DTO and annotates it with the number of staff
// accounts currently holding the role.
func (s *RoleService) dtoWithUsage(ctx context.Context, role *identity.Role) *RoleDTO {
	dto := toRoleDTO(role)
	if count, err := s.roleRepo.CountUsersWithRole(ctx, role.ID); err == nil {
		dto.UserCount = count
	}
	return dto
}

// Create creates a new role with an optional initial permission set.
func (s *RoleService) Create(ctx context.Context, input CreateRoleInput) (*RoleDTO, error) {
	s.logger.Info("Creating new role", zap.String("code", input.Code))

	exists, err := s.roleRepo.ExistsByCode(ctx, input.Code)
	if err != nil {
		s.logger.Error("Failed to check role code existence", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to check role code availability")
	}
	if exists {
		return nil, shared.NewDomainError("ROLE_CODE_EXISTS", "Role code already exists")
	}

	role, err := identity.NewRole(input.Code, input.Name)
	if err != nil {
		return nil, err
	}
	if input.Description != "" {
		role.SetDescription(input.Description)
	}
	if input.SortOrder != 0 {
		role.SetSortOrder(input.SortOrder)
	}

	for _, code := range input.Permissions {
		err := role.GrantPermissionByCode(code)
		if derr, ok := err.(*shared.DomainError); ok && derr.Code == "PERMISSION_ALREADY_GRANTED" {
			continue
		}
		if err != nil {
			return nil, err
		}
	}

	if err := s.roleRepo.Create(ctx, role); err != nil {
		s.logger.Error("Failed to create role", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to create role")
	}

	if len(role.Permissions) > 0 {
		if err := s.roleRepo.SavePermissions(ctx, role); err != nil {
			s.logger.Error("Failed to save role permissions", zap.Error(err))
			// Roll the role back rather than leave it without its grants.
			_ = s.roleRepo.Delete(ctx, role.ID)
			return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to save role permissions")
		}
	}

	s.logger.Info("Role created",
		zap.String("role_id", role.ID.String()),
		zap.String("code", role.Code))

	return toRoleDTO(role), nil
}

// GetByID retrieves a role by ID, including its permissions and usage count.
func (s *RoleService) GetByID(ctx context.Context, id uuid.UUID) (*RoleDTO, error) {
	role, err := s.findRole(ctx, id)
	if err != nil {
		return nil, err
	}
	s.attachPermissions(ctx, role)
	return s.dtoWithUsage(ctx, role), nil
}

// GetByCode retrieves a role by its unique code.
func (s *RoleService) GetByCode(ctx context.Context, code string) (*RoleDTO, error) {
	role, err := s.roleRepo.FindByCode(ctx, code)
	if err == shared.ErrNotFound {
		return nil, shared.NewDomainError("ROLE_NOT_FOUND", "Role not found")
	}
	if err != nil {
		s.logger.Error("Failed to find role", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to find role")
	}
	s.attachPermissions(ctx, role)
	return s.dtoWithUsage(ctx, role), nil
}

// List retrieves a paginated list of roles.
func (s *RoleService) List(ctx context.Context, filter *identity.RoleFilter) (*RoleListResult, error) {
	roles, err := s.roleRepo.FindAll(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list roles", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to list roles")
	}

	total, err := s.roleRepo.Count(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to count roles", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to count roles")
	}

	page, pageSize := 1, 20
	if filter != nil {
		if filter.Limit > 0 {
			pageSize = filter.Limit
		}
		if filter.Page > 0 {
			page = filter.Page
		}
	}
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	dtos := make([]RoleDTO, len(roles))
	for i, role := range roles {
		s.attachPermissions(ctx, role)
		dtos[i] = *s.dtoWithUsage(ctx, role)
	}

	return &RoleListResult{
		Roles:      dtos,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// Update updates a role's display fields. The code is immutable.
func (s *RoleService) Update(ctx context.Context, input UpdateRoleInput) (*RoleDTO, error) {
	role, err := s.findRole(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if err := role.SetName(*input.Name); err != nil {
			return nil, err
		}
	}
	if input.Description != nil {
		role.SetDescription(*input.Description)
	}
	if input.SortOrder != nil {
		role.SetSortOrder(*input.SortOrder)
	}

	if err := s.roleRepo.Update(ctx, role); err != nil {
		s.logger.Error("Failed to update role", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to update role")
	}
	s.attachPermissions(ctx, role)

	s.logger.Info("Role updated", zap.String("role_id", input.ID.String()))
	return toRoleDTO(role), nil
}

// Delete deletes a role. System roles and roles still assigned to staff
// accounts are refused.
func (s *RoleService) Delete(ctx context.Context, id uuid.UUID) error {
	role, err := s.findRole(ctx, id)
	if err != nil {
		return err
	}
	if !role.CanDelete() {
		return shared.NewDomainError("CANNOT_DELETE_SYSTEM_ROLE", "System roles cannot be deleted")
	}

	userCount, err := s.roleRepo.CountUsersWithRole(ctx, id)
	if err != nil {
		s.logger.Error("Failed to count users with role", zap.Error(err))
		return shared.NewDomainError("INTERNAL_ERROR", "Failed to check role usage")
	}
	if userCount > 0 {
		return shared.NewDomainError("ROLE_IN_USE", "Cannot delete role that is assigned to users")
	}

	if err := s.roleRepo.Delete(ctx, id); err != nil {
		s.logger.Error("Failed to delete role", zap.Error(err))
		return shared.NewDomainError("INTERNAL_ERROR", "Failed to delete role")
	}

	s.logger.Info("Role deleted", zap.String("role_id", id.String()))
	return nil
}

// Enable enables a role so it can be assigned again.
func (s *RoleService) Enable(ctx context.Context, id uuid.UUID) (*RoleDTO, error) {
	return s.toggle(ctx, id, "enabled", (*identity.Role).Enable)
}

// Disable disables a role. Existing assignments are kept but the role
// no longer grants its permissions at login.
func (s *RoleService) Disable(ctx context.Context, id uuid.UUID) (*RoleDTO, error) {
	return s.toggle(ctx, id, "disabled", (*identity.Role).Disable)
}

func (s *RoleService) toggle(ctx context.Context, id uuid.UUID, action string, apply func(*identity.Role) error) (*RoleDTO, error) {
	role, err := s.findRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(role); err != nil {
		return nil, err
	}
	if err := s.roleRepo.Update(ctx, role); err != nil {
		s.logger.Error("Failed to update role state", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to update role")
	}
	s.attachPermissions(ctx, role)

	s.logger.Info("Role "+action, zap.String("role_id", id.String()))
	return toRoleDTO(role), nil
}

// SetPermissions replaces a role's entire permission set.
func (s *RoleService) SetPermissions(ctx context.Context, roleID uuid.UUID, permissionCodes []string) (*RoleDTO, error) {
	role, err := s.findRole(ctx, roleID)
	if err != nil {
		return nil, err
	}

	permissions := make([]identity.Permission, 0, len(permissionCodes))
	for _, code := range permissionCodes {
		perm, err := identity.NewPermissionFromCode(code)
		if err != nil {
			return nil, err
		}
		permissions = append(permissions, *perm)
	}
	if err := role.SetPermissions(permissions); err != nil {
		return nil, err
	}

	if err := s.roleRepo.SavePermissions(ctx, role); err != nil {
		s.logger.Error("Failed to save role permissions", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to save permissions")
	}
	// Bump the role version so concurrent editors detect the change.
	if err := s.roleRepo.Update(ctx, role); err != nil {
		s.logger.Error("Failed to update role", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to update role")
	}

	s.logger.Info("Role permissions updated",
		zap.String("role_id", roleID.String()),
		zap.Int("permission_count", len(permissions)))

	return toRoleDTO(role), nil
}

// DataScopeInput describes one row-visibility rule for a resource.
type DataScopeInput struct {
	Resource    string
	ScopeType   string
	ScopeField  string
	ScopeValues []string
}

// SetDataScopes replaces a role's row-visibility rules. Branch scopes
// limit what branch staff see; "all" scopes are for head office.
func (s *RoleService) SetDataScopes(ctx context.Context, roleID uuid.UUID, inputs []DataScopeInput) (*RoleDTO, error) {
	role, err := s.findRole(ctx, roleID)
	if err != nil {
		return nil, err
	}

	scopes := make([]identity.DataScope, 0, len(inputs))
	for _, in := range inputs {
		scope, err := buildDataScope(in)
		if err != nil {
			return nil, err
		}
		scopes = append(scopes, *scope)
	}
	if err := role.SetDataScopes(scopes); err != nil {
		return nil, err
	}

	if err := s.roleRepo.SaveDataScopes(ctx, role); err != nil {
		s.logger.Error("Failed to save role data scopes", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to save data scopes")
	}
	// Bump the role version so concurrent editors detect the change.
	if err := s.roleRepo.Update(ctx, role); err != nil {
		s.logger.Error("Failed to update role", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to update role")
	}

	s.logger.Info("Role data scopes updated",
		zap.String("role_id", roleID.String()),
		zap.Int("scope_count", len(scopes)))

	return toRoleDTO(role), nil
}

func buildDataScope(in DataScopeInput) (*identity.DataScope, error) {
	switch identity.DataScopeType(in.ScopeType) {
	case identity.DataScopeBranch:
		return identity.NewBranchDataScope(in.Resource, in.ScopeValues)
	case identity.DataScopeCustom:
		if in.ScopeField != "" {
			return identity.NewCustomDataScopeWithField(in.Resource, in.ScopeField, in.ScopeValues)
		}
		return identity.NewCustomDataScope(in.Resource, in.ScopeValues)
	default:
		return identity.NewDataScope(in.Resource, identity.DataScopeType(in.ScopeType))
	}
}

// GetAllPermissionCodes returns every permission code the system knows.
func (s *RoleService) GetAllPermissionCodes(ctx context.Context) ([]string, error) {
	return s.roleRepo.GetAllPermissionCodes(ctx)
}

// GetSystemRoles returns the seeded system roles.
func (s *RoleService) GetSystemRoles(ctx context.Context) ([]RoleDTO, error) {
	roles, err := s.roleRepo.FindSystemRoles(ctx)
	if err != nil {
		s.logger.Error("Failed to find system roles", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to find system roles")
	}

	dtos := make([]RoleDTO, len(roles))
	for i, role := range roles {
		s.attachPermissions(ctx, role)
		dtos[i] = *toRoleDTO(role)
	}
	return dtos, nil
}

// Count returns the total number of roles.
func (s *RoleService) Count(ctx context.Context) (int64, error) {
	return s.roleRepo.Count(ctx, nil)
}

func toRoleDTO(role *identity.Role) *RoleDTO {
	permissions := make([]string, len(role.Permissions))
	for i, perm := range role.Permissions {
		permissions[i] = perm.Code
	}
	return &RoleDTO{
		ID:           role.ID,
		Code:         role.Code,
		Name:         role.Name,
		Description:  role.Description,
		IsSystemRole: role.IsSystemRole,
		IsEnabled:    role.IsEnabled,
		SortOrder:    role.SortOrder,
		Permissions:  permissions,
		CreatedAt:    role.CreatedAt,
		UpdatedAt:    role.UpdatedAt,
	}
}
