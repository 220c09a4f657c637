package handler

import (
	"time"

	"github.com/google/uuid"
)

// CreateRoleRequest creates a role with an optional initial permission set.
// @Name HandlerCreateRoleRequest
type CreateRoleRequest struct {
	Code        string   `json:"code" binding:"required,min=2,max=50"`
	Name        string   `json:"name" binding:"required,min=1,max=100"`
	Description string   `json:"description" binding:"omitempty"`
	Permissions []string `json:"permissions" binding:"omitempty"`
	SortOrder   int      `json:"sort_order" binding:"omitempty"`
}

// UpdateRoleRequest updates a role's display fields. The code is immutable.
// @Name HandlerUpdateRoleRequest
type UpdateRoleRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string `json:"description" binding:"omitempty"`
	SortOrder   *int    `json:"sort_order" binding:"omitempty"`
}

// SetPermissionsRequest replaces a role's entire permission set with
// the given "resource:action" codes.
// @Name HandlerSetPermissionsRequest
type SetPermissionsRequest struct {
	Permissions []string `json:"permissions" binding:"required"`
}

// DataScopeRule is one row-visibility rule in a SetDataScopesRequest.
// Branch rules list branch IDs in scope_values.
type DataScopeRule struct {
	Resource    string   `json:"resource" binding:"required"`
	ScopeType   string   `json:"scope_type" binding:"required,oneof=all self branch custom"`
	ScopeField  string   `json:"scope_field" binding:"omitempty"`
	ScopeValues []string `json:"scope_values" binding:"omitempty"`
}

// SetDataScopesRequest replaces a role's row-visibility rules.
// @Name HandlerSetDataScopesRequest
type SetDataScopesRequest struct {
	Scopes []DataScopeRule `json:"scopes" binding:"required,dive"`
}

// RoleListQuery filters and paginates the role list.
// @Name HandlerRoleListQuery
type RoleListQuery struct {
	Keyword      string `form:"keyword" binding:"omitempty"`
	IsEnabled    *bool  `form:"is_enabled" binding:"omitempty"`
	IsSystemRole *bool  `form:"is_system_role" binding:"omitempty"`
	Page         int    `form:"page" binding:"omitempty,min=1"`
	PageSize     int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// RoleResponse represents a role in API responses.
// @Name HandlerRoleResponse
type RoleResponse struct {
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

// RoleListResponse is a page of roles.
// @Name HandlerRoleListResponse
type RoleListResponse struct {
	Roles      []RoleResponse `json:"roles"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
}

// PermissionListResponse lists the permission codes the system knows.
// @Name HandlerPermissionListResponse
type PermissionListResponse struct {
	Permissions []string `json:"permissions"`
}
