package handler

import (
	"time"

	"github.com/google/uuid"

	"github.com/mfi/backend/internal/domain/identity"
)

// CreateUserRequest creates a staff account. Branch staff carry a
// branch_id; head-office accounts omit it.
// @Name HandlerCreateUserRequest
type CreateUserRequest struct {
	BranchID    string   `json:"branch_id" binding:"omitempty,uuid"`
	Username    string   `json:"username" binding:"required,min=3,max=100"`
	Password    string   `json:"password" binding:"required,min=8,max=128"`
	Email       string   `json:"email" binding:"omitempty,email,max=200"`
	Phone       string   `json:"phone" binding:"omitempty,max=50"`
	DisplayName string   `json:"display_name" binding:"omitempty,max=200"`
	Notes       string   `json:"notes" binding:"omitempty"`
	RoleIDs     []string `json:"role_ids" binding:"omitempty"`
}

// UpdateUserRequest updates profile fields. Omitted fields are unchanged.
// @Name HandlerUpdateUserRequest
type UpdateUserRequest struct {
	Email       *string `json:"email" binding:"omitempty,email,max=200"`
	Phone       *string `json:"phone" binding:"omitempty,max=50"`
	DisplayName *string `json:"display_name" binding:"omitempty,max=200"`
	Notes       *string `json:"notes" binding:"omitempty"`
}

// ResetPasswordRequest sets a new password on behalf of a user.
// @Name HandlerResetPasswordRequest
type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" binding:"required,min=8,max=128"`
}

// AssignRolesRequest replaces a user's role set.
// @Name HandlerAssignRolesRequest
type AssignRolesRequest struct {
	RoleIDs []string `json:"role_ids" binding:"required"`
}

// LockUserRequest locks an account, optionally for a limited duration.
// @Name HandlerLockUserRequest
type LockUserRequest struct {
	DurationMinutes int `json:"duration_minutes" binding:"omitempty,min=1"`
}

// UserListQuery filters and paginates the staff account list.
// @Name HandlerUserListQuery
type UserListQuery struct {
	Keyword  string `form:"keyword" binding:"omitempty"`
	Status   string `form:"status" binding:"omitempty,oneof=pending active locked deactivated"`
	RoleID   string `form:"role_id" binding:"omitempty,uuid"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	SortBy   string `form:"sort_by" binding:"omitempty,oneof=username email display_name created_at updated_at last_login_at"`
	SortDir  string `form:"sort_dir" binding:"omitempty,oneof=asc desc"`
}

// toFilter maps the bound query onto a repository filter, keeping the
// filter defaults where the query left a field empty.
func (q UserListQuery) toFilter() (identity.UserFilter, error) {
	filter := identity.NewUserFilter()
	filter.Keyword = q.Keyword
	if q.Status != "" {
		status := identity.UserStatus(q.Status)
		filter.Status = &status
	}
	if q.RoleID != "" {
		roleID, err := uuid.Parse(q.RoleID)
		if err != nil {
			return filter, err
		}
		filter.RoleID = &roleID
	}
	if q.Page > 0 {
		filter.Page = q.Page
	}
	if q.PageSize > 0 {
		filter.PageSize = q.PageSize
	}
	if q.SortBy != "" {
		filter.SortBy = q.SortBy
	}
	if q.SortDir != "" {
		filter.SortOrder = q.SortDir
	}
	return filter, nil
}

// UserResponse represents a staff account in API responses.
// @Name HandlerUserResponse
type UserResponse struct {
	ID          uuid.UUID  `json:"id"`
	BranchID    *uuid.UUID `json:"branch_id,omitempty"`
	Username    string     `json:"username"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	DisplayName string     `json:"display_name"`
	Avatar      string     `json:"avatar,omitempty"`
	Status      string     `json:"status"`
	RoleIDs     []string   `json:"role_ids"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// UserListResponse is a page of staff accounts.
// @Name HandlerUserListResponse
type UserListResponse struct {
	Users      []UserResponse `json:"users"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
}
