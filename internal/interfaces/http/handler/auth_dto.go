package handler

import (
	"time"

	"github.com/google/uuid"
)

// LoginRequest carries the credentials for a login attempt.
type LoginRequest struct {
	Username string `json:"username" binding:"required,min=3,max=100"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

// RefreshTokenRequest is the body fallback for non-browser clients.
// Browser clients send the refresh token via the httpOnly cookie instead.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"omitempty"`
}

// ChangePasswordRequest carries the old and new password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8,max=128"`
}

// TokenResponse describes the issued access token. The refresh token
// is delivered only through the httpOnly cookie and stays empty here.
type TokenResponse struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token,omitempty"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
	TokenType             string    `json:"token_type"`
}

// AuthUserResponse is the authenticated user's profile in auth responses.
type AuthUserResponse struct {
	ID          uuid.UUID  `json:"id"`
	BranchID    *uuid.UUID `json:"branch_id,omitempty"`
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Avatar      string     `json:"avatar,omitempty"`
	Permissions []string   `json:"permissions"`
	RoleIDs     []string   `json:"role_ids"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	Token TokenResponse    `json:"token"`
	User  AuthUserResponse `json:"user"`
}

// RefreshTokenResponse is returned on successful token rotation.
type RefreshTokenResponse struct {
	Token TokenResponse `json:"token"`
}

// CurrentUserResponse is returned by the current-user endpoint.
type CurrentUserResponse struct {
	User        AuthUserResponse `json:"user"`
	Permissions []string         `json:"permissions"`
}

// LogoutResponse confirms session termination.
type LogoutResponse struct {
	Message string `json:"message"`
}
