package identity

import (
	"time"

	"github.com/google/uuid"
)

// LoginInput carries credentials plus the client IP for login tracking.
type LoginInput struct {
	Username string
	Password string
	IP       string
}

// TokenPair is an issued access/refresh token pair.
type TokenPair struct {
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
	TokenType             string
}

// AuthUser is the authenticated user's profile with effective
// permissions flattened from all enabled roles.
type AuthUser struct {
	ID          uuid.UUID
	BranchID    *uuid.UUID
	Username    string
	DisplayName string
	Email       string
	Phone       string
	Avatar      string
	Permissions []string
	RoleIDs     []uuid.UUID
}

// LoginResult is returned on successful login.
type LoginResult struct {
	TokenPair
	User AuthUser
}

// RefreshTokenInput contains the input for token refresh.
type RefreshTokenInput struct {
	RefreshToken string
}

// RefreshTokenResult is the rotated token pair.
type RefreshTokenResult struct {
	TokenPair
}

// LogoutInput identifies the session being revoked. TokenTTL is the
// remaining lifetime of the access token.
type LogoutInput struct {
	UserID   uuid.UUID
	TokenJTI string
	TokenTTL time.Duration
}

// ChangePasswordInput contains the input for password change.
type ChangePasswordInput struct {
	UserID      uuid.UUID
	OldPassword string
	NewPassword string
}

// GetCurrentUserInput contains the input for the current-user lookup.
type GetCurrentUserInput struct {
	UserID uuid.UUID
}

// CurrentUserResult contains the current user's profile and permissions.
type CurrentUserResult struct {
	User        AuthUser
	Permissions []string
}
