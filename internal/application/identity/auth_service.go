package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mfi/backend/internal/domain/identity"
	"github.com/mfi/backend/internal/domain/shared"
	"github.com/mfi/backend/internal/infrastructure/auth"
)

// AuthServiceConfig controls the account lockout policy.
type AuthServiceConfig struct {
	MaxLoginAttempts int
	LockDuration     time.Duration
}

func DefaultAuthServiceConfig() AuthServiceConfig {
	return AuthServiceConfig{
		MaxLoginAttempts: 5,
		LockDuration:     15 * time.Minute,
	}
}

// AuthService authenticates staff accounts and manages their sessions.
type AuthService struct {
	userRepo       identity.UserRepository
	roleRepo       identity.RoleRepository
	jwtService     *auth.JWTService
	tokenBlacklist auth.TokenBlacklist // optional, revokes tokens on logout
	config         AuthServiceConfig
	logger         *zap.Logger
}

func NewAuthService(
	userRepo identity.UserRepository,
	roleRepo identity.RoleRepository,
	jwtService *auth.JWTService,
	config AuthServiceConfig,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		roleRepo:   roleRepo,
		jwtService: jwtService,
		config:     config,
		logger:     logger,
	}
}

// SetTokenBlacklist enables server-side token revocation on logout.
func (s *AuthService) SetTokenBlacklist(blacklist auth.TokenBlacklist) {
	s.tokenBlacklist = blacklist
}

// rejectInactive maps a non-loginable account state to the domain error
// the client should see.
func (s *AuthService) rejectInactive(user *identity.User, username string) error {
	switch {
	case user.IsLocked():
		s.logger.Warn("Login attempt for locked account", zap.String("username", username))
		return shared.NewDomainError("ACCOUNT_LOCKED", "Account is locked. Please try again later or contact support")
	case user.IsDeactivated():
		s.logger.Warn("Login attempt for deactivated account", zap.String("username", username))
		return shared.NewDomainError("ACCOUNT_DEACTIVATED", "Account has been deactivated")
	case user.IsPending():
		s.logger.Warn("Login attempt for pending account", zap.String("username", username))
		return shared.NewDomainError("ACCOUNT_PENDING", "Account is pending activation")
	default:
		return shared.NewDomainError("ACCOUNT_INACTIVE", "Account is not active")
	}
}

// loadAuthContext loads the user's roles and flattens the permissions
// of every enabled role into a unique code list.
func (s *AuthService) loadAuthContext(ctx context.Context, user *identity.User) ([]string, error) {
	if err := s.userRepo.LoadUserRoles(ctx, user); err != nil {
		s.logger.Error("Failed to load user roles", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to load user roles")
	}

	permissions, err := s.collectUserPermissions(ctx, user.RoleIDs)
	if err != nil {
		s.logger.Error("Failed to collect user permissions", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to load user permissions")
	}
	return permissions, nil
}

func buildAuthUser(user *identity.User, permissions []string) AuthUser {
	return AuthUser{
		ID:          user.ID,
		BranchID:    user.BranchID,
		Username:    user.Username,
		DisplayName: user.GetDisplayNameOrUsername(),
		Email:       user.Email,
		Phone:       user.Phone,
		Avatar:      user.Avatar,
		Permissions: permissions,
		RoleIDs:     user.RoleIDs,
	}
}

func toTokenPair(p *auth.TokenPair) TokenPair {
	return TokenPair{
		AccessToken:           p.AccessToken,
		RefreshToken:          p.RefreshToken,
		AccessTokenExpiresAt:  p.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: p.RefreshTokenExpiresAt,
		TokenType:             p.TokenType,
	}
}

// mapTokenError translates JWT validation errors into domain errors.
func mapTokenError(err error, fallback string) error {
	switch err {
	case auth.ErrExpiredToken:
		return shared.NewDomainError("TOKEN_EXPIRED", "Refresh token has expired")
	case auth.ErrInvalidToken:
		return shared.NewDomainError("TOKEN_INVALID", "Invalid refresh token")
	case auth.ErrMaxRefreshExceeded:
		return shared.NewDomainError("TOKEN_MAX_REFRESH", "Maximum token refresh count exceeded. Please log in again")
	default:
		return shared.NewDomainError("TOKEN_ERROR", fallback)
	}
}

// Login authenticates a user and issues a token pair. Failed attempts
// count toward the lockout policy.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	s.logger.Info("Login attempt", zap.String("username", input.Username))

	user, err := s.userRepo.FindByUsername(ctx, input.Username)
	if err != nil {
		s.logger.Warn("User not found during login", zap.String("username", input.Username))
		return nil, shared.NewDomainError("INVALID_CREDENTIALS", "Invalid username or password")
	}

	if !user.CanLogin() {
		return nil, s.rejectInactive(user, input.Username)
	}

	if !user.VerifyPassword(input.Password) {
		locked := user.RecordLoginFailure(s.config.MaxLoginAttempts, s.config.LockDuration)
		if err := s.userRepo.Update(ctx, user); err != nil {
			s.logger.Error("Failed to update user after login failure", zap.Error(err))
		}
		if locked {
			s.logger.Warn("Account locked after too many failed attempts",
				zap.String("username", input.Username),
				zap.Int("attempts", s.config.MaxLoginAttempts))
			return nil, shared.NewDomainError("ACCOUNT_LOCKED", "Too many failed login attempts. Account has been locked")
		}
		s.logger.Warn("Invalid password attempt",
			zap.String("username", input.Username),
			zap.Int("failed_attempts", user.FailedAttempts))
		return nil, shared.NewDomainError("INVALID_CREDENTIALS", "Invalid username or password")
	}

	permissions, err := s.loadAuthContext(ctx, user)
	if err != nil {
		return nil, err
	}

	tokenPair, err := s.jwtService.GenerateTokenPair(auth.GenerateTokenInput{
		UserID:      user.ID,
		BranchID:    user.BranchID,
		Username:    user.Username,
		RoleIDs:     user.RoleIDs,
		Permissions: permissions,
	})
	if err != nil {
		s.logger.Error("Failed to generate token pair", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to generate authentication tokens")
	}

	// A failed bookkeeping update must not reject a valid login.
	user.RecordLoginSuccess(input.IP)
	if err := s.userRepo.Update(ctx, user); err != nil {
		s.logger.Error("Failed to update user after successful login", zap.Error(err))
	}

	s.logger.Info("User logged in",
		zap.String("username", input.Username),
		zap.String("user_id", user.ID.String()))

	return &LoginResult{
		TokenPair: toTokenPair(tokenPair),
		User:      buildAuthUser(user, permissions),
	}, nil
}

// RefreshToken rotates a token pair. The user is re-validated and the
// new access token carries their current permissions, so role changes
// take effect on the next refresh.
func (s *AuthService) RefreshToken(ctx context.Context, input RefreshTokenInput) (*RefreshTokenResult, error) {
	refreshClaims, err := s.jwtService.ValidateRefreshToken(input.RefreshToken)
	if err != nil {
		s.logger.Warn("Refresh token validation failed", zap.Error(err))
		return nil, mapTokenError(err, "Failed to validate refresh token")
	}

	userID, err := uuid.Parse(refreshClaims.UserID)
	if err != nil {
		s.logger.Error("Invalid user ID in refresh token", zap.Error(err))
		return nil, shared.NewDomainError("TOKEN_INVALID", "Invalid user ID in token")
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		s.logger.Warn("User not found during token refresh", zap.String("user_id", userID.String()))
		return nil, shared.NewDomainError("USER_NOT_FOUND", "User not found")
	}
	if !user.CanLogin() {
		s.logger.Warn("Token refresh for inactive user", zap.String("user_id", userID.String()))
		return nil, shared.NewDomainError("ACCOUNT_INACTIVE", "Account is no longer active")
	}

	permissions, err := s.loadAuthContext(ctx, user)
	if err != nil {
		return nil, err
	}

	tokenPair, err := s.jwtService.RefreshTokenPair(input.RefreshToken, permissions)
	if err != nil {
		s.logger.Warn("Token refresh failed", zap.Error(err))
		return nil, mapTokenError(err, "Failed to refresh token")
	}

	s.logger.Info("Token refreshed", zap.String("user_id", userID.String()))

	return &RefreshTokenResult{TokenPair: toTokenPair(tokenPair)}, nil
}

// Logout revokes the presented access token by JTI so it stops
// validating before its natural expiry. Without a configured blacklist
// the token simply ages out client-side.
func (s *AuthService) Logout(ctx context.Context, input LogoutInput) error {
	if s.tokenBlacklist != nil && input.TokenJTI != "" {
		ttl := input.TokenTTL
		if ttl <= 0 {
			ttl = s.jwtService.GetAccessTokenExpiration()
		}
		if err := s.tokenBlacklist.AddToBlacklist(ctx, input.TokenJTI, ttl); err != nil {
			s.logger.Error("Failed to blacklist token on logout",
				zap.String("user_id", input.UserID.String()),
				zap.Error(err))
			return shared.NewDomainError("LOGOUT_FAILED", "Failed to revoke session")
		}
	}

	s.logger.Info("User logout", zap.String("user_id", input.UserID.String()))
	return nil
}

// GetCurrentUser returns the user's profile and effective permissions.
func (s *AuthService) GetCurrentUser(ctx context.Context, input GetCurrentUserInput) (*CurrentUserResult, error) {
	user, err := s.userRepo.FindByID(ctx, input.UserID)
	if err != nil {
		return nil, shared.NewDomainError("USER_NOT_FOUND", "User not found")
	}

	permissions, err := s.loadAuthContext(ctx, user)
	if err != nil {
		return nil, err
	}

	return &CurrentUserResult{
		User:        buildAuthUser(user, permissions),
		Permissions: permissions,
	}, nil
}

// ChangePassword verifies the old password and stores the new one.
func (s *AuthService) ChangePassword(ctx context.Context, input ChangePasswordInput) error {
	user, err := s.userRepo.FindByID(ctx, input.UserID)
	if err != nil {
		return shared.NewDomainError("USER_NOT_FOUND", "User not found")
	}

	if err := user.ChangePassword(input.OldPassword, input.NewPassword); err != nil {
		return err
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		s.logger.Error("Failed to update user after password change", zap.Error(err))
		return shared.NewDomainError("INTERNAL_ERROR", "Failed to update password")
	}

	s.logger.Info("User password changed", zap.String("user_id", input.UserID.String()))
	return nil
}

// collectUserPermissions flattens the unique permission codes across
// the user's enabled roles. Disabled roles contribute nothing.
func (s *AuthService) collectUserPermissions(ctx context.Context, roleIDs []uuid.UUID) ([]string, error) {
	if len(roleIDs) == 0 {
		return []string{}, nil
	}

	roles, err := s.roleRepo.FindByIDs(ctx, roleIDs)
	if err != nil {
		return nil, err
	}

	permSet := make(map[string]struct{})
	for _, role := range roles {
		if !role.IsEnabled {
			continue
		}
		if err := s.roleRepo.LoadPermissions(ctx, role); err != nil {
			s.logger.Warn("Failed to load permissions for role",
				zap.String("role_id", role.ID.String()),
				zap.Error(err))
			continue
		}
		for _, perm := range role.Permissions {
			permSet[perm.Code] = struct{}{}
		}
	}

	permissions := make([]string, 0, len(permSet))
	for perm := range permSet {
		permissions = append(permissions, perm)
	}
	return permissions, nil
}
