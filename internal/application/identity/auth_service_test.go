package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mfi/backend/internal/domain/identity"
	"github.com/mfi/backend/internal/domain/shared"
	"github.com/mfi/backend/internal/infrastructure/auth"
	"github.com/mfi/backend/internal/infrastructure/config"
)

// MockUserRepository mocks identity.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *identity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *identity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (*identity.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockUserRepository) FindAll(ctx context.Context, filter identity.UserFilter) ([]*identity.User, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]*identity.User), args.Get(1).(int64), args.Error(2)
}

func (m *MockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) SaveUserRoles(ctx context.Context, user *identity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) LoadUserRoles(ctx context.Context, user *identity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockRoleRepository mocks identity.RoleRepository.
type MockRoleRepository struct {
	mock.Mock
}

func (m *MockRoleRepository) Create(ctx context.Context, role *identity.Role) error {
	args := m.Called(ctx, role)
	return args.Error(0)
}

func (m *MockRoleRepository) Update(ctx context.Context, role *identity.Role) error {
	args := m.Called(ctx, role)
	return args.Error(0)
}

func (m *MockRoleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRoleRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.Role, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Role), args.Error(1)
}

func (m *MockRoleRepository) FindByCode(ctx context.Context, code string) (*identity.Role, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Role), args.Error(1)
}

func (m *MockRoleRepository) FindAll(ctx context.Context, filter *identity.RoleFilter) ([]*identity.Role, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]*identity.Role), args.Error(1)
}

func (m *MockRoleRepository) Count(ctx context.Context, filter *identity.RoleFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRoleRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockRoleRepository) ExistsByID(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockRoleRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*identity.Role, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*identity.Role), args.Error(1)
}

func (m *MockRoleRepository) FindSystemRoles(ctx context.Context) ([]*identity.Role, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*identity.Role), args.Error(1)
}

func (m *MockRoleRepository) SavePermissions(ctx context.Context, role *identity.Role) error {
	args := m.Called(ctx, role)
	return args.Error(0)
}

func (m *MockRoleRepository) LoadPermissions(ctx context.Context, role *identity.Role) error {
	args := m.Called(ctx, role)
	return args.Error(0)
}

func (m *MockRoleRepository) SaveDataScopes(ctx context.Context, role *identity.Role) error {
	args := m.Called(ctx, role)
	return args.Error(0)
}

func (m *MockRoleRepository) LoadDataScopes(ctx context.Context, role *identity.Role) error {
	args := m.Called(ctx, role)
	return args.Error(0)
}

func (m *MockRoleRepository) LoadPermissionsAndDataScopes(ctx context.Context, role *identity.Role) error {
	args := m.Called(ctx, role)
	return args.Error(0)
}

func (m *MockRoleRepository) CountUsersWithRole(ctx context.Context, roleID uuid.UUID) (int64, error) {
	args := m.Called(ctx, roleID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRoleRepository) GetAllPermissionCodes(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

const (
	officerUsername = "aminata.diallo"
	officerPassword = "Sunrise2026"
	officerIP       = "10.20.0.5"
)

func officerWithRole(t *testing.T, branchID *uuid.UUID) (*identity.User, *identity.Role) {
	t.Helper()
	user, err := identity.NewActiveUser(branchID, officerUsername, officerPassword)
	require.NoError(t, err)
	role, err := identity.NewRole(identity.RoleCodeLoanOfficer, "Loan Officer")
	require.NoError(t, err)
	require.NoError(t, role.GrantPermissionByCode("loan:read"))
	user.RoleIDs = []uuid.UUID{role.ID}
	return user, role
}

func newAuthService(userRepo *MockUserRepository, roleRepo *MockRoleRepository) *AuthService {
	jwtService := auth.NewJWTService(config.JWTConfig{
		Secret:                 "unit-test-secret-with-32-characters",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: 7 * 24 * time.Hour,
		Issuer:                 "mfi-backend-test",
		MaxRefreshCount:        10,
	})
	return NewAuthService(userRepo, roleRepo, jwtService, DefaultAuthServiceConfig(), zap.NewNop())
}

func assertDomainCode(t *testing.T, err error, code string) {
	t.Helper()
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, code, domainErr.Code)
}

func TestAuthService_Login(t *testing.T) {
	branchID := uuid.New()

	t.Run("issues tokens for valid credentials", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		roleRepo := new(MockRoleRepository)
		user, role := officerWithRole(t, &branchID)

		userRepo.On("FindByUsername", mock.Anything, officerUsername).Return(user, nil)
		userRepo.On("LoadUserRoles", mock.Anything, user).Return(nil)
		userRepo.On("Update", mock.Anything, user).Return(nil)
		roleRepo.On("FindByIDs", mock.Anything, user.RoleIDs).Return([]*identity.Role{role}, nil)
		roleRepo.On("LoadPermissions", mock.Anything, role).Return(nil)

		svc := newAuthService(userRepo, roleRepo)
		result, err := svc.Login(context.Background(), LoginInput{
			Username: officerUsername,
			Password: officerPassword,
			IP:       officerIP,
		})

		require.NoError(t, err)
		assert.NotEmpty(t, result.AccessToken)
		assert.NotEmpty(t, result.RefreshToken)
		assert.Equal(t, "Bearer", result.TokenType)
		assert.Equal(t, officerUsername, result.User.Username)
		require.NotNil(t, result.User.BranchID)
		assert.Equal(t, branchID, *result.User.BranchID)

		userRepo.AssertExpectations(t)
		roleRepo.AssertExpectations(t)
	})

	rejections := []struct {
		name     string
		arrange  func(t *testing.T, userRepo *MockUserRepository)
		username string
		password string
		wantCode string
	}{
		{
			name: "wrong password",
			arrange: func(t *testing.T, userRepo *MockUserRepository) {
				user, _ := officerWithRole(t, &branchID)
				userRepo.On("FindByUsername", mock.Anything, officerUsername).Return(user, nil)
				userRepo.On("Update", mock.Anything, user).Return(nil)
			},
			username: officerUsername,
			password: "NotThePassword1",
			wantCode: "INVALID_CREDENTIALS",
		},
		{
			name: "unknown username maps to the same code",
			arrange: func(t *testing.T, userRepo *MockUserRepository) {
				userRepo.On("FindByUsername", mock.Anything, "ghost.user").Return(nil, errors.New("user not found"))
			},
			username: "ghost.user",
			password: officerPassword,
			wantCode: "INVALID_CREDENTIALS",
		},
		{
			name: "locked account",
			arrange: func(t *testing.T, userRepo *MockUserRepository) {
				user, _ := officerWithRole(t, &branchID)
				require.NoError(t, user.Lock(time.Hour))
				userRepo.On("FindByUsername", mock.Anything, officerUsername).Return(user, nil)
			},
			username: officerUsername,
			password: officerPassword,
			wantCode: "ACCOUNT_LOCKED",
		},
		{
			name: "deactivated account",
			arrange: func(t *testing.T, userRepo *MockUserRepository) {
				user, _ := officerWithRole(t, &branchID)
				require.NoError(t, user.Deactivate())
				userRepo.On("FindByUsername", mock.Anything, officerUsername).Return(user, nil)
			},
			username: officerUsername,
			password: officerPassword,
			wantCode: "ACCOUNT_DEACTIVATED",
		},
	}
	for _, tc := range rejections {
		t.Run(tc.name, func(t *testing.T) {
			userRepo := new(MockUserRepository)
			roleRepo := new(MockRoleRepository)
			tc.arrange(t, userRepo)

			svc := newAuthService(userRepo, roleRepo)
			result, err := svc.Login(context.Background(), LoginInput{
				Username: tc.username,
				Password: tc.password,
				IP:       officerIP,
			})

			require.Error(t, err)
			assert.Nil(t, result)
			assertDomainCode(t, err, tc.wantCode)
		})
	}

	t.Run("final failed attempt locks the account", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		roleRepo := new(MockRoleRepository)
		user, _ := officerWithRole(t, &branchID)
		user.FailedAttempts = 4

		userRepo.On("FindByUsername", mock.Anything, officerUsername).Return(user, nil)
		userRepo.On("Update", mock.Anything, mock.Anything).Return(nil)

		svc := newAuthService(userRepo, roleRepo)
		_, err := svc.Login(context.Background(), LoginInput{
			Username: officerUsername,
			Password: "NotThePassword1",
			IP:       officerIP,
		})

		require.Error(t, err)
		assertDomainCode(t, err, "ACCOUNT_LOCKED")
	})
}

// loginOfficer performs a real login against mocked repositories so the
// refresh tests start from a token the service itself minted.
func loginOfficer(t *testing.T, svc *AuthService, userRepo *MockUserRepository, roleRepo *MockRoleRepository, user *identity.User, role *identity.Role) *LoginResult {
	t.Helper()
	userRepo.On("FindByUsername", mock.Anything, officerUsername).Return(user, nil)
	userRepo.On("LoadUserRoles", mock.Anything, user).Return(nil)
	userRepo.On("Update", mock.Anything, user).Return(nil)
	roleRepo.On("FindByIDs", mock.Anything, user.RoleIDs).Return([]*identity.Role{role}, nil)
	roleRepo.On("LoadPermissions", mock.Anything, role).Return(nil)

	result, err := svc.Login(context.Background(), LoginInput{
		Username: officerUsername,
		Password: officerPassword,
		IP:       officerIP,
	})
	require.NoError(t, err)
	return result
}

func TestAuthService_RefreshToken(t *testing.T) {
	branchID := uuid.New()

	t.Run("rotates both tokens", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		roleRepo := new(MockRoleRepository)
		user, role := officerWithRole(t, &branchID)
		svc := newAuthService(userRepo, roleRepo)
		login := loginOfficer(t, svc, userRepo, roleRepo, user, role)

		userRepo.On("FindByID", mock.Anything, user.ID).Return(user, nil)

		refreshed, err := svc.RefreshToken(context.Background(), RefreshTokenInput{
			RefreshToken: login.RefreshToken,
		})

		require.NoError(t, err)
		assert.NotEmpty(t, refreshed.AccessToken)
		assert.NotEmpty(t, refreshed.RefreshToken)
		assert.Equal(t, "Bearer", refreshed.TokenType)
		assert.NotEqual(t, login.AccessToken, refreshed.AccessToken)
	})

	t.Run("rejects a malformed token", func(t *testing.T) {
		svc := newAuthService(new(MockUserRepository), new(MockRoleRepository))

		result, err := svc.RefreshToken(context.Background(), RefreshTokenInput{
			RefreshToken: "not-a-jwt",
		})

		require.Error(t, err)
		assert.Nil(t, result)
		assertDomainCode(t, err, "TOKEN_INVALID")
	})

	t.Run("rejects a token for a deleted user", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		roleRepo := new(MockRoleRepository)
		user, role := officerWithRole(t, &branchID)
		svc := newAuthService(userRepo, roleRepo)
		login := loginOfficer(t, svc, userRepo, roleRepo, user, role)

		userRepo.On("FindByID", mock.Anything, user.ID).Return(nil, errors.New("user not found"))

		result, err := svc.RefreshToken(context.Background(), RefreshTokenInput{
			RefreshToken: login.RefreshToken,
		})

		require.Error(t, err)
		assert.Nil(t, result)
		assertDomainCode(t, err, "USER_NOT_FOUND")
	})
}

func TestAuthService_GetCurrentUser(t *testing.T) {
	branchID := uuid.New()
	userRepo := new(MockUserRepository)
	roleRepo := new(MockRoleRepository)
	user, role := officerWithRole(t, &branchID)

	userRepo.On("FindByID", mock.Anything, user.ID).Return(user, nil)
	userRepo.On("LoadUserRoles", mock.Anything, user).Return(nil)
	roleRepo.On("FindByIDs", mock.Anything, user.RoleIDs).Return([]*identity.Role{role}, nil)
	roleRepo.On("LoadPermissions", mock.Anything, role).Return(nil)

	svc := newAuthService(userRepo, roleRepo)
	result, err := svc.GetCurrentUser(context.Background(), GetCurrentUserInput{UserID: user.ID})

	require.NoError(t, err)
	assert.Equal(t, user.ID, result.User.ID)
	assert.Equal(t, officerUsername, result.User.Username)
	assert.Contains(t, result.Permissions, "loan:read")

	userRepo.AssertExpectations(t)
	roleRepo.AssertExpectations(t)
}

func TestAuthService_ChangePassword(t *testing.T) {
	branchID := uuid.New()

	t.Run("accepts the current password", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		user, _ := officerWithRole(t, &branchID)

		userRepo.On("FindByID", mock.Anything, user.ID).Return(user, nil)
		userRepo.On("Update", mock.Anything, mock.Anything).Return(nil)

		svc := newAuthService(userRepo, new(MockRoleRepository))
		err := svc.ChangePassword(context.Background(), ChangePasswordInput{
			UserID:      user.ID,
			OldPassword: officerPassword,
			NewPassword: "Harmattan2027",
		})

		require.NoError(t, err)
		userRepo.AssertExpectations(t)
	})

	t.Run("rejects a wrong current password", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		user, _ := officerWithRole(t, &branchID)

		userRepo.On("FindByID", mock.Anything, user.ID).Return(user, nil)

		svc := newAuthService(userRepo, new(MockRoleRepository))
		err := svc.ChangePassword(context.Background(), ChangePasswordInput{
			UserID:      user.ID,
			OldPassword: "NotThePassword1",
			NewPassword: "Harmattan2027",
		})

		require.Error(t, err)
		assertDomainCode(t, err, "INVALID_PASSWORD")
	})
}

func TestAuthService_Logout(t *testing.T) {
	t.Run("succeeds without a blacklist configured", func(t *testing.T) {
		svc := newAuthService(new(MockUserRepository), new(MockRoleRepository))

		err := svc.Logout(context.Background(), LogoutInput{
			UserID:   uuid.New(),
			TokenJTI: "session-jti-41",
		})
		require.NoError(t, err)
	})

	t.Run("revokes the token JTI", func(t *testing.T) {
		blacklist := auth.NewInMemoryTokenBlacklist()
		svc := newAuthService(new(MockUserRepository), new(MockRoleRepository))
		svc.SetTokenBlacklist(blacklist)

		err := svc.Logout(context.Background(), LogoutInput{
			UserID:   uuid.New(),
			TokenJTI: "session-jti-42",
			TokenTTL: 10 * time.Minute,
		})
		require.NoError(t, err)

		revoked, err := blacklist.IsBlacklisted(context.Background(), "session-jti-42")
		require.NoError(t, err)
		assert.True(t, revoked)
	})

	t.Run("missing TTL falls back to the access token expiration", func(t *testing.T) {
		blacklist := auth.NewInMemoryTokenBlacklist()
		svc := newAuthService(new(MockUserRepository), new(MockRoleRepository))
		svc.SetTokenBlacklist(blacklist)

		err := svc.Logout(context.Background(), LogoutInput{
			UserID:   uuid.New(),
			TokenJTI: "session-jti-43",
		})
		require.NoError(t, err)

		revoked, err := blacklist.IsBlacklisted(context.Background(), "session-jti-43")
		require.NoError(t, err)
		assert.True(t, revoked)
	})
}
