package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appidentity "github.com/mfi/backend/internal/application/identity"
	"github.com/mfi/backend/internal/domain/identity"
	"github.com/mfi/backend/internal/infrastructure/auth"
	"github.com/mfi/backend/internal/infrastructure/config"
	"github.com/mfi/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testCookieConfig() config.CookieConfig {
	return config.CookieConfig{
		Domain:   "",
		Path:     "/",
		Secure:   false,
		SameSite: "lax",
	}
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:                 "test-secret-key-32-characters-long",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: 7 * 24 * time.Hour,
		Issuer:                 "test-issuer",
		MaxRefreshCount:        10,
	}
}

// MockUserRepository mocks identity.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *identity.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *identity.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
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
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) LoadUserRoles(ctx context.Context, user *identity.User) error {
	return m.Called(ctx, user).Error(0)
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
	return m.Called(ctx, role).Error(0)
}

func (m *MockRoleRepository) Update(ctx context.Context, role *identity.Role) error {
	return m.Called(ctx, role).Error(0)
}

func (m *MockRoleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
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
	return m.Called(ctx, role).Error(0)
}

func (m *MockRoleRepository) LoadPermissions(ctx context.Context, role *identity.Role) error {
	return m.Called(ctx, role).Error(0)
}

func (m *MockRoleRepository) SaveDataScopes(ctx context.Context, role *identity.Role) error {
	return m.Called(ctx, role).Error(0)
}

func (m *MockRoleRepository) LoadDataScopes(ctx context.Context, role *identity.Role) error {
	return m.Called(ctx, role).Error(0)
}

func (m *MockRoleRepository) LoadPermissionsAndDataScopes(ctx context.Context, role *identity.Role) error {
	return m.Called(ctx, role).Error(0)
}


func (m *MockRoleRepository) CountUsersWithRole(ctx context.Context, roleID uuid.UUID) (int64, error) {
	args := m.Called(ctx, roleID)
	return args.Get(0).(int64), args.Error(1)
}


func (m *MockRoleRepository) GetAllPermissionCodes(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

// authTestEnv wires an AuthHandler to mocked repositories behind the
// same route layout the server uses.
type authTestEnv struct {
	router   *gin.Engine
	userRepo *MockUserRepository
	roleRepo *MockRoleRepository
	user     *identity.User
	role     *identity.Role
}

func newAuthTestEnv(t *testing.T) *authTestEnv {
	t.Helper()

	jwtService := auth.NewJWTService(testJWTConfig())
	userRepo := new(MockUserRepository)
	roleRepo := new(MockRoleRepository)

	authService := appidentity.NewAuthService(
		userRepo,
		roleRepo,
		jwtService,
		appidentity.DefaultAuthServiceConfig(),
		zap.NewNop(),
	)
	handler := NewAuthHandler(authService, testCookieConfig(), testJWTConfig())

	r := gin.New()
	authGroup := r.Group("/api/v1/auth")
	{
		authGroup.POST("/login", handler.Login)
		authGroup.POST("/refresh", handler.RefreshToken)
	}
	protectedGroup := r.Group("/api/v1/auth")
	protectedGroup.Use(middleware.JWTAuthMiddleware(jwtService))
	{
		protectedGroup.POST("/logout", handler.Logout)
		protectedGroup.GET("/me", handler.GetCurrentUser)
		protectedGroup.PUT("/password", handler.ChangePassword)
	}

	branchID := uuid.New()
	user, err := identity.NewActiveUser(&branchID, "testuser", "Password123")
	require.NoError(t, err)

	role, err := identity.NewRole("LOAN_OFFICER", "Loan Officer")
	require.NoError(t, err)
	perm, err := identity.NewPermission("loan", "read")
	require.NoError(t, err)
	role.GrantPermission(*perm)
	user.RoleIDs = []uuid.UUID{role.ID}

	return &authTestEnv{router: r, userRepo: userRepo, roleRepo: roleRepo, user: user, role: role}
}

// expectLogin primes the repositories for a successful credential check.
func (e *authTestEnv) expectLogin() {
	e.userRepo.On("FindByUsername", mock.Anything, "testuser").Return(e.user, nil)
	e.userRepo.On("LoadUserRoles", mock.Anything, e.user).Return(nil)
	e.userRepo.On("Update", mock.Anything, mock.Anything).Return(nil)
	e.roleRepo.On("FindByIDs", mock.Anything, e.user.RoleIDs).Return([]*identity.Role{e.role}, nil)
	e.roleRepo.On("LoadPermissions", mock.Anything, e.role).Return(nil)
}

func (e *authTestEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func jsonRequest(method, path string, payload any) *http.Request {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// login performs a full login and returns the access token plus the
// refresh-token cookie.
func (e *authTestEnv) login(t *testing.T) (string, *http.Cookie) {
	t.Helper()

	w := e.do(jsonRequest(http.MethodPost, "/api/v1/auth/login", LoginRequest{
		Username: "testuser",
		Password: "Password123",
	}))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	token := resp["data"].(map[string]any)["token"].(map[string]any)
	accessToken := token["access_token"].(string)
	require.NotEmpty(t, accessToken)

	return accessToken, refreshCookie(w)
}

func refreshCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == "refresh_token" {
			return c
		}
	}
	return nil
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("success puts the refresh token in an httpOnly cookie", func(t *testing.T) {
		env := newAuthTestEnv(t)
		env.expectLogin()

		w := env.do(jsonRequest(http.MethodPost, "/api/v1/auth/login", LoginRequest{
			Username: "testuser",
			Password: "Password123",
		}))

		assert.Equal(t, http.StatusOK, w.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp["success"].(bool))

		data := resp["data"].(map[string]any)
		token := data["token"].(map[string]any)
		assert.NotEmpty(t, token["access_token"])
		assert.Empty(t, token["refresh_token"], "refresh token must never appear in the body")
		assert.Equal(t, "Bearer", token["token_type"])

		cookie := refreshCookie(w)
		require.NotNil(t, cookie)
		assert.NotEmpty(t, cookie.Value)
		assert.True(t, cookie.HttpOnly)

		userData := data["user"].(map[string]any)
		assert.Equal(t, "testuser", userData["username"])
	})

	t.Run("malformed body is rejected", func(t *testing.T) {
		env := newAuthTestEnv(t)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader([]byte("invalid json")))
		req.Header.Set("Content-Type", "application/json")

		assert.Equal(t, http.StatusBadRequest, env.do(req).Code)
	})
}

func TestAuthHandler_RefreshToken(t *testing.T) {
	env := newAuthTestEnv(t)
	env.expectLogin()
	env.userRepo.On("FindByID", mock.Anything, env.user.ID).Return(env.user, nil)

	_, cookie := env.login(t)
	require.NotNil(t, cookie)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(cookie)
	w := env.do(req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	token := resp["data"].(map[string]any)["token"].(map[string]any)
	assert.NotEmpty(t, token["access_token"])
	assert.Empty(t, token["refresh_token"])

	rotated := refreshCookie(w)
	require.NotNil(t, rotated, "refresh must rotate the cookie")
	assert.NotEmpty(t, rotated.Value)
}

func TestAuthHandler_Logout(t *testing.T) {
	t.Run("authenticated logout succeeds", func(t *testing.T) {
		env := newAuthTestEnv(t)
		env.expectLogin()

		accessToken, _ := env.login(t)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
		req.Header.Set("Authorization", "Bearer "+accessToken)
		w := env.do(req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp["success"].(bool))
		assert.Equal(t, "Logged out successfully", resp["data"].(map[string]any)["message"])
	})

	t.Run("missing token is unauthorized", func(t *testing.T) {
		env := newAuthTestEnv(t)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
		assert.Equal(t, http.StatusUnauthorized, env.do(req).Code)
	})
}

func TestAuthHandler_GetCurrentUser(t *testing.T) {
	env := newAuthTestEnv(t)
	env.expectLogin()
	env.userRepo.On("FindByID", mock.Anything, env.user.ID).Return(env.user, nil)

	accessToken, _ := env.login(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	w := env.do(req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	userData := resp["data"].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, "testuser", userData["username"])
}

func TestAuthHandler_ChangePassword(t *testing.T) {
	env := newAuthTestEnv(t)
	env.expectLogin()
	env.userRepo.On("FindByID", mock.Anything, env.user.ID).Return(env.user, nil)

	accessToken, _ := env.login(t)

	req := jsonRequest(http.MethodPut, "/api/v1/auth/password", ChangePasswordRequest{
		OldPassword: "Password123",
		NewPassword: "NewPassword456",
	})
	req.Header.Set("Authorization", "Bearer "+accessToken)
	w := env.do(req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp["success"].(bool))
}