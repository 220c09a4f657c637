package identity

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mfi/backend/internal/domain/identity"
	"github.com/mfi/backend/internal/domain/shared"
)

func newUserService(userRepo *MockUserRepository, roleRepo *MockRoleRepository) *UserService {
	return NewUserService(userRepo, roleRepo, zap.NewNop())
}

func TestUserService_Create(t *testing.T) {
	branchID := uuid.New()
	creatorID := uuid.New()
	roleID := uuid.New()

	t.Run("creates an active account with roles and creator", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		roleRepo := new(MockRoleRepository)

		userRepo.On("ExistsByUsername", mock.Anything, officerUsername).Return(false, nil)
		userRepo.On("ExistsByEmail", mock.Anything, "aminata.diallo@mfi.example").Return(false, nil)
		roleRepo.On("ExistsByID", mock.Anything, roleID).Return(true, nil)
		userRepo.On("Create", mock.Anything, mock.MatchedBy(func(u *identity.User) bool {
			return u.CreatedBy != nil && *u.CreatedBy == creatorID
		})).Return(nil)
		userRepo.On("SaveUserRoles", mock.Anything, mock.Anything).Return(nil)

		svc := newUserService(userRepo, roleRepo)
		dto, err := svc.Create(context.Background(), CreateUserInput{
			BranchID:  &branchID,
			Username:  officerUsername,
			Password:  officerPassword,
			Email:     "aminata.diallo@mfi.example",
			RoleIDs:   []uuid.UUID{roleID},
			CreatedBy: &creatorID,
		})

		require.NoError(t, err)
		assert.Equal(t, officerUsername, dto.Username)
		assert.Equal(t, string(identity.UserStatusActive), dto.Status)
		assert.Equal(t, []uuid.UUID{roleID}, dto.RoleIDs)
		userRepo.AssertExpectations(t)
		roleRepo.AssertExpectations(t)
	})

	t.Run("rejects a taken username", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		userRepo.On("ExistsByUsername", mock.Anything, officerUsername).Return(true, nil)

		svc := newUserService(userRepo, new(MockRoleRepository))
		_, err := svc.Create(context.Background(), CreateUserInput{
			Username: officerUsername,
			Password: officerPassword,
		})

		require.Error(t, err)
		assertDomainCode(t, err, "USERNAME_EXISTS")
	})

	t.Run("rejects an unknown role", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		roleRepo := new(MockRoleRepository)
		userRepo.On("ExistsByUsername", mock.Anything, officerUsername).Return(false, nil)
		roleRepo.On("ExistsByID", mock.Anything, roleID).Return(false, nil)

		svc := newUserService(userRepo, roleRepo)
		_, err := svc.Create(context.Background(), CreateUserInput{
			Username: officerUsername,
			Password: officerPassword,
			RoleIDs:  []uuid.UUID{roleID},
		})

		require.Error(t, err)
		assertDomainCode(t, err, "ROLE_NOT_FOUND")
	})

	t.Run("rolls the account back when role persistence fails", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		roleRepo := new(MockRoleRepository)
		userRepo.On("ExistsByUsername", mock.Anything, officerUsername).Return(false, nil)
		roleRepo.On("ExistsByID", mock.Anything, roleID).Return(true, nil)
		userRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
		userRepo.On("SaveUserRoles", mock.Anything, mock.Anything).Return(assert.AnError)
		userRepo.On("Delete", mock.Anything, mock.Anything).Return(nil)

		svc := newUserService(userRepo, roleRepo)
		_, err := svc.Create(context.Background(), CreateUserInput{
			Username: officerUsername,
			Password: officerPassword,
			RoleIDs:  []uuid.UUID{roleID},
		})

		require.Error(t, err)
		userRepo.AssertCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}

func TestUserService_GetByID(t *testing.T) {
	t.Run("maps repository not-found", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		id := uuid.New()
		userRepo.On("FindByID", mock.Anything, id).Return(nil, shared.ErrNotFound)

		svc := newUserService(userRepo, new(MockRoleRepository))
		_, err := svc.GetByID(context.Background(), id)

		require.Error(t, err)
		assertDomainCode(t, err, "USER_NOT_FOUND")
	})

	t.Run("loads roles onto the result", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		branchID := uuid.New()
		user, _ := officerWithRole(t, &branchID)
		userRepo.On("FindByID", mock.Anything, user.ID).Return(user, nil)
		userRepo.On("LoadUserRoles", mock.Anything, user).Return(nil)

		svc := newUserService(userRepo, new(MockRoleRepository))
		dto, err := svc.GetByID(context.Background(), user.ID)

		require.NoError(t, err)
		assert.Equal(t, user.ID, dto.ID)
		assert.Len(t, dto.RoleIDs, 1)
	})
}

func TestUserService_Lifecycle(t *testing.T) {
	branchID := uuid.New()

	t.Run("deactivate then activate", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		user, _ := officerWithRole(t, &branchID)
		userRepo.On("FindByID", mock.Anything, user.ID).Return(user, nil)
		userRepo.On("Update", mock.Anything, user).Return(nil)
		userRepo.On("LoadUserRoles", mock.Anything, user).Return(nil)

		svc := newUserService(userRepo, new(MockRoleRepository))

		dto, err := svc.Deactivate(context.Background(), user.ID)
		require.NoError(t, err)
		assert.Equal(t, string(identity.UserStatusDeactivated), dto.Status)

		dto, err = svc.Activate(context.Background(), user.ID)
		require.NoError(t, err)
		assert.Equal(t, string(identity.UserStatusActive), dto.Status)
	})

	t.Run("lock and unlock", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		user, _ := officerWithRole(t, &branchID)
		userRepo.On("FindByID", mock.Anything, user.ID).Return(user, nil)
		userRepo.On("Update", mock.Anything, user).Return(nil)
		userRepo.On("LoadUserRoles", mock.Anything, user).Return(nil)

		svc := newUserService(userRepo, new(MockRoleRepository))

		dto, err := svc.Lock(context.Background(), user.ID, 30*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, string(identity.UserStatusLocked), dto.Status)

		dto, err = svc.Unlock(context.Background(), user.ID)
		require.NoError(t, err)
		assert.Equal(t, string(identity.UserStatusActive), dto.Status)
	})

	t.Run("invalid transition surfaces the domain error", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		user, _ := officerWithRole(t, &branchID)
		userRepo.On("FindByID", mock.Anything, user.ID).Return(user, nil)

		svc := newUserService(userRepo, new(MockRoleRepository))
		_, err := svc.Activate(context.Background(), user.ID)

		require.Error(t, err)
		assertDomainCode(t, err, "ALREADY_ACTIVE")
	})
}

func TestUserService_ResetPassword(t *testing.T) {
	branchID := uuid.New()
	userRepo := new(MockUserRepository)
	user, _ := officerWithRole(t, &branchID)
	userRepo.On("FindByID", mock.Anything, user.ID).Return(user, nil)
	userRepo.On("Update", mock.Anything, user).Return(nil)

	svc := newUserService(userRepo, new(MockRoleRepository))
	require.NoError(t, svc.ResetPassword(context.Background(), user.ID, "Harmattan2027"))

	assert.True(t, user.MustChangePassword)
	assert.True(t, user.VerifyPassword("Harmattan2027"))
}

func TestUserService_AssignRoles(t *testing.T) {
	branchID := uuid.New()
	userRepo := new(MockUserRepository)
	roleRepo := new(MockRoleRepository)
	user, _ := officerWithRole(t, &branchID)
	newRoleID := uuid.New()

	userRepo.On("FindByID", mock.Anything, user.ID).Return(user, nil)
	roleRepo.On("ExistsByID", mock.Anything, newRoleID).Return(true, nil)
	userRepo.On("SaveUserRoles", mock.Anything, user).Return(nil)
	userRepo.On("Update", mock.Anything, user).Return(nil)

	svc := newUserService(userRepo, roleRepo)
	dto, err := svc.AssignRoles(context.Background(), user.ID, []uuid.UUID{newRoleID})

	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{newRoleID}, dto.RoleIDs)
}
