package identity

import (
	"context"
	"time"

	"github.com/mfi/backend/internal/domain/identity"
	"github.com/mfi/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserService manages staff accounts.
type UserService struct {
	userRepo identity.UserRepository
	roleRepo identity.RoleRepository
	logger   *zap.Logger
}

func NewUserService(
	userRepo identity.UserRepository,
	roleRepo identity.RoleRepository,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		userRepo: userRepo,
		roleRepo: roleRepo,
		logger:   logger,
	}
}

// CreateUserInput contains input for creating a user
type CreateUserInput struct {
	BranchID    *uuid.UUID
	Username    string
	Password    string
	Email       string
	Phone       string
	DisplayName string
	Notes       string
	RoleIDs     []uuid.UUID
	CreatedBy   *uuid.UUID
}

// UpdateUserInput contains input for updating a user. Nil pointers leave
// the field untouched.
type UpdateUserInput struct {
	ID          uuid.UUID
	Email       *string
	Phone       *string
	DisplayName *string
	Notes       *string
}

type UserDTO struct {
	ID          uuid.UUID   `json:"id"`
	BranchID    *uuid.UUID  `json:"branch_id,omitempty"`
	Username    string      `json:"username"`
	Email       string      `json:"email,omitempty"`
	Phone       string      `json:"phone,omitempty"`
	DisplayName string      `json:"display_name"`
	Avatar      string      `json:"avatar,omitempty"`
	Status      string      `json:"status"`
	RoleIDs     []uuid.UUID `json:"role_ids"`
	LastLoginAt *time.Time  `json:"last_login_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type UserListResult struct {
	Users      []UserDTO `json:"users"`
	Total      int64     `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalPages int       `json:"total_pages"`
}

// findUser maps repository not-found onto the service error vocabulary.
func (s *UserService) findUser(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if err == shared.ErrNotFound {
			return nil, shared.NewDomainError("USER_NOT_FOUND", "User not found")
		}
		return nil, s.internal(err, "find user")
	}
	return user, nil
}

// attachRoles loads the role IDs best effort. A load failure is logged
// but does not fail the read.
func (s *UserService) attachRoles(ctx context.Context, user *identity.User) {
	if err := s.userRepo.LoadUserRoles(ctx, user); err != nil {
		s.logger.Error("Failed to load user roles",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
	}
}

// internal logs a repository failure and masks it behind a generic code.
func (s *UserService) internal(err error, action string) error {
	s.logger.Error("user service: "+action, zap.Error(err))
	return shared.NewDomainError("INTERNAL_ERROR", "Failed to "+action)
}

// ensureRolesExist rejects inputs referencing unknown roles.
func (s *UserService) ensureRolesExist(ctx context.Context, roleIDs []uuid.UUID) error {
	for _, roleID := range roleIDs {
		exists, err := s.roleRepo.ExistsByID(ctx, roleID)
		if err != nil {
			return s.internal(err, "validate roles")
		}
		if !exists {
			return shared.NewDomainError("ROLE_NOT_FOUND", "Role not found: "+roleID.String())
		}
	}
	return nil
}

// transition applies a domain state change and persists it.
func (s *UserService) transition(ctx context.Context, id uuid.UUID, action string, apply func(*identity.User) error) (*UserDTO, error) {
	user, err := s.findUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := apply(user); err != nil {
		return nil, err
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, s.internal(err, action+" user")
	}
	s.attachRoles(ctx, user)

	s.logger.Info("User account state changed",
		zap.String("action", action),
		zap.String("user_id", id.String()))
	return toUserDTO(user), nil
}

// Create registers a new active staff account with optional roles.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*UserDTO, error) {
	s.logger.Info("Creating new user", zap.String("username", input.Username))

	exists, err := s.userRepo.ExistsByUsername(ctx, input.Username)
	if err != nil {
		return nil, s.internal(err, "check username availability")
	}
	if exists {
		return nil, shared.NewDomainError("USERNAME_EXISTS", "Username already exists")
	}

	if input.Email != "" {
		exists, err := s.userRepo.ExistsByEmail(ctx, input.Email)
		if err != nil {
			return nil, s.internal(err, "check email availability")
		}
		if exists {
			return nil, shared.NewDomainError("EMAIL_EXISTS", "Email already exists")
		}
	}

	if err := s.ensureRolesExist(ctx, input.RoleIDs); err != nil {
		return nil, err
	}

	user, err := identity.NewActiveUser(input.BranchID, input.Username, input.Password)
	if err != nil {
		return nil, err
	}
	user.CreatedBy = input.CreatedBy

	if err := optional(input.Email, user.SetEmail); err != nil {
		return nil, err
	}
	if err := optional(input.Phone, user.SetPhone); err != nil {
		return nil, err
	}
	if err := optional(input.DisplayName, user.SetDisplayName); err != nil {
		return nil, err
	}
	if input.Notes != "" {
		user.SetNotes(input.Notes)
	}

	for _, roleID := range input.RoleIDs {
		if err := user.AssignRole(roleID); err != nil {
			if domainErr, ok := err.(*shared.DomainError); ok && domainErr.Code == "ROLE_ALREADY_ASSIGNED" {
				continue
			}
			return nil, err
		}
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, s.internal(err, "create user")
	}

	if len(user.RoleIDs) > 0 {
		if err := s.userRepo.SaveUserRoles(ctx, user); err != nil {
			// Roll the account back rather than leave it without its roles.
			_ = s.userRepo.Delete(ctx, user.ID)
			return nil, s.internal(err, "assign roles to user")
		}
	}

	s.logger.Info("User created successfully",
		zap.String("user_id", user.ID.String()),
		zap.String("username", user.Username))

	return toUserDTO(user), nil
}

// optional applies the setter only when the value is non-empty.
func optional(value string, set func(string) error) error {
	if value == "" {
		return nil
	}
	return set(value)
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*UserDTO, error) {
	user, err := s.findUser(ctx, id)
	if err != nil {
		return nil, err
	}
	s.attachRoles(ctx, user)
	return toUserDTO(user), nil
}

// List returns a page of users matching the filter.
func (s *UserService) List(ctx context.Context, filter identity.UserFilter) (*UserListResult, error) {
	users, total, err := s.userRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, s.internal(err, "list users")
	}

	dtos := make([]UserDTO, len(users))
	for i, user := range users {
		s.attachRoles(ctx, user)
		dtos[i] = *toUserDTO(user)
	}

	pageSize := filter.Limit()
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	return &UserListResult{
		Users:      dtos,
		Total:      total,
		Page:       filter.Page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// Update patches contact and profile fields.
func (s *UserService) Update(ctx context.Context, input UpdateUserInput) (*UserDTO, error) {
	user, err := s.findUser(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	if input.Email != nil {
		if *input.Email != "" && *input.Email != user.Email {
			exists, err := s.userRepo.ExistsByEmail(ctx, *input.Email)
			if err != nil {
				return nil, s.internal(err, "check email availability")
			}
			if exists {
				return nil, shared.NewDomainError("EMAIL_EXISTS", "Email already exists")
			}
		}
		if err := user.SetEmail(*input.Email); err != nil {
			return nil, err
		}
	}
	if input.Phone != nil {
		if err := user.SetPhone(*input.Phone); err != nil {
			return nil, err
		}
	}
	if input.DisplayName != nil {
		if err := user.SetDisplayName(*input.DisplayName); err != nil {
			return nil, err
		}
	}
	if input.Notes != nil {
		user.SetNotes(*input.Notes)
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, s.internal(err, "update user")
	}
	s.attachRoles(ctx, user)

	s.logger.Info("User updated", zap.String("user_id", input.ID.String()))
	return toUserDTO(user), nil
}

func (s *UserService) Delete(ctx context.Context, id uuid.UUID) error {
	user, err := s.findUser(ctx, id)
	if err != nil {
		return err
	}

	if err := s.userRepo.Delete(ctx, user.ID); err != nil {
		return s.internal(err, "delete user")
	}

	s.logger.Info("User deleted", zap.String("user_id", id.String()))
	return nil
}

func (s *UserService) Activate(ctx context.Context, id uuid.UUID) (*UserDTO, error) {
	return s.transition(ctx, id, "activate", func(u *identity.User) error {
		return u.Activate()
	})
}

func (s *UserService) Deactivate(ctx context.Context, id uuid.UUID) (*UserDTO, error) {
	return s.transition(ctx, id, "deactivate", func(u *identity.User) error {
		return u.Deactivate()
	})
}

func (s *UserService) Lock(ctx context.Context, id uuid.UUID, duration time.Duration) (*UserDTO, error) {
	return s.transition(ctx, id, "lock", func(u *identity.User) error {
		return u.Lock(duration)
	})
}

func (s *UserService) Unlock(ctx context.Context, id uuid.UUID) (*UserDTO, error) {
	return s.transition(ctx, id, "unlock", func(u *identity.User) error {
		return u.Unlock()
	})
}

// ResetPassword sets a new password and forces a change on next login.
// Admin action, the current password is not checked.
func (s *UserService) ResetPassword(ctx context.Context, userID uuid.UUID, newPassword string) error {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}

	if err := user.SetPassword(newPassword); err != nil {
		return err
	}
	user.ForcePasswordChange()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return s.internal(err, "reset password")
	}

	s.logger.Info("User password reset", zap.String("user_id", userID.String()))
	return nil
}

// AssignRoles replaces the user's role set.
func (s *UserService) AssignRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) (*UserDTO, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.ensureRolesExist(ctx, roleIDs); err != nil {
		return nil, err
	}

	if err := user.SetRoles(roleIDs); err != nil {
		return nil, err
	}

	if err := s.userRepo.SaveUserRoles(ctx, user); err != nil {
		return nil, s.internal(err, "assign roles")
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, s.internal(err, "update user")
	}

	s.logger.Info("User roles assigned",
		zap.String("user_id", userID.String()),
		zap.Int("role_count", len(roleIDs)))

	return toUserDTO(user), nil
}

func (s *UserService) Count(ctx context.Context) (int64, error) {
	return s.userRepo.Count(ctx)
}

func toUserDTO(user *identity.User) *UserDTO {
	return &UserDTO{
		ID:          user.ID,
		BranchID:    user.BranchID,
		Username:    user.Username,
		Email:       user.Email,
		Phone:       user.Phone,
		DisplayName: user.GetDisplayNameOrUsername(),
		Avatar:      user.Avatar,
		Status:      string(user.Status),
		RoleIDs:     user.RoleIDs,
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}
