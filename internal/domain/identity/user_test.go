package identity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const officerPassword = "Sunrise2026"

func pendingOfficer(t *testing.T) *User {
	t.Helper()
	branchID := uuid.New()
	user, err := NewUser(&branchID, "aminata.diallo", officerPassword)
	require.NoError(t, err)
	user.ClearDomainEvents()
	return user
}

func activeOfficer(t *testing.T) *User {
	t.Helper()
	branchID := uuid.New()
	user, err := NewActiveUser(&branchID, "aminata.diallo", officerPassword)
	require.NoError(t, err)
	user.ClearDomainEvents()
	return user
}

func TestNewUser(t *testing.T) {
	t.Run("branch staff account starts pending", func(t *testing.T) {
		branchID := uuid.New()
		user, err := NewUser(&branchID, "aminata.diallo", officerPassword)

		require.NoError(t, err)
		require.NotNil(t, user.BranchID)
		assert.Equal(t, branchID, *user.BranchID)
		assert.Equal(t, "aminata.diallo", user.Username)
		assert.NotEmpty(t, user.PasswordHash)
		assert.Equal(t, UserStatusPending, user.Status)
		assert.Empty(t, user.RoleIDs)
		assert.NotNil(t, user.PasswordChangedAt)

		events := user.GetDomainEvents()
		require.Len(t, events, 1)
		_, ok := events[0].(*UserCreatedEvent)
		assert.True(t, ok)
	})

	t.Run("head office account has no branch", func(t *testing.T) {
		user, err := NewUser(nil, "hq.admin", officerPassword)

		require.NoError(t, err)
		assert.Nil(t, user.BranchID)
	})

	t.Run("username is trimmed and lowercased", func(t *testing.T) {
		branchID := uuid.New()
		user, err := NewUser(&branchID, "  Aminata.Diallo  ", officerPassword)

		require.NoError(t, err)
		assert.Equal(t, "aminata.diallo", user.Username)
	})

	t.Run("username validation", func(t *testing.T) {
		cases := []struct {
			name     string
			username string
			wantErr  string
		}{
			{"empty", "", "cannot be empty"},
			{"too short", "md", "at least 3 characters"},
			{"illegal characters", "aminata@diallo", "only contain letters"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				branchID := uuid.New()
				_, err := NewUser(&branchID, tc.username, officerPassword)
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			})
		}
	})

	t.Run("password validation", func(t *testing.T) {
		cases := []struct {
			name     string
			password string
			wantErr  string
		}{
			{"empty", "", "cannot be empty"},
			{"too short", "Abc1", "at least 8 characters"},
			{"digits only", "20262026", "at least one letter"},
			{"letters only", "Sunrises", "at least one letter and one number"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				branchID := uuid.New()
				_, err := NewUser(&branchID, "aminata.diallo", tc.password)
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			})
		}
	})
}

func TestNewActiveUser(t *testing.T) {
	user := activeOfficer(t)
	assert.Equal(t, UserStatusActive, user.Status)
}

func TestUser_Profile(t *testing.T) {
	t.Run("email is lowercased", func(t *testing.T) {
		user := pendingOfficer(t)

		require.NoError(t, user.SetEmail("Aminata.Diallo@Mfi.example"))
		assert.Equal(t, "aminata.diallo@mfi.example", user.Email)
	})

	t.Run("email may be cleared", func(t *testing.T) {
		user := pendingOfficer(t)

		require.NoError(t, user.SetEmail(""))
		assert.Empty(t, user.Email)
	})

	t.Run("malformed email is rejected", func(t *testing.T) {
		user := pendingOfficer(t)

		err := user.SetEmail("not-an-address")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Invalid email")
	})

	t.Run("phone is optional", func(t *testing.T) {
		user := pendingOfficer(t)

		require.NoError(t, user.SetPhone("+221 77 123 45 67"))
		assert.Equal(t, "+221 77 123 45 67", user.Phone)

		require.NoError(t, user.SetPhone(""))
		assert.Empty(t, user.Phone)
	})

	t.Run("display name falls back to username", func(t *testing.T) {
		user := pendingOfficer(t)
		assert.Equal(t, "aminata.diallo", user.GetDisplayNameOrUsername())

		require.NoError(t, user.SetDisplayName("Aminata Diallo"))
		assert.Equal(t, "Aminata Diallo", user.GetDisplayNameOrUsername())
	})
}

func TestUser_PasswordOperations(t *testing.T) {
	t.Run("verify distinguishes right from wrong", func(t *testing.T) {
		user := pendingOfficer(t)

		assert.True(t, user.VerifyPassword(officerPassword))
		assert.False(t, user.VerifyPassword("Harmattan9"))
	})

	t.Run("change requires the current password", func(t *testing.T) {
		user := pendingOfficer(t)

		require.NoError(t, user.ChangePassword(officerPassword, "Harmattan9"))
		assert.True(t, user.VerifyPassword("Harmattan9"))
		assert.False(t, user.VerifyPassword(officerPassword))

		events := user.GetDomainEvents()
		require.Len(t, events, 1)
		_, ok := events[0].(*UserPasswordChangedEvent)
		assert.True(t, ok)
	})

	t.Run("change with wrong current password fails", func(t *testing.T) {
		user := pendingOfficer(t)

		err := user.ChangePassword("Harmattan9", "Monsoon2026")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "incorrect")
	})

	t.Run("admin reset skips the current password check", func(t *testing.T) {
		user := pendingOfficer(t)

		require.NoError(t, user.SetPassword("Harmattan9"))
		assert.True(t, user.VerifyPassword("Harmattan9"))
	})

	t.Run("forced change clears on the next reset", func(t *testing.T) {
		user := pendingOfficer(t)
		assert.False(t, user.MustChangePassword)

		user.ForcePasswordChange()
		assert.True(t, user.MustChangePassword)

		require.NoError(t, user.SetPassword("Harmattan9"))
		assert.False(t, user.MustChangePassword)
	})
}

func TestUser_RoleOperations(t *testing.T) {
	officerRole := uuid.New()
	managerRole := uuid.New()

	t.Run("assign records an event", func(t *testing.T) {
		user := pendingOfficer(t)

		require.NoError(t, user.AssignRole(officerRole))
		require.Len(t, user.RoleIDs, 1)
		assert.Equal(t, officerRole, user.RoleIDs[0])

		events := user.GetDomainEvents()
		require.Len(t, events, 1)
		event, ok := events[0].(*UserRoleAssignedEvent)
		require.True(t, ok)
		assert.Equal(t, officerRole, event.RoleID)
	})

	t.Run("nil role ID is rejected", func(t *testing.T) {
		user := pendingOfficer(t)

		err := user.AssignRole(uuid.Nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot be empty")
	})

	t.Run("double assignment is rejected", func(t *testing.T) {
		user := pendingOfficer(t)
		require.NoError(t, user.AssignRole(officerRole))

		err := user.AssignRole(officerRole)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already has this role")
	})

	t.Run("remove records an event", func(t *testing.T) {
		user := pendingOfficer(t)
		require.NoError(t, user.AssignRole(officerRole))
		require.NoError(t, user.AssignRole(managerRole))
		user.ClearDomainEvents()

		require.NoError(t, user.RemoveRole(officerRole))
		require.Len(t, user.RoleIDs, 1)
		assert.Equal(t, managerRole, user.RoleIDs[0])

		events := user.GetDomainEvents()
		require.Len(t, events, 1)
		event, ok := events[0].(*UserRoleRemovedEvent)
		require.True(t, ok)
		assert.Equal(t, officerRole, event.RoleID)
	})

	t.Run("removing an unheld role fails", func(t *testing.T) {
		user := pendingOfficer(t)

		err := user.RemoveRole(officerRole)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not have this role")
	})

	t.Run("SetRoles replaces and deduplicates", func(t *testing.T) {
		user := pendingOfficer(t)
		require.NoError(t, user.AssignRole(uuid.New()))

		require.NoError(t, user.SetRoles([]uuid.UUID{officerRole, officerRole, managerRole}))
		assert.Len(t, user.RoleIDs, 2)
	})

	t.Run("HasRole", func(t *testing.T) {
		user := pendingOfficer(t)
		require.NoError(t, user.AssignRole(officerRole))

		assert.True(t, user.HasRole(officerRole))
		assert.False(t, user.HasRole(managerRole))
	})
}

func TestUser_StatusOperations(t *testing.T) {
	t.Run("activation emits a status change", func(t *testing.T) {
		user := pendingOfficer(t)

		require.NoError(t, user.Activate())
		assert.Equal(t, UserStatusActive, user.Status)

		events := user.GetDomainEvents()
		require.Len(t, events, 1)
		event, ok := events[0].(*UserStatusChangedEvent)
		require.True(t, ok)
		assert.Equal(t, UserStatusPending, event.OldStatus)
		assert.Equal(t, UserStatusActive, event.NewStatus)
	})

	t.Run("activating an active account fails", func(t *testing.T) {
		user := activeOfficer(t)

		err := user.Activate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already active")
	})

	t.Run("deactivation emits two events", func(t *testing.T) {
		user := activeOfficer(t)

		require.NoError(t, user.Deactivate())
		assert.Equal(t, UserStatusDeactivated, user.Status)
		assert.Len(t, user.GetDomainEvents(), 2)
	})

	t.Run("double deactivation fails", func(t *testing.T) {
		user := activeOfficer(t)
		require.NoError(t, user.Deactivate())

		err := user.Deactivate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already deactivated")
	})

	t.Run("timed lock sets LockedUntil", func(t *testing.T) {
		user := activeOfficer(t)

		require.NoError(t, user.Lock(time.Hour))
		assert.Equal(t, UserStatusLocked, user.Status)
		assert.NotNil(t, user.LockedUntil)
		assert.True(t, user.IsLocked())
	})

	t.Run("indefinite lock has no expiry", func(t *testing.T) {
		user := activeOfficer(t)

		require.NoError(t, user.Lock(0))
		assert.Nil(t, user.LockedUntil)
		assert.True(t, user.IsLocked())
	})

	t.Run("deactivated accounts cannot be locked", func(t *testing.T) {
		user := activeOfficer(t)
		require.NoError(t, user.Deactivate())

		assert.Error(t, user.Lock(time.Hour))
	})

	t.Run("unlock restores active status", func(t *testing.T) {
		user := activeOfficer(t)
		require.NoError(t, user.Lock(time.Hour))

		require.NoError(t, user.Unlock())
		assert.Equal(t, UserStatusActive, user.Status)
		assert.Nil(t, user.LockedUntil)
		assert.False(t, user.IsLocked())
	})

	t.Run("unlocking an unlocked account fails", func(t *testing.T) {
		user := activeOfficer(t)
		assert.Error(t, user.Unlock())
	})

	t.Run("status predicates", func(t *testing.T) {
		assert.True(t, pendingOfficer(t).IsPending())
		assert.True(t, activeOfficer(t).IsActive())

		deactivated := activeOfficer(t)
		require.NoError(t, deactivated.Deactivate())
		assert.True(t, deactivated.IsDeactivated())
	})
}

func TestUser_LoginOperations(t *testing.T) {
	t.Run("successful login resets the failure counter", func(t *testing.T) {
		user := activeOfficer(t)
		user.FailedAttempts = 3

		user.RecordLoginSuccess("10.20.0.5")

		assert.NotNil(t, user.LastLoginAt)
		assert.Equal(t, "10.20.0.5", user.LastLoginIP)
		assert.Zero(t, user.FailedAttempts)
	})

	t.Run("account locks at the attempt limit", func(t *testing.T) {
		user := activeOfficer(t)
		const maxAttempts = 5

		for i := range maxAttempts - 1 {
			locked := user.RecordLoginFailure(maxAttempts, time.Hour)
			assert.False(t, locked)
			assert.Equal(t, i+1, user.FailedAttempts)
		}

		assert.True(t, user.RecordLoginFailure(maxAttempts, time.Hour))
		assert.True(t, user.IsLocked())
	})

	t.Run("only active unlocked accounts can log in", func(t *testing.T) {
		active := activeOfficer(t)
		assert.True(t, active.CanLogin())

		deactivated := activeOfficer(t)
		require.NoError(t, deactivated.Deactivate())
		assert.False(t, deactivated.CanLogin())

		locked := activeOfficer(t)
		require.NoError(t, locked.Lock(time.Hour))
		assert.False(t, locked.CanLogin())
	})

	t.Run("an expired lock no longer blocks login", func(t *testing.T) {
		user := activeOfficer(t)
		user.Status = UserStatusLocked
		expired := time.Now().Add(-time.Hour)
		user.LockedUntil = &expired

		assert.False(t, user.IsLocked())
		assert.True(t, user.CanLogin())
	})
}
