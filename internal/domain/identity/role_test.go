package identity

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loanOfficerRole(t *testing.T) *Role {
	t.Helper()
	role, err := NewRole(RoleCodeLoanOfficer, "Loan Officer")
	require.NoError(t, err)
	role.ClearDomainEvents()
	return role
}

func mustPermission(t *testing.T, resource, action string) Permission {
	t.Helper()
	perm, err := NewPermission(resource, action)
	require.NoError(t, err)
	return *perm
}

func mustScope(t *testing.T, resource string, scopeType DataScopeType) DataScope {
	t.Helper()
	ds, err := NewDataScope(resource, scopeType)
	require.NoError(t, err)
	return *ds
}

func TestNewPermission(t *testing.T) {
	t.Run("builds the code from resource and action", func(t *testing.T) {
		perm, err := NewPermission("loan", "disburse")
		require.NoError(t, err)
		assert.Equal(t, "loan:disburse", perm.Code)
		assert.Equal(t, "loan", perm.Resource)
		assert.Equal(t, "disburse", perm.Action)
	})

	t.Run("lowercases and trims tokens", func(t *testing.T) {
		perm, err := NewPermission(" Approval_Request ", "Decide")
		require.NoError(t, err)
		assert.Equal(t, "approval_request:decide", perm.Code)
	})

	invalid := []struct {
		name     string
		resource string
		action   string
		wantMsg  string
	}{
		{"empty resource", "", "create", "resource cannot be empty"},
		{"empty action", "loan", "", "action cannot be empty"},
		{"resource starts with a digit", "1loan", "create", "must start with a letter"},
		{"action with a hyphen", "loan", "write-off", "must start with a letter"},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			perm, err := NewPermission(tc.resource, tc.action)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantMsg)
			assert.Nil(t, perm)
		})
	}
}

func TestNewPermissionFromCode(t *testing.T) {
	perm, err := NewPermissionFromCode("rate_change:approve")
	require.NoError(t, err)
	assert.Equal(t, "rate_change", perm.Resource)
	assert.Equal(t, "approve", perm.Action)

	for _, code := range []string{"", "loancreate"} {
		_, err := NewPermissionFromCode(code)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "format 'resource:action'")
	}
}

func TestPermission_ValueSemantics(t *testing.T) {
	disburse := mustPermission(t, "loan", "disburse")
	writeOff := mustPermission(t, "loan", "write_off")

	assert.True(t, disburse.Equals(mustPermission(t, "loan", "disburse")))
	assert.False(t, disburse.Equals(writeOff))
	assert.False(t, disburse.IsEmpty())
	assert.True(t, Permission{}.IsEmpty())
}

func TestNewDataScope(t *testing.T) {
	for _, scopeType := range []DataScopeType{DataScopeAll, DataScopeSelf, DataScopeBranch, DataScopeCustom} {
		ds, err := NewDataScope("loan", scopeType)
		require.NoError(t, err)
		assert.Equal(t, "loan", ds.Resource)
		assert.Equal(t, scopeType, ds.ScopeType)
	}

	_, err := NewDataScope("", DataScopeAll)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resource cannot be empty")

	_, err = NewDataScope("loan", DataScopeType("regional"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid data scope type")
}

func TestNewCustomDataScope(t *testing.T) {
	ds, err := NewCustomDataScope("loan", []string{"dakar-nord", "dakar-sud"})
	require.NoError(t, err)
	assert.Equal(t, DataScopeCustom, ds.ScopeType)
	assert.Equal(t, []string{"dakar-nord", "dakar-sud"}, ds.ScopeValues)

	_, err = NewCustomDataScope("loan", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one scope value")

	t.Run("with an explicit filter column", func(t *testing.T) {
		ds, err := NewCustomDataScopeWithField("loan", "assigned_to", []string{"officer-1"})
		require.NoError(t, err)
		assert.Equal(t, "assigned_to", ds.ScopeField)

		_, err = NewCustomDataScopeWithField("loan", "  ", []string{"officer-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Scope field cannot be empty")
	})
}

func TestNewBranchDataScope(t *testing.T) {
	ds, err := NewBranchDataScope("approval_request", []string{"br-001", "br-002"})
	require.NoError(t, err)
	assert.Equal(t, DataScopeBranch, ds.ScopeType)
	assert.Equal(t, "branch_id", ds.ScopeField)
	assert.Equal(t, []string{"br-001", "br-002"}, ds.ScopeValues)

	_, err = NewBranchDataScope("approval_request", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one branch ID")
}

func TestDataScope_Equals(t *testing.T) {
	branchLoans := mustScope(t, "loan", DataScopeBranch)

	assert.True(t, branchLoans.Equals(mustScope(t, "loan", DataScopeBranch)))
	assert.False(t, branchLoans.Equals(mustScope(t, "loan", DataScopeSelf)))
	assert.False(t, branchLoans.Equals(mustScope(t, "ledger", DataScopeBranch)))

	withValues, err := NewBranchDataScope("loan", []string{"br-001"})
	require.NoError(t, err)
	assert.False(t, branchLoans.Equals(*withValues))
}

func TestNewRole(t *testing.T) {
	t.Run("creates an enabled non-system role", func(t *testing.T) {
		role, err := NewRole("CREDIT_COMMITTEE", "Credit Committee")
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, role.ID)
		assert.Equal(t, "CREDIT_COMMITTEE", role.Code)
		assert.True(t, role.IsEnabled)
		assert.False(t, role.IsSystemRole)
		assert.True(t, role.CanDelete())
		assert.Empty(t, role.Permissions)
		assert.Empty(t, role.DataScopes)

		events := role.GetDomainEvents()
		require.Len(t, events, 1)
		assert.IsType(t, &RoleCreatedEvent{}, events[0])
	})

	t.Run("uppercases the code", func(t *testing.T) {
		role, err := NewRole("branch_manager", "Branch Manager")
		require.NoError(t, err)
		assert.Equal(t, "BRANCH_MANAGER", role.Code)
	})

	invalid := []struct {
		name    string
		code    string
		display string
		wantMsg string
	}{
		{"empty code", "", "Teller", "Role code cannot be empty"},
		{"single-character code", "T", "Teller", "at least 2 characters"},
		{"code starts with a digit", "2ND_REVIEWER", "Second Reviewer", "must start with a letter"},
		{"code with a hyphen", "FIELD-AGENT", "Field Agent", "must start with a letter"},
		{"empty name", "TELLER", "", "Role name cannot be empty"},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRole(tc.code, tc.display)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestNewSystemRole(t *testing.T) {
	admin, err := NewSystemRole(RoleCodeAdmin, "Administrator")
	require.NoError(t, err)
	assert.True(t, admin.IsSystemRole)
	assert.True(t, admin.IsEnabled)
	assert.False(t, admin.CanDelete())
}

func TestRole_Rename(t *testing.T) {
	role := loanOfficerRole(t)
	before := role.Version

	require.NoError(t, role.SetName("Senior Loan Officer"))
	assert.Equal(t, "Senior Loan Officer", role.Name)
	assert.Equal(t, before+1, role.Version)

	err := role.SetName("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be empty")

	t.Run("update changes name and description together", func(t *testing.T) {
		role := loanOfficerRole(t)
		require.NoError(t, role.Update("Field Officer", "Originates loans in the field"))
		assert.Equal(t, "Field Officer", role.Name)
		assert.Equal(t, "Originates loans in the field", role.Description)

		events := role.GetDomainEvents()
		require.Len(t, events, 1)
		assert.IsType(t, &RoleUpdatedEvent{}, events[0])
	})
}

func TestRole_EnableDisable(t *testing.T) {
	role := loanOfficerRole(t)

	require.NoError(t, role.Disable())
	assert.False(t, role.IsEnabled)
	events := role.GetDomainEvents()
	require.Len(t, events, 1)
	assert.IsType(t, &RoleDisabledEvent{}, events[0])

	err := role.Disable()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already disabled")

	role.ClearDomainEvents()
	require.NoError(t, role.Enable())
	assert.True(t, role.IsEnabled)
	events = role.GetDomainEvents()
	require.Len(t, events, 1)
	assert.IsType(t, &RoleEnabledEvent{}, events[0])

	err = role.Enable()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already enabled")
}

func TestRole_PermissionGrants(t *testing.T) {
	t.Run("grant records an event", func(t *testing.T) {
		role := loanOfficerRole(t)

		require.NoError(t, role.GrantPermission(mustPermission(t, "loan", "create")))
		assert.True(t, role.HasPermission("loan:create"))

		events := role.GetDomainEvents()
		require.Len(t, events, 1)
		granted, ok := events[0].(*RolePermissionGrantedEvent)
		require.True(t, ok)
		assert.Equal(t, "loan:create", granted.PermissionCode)
	})

	t.Run("duplicate grant is rejected", func(t *testing.T) {
		role := loanOfficerRole(t)
		require.NoError(t, role.GrantPermissionByCode("loan:create"))

		err := role.GrantPermissionByCode("loan:create")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already has this permission")
	})

	t.Run("empty permission is rejected", func(t *testing.T) {
		role := loanOfficerRole(t)
		err := role.GrantPermission(Permission{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Permission cannot be empty")
	})

	t.Run("revoke removes only the named permission", func(t *testing.T) {
		role := loanOfficerRole(t)
		require.NoError(t, role.GrantPermissionByCode("loan:create"))
		require.NoError(t, role.GrantPermissionByCode("loan:read"))
		role.ClearDomainEvents()

		require.NoError(t, role.RevokePermission("loan:create"))
		assert.False(t, role.HasPermission("loan:create"))
		assert.True(t, role.HasPermission("loan:read"))

		events := role.GetDomainEvents()
		require.Len(t, events, 1)
		revoked, ok := events[0].(*RolePermissionRevokedEvent)
		require.True(t, ok)
		assert.Equal(t, "loan:create", revoked.PermissionCode)

		err := role.RevokePermission("repayment:verify")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not have this permission")
	})

	t.Run("set replaces and deduplicates", func(t *testing.T) {
		role := loanOfficerRole(t)
		require.NoError(t, role.SetPermissions([]Permission{
			mustPermission(t, "loan", "create"),
			mustPermission(t, "loan", "read"),
			mustPermission(t, "loan", "create"),
		}))
		assert.Len(t, role.Permissions, 2)
	})
}

func TestRole_PermissionsByResource(t *testing.T) {
	role := loanOfficerRole(t)
	for _, code := range []string{"loan:create", "loan:read", "repayment:read"} {
		require.NoError(t, role.GrantPermissionByCode(code))
	}

	assert.True(t, role.HasPermissionForResource("loan"))
	assert.True(t, role.HasPermissionForResource("repayment"))
	assert.False(t, role.HasPermissionForResource("ledger"))

	assert.Len(t, role.GetPermissionsForResource("loan"), 2)
	assert.Len(t, role.GetPermissionsForResource("repayment"), 1)
	assert.Empty(t, role.GetPermissionsForResource("ledger"))
}

func TestRole_DataScopes(t *testing.T) {
	t.Run("set records an event", func(t *testing.T) {
		role := loanOfficerRole(t)

		require.NoError(t, role.SetDataScope(mustScope(t, "loan", DataScopeSelf)))
		assert.True(t, role.HasDataScope("loan"))

		events := role.GetDomainEvents()
		require.Len(t, events, 1)
		changed, ok := events[0].(*RoleDataScopeChangedEvent)
		require.True(t, ok)
		assert.Equal(t, "loan", changed.Resource)
		assert.Equal(t, DataScopeSelf, changed.ScopeType)
	})

	t.Run("setting the same resource replaces the scope", func(t *testing.T) {
		role := loanOfficerRole(t)
		require.NoError(t, role.SetDataScope(mustScope(t, "loan", DataScopeSelf)))
		require.NoError(t, role.SetDataScope(mustScope(t, "loan", DataScopeBranch)))

		assert.Len(t, role.DataScopes, 1)
		ds := role.GetDataScope("loan")
		require.NotNil(t, ds)
		assert.Equal(t, DataScopeBranch, ds.ScopeType)
	})

	t.Run("empty scope is rejected", func(t *testing.T) {
		role := loanOfficerRole(t)
		err := role.SetDataScope(DataScope{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Data scope cannot be empty")
	})

	t.Run("remove drops only the named resource", func(t *testing.T) {
		role := loanOfficerRole(t)
		require.NoError(t, role.SetDataScope(mustScope(t, "loan", DataScopeBranch)))
		require.NoError(t, role.SetDataScope(mustScope(t, "ledger", DataScopeAll)))

		require.NoError(t, role.RemoveDataScope("loan"))
		assert.False(t, role.HasDataScope("loan"))
		assert.True(t, role.HasDataScope("ledger"))

		err := role.RemoveDataScope("report")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not have data scope")
	})

	t.Run("bulk set keeps the first scope per resource", func(t *testing.T) {
		role := loanOfficerRole(t)
		require.NoError(t, role.SetDataScopes([]DataScope{
			mustScope(t, "loan", DataScopeSelf),
			mustScope(t, "ledger", DataScopeAll),
			mustScope(t, "loan", DataScopeBranch),
		}))

		assert.Len(t, role.DataScopes, 2)
		ds := role.GetDataScope("loan")
		require.NotNil(t, ds)
		assert.Equal(t, DataScopeSelf, ds.ScopeType)
	})
}

func TestRole_VersionIncrement(t *testing.T) {
	role := loanOfficerRole(t)
	before := role.Version

	role.SetDescription("Originates and services loans")
	role.SetSortOrder(30)
	require.NoError(t, role.GrantPermissionByCode("loan:read"))
	require.NoError(t, role.RevokePermission("loan:read"))

	assert.Equal(t, before+4, role.Version)
}

func TestSeededRoleCodes(t *testing.T) {
	for _, code := range []string{
		RoleCodeAdmin,
		RoleCodeBranchManager,
		RoleCodeLoanOfficer,
		RoleCodeCreditAnalyst,
		RoleCodeAccountant,
		RoleCodeAuditor,
	} {
		role, err := NewSystemRole(code, "Seeded role")
		require.NoError(t, err, "code %s", code)
		assert.Equal(t, code, role.Code)
	}
}

func TestPermissionCatalog(t *testing.T) {
	resources := []string{
		ResourceLoan, ResourceTranche, ResourceRateChange, ResourceRepayment,
		ResourceApprovalWorkflow, ResourceApprovalRequest, ResourceLedger,
		ResourceReport, ResourceUser, ResourceRole, ResourceBranch,
	}
	actions := []string{
		ActionCreate, ActionRead, ActionUpdate, ActionDelete,
		ActionEnable, ActionDisable, ActionSubmit, ActionCancel,
		ActionApprove, ActionReject, ActionDecide, ActionDisburse,
		ActionVerify, ActionWriteOff, ActionLock, ActionUnlock,
		ActionExport, ActionAssignRole, ActionViewAll,
	}

	for _, resource := range resources {
		for _, action := range actions {
			_, err := NewPermission(resource, action)
			require.NoError(t, err, "%s:%s", resource, action)
		}
	}
}
