package identity

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mfi/backend/internal/domain/shared"
)

// DataScopeType narrows which rows a role may see for a resource.
type DataScopeType string

const (
	DataScopeAll    DataScopeType = "all"    // every row
	DataScopeSelf   DataScopeType = "self"   // rows created by the user
	DataScopeCustom DataScopeType = "custom" // rows matching explicit scope values
	DataScopeBranch DataScopeType = "branch" // rows within the user's branches
)

var (
	roleCodePattern  = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)
	permTokenPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

// Permission is a functional grant in resource:action form, e.g.
// "loan:create" or "approval_request:decide". Value object.
type Permission struct {
	Code        string
	Resource    string
	Action      string
	Description string
}

// NewPermission creates a Permission from a resource and action.
func NewPermission(resource, action string) (*Permission, error) {
	if err := validatePermToken(resource, "INVALID_PERMISSION_RESOURCE", "Permission resource"); err != nil {
		return nil, err
	}
	if err := validatePermToken(action, "INVALID_PERMISSION_ACTION", "Permission action"); err != nil {
		return nil, err
	}

	resource = strings.ToLower(strings.TrimSpace(resource))
	action = strings.ToLower(strings.TrimSpace(action))

	return &Permission{
		Code:     resource + ":" + action,
		Resource: resource,
		Action:   action,
	}, nil
}

// NewPermissionFromCode parses a "resource:action" code.
func NewPermissionFromCode(code string) (*Permission, error) {
	parts := strings.SplitN(code, ":", 2)
	if len(parts) != 2 {
		return nil, shared.NewDomainError("INVALID_PERMISSION_CODE", "Permission code must be in format 'resource:action'")
	}
	return NewPermission(parts[0], parts[1])
}

func (p Permission) Equals(other Permission) bool { return p.Code == other.Code }

func (p Permission) IsEmpty() bool { return p.Code == "" }

// DataScope is a row-level visibility rule for one resource. Value object.
type DataScope struct {
	Resource    string
	ScopeType   DataScopeType
	ScopeField  string   // column the rule filters on, e.g. "branch_id"
	ScopeValues []string // explicit values for custom and branch scopes
	Description string
}

// NewDataScope creates a DataScope of the given type with no values.
func NewDataScope(resource string, scopeType DataScopeType) (*DataScope, error) {
	if err := validatePermToken(resource, "INVALID_PERMISSION_RESOURCE", "Permission resource"); err != nil {
		return nil, err
	}
	switch scopeType {
	case DataScopeAll, DataScopeSelf, DataScopeCustom, DataScopeBranch:
	default:
		return nil, shared.NewDomainError("INVALID_DATA_SCOPE_TYPE", "Invalid data scope type")
	}

	return &DataScope{
		Resource:    strings.ToLower(strings.TrimSpace(resource)),
		ScopeType:   scopeType,
		ScopeValues: make([]string, 0),
	}, nil
}

// NewCustomDataScope creates a custom scope restricted to explicit values.
func NewCustomDataScope(resource string, scopeValues []string) (*DataScope, error) {
	ds, err := NewDataScope(resource, DataScopeCustom)
	if err != nil {
		return nil, err
	}
	if len(scopeValues) == 0 {
		return nil, shared.NewDomainError("INVALID_SCOPE_VALUES", "Custom data scope must have at least one scope value")
	}

	ds.ScopeValues = append([]string{}, scopeValues...)
	return ds, nil
}

// NewCustomDataScopeWithField creates a custom scope filtering a named column.
func NewCustomDataScopeWithField(resource, scopeField string, scopeValues []string) (*DataScope, error) {
	ds, err := NewCustomDataScope(resource, scopeValues)
	if err != nil {
		return nil, err
	}

	scopeField = strings.TrimSpace(scopeField)
	if scopeField == "" {
		return nil, shared.NewDomainError("INVALID_SCOPE_FIELD", "Scope field cannot be empty for custom data scope with field")
	}
	ds.ScopeField = scopeField
	return ds, nil
}

// NewBranchDataScope restricts a resource to the given branches. Branch
// staff see only loans and related records booked at their branches.
func NewBranchDataScope(resource string, branchIDs []string) (*DataScope, error) {
	if err := validatePermToken(resource, "INVALID_PERMISSION_RESOURCE", "Permission resource"); err != nil {
		return nil, err
	}
	if len(branchIDs) == 0 {
		return nil, shared.NewDomainError("INVALID_BRANCH_IDS", "Branch data scope must have at least one branch ID")
	}

	return &DataScope{
		Resource:    strings.ToLower(strings.TrimSpace(resource)),
		ScopeType:   DataScopeBranch,
		ScopeField:  "branch_id",
		ScopeValues: append([]string{}, branchIDs...),
	}, nil
}

func (ds *DataScope) SetDescription(description string) {
	ds.Description = description
}

// Equals compares all fields; scope value order matters.
func (ds DataScope) Equals(other DataScope) bool {
	if ds.Resource != other.Resource || ds.ScopeType != other.ScopeType || ds.ScopeField != other.ScopeField {
		return false
	}
	if len(ds.ScopeValues) != len(other.ScopeValues) {
		return false
	}
	for i, v := range ds.ScopeValues {
		if v != other.ScopeValues[i] {
			return false
		}
	}
	return true
}

func (ds DataScope) IsEmpty() bool { return ds.Resource == "" }

// Role is the aggregate root of the RBAC model. A role bundles
// functional permissions with per-resource data scopes. System roles
// are seeded at install time and cannot be deleted.
type Role struct {
	shared.BaseAggregateRoot
	Code         string
	Name         string
	Description  string
	IsSystemRole bool
	IsEnabled    bool
	SortOrder    int
	Permissions  []Permission // join table, loaded by the repository
	DataScopes   []DataScope  // join table, loaded by the repository
}

// RolePermission is the persistence row linking a role to a permission.
type RolePermission struct {
	RoleID      uuid.UUID
	Code        string
	Resource    string
	Action      string
	Description string
	CreatedAt   time.Time
}

// RoleDataScope is the persistence row for a role's data scope.
type RoleDataScope struct {
	RoleID      uuid.UUID
	Resource    string
	ScopeType   DataScopeType
	ScopeField  string
	ScopeValues string // JSON array for custom scopes
	Description string
	CreatedAt   time.Time
}

// NewRole creates an enabled, non-system role.
func NewRole(code, name string) (*Role, error) {
	if err := validateRoleCode(code); err != nil {
		return nil, err
	}
	if err := validateRoleName(name); err != nil {
		return nil, err
	}

	role := &Role{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Code:              strings.ToUpper(strings.TrimSpace(code)),
		Name:              strings.TrimSpace(name),
		IsEnabled:         true,
		Permissions:       make([]Permission, 0),
		DataScopes:        make([]DataScope, 0),
	}
	role.AddDomainEvent(NewRoleCreatedEvent(role))
	return role, nil
}

// NewSystemRole creates a role that cannot be deleted.
func NewSystemRole(code, name string) (*Role, error) {
	role, err := NewRole(code, name)
	if err != nil {
		return nil, err
	}
	role.IsSystemRole = true
	return role, nil
}

// touch records a mutation for optimistic locking.
func (r *Role) touch() {
	r.UpdatedAt = time.Now()
	r.IncrementVersion()
}

func (r *Role) SetName(name string) error {
	if err := validateRoleName(name); err != nil {
		return err
	}
	r.Name = strings.TrimSpace(name)
	r.touch()
	return nil
}

func (r *Role) SetDescription(description string) {
	r.Description = description
	r.touch()
}

func (r *Role) SetSortOrder(order int) {
	r.SortOrder = order
	r.touch()
}

// Enable re-enables a disabled role.
func (r *Role) Enable() error {
	if r.IsEnabled {
		return shared.NewDomainError("ALREADY_ENABLED", "Role is already enabled")
	}
	r.IsEnabled = true
	r.touch()
	r.AddDomainEvent(NewRoleEnabledEvent(r))
	return nil
}

// Disable stops the role from granting its permissions at login.
func (r *Role) Disable() error {
	if !r.IsEnabled {
		return shared.NewDomainError("ALREADY_DISABLED", "Role is already disabled")
	}
	r.IsEnabled = false
	r.touch()
	r.AddDomainEvent(NewRoleDisabledEvent(r))
	return nil
}

// GrantPermission adds a permission. Duplicate grants are rejected.
func (r *Role) GrantPermission(perm Permission) error {
	if perm.IsEmpty() {
		return shared.NewDomainError("INVALID_PERMISSION", "Permission cannot be empty")
	}
	if r.HasPermission(perm.Code) {
		return shared.NewDomainError("PERMISSION_ALREADY_GRANTED", "Role already has this permission")
	}

	r.Permissions = append(r.Permissions, perm)
	r.touch()
	r.AddDomainEvent(NewRolePermissionGrantedEvent(r, perm))
	return nil
}

// GrantPermissionByCode parses and grants a "resource:action" code.
func (r *Role) GrantPermissionByCode(code string) error {
	perm, err := NewPermissionFromCode(code)
	if err != nil {
		return err
	}
	return r.GrantPermission(*perm)
}

// RevokePermission removes a permission by code.
func (r *Role) RevokePermission(code string) error {
	if code == "" {
		return shared.NewDomainError("INVALID_PERMISSION_CODE", "Permission code cannot be empty")
	}

	kept := make([]Permission, 0, len(r.Permissions))
	var revoked *Permission
	for _, p := range r.Permissions {
		if p.Code == code {
			p := p
			revoked = &p
			continue
		}
		kept = append(kept, p)
	}
	if revoked == nil {
		return shared.NewDomainError("PERMISSION_NOT_FOUND", "Role does not have this permission")
	}

	r.Permissions = kept
	r.touch()
	r.AddDomainEvent(NewRolePermissionRevokedEvent(r, *revoked))
	return nil
}

// SetPermissions replaces the whole permission set, deduplicating by code.
func (r *Role) SetPermissions(permissions []Permission) error {
	seen := make(map[string]bool, len(permissions))
	unique := make([]Permission, 0, len(permissions))
	for _, p := range permissions {
		if p.IsEmpty() {
			return shared.NewDomainError("INVALID_PERMISSION", "Permission cannot be empty")
		}
		if seen[p.Code] {
			continue
		}
		seen[p.Code] = true
		unique = append(unique, p)
	}

	r.Permissions = unique
	r.touch()
	return nil
}

func (r *Role) HasPermission(code string) bool {
	for _, p := range r.Permissions {
		if p.Code == code {
			return true
		}
	}
	return false
}

// HasPermissionForResource reports whether the role holds any action on
// the resource.
func (r *Role) HasPermissionForResource(resource string) bool {
	return len(r.GetPermissionsForResource(resource)) > 0
}

// GetPermissionsForResource returns the role's permissions on one resource.
func (r *Role) GetPermissionsForResource(resource string) []Permission {
	resource = strings.ToLower(strings.TrimSpace(resource))
	result := make([]Permission, 0)
	for _, p := range r.Permissions {
		if p.Resource == resource {
			result = append(result, p)
		}
	}
	return result
}

// SetDataScope installs a data scope for a resource, replacing any
// existing scope on the same resource.
func (r *Role) SetDataScope(ds DataScope) error {
	if ds.IsEmpty() {
		return shared.NewDomainError("INVALID_DATA_SCOPE", "Data scope cannot be empty")
	}

	kept := make([]DataScope, 0, len(r.DataScopes)+1)
	for _, s := range r.DataScopes {
		if s.Resource != ds.Resource {
			kept = append(kept, s)
		}
	}
	r.DataScopes = append(kept, ds)
	r.touch()
	r.AddDomainEvent(NewRoleDataScopeChangedEvent(r, ds))
	return nil
}

// RemoveDataScope drops the data scope for a resource.
func (r *Role) RemoveDataScope(resource string) error {
	resource = strings.ToLower(strings.TrimSpace(resource))

	found := false
	kept := make([]DataScope, 0, len(r.DataScopes))
	for _, s := range r.DataScopes {
		if s.Resource == resource {
			found = true
			continue
		}
		kept = append(kept, s)
	}
	if !found {
		return shared.NewDomainError("DATA_SCOPE_NOT_FOUND", "Role does not have data scope for this resource")
	}

	r.DataScopes = kept
	r.touch()
	return nil
}

// SetDataScopes replaces all data scopes, keeping the first scope per resource.
func (r *Role) SetDataScopes(scopes []DataScope) error {
	seen := make(map[string]bool, len(scopes))
	unique := make([]DataScope, 0, len(scopes))
	for _, s := range scopes {
		if s.IsEmpty() {
			return shared.NewDomainError("INVALID_DATA_SCOPE", "Data scope cannot be empty")
		}
		if seen[s.Resource] {
			continue
		}
		seen[s.Resource] = true
		unique = append(unique, s)
	}

	r.DataScopes = unique
	r.touch()
	return nil
}

// GetDataScope returns the scope for a resource, or nil.
func (r *Role) GetDataScope(resource string) *DataScope {
	resource = strings.ToLower(strings.TrimSpace(resource))
	for _, s := range r.DataScopes {
		if s.Resource == resource {
			return &s
		}
	}
	return nil
}

func (r *Role) HasDataScope(resource string) bool {
	return r.GetDataScope(resource) != nil
}

func (r *Role) CanDelete() bool {
	return !r.IsSystemRole
}

// Update changes the role's display name and description together.
func (r *Role) Update(name, description string) error {
	if err := r.SetName(name); err != nil {
		return err
	}
	r.SetDescription(description)
	r.AddDomainEvent(NewRoleUpdatedEvent(r))
	return nil
}

func validateRoleCode(code string) error {
	code = strings.TrimSpace(code)
	switch {
	case code == "":
		return shared.NewDomainError("INVALID_ROLE_CODE", "Role code cannot be empty")
	case len(code) < 2:
		return shared.NewDomainError("INVALID_ROLE_CODE", "Role code must be at least 2 characters")
	case len(code) > 50:
		return shared.NewDomainError("INVALID_ROLE_CODE", "Role code cannot exceed 50 characters")
	case !roleCodePattern.MatchString(code):
		return shared.NewDomainError("INVALID_ROLE_CODE", "Role code must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

func validateRoleName(name string) error {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return shared.NewDomainError("INVALID_ROLE_NAME", "Role name cannot be empty")
	case len(name) > 100:
		return shared.NewDomainError("INVALID_ROLE_NAME", "Role name cannot exceed 100 characters")
	}
	return nil
}

// validatePermToken checks a permission resource or action token.
func validatePermToken(token, code, label string) error {
	token = strings.TrimSpace(token)
	switch {
	case token == "":
		return shared.NewDomainError(code, label+" cannot be empty")
	case len(token) > 50:
		return shared.NewDomainError(code, label+" cannot exceed 50 characters")
	case !permTokenPattern.MatchString(strings.ToLower(token)):
		return shared.NewDomainError(code, label+" must start with a letter and contain only lowercase letters, numbers, and underscores")
	}
	return nil
}

// Seeded system role codes.
const (
	RoleCodeAdmin         = "ADMIN"
	RoleCodeBranchManager = "BRANCH_MANAGER"
	RoleCodeLoanOfficer   = "LOAN_OFFICER"
	RoleCodeCreditAnalyst = "CREDIT_ANALYST"
	RoleCodeAccountant    = "ACCOUNTANT"
	RoleCodeAuditor       = "AUDITOR"
)

// Permission resources.
const (
	ResourceLoan             = "loan"
	ResourceTranche          = "tranche"
	ResourceRateChange       = "rate_change"
	ResourceRepayment        = "repayment"
	ResourceApprovalWorkflow = "approval_workflow"
	ResourceApprovalRequest  = "approval_request"
	ResourceLedger           = "ledger"
	ResourceReport           = "report"
	ResourceUser             = "user"
	ResourceRole             = "role"
	ResourceBranch           = "branch"
)

// Permission actions.
const (
	ActionCreate     = "create"
	ActionRead       = "read"
	ActionUpdate     = "update"
	ActionDelete     = "delete"
	ActionEnable     = "enable"
	ActionDisable    = "disable"
	ActionSubmit     = "submit"
	ActionCancel     = "cancel"
	ActionApprove    = "approve"
	ActionReject     = "reject"
	ActionDecide     = "decide"
	ActionDisburse   = "disburse"
	ActionVerify     = "verify"
	ActionWriteOff   = "write_off"
	ActionLock       = "lock"
	ActionUnlock     = "unlock"
	ActionExport     = "export"
	ActionAssignRole = "assign_role"
	ActionViewAll    = "view_all"
)
