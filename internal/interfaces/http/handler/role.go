package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mfi/backend/internal/application/identity"
	domainIdentity "github.com/mfi/backend/internal/domain/identity"
	"github.com/mfi/backend/internal/interfaces/http/middleware"
)

// RoleHandler handles role management endpoints.
type RoleHandler struct {
	BaseHandler
	roleService *identity.RoleService
}

func NewRoleHandler(roleService *identity.RoleService) *RoleHandler {
	return &RoleHandler{
		roleService: roleService,
	}
}

// pathRoleID parses the :id path parameter. Writes the error response
// on failure.
func (h *RoleHandler) pathRoleID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid role ID")
		return uuid.Nil, false
	}
	return id, true
}

// requireAuth rejects unauthenticated calls. Writes the error response
// on failure.
func (h *RoleHandler) requireAuth(c *gin.Context) bool {
	if middleware.GetJWTClaims(c) == nil {
		h.Unauthorized(c, "Authentication required")
		return false
	}
	return true
}

// respondRole runs an operation against the :id role and writes the result.
func (h *RoleHandler) respondRole(c *gin.Context, apply func(context.Context, uuid.UUID) (*identity.RoleDTO, error)) {
	id, ok := h.pathRoleID(c)
	if !ok {
		return
	}

	role, err := apply(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toRoleResponse(role))
}

// Create godoc
//
//	@ID				createRole
//	@Summary		Create a new role
//	@Description	Create a new role in the system
//	@Tags			roles
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CreateRoleRequest	true	"Role creation request"
//	@Success		201		{object}	APIResponse[RoleResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		403		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/identity/roles [post]
func (h *RoleHandler) Create(c *gin.Context) {
	var req CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	if !h.requireAuth(c) {
		return
	}

	role, err := h.roleService.Create(c.Request.Context(), identity.CreateRoleInput{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Permissions: req.Permissions,
		SortOrder:   req.SortOrder,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toRoleResponse(role))
}

// GetByID godoc
//
//	@ID				getRoleById
//	@Summary		Get a role by ID
//	@Description	Retrieve a role by its ID
//	@Tags			roles
//	@Produce		json
//	@Param			id	path		string	true	"Role ID"	format(uuid)
//	@Success		200	{object}	APIResponse[RoleResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/identity/roles/{id} [get]
func (h *RoleHandler) GetByID(c *gin.Context) {
	h.respondRole(c, h.roleService.GetByID)
}

// GetByCode godoc
//
//	@ID				getRoleByCode
//	@Summary		Get a role by code
//	@Description	Retrieve a role by its code
//	@Tags			roles
//	@Produce		json
//	@Param			code	path		string	true	"Role code"
//	@Success		200		{object}	APIResponse[RoleResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/identity/roles/code/{code} [get]
func (h *RoleHandler) GetByCode(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		h.BadRequest(c, "Role code is required")
		return
	}
	if !h.requireAuth(c) {
		return
	}

	role, err := h.roleService.GetByCode(c.Request.Context(), code)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toRoleResponse(role))
}

// List godoc
//
//	@ID				listRoles
//	@Summary		List roles
//	@Description	Get a paginated list of roles
//	@Tags			roles
//	@Produce		json
//	@Param			keyword			query		string	false	"Search keyword"
//	@Param			is_enabled		query		bool	false	"Filter by enabled status"
//	@Param			is_system_role	query		bool	false	"Filter by system role"
//	@Param			page			query		int		false	"Page number"		default(1)
//	@Param			page_size		query		int		false	"Items per page"	default(20)	maximum(100)
//	@Success		200				{object}	APIResponse[RoleListResponse]
//	@Failure		400				{object}	ErrorResponse
//	@Failure		401				{object}	ErrorResponse
//	@Failure		500				{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/identity/roles [get]
func (h *RoleHandler) List(c *gin.Context) {
	var query RoleListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BindingError(c, err)
		return
	}
	if !h.requireAuth(c) {
		return
	}

	filter := &domainIdentity.RoleFilter{
		Keyword:      query.Keyword,
		IsEnabled:    query.IsEnabled,
		IsSystemRole: query.IsSystemRole,
		Page:         query.Page,
		Limit:        query.PageSize,
	}
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.Limit == 0 {
		filter.Limit = 20
	}

	result, err := h.roleService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toRoleListResponse(result))
}

// Update godoc
//
//	@ID				updateRole
//	@Summary		Update a role
//	@Description	Update a role's display fields
//	@Tags			roles
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Role ID"	format(uuid)
//	@Param			request	body		UpdateRoleRequest	true	"Role update request"
//	@Success		200		{object}	APIResponse[RoleResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/identity/roles/{id} [put]
func (h *RoleHandler) Update(c *gin.Context) {
	id, ok := h.pathRoleID(c)
	if !ok {
		return
	}

	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	role, err := h.roleService.Update(c.Request.Context(), identity.UpdateRoleInput{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		SortOrder:   req.SortOrder,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toRoleResponse(role))
}

// Delete godoc
//
//	@ID				deleteRole
//	@Summary		Delete a role
//	@Description	Delete a role from the system
//	@Tags			roles
//	@Produce		json
//	@Param			id	path		string	true	"Role ID"	format(uuid)
//	@Success		200	{object}	SuccessResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/identity/roles/{id} [delete]
func (h *RoleHandler) Delete(c *gin.Context) {
	id, ok := h.pathRoleID(c)
	if !ok {
		return
	}

	if err := h.roleService.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, MessageData{Message: "Role deleted successfully"})
}

// Enable godoc
//
//	@ID				enableRole
//	@Summary		Enable a role
//	@Description	Enable a role
//	@Tags			roles
//	@Accept			json
//	@Produce		json
//	@Param			id	path		string	true	"Role ID"	format(uuid)
//	@Success		200	{object}	APIResponse[RoleResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/identity/roles/{id}/enable [post]
func (h *RoleHandler) Enable(c *gin.Context) {
	h.respondRole(c, h.roleService.Enable)
}

// Disable godoc
//
//	@ID				disableRole
//	@Summary		Disable a role
//	@Description	Disable a role
//	@Tags			roles
//	@Accept			json
//	@Produce		json
//	@Param			id	path		string	true	"Role ID"	format(uuid)
//	@Success		200	{object}	APIResponse[RoleResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/identity/roles/{id}/disable [post]
func (h *RoleHandler) Disable(c *gin.Context) {
	h.respondRole(c, h.roleService.Disable)
}

// SetPermissions godoc
//
//	@ID				setPermissionsRole
//	@Summary		Set role permissions
//	@Description	Replace a role's entire permission set
//	@Tags			roles
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Role ID"	format(uuid)
//	@Param			request	body		SetPermissionsRequest	true	"Permissions"
//	@Success		200		{object}	APIResponse[RoleResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/identity/roles/{id}/permissions [put]
func (h *RoleHandler) SetPermissions(c *gin.Context) {
	var req SetPermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	h.respondRole(c, func(ctx context.Context, id uuid.UUID) (*identity.RoleDTO, error) {
		return h.roleService.SetPermissions(ctx, id, req.Permissions)
	})
}

// SetDataScopes godoc
//
//	@ID				setDataScopesRole
//	@Summary		Set role data scopes
//	@Description	Replace a role's row-visibility rules
//	@Tags			roles
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Role ID"	format(uuid)
//	@Param			request	body		SetDataScopesRequest	true	"Data scope rules"
//	@Success		200		{object}	APIResponse[RoleResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/identity/roles/{id}/datascopes [put]
func (h *RoleHandler) SetDataScopes(c *gin.Context) {
	var req SetDataScopesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	inputs := make([]identity.DataScopeInput, len(req.Scopes))
	for i, rule := range req.Scopes {
		inputs[i] = identity.DataScopeInput{
			Resource:    rule.Resource,
			ScopeType:   rule.ScopeType,
			ScopeField:  rule.ScopeField,
			ScopeValues: rule.ScopeValues,
		}
	}

	h.respondRole(c, func(ctx context.Context, id uuid.UUID) (*identity.RoleDTO, error) {
		return h.roleService.SetDataScopes(ctx, id, inputs)
	})
}

// GetPermissions godoc
//
//	@ID				getRolePermissions
//	@Summary		Get all available permissions
//	@Description	Get all available permission codes
//	@Tags			roles
//	@Produce		json
//	@Success		200	{object}	APIResponse[PermissionListResponse]
//	@Failure		401	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/identity/permissions [get]
func (h *RoleHandler) GetPermissions(c *gin.Context) {
	if !h.requireAuth(c) {
		return
	}

	permissions, err := h.roleService.GetAllPermissionCodes(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	// An empty catalog means permissions were never seeded; fall back
	// to the built-in set.
	if len(permissions) == 0 {
		permissions = builtinPermissionCodes()
	}

	h.Success(c, PermissionListResponse{Permissions: permissions})
}

// GetSystemRoles godoc
//
//	@ID				getRoleSystemRoles
//	@Summary		Get system roles
//	@Description	Get all system roles
//	@Tags			roles
//	@Produce		json
//	@Success		200	{object}	APIResponse[[]RoleResponse]
//	@Failure		401	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/identity/roles/system [get]
func (h *RoleHandler) GetSystemRoles(c *gin.Context) {
	if !h.requireAuth(c) {
		return
	}

	roles, err := h.roleService.GetSystemRoles(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]RoleResponse, len(roles))
	for i, role := range roles {
		responses[i] = *toRoleResponse(&role)
	}

	h.Success(c, responses)
}

// Count godoc
//
//	@ID				countRoles
//	@Summary		Get role count
//	@Description	Get the total number of roles
//	@Tags			roles
//	@Produce		json
//	@Success		200	{object}	APIResponse[CountData]
//	@Failure		401	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/identity/roles/stats/count [get]
func (h *RoleHandler) Count(c *gin.Context) {
	if !h.requireAuth(c) {
		return
	}

	count, err := h.roleService.Count(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"count": count})
}

func toRoleResponse(role *identity.RoleDTO) *RoleResponse {
	return &RoleResponse{
		ID:           role.ID,
		Code:         role.Code,
		Name:         role.Name,
		Description:  role.Description,
		IsSystemRole: role.IsSystemRole,
		IsEnabled:    role.IsEnabled,
		SortOrder:    role.SortOrder,
		Permissions:  role.Permissions,
		UserCount:    role.UserCount,
		CreatedAt:    role.CreatedAt,
		UpdatedAt:    role.UpdatedAt,
	}
}

func toRoleListResponse(result *identity.RoleListResult) *RoleListResponse {
	roles := make([]RoleResponse, len(result.Roles))
	for i, role := range result.Roles {
		roles[i] = *toRoleResponse(&role)
	}

	return &RoleListResponse{
		Roles:      roles,
		Total:      result.Total,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalPages: result.TotalPages,
	}
}

// builtinPermissionCodes enumerates the permission catalog from the
// domain constants: CRUD on every resource plus the workflow-specific
// actions.
func builtinPermissionCodes() []string {
	resources := []string{
		domainIdentity.ResourceLoan,
		domainIdentity.ResourceTranche,
		domainIdentity.ResourceRateChange,
		domainIdentity.ResourceRepayment,
		domainIdentity.ResourceApprovalWorkflow,
		domainIdentity.ResourceApprovalRequest,
		domainIdentity.ResourceLedger,
		domainIdentity.ResourceReport,
		domainIdentity.ResourceUser,
		domainIdentity.ResourceRole,
		domainIdentity.ResourceBranch,
	}
	crud := []string{
		domainIdentity.ActionCreate,
		domainIdentity.ActionRead,
		domainIdentity.ActionUpdate,
		domainIdentity.ActionDelete,
	}

	special := []string{
		domainIdentity.ResourceLoan + ":" + domainIdentity.ActionSubmit,
		domainIdentity.ResourceLoan + ":" + domainIdentity.ActionCancel,
		domainIdentity.ResourceLoan + ":" + domainIdentity.ActionApprove,
		domainIdentity.ResourceLoan + ":" + domainIdentity.ActionWriteOff,
		domainIdentity.ResourceTranche + ":" + domainIdentity.ActionVerify,
		domainIdentity.ResourceTranche + ":" + domainIdentity.ActionDisburse,
		domainIdentity.ResourceRateChange + ":" + domainIdentity.ActionApprove,
		domainIdentity.ResourceRepayment + ":" + domainIdentity.ActionVerify,
		domainIdentity.ResourceApprovalWorkflow + ":" + domainIdentity.ActionEnable,
		domainIdentity.ResourceApprovalWorkflow + ":" + domainIdentity.ActionDisable,
		domainIdentity.ResourceApprovalRequest + ":" + domainIdentity.ActionDecide,
		domainIdentity.ResourceApprovalRequest + ":" + domainIdentity.ActionCancel,
		domainIdentity.ResourceUser + ":" + domainIdentity.ActionLock,
		domainIdentity.ResourceUser + ":" + domainIdentity.ActionUnlock,
		domainIdentity.ResourceUser + ":" + domainIdentity.ActionAssignRole,
		domainIdentity.ResourceRole + ":" + domainIdentity.ActionEnable,
		domainIdentity.ResourceRole + ":" + domainIdentity.ActionDisable,
		domainIdentity.ResourceReport + ":" + domainIdentity.ActionExport,
		domainIdentity.ResourceReport + ":" + domainIdentity.ActionViewAll,
	}

	permissions := make([]string, 0, len(resources)*len(crud)+len(special))
	for _, resource := range resources {
		for _, action := range crud {
			permissions = append(permissions, resource+":"+action)
		}
	}
	return append(permissions, special...)
}
