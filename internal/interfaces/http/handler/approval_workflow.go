package handler

import (
	approvalapp "github.com/mfi/backend/internal/application/approval"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ApprovalWorkflowHandler handles approval workflow definition endpoints
type ApprovalWorkflowHandler struct {
	BaseHandler
	workflowService *approvalapp.WorkflowService
}

// NewApprovalWorkflowHandler creates a new ApprovalWorkflowHandler
func NewApprovalWorkflowHandler(workflowService *approvalapp.WorkflowService) *ApprovalWorkflowHandler {
	return &ApprovalWorkflowHandler{
		workflowService: workflowService,
	}
}

// Create godoc
// @Summary      Create an approval workflow
// @Description  Define a new multi-level approval workflow for an entity type
// @Tags         approval-workflows
// @Accept       json
// @Produce      json
// @Param        request body approvalapp.CreateWorkflowRequest true "Workflow definition"
// @Success      201 {object} dto.Response{data=approvalapp.WorkflowResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /approval-workflows [post]
func (h *ApprovalWorkflowHandler) Create(c *gin.Context) {
	var req approvalapp.CreateWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	workflow, err := h.workflowService.CreateWorkflow(c.Request.Context(), req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, workflow)
}

// Update godoc
// @Summary      Update an approval workflow
// @Description  Update a workflow definition. In-flight requests keep the level count they were submitted with.
// @Tags         approval-workflows
// @Accept       json
// @Produce      json
// @Param        id path string true "Workflow ID" format(uuid)
// @Param        request body approvalapp.UpdateWorkflowRequest true "Workflow update"
// @Success      200 {object} dto.Response{data=approvalapp.WorkflowResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /approval-workflows/{id} [put]
func (h *ApprovalWorkflowHandler) Update(c *gin.Context) {
	workflowID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid workflow ID format")
		return
	}

	var req approvalapp.UpdateWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	workflow, err := h.workflowService.UpdateWorkflow(c.Request.Context(), workflowID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, workflow)
}

// Activate godoc
// @Summary      Activate an approval workflow
// @Tags         approval-workflows
// @Produce      json
// @Param        id path string true "Workflow ID" format(uuid)
// @Success      200 {object} dto.Response{data=approvalapp.WorkflowResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /approval-workflows/{id}/activate [post]
func (h *ApprovalWorkflowHandler) Activate(c *gin.Context) {
	workflowID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid workflow ID format")
		return
	}

	workflow, err := h.workflowService.ActivateWorkflow(c.Request.Context(), workflowID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, workflow)
}

// Deactivate godoc
// @Summary      Deactivate an approval workflow
// @Description  Deactivated workflows are skipped during matching; in-flight requests proceed unaffected
// @Tags         approval-workflows
// @Produce      json
// @Param        id path string true "Workflow ID" format(uuid)
// @Success      200 {object} dto.Response{data=approvalapp.WorkflowResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /approval-workflows/{id}/deactivate [post]
func (h *ApprovalWorkflowHandler) Deactivate(c *gin.Context) {
	workflowID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid workflow ID format")
		return
	}

	workflow, err := h.workflowService.DeactivateWorkflow(c.Request.Context(), workflowID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, workflow)
}

// GetByID godoc
// @Summary      Get approval workflow by ID
// @Tags         approval-workflows
// @Produce      json
// @Param        id path string true "Workflow ID" format(uuid)
// @Success      200 {object} dto.Response{data=approvalapp.WorkflowResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /approval-workflows/{id} [get]
func (h *ApprovalWorkflowHandler) GetByID(c *gin.Context) {
	workflowID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid workflow ID format")
		return
	}

	workflow, err := h.workflowService.GetWorkflowByID(c.Request.Context(), workflowID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, workflow)
}

// List godoc
// @Summary      List approval workflows
// @Tags         approval-workflows
// @Produce      json
// @Param        entity_type query string false "Entity type" Enums(LOAN, DISBURSEMENT, RATE_CHANGE, WRITE_OFF, FEE_WAIVER)
// @Param        branch_id query string false "Branch ID" format(uuid)
// @Param        is_active query bool false "Active flag"
// @Param        search query string false "Search term (code, name)"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} dto.Response{data=[]approvalapp.WorkflowResponse,meta=dto.Meta}
// @Router       /approval-workflows [get]
func (h *ApprovalWorkflowHandler) List(c *gin.Context) {
	var filter approvalapp.WorkflowListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindingError(c, err)
		return
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	workflows, total, err := h.workflowService.ListWorkflows(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, workflows, total, filter.Page, filter.PageSize)
}
