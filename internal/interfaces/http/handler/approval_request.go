package handler

import (
	"time"

	approvalapp "github.com/mfi/backend/internal/application/approval"
	"github.com/mfi/backend/internal/domain/approval"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ApprovalRequestHandler handles approval request endpoints
type ApprovalRequestHandler struct {
	BaseHandler
	approvalService *approvalapp.ApprovalService
}

// NewApprovalRequestHandler creates a new ApprovalRequestHandler
func NewApprovalRequestHandler(approvalService *approvalapp.ApprovalService) *ApprovalRequestHandler {
	return &ApprovalRequestHandler{
		approvalService: approvalService,
	}
}

// SubmitApprovalRequest represents a request to submit an entity for approval
// @Description Request body for submitting an entity for approval
type SubmitApprovalRequest struct {
	EntityType string   `json:"entity_type" binding:"required" example:"LOAN"`
	EntityID   string   `json:"entity_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	Amount     *float64 `json:"amount" example:"250000.00"`
	BranchID   *string  `json:"branch_id" example:"550e8400-e29b-41d4-a716-446655440001"`
	Comments   string   `json:"comments" binding:"max=500" example:"Loan application for working capital"`
}

// DecideApprovalRequest represents one approver decision on a pending request
// @Description Request body for recording an approval decision
type DecideApprovalRequest struct {
	Level   int    `json:"level" binding:"required,min=1" example:"1"`
	Outcome string `json:"outcome" binding:"required,oneof=APPROVE REJECT" example:"APPROVE"`
	Comment string `json:"comment" binding:"max=500" example:"Documents verified"`
}

// CancelApprovalRequest represents a request to cancel a pending approval
// @Description Request body for cancelling an approval request
type CancelApprovalRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500" example:"Submitted in error"`
}

// Submit godoc
// @Summary      Submit an entity for approval
// @Description  Match the entity against active workflows and open an approval request
// @Tags         approval-requests
// @Accept       json
// @Produce      json
// @Param        request body SubmitApprovalRequest true "Submission request"
// @Success      201 {object} dto.Response{data=approvalapp.RequestResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /approval-requests [post]
func (h *ApprovalRequestHandler) Submit(c *gin.Context) {
	submittedBy, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "User identity required")
		return
	}

	var req SubmitApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	entityID, err := uuid.Parse(req.EntityID)
	if err != nil {
		h.BadRequest(c, "Invalid entity ID format")
		return
	}

	appReq := approvalapp.SubmitRequest{
		EntityType:  approval.EntityType(req.EntityType),
		EntityID:    entityID,
		SubmittedBy: submittedBy,
		Comments:    req.Comments,
	}

	if req.Amount != nil {
		appReq.Amount = decimalPtrFrom(*req.Amount)
	}

	if req.BranchID != nil && *req.BranchID != "" {
		branchID, err := uuid.Parse(*req.BranchID)
		if err != nil {
			h.BadRequest(c, "Invalid branch ID format")
			return
		}
		appReq.BranchID = &branchID
	} else if branchID, err := getBranchID(c); err == nil && branchID != nil {
		// Branch staff default to their own branch scope
		appReq.BranchID = branchID
	}

	request, err := h.approvalService.Submit(c.Request.Context(), appReq)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, request)
}

// Decide godoc
// @Summary      Record an approval decision
// @Description  Record one approver decision at a level. Repeating an identical decision is a no-op.
// @Tags         approval-requests
// @Accept       json
// @Produce      json
// @Param        id path string true "Approval Request ID" format(uuid)
// @Param        request body DecideApprovalRequest true "Decision request"
// @Success      200 {object} dto.Response{data=approvalapp.RequestResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /approval-requests/{id}/decisions [post]
func (h *ApprovalRequestHandler) Decide(c *gin.Context) {
	approverID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "User identity required")
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid request ID format")
		return
	}

	var req DecideApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	request, err := h.approvalService.Decide(c.Request.Context(), approvalapp.DecideRequest{
		RequestID:  requestID,
		Level:      req.Level,
		ApproverID: approverID,
		Outcome:    approval.DecisionOutcome(req.Outcome),
		Comment:    req.Comment,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, request)
}

// Cancel godoc
// @Summary      Cancel a pending approval request
// @Tags         approval-requests
// @Accept       json
// @Produce      json
// @Param        id path string true "Approval Request ID" format(uuid)
// @Param        request body CancelApprovalRequest true "Cancel request"
// @Success      200 {object} dto.Response{data=approvalapp.RequestResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /approval-requests/{id}/cancel [post]
func (h *ApprovalRequestHandler) Cancel(c *gin.Context) {
	cancelledBy, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "User identity required")
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid request ID format")
		return
	}

	var req CancelApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	request, err := h.approvalService.Cancel(c.Request.Context(), requestID, cancelledBy, req.Reason)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, request)
}

// GetByID godoc
// @Summary      Get approval request by ID
// @Tags         approval-requests
// @Produce      json
// @Param        id path string true "Approval Request ID" format(uuid)
// @Success      200 {object} dto.Response{data=approvalapp.RequestResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /approval-requests/{id} [get]
func (h *ApprovalRequestHandler) GetByID(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid request ID format")
		return
	}

	request, err := h.approvalService.GetRequestByID(c.Request.Context(), requestID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, request)
}

// List godoc
// @Summary      List approval requests
// @Tags         approval-requests
// @Produce      json
// @Param        entity_type query string false "Entity type"
// @Param        entity_id query string false "Entity ID" format(uuid)
// @Param        status query string false "Request status" Enums(PENDING, APPROVED, REJECTED, CANCELLED)
// @Param        branch_id query string false "Branch ID" format(uuid)
// @Param        submitted_by query string false "Submitter ID" format(uuid)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} dto.Response{data=[]approvalapp.RequestResponse,meta=dto.Meta}
// @Router       /approval-requests [get]
func (h *ApprovalRequestHandler) List(c *gin.Context) {
	var filter approvalapp.RequestListFilter
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

	requests, total, err := h.approvalService.ListRequests(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, requests, total, filter.Page, filter.PageSize)
}

// ListOverdue godoc
// @Summary      List approval requests past their SLA deadline
// @Tags         approval-requests
// @Produce      json
// @Success      200 {object} dto.Response{data=[]approvalapp.RequestResponse}
// @Router       /approval-requests/overdue [get]
func (h *ApprovalRequestHandler) ListOverdue(c *gin.Context) {
	requests, err := h.approvalService.ListOverdue(c.Request.Context(), time.Now())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, requests)
}
