package handler

import (
	"strconv"
	"time"

	lendingapp "github.com/mfi/backend/internal/application/lending"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LoanHandler handles loan lifecycle endpoints
type LoanHandler struct {
	BaseHandler
	loanService *lendingapp.LoanService
}

// NewLoanHandler creates a new LoanHandler
func NewLoanHandler(loanService *lendingapp.LoanService) *LoanHandler {
	return &LoanHandler{
		loanService: loanService,
	}
}

// RateChangeRequest represents a request to change a loan's interest rate
// @Description Request body for an interest rate change
type RateChangeRequest struct {
	NewRate       float64   `json:"new_rate" binding:"required,gt=0" example:"14.5"`
	EffectiveDate time.Time `json:"effective_date" binding:"required"`
	Reason        string    `json:"reason" binding:"required,min=1,max=500" example:"Central bank index adjustment"`
}

// WriteOffRequest represents a request to write off a loan
// @Description Request body for a loan write-off
type WriteOffRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500" example:"Borrower deceased, estate insolvent"`
}

// RepaymentRequest represents a repayment applied to a loan
// @Description Request body for recording a repayment
type RepaymentRequest struct {
	PrincipalPaid float64 `json:"principal_paid" binding:"min=0" example:"5000.00"`
	InterestPaid  float64 `json:"interest_paid" binding:"min=0" example:"350.00"`
}

// AccrualRequest represents an interest accrual applied to a loan
// @Description Request body for accruing interest
type AccrualRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0" example:"120.50"`
}

// Create godoc
// @Summary      Create a loan application
// @Description  Create a draft loan with its disbursement tranche schedule
// @Tags         loans
// @Accept       json
// @Produce      json
// @Param        request body lendingapp.CreateLoanRequest true "Loan application"
// @Success      201 {object} dto.Response{data=lendingapp.LoanResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /loans [post]
func (h *LoanHandler) Create(c *gin.Context) {
	var req lendingapp.CreateLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	loan, err := h.loanService.CreateLoan(c.Request.Context(), req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, loan)
}

// GetByID godoc
// @Summary      Get loan by ID
// @Tags         loans
// @Produce      json
// @Param        id path string true "Loan ID" format(uuid)
// @Success      200 {object} dto.Response{data=lendingapp.LoanResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /loans/{id} [get]
func (h *LoanHandler) GetByID(c *gin.Context) {
	loanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid loan ID format")
		return
	}

	loan, err := h.loanService.GetLoanByID(c.Request.Context(), loanID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, loan)
}

// List godoc
// @Summary      List loans
// @Tags         loans
// @Produce      json
// @Param        borrower_id query string false "Borrower ID" format(uuid)
// @Param        branch_id query string false "Branch ID" format(uuid)
// @Param        status query string false "Loan status" Enums(DRAFT, PENDING_APPROVAL, APPROVED, ACTIVE, DELINQUENT, CLOSED, WRITTEN_OFF, REJECTED)
// @Param        search query string false "Search term (loan number, borrower name)"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} dto.Response{data=[]lendingapp.LoanResponse,meta=dto.Meta}
// @Router       /loans [get]
func (h *LoanHandler) List(c *gin.Context) {
	var filter lendingapp.LoanListFilter
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

	loans, total, err := h.loanService.ListLoans(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, loans, total, filter.Page, filter.PageSize)
}

// ScheduleTranche godoc
// @Summary      Add a disbursement tranche
// @Description  Append a tranche to a draft loan's disbursement schedule
// @Tags         loans
// @Accept       json
// @Produce      json
// @Param        id path string true "Loan ID" format(uuid)
// @Param        request body lendingapp.TrancheInput true "Tranche to schedule"
// @Success      200 {object} dto.Response{data=lendingapp.LoanResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /loans/{id}/tranches [post]
func (h *LoanHandler) ScheduleTranche(c *gin.Context) {
	loanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid loan ID format")
		return
	}

	var req lendingapp.TrancheInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	loan, err := h.loanService.ScheduleTranche(c.Request.Context(), loanID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, loan)
}

// Submit godoc
// @Summary      Submit a loan for approval
// @Description  Move a draft loan into the approval workflow matched to its amount and branch
// @Tags         loans
// @Produce      json
// @Param        id path string true "Loan ID" format(uuid)
// @Success      200 {object} dto.Response{data=lendingapp.LoanResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /loans/{id}/submit [post]
func (h *LoanHandler) Submit(c *gin.Context) {
	submittedBy, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "User identity required")
		return
	}

	loanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid loan ID format")
		return
	}

	loan, err := h.loanService.SubmitForApproval(c.Request.Context(), loanID, submittedBy)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, loan)
}

// VerifyMilestone godoc
// @Summary      Verify a tranche milestone
// @Description  Mark the milestone attached to a tranche as verified
// @Tags         loans
// @Produce      json
// @Param        id path string true "Loan ID" format(uuid)
// @Param        seq path int true "Tranche sequence"
// @Success      200 {object} dto.Response{data=lendingapp.LoanResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /loans/{id}/tranches/{seq}/verify [post]
func (h *LoanHandler) VerifyMilestone(c *gin.Context) {
	verifiedBy, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "User identity required")
		return
	}

	loanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid loan ID format")
		return
	}

	seq, err := strconv.Atoi(c.Param("seq"))
	if err != nil || seq < 1 {
		h.BadRequest(c, "Invalid tranche sequence")
		return
	}

	loan, err := h.loanService.VerifyMilestone(c.Request.Context(), loanID, seq, verifiedBy)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, loan)
}

// RequestDisbursementApproval godoc
// @Summary      Request approval to disburse a tranche
// @Description  Open an approval request for releasing a scheduled tranche
// @Tags         loans
// @Produce      json
// @Param        id path string true "Loan ID" format(uuid)
// @Param        seq path int true "Tranche sequence"
// @Success      201 {object} dto.Response{data=approvalapp.RequestResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /loans/{id}/tranches/{seq}/request-approval [post]
func (h *LoanHandler) RequestDisbursementApproval(c *gin.Context) {
	requestedBy, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "User identity required")
		return
	}

	loanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid loan ID format")
		return
	}

	seq, err := strconv.Atoi(c.Param("seq"))
	if err != nil || seq < 1 {
		h.BadRequest(c, "Invalid tranche sequence")
		return
	}

	request, err := h.loanService.RequestDisbursementApproval(c.Request.Context(), loanID, seq, requestedBy)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, request)
}

// DisburseTranche godoc
// @Summary      Disburse a tranche
// @Description  Release an approved tranche to the borrower
// @Tags         loans
// @Produce      json
// @Param        id path string true "Loan ID" format(uuid)
// @Param        seq path int true "Tranche sequence"
// @Success      200 {object} dto.Response{data=lendingapp.LoanResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /loans/{id}/tranches/{seq}/disburse [post]
func (h *LoanHandler) DisburseTranche(c *gin.Context) {
	loanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid loan ID format")
		return
	}

	seq, err := strconv.Atoi(c.Param("seq"))
	if err != nil || seq < 1 {
		h.BadRequest(c, "Invalid tranche sequence")
		return
	}

	loan, err := h.loanService.DisburseTranche(c.Request.Context(), loanID, seq)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, loan)
}

// RequestRateChange godoc
// @Summary      Request an interest rate change
// @Description  Open a rate change that takes effect after approval, on its effective date
// @Tags         loans
// @Accept       json
// @Produce      json
// @Param        id path string true "Loan ID" format(uuid)
// @Param        request body RateChangeRequest true "Rate change request"
// @Success      200 {object} dto.Response{data=lendingapp.LoanResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /loans/{id}/rate-changes [post]
func (h *LoanHandler) RequestRateChange(c *gin.Context) {
	requestedBy, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "User identity required")
		return
	}

	loanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid loan ID format")
		return
	}

	var req RateChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	loan, err := h.loanService.RequestRateChange(
		c.Request.Context(),
		loanID,
		decimalFrom(req.NewRate),
		req.EffectiveDate,
		req.Reason,
		requestedBy,
	)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, loan)
}

// RequestWriteOff godoc
// @Summary      Request a loan write-off
// @Description  Open an approval request to write off the loan's outstanding balance
// @Tags         loans
// @Accept       json
// @Produce      json
// @Param        id path string true "Loan ID" format(uuid)
// @Param        request body WriteOffRequest true "Write-off request"
// @Success      201 {object} dto.Response{data=approvalapp.RequestResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /loans/{id}/write-off [post]
func (h *LoanHandler) RequestWriteOff(c *gin.Context) {
	requestedBy, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "User identity required")
		return
	}

	loanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid loan ID format")
		return
	}

	var req WriteOffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	request, err := h.loanService.RequestWriteOff(c.Request.Context(), loanID, req.Reason, requestedBy)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, request)
}

// RecordRepayment godoc
// @Summary      Record a repayment
// @Description  Apply principal and interest payments to an active loan
// @Tags         loans
// @Accept       json
// @Produce      json
// @Param        id path string true "Loan ID" format(uuid)
// @Param        request body RepaymentRequest true "Repayment to record"
// @Success      200 {object} dto.Response{data=lendingapp.LoanResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /loans/{id}/repayments [post]
func (h *LoanHandler) RecordRepayment(c *gin.Context) {
	loanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid loan ID format")
		return
	}

	var req RepaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	loan, err := h.loanService.RecordRepayment(
		c.Request.Context(),
		loanID,
		decimalFrom(req.PrincipalPaid),
		decimalFrom(req.InterestPaid),
	)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, loan)
}

// AccrueInterest godoc
// @Summary      Accrue interest on a loan
// @Tags         loans
// @Accept       json
// @Produce      json
// @Param        id path string true "Loan ID" format(uuid)
// @Param        request body AccrualRequest true "Accrual to apply"
// @Success      200 {object} dto.Response{data=lendingapp.LoanResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /loans/{id}/accruals [post]
func (h *LoanHandler) AccrueInterest(c *gin.Context) {
	loanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid loan ID format")
		return
	}

	var req AccrualRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	loan, err := h.loanService.AccrueInterest(c.Request.Context(), loanID, decimalFrom(req.Amount))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, loan)
}

// MarkDelinquent godoc
// @Summary      Mark a loan delinquent
// @Tags         loans
// @Produce      json
// @Param        id path string true "Loan ID" format(uuid)
// @Success      200 {object} dto.Response{data=lendingapp.LoanResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /loans/{id}/mark-delinquent [post]
func (h *LoanHandler) MarkDelinquent(c *gin.Context) {
	loanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid loan ID format")
		return
	}

	loan, err := h.loanService.MarkDelinquent(c.Request.Context(), loanID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, loan)
}
