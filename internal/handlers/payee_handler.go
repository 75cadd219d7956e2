package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hisaab/internal/pagination"
	"hisaab/internal/services"
)

// PayeeHandler handles payee suggestion requests.
type PayeeHandler struct {
	payeeService services.PayeeServicer
	auditService services.AuditServicer
}

// NewPayeeHandler creates a new PayeeHandler.
func NewPayeeHandler(payeeService services.PayeeServicer, auditService services.AuditServicer) *PayeeHandler {
	return &PayeeHandler{payeeService: payeeService, auditService: auditService}
}

// CreatePayeeRequest represents the request payload for remembering a payee.
type CreatePayeeRequest struct {
	Name string `json:"name" binding:"required,not_blank,max=200"`
}

// CreatePayee remembers a payee
// @Summary     Create a payee
// @Description Remember a payee so the entry form can suggest it
// @Tags        payees
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreatePayeeRequest true "Payee details"
// @Success     201 {object} models.Payee "Payee created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /payees [post]
func (h *PayeeHandler) CreatePayee(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreatePayeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	payee, err := h.payeeService.CreatePayee(c.Request.Context(), userID, req.Name)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, "CREATE_PAYEE", "payee", payee.ID, c.ClientIP(),
		map[string]any{"name": payee.Name})

	c.JSON(http.StatusCreated, gin.H{"payee": payee})
}

// GetUserPayees lists payees
// @Summary     Get user payees
// @Description Get a paginated list of the authenticated user's payees
// @Tags        payees
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Payee] "Paginated payees"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /payees [get]
func (h *PayeeHandler) GetUserPayees(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	result, err := h.payeeService.GetUserPayees(c.Request.Context(), userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// DeletePayee forgets a payee
// @Summary     Delete a payee
// @Tags        payees
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Payee ID"
// @Success     200 {object} MessageResponse "Payee deleted"
// @Failure     404 {object} ErrorResponse "Payee not found"
// @Router      /payees/{id} [delete]
func (h *PayeeHandler) DeletePayee(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	payeeID := c.Param("id")
	if err := h.payeeService.DeletePayee(c.Request.Context(), userID, payeeID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, "DELETE_PAYEE", "payee", payeeID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Payee deleted successfully"})
}
