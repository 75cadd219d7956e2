package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "hisaab/internal/errors"
	"hisaab/internal/models"
	"hisaab/internal/pagination"
	"hisaab/internal/services"
)

// TransactionHandler handles reading and maintaining stored transactions.
// New transactions are entered through the form endpoints.
type TransactionHandler struct {
	transactionService services.TransactionServicer
	auditService       services.AuditServicer
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(transactionService services.TransactionServicer, auditService services.AuditServicer) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService, auditService: auditService}
}

// MarkLoanPaidRequest represents the request payload for settling a loan.
type MarkLoanPaidRequest struct {
	PaidDate string `json:"paidDate" binding:"omitempty,iso_date"`
}

// GetUserTransactions handles the retrieval of all transactions for the authenticated user
// @Summary     Get user transactions
// @Description Get a paginated list of transactions, newest date first, with the account name resolved
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       page       query int    false "Page number (default 1)"
// @Param       page_size  query int    false "Items per page (default 20, max 100)"
// @Param       account_id query string false "Filter by account ID"
// @Param       from_date  query string false "Filter by start date (YYYY-MM-DD, inclusive)"
// @Param       to_date    query string false "Filter by end date (YYYY-MM-DD, inclusive)"
// @Param       type       query string false "Filter by transaction type (expense, income, transfer)"
// @Param       payee      query string false "Filter by payee"
// @Param       loans      query bool   false "Only loans"
// @Success     200 {object} pagination.PageResponse[services.TransactionView] "Paginated transactions"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     502 {object} ErrorResponse "Store unavailable"
// @Router      /transactions [get]
func (h *TransactionHandler) GetUserTransactions(c *gin.Context) {
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

	filter, err := parseTransactionFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.transactionService.GetUserTransactions(c.Request.Context(), userID, page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetSummary totals the user's transactions by type
// @Summary     Transaction summary
// @Description Totals by type for the filtered transactions. Non-numeric amounts are counted as unparsed.
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       account_id query string false "Filter by account ID"
// @Param       from_date  query string false "Filter by start date (YYYY-MM-DD, inclusive)"
// @Param       to_date    query string false "Filter by end date (YYYY-MM-DD, inclusive)"
// @Param       type       query string false "Filter by transaction type"
// @Success     200 {object} services.TransactionSummary "Summary"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /transactions/summary [get]
func (h *TransactionHandler) GetSummary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	filter, err := parseTransactionFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.transactionService.GetSummary(c.Request.Context(), userID, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// GetTransactionByID handles the retrieval of a specific transaction
// @Summary     Get transaction by ID
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} services.TransactionView "Transaction details"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /transactions/{id} [get]
func (h *TransactionHandler) GetTransactionByID(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	tx, err := h.transactionService.GetTransactionByID(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// MarkLoanPaid settles a loan transaction
// @Summary     Mark a loan as paid
// @Description Set loan.paid and loan.paidDate on a loan transaction. The date defaults to today.
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string              true  "Transaction ID"
// @Param       request body MarkLoanPaidRequest false "Paid date"
// @Success     200 {object} services.TransactionView "Updated transaction"
// @Failure     400 {object} ErrorResponse "Not a loan or invalid date"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /transactions/{id}/loan/paid [post]
func (h *TransactionHandler) MarkLoanPaid(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req MarkLoanPaidRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, bindError(err))
			return
		}
	}

	tx, err := h.transactionService.MarkLoanPaid(c.Request.Context(), userID, c.Param("id"), req.PaidDate)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, "MARK_LOAN_PAID", "transaction", tx.ID, c.ClientIP(),
		map[string]any{"paidDate": tx.Loan.PaidDate})

	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// DeleteTransaction handles deleting a transaction
// @Summary     Delete a transaction
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} MessageResponse "Transaction deleted"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /transactions/{id} [delete]
func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID := c.Param("id")
	if err := h.transactionService.DeleteTransaction(c.Request.Context(), userID, transactionID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, "DELETE_TRANSACTION", "transaction", transactionID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Transaction deleted successfully"})
}

func parseTransactionFilter(c *gin.Context) (services.TransactionFilter, error) {
	var filter services.TransactionFilter

	if v := c.Query("from_date"); v != "" {
		if !models.IsDate(v) {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid from_date, use YYYY-MM-DD")
		}
		filter.FromDate = &v
	}
	if v := c.Query("to_date"); v != "" {
		if !models.IsDate(v) {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid to_date, use YYYY-MM-DD")
		}
		filter.ToDate = &v
	}
	if filter.FromDate != nil && filter.ToDate != nil && *filter.FromDate > *filter.ToDate {
		return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "from_date must not be after to_date")
	}
	if v := c.Query("type"); v != "" {
		t := models.TransactionType(v)
		if !t.Valid() {
			return filter, apperrors.ErrInvalidTransactionType
		}
		filter.Type = &t
	}
	if v := c.Query("account_id"); v != "" {
		filter.AccountID = &v
	}
	if v := c.Query("payee"); v != "" {
		filter.Payee = &v
	}
	if v := c.Query("loans"); v != "" {
		loans, err := strconv.ParseBool(v)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid loans flag")
		}
		filter.LoansOnly = loans
	}

	return filter, nil
}
