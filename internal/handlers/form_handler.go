package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hisaab/internal/form"
	"hisaab/internal/identity"
	"hisaab/internal/services"
)

// FormRegistry is the part of form.Registry the handler needs.
type FormRegistry interface {
	Open(session identity.Session) (*form.Mounted, error)
	Get(userID, id string) (*form.Mounted, error)
	Close(userID, id string) error
}

// FormHandler exposes the transaction entry form over HTTP.
type FormHandler struct {
	forms        FormRegistry
	auditService services.AuditServicer
	heartbeat    time.Duration
}

// NewFormHandler creates a new FormHandler.
func NewFormHandler(forms FormRegistry, auditService services.AuditServicer) *FormHandler {
	return &FormHandler{forms: forms, auditService: auditService, heartbeat: 25 * time.Second}
}

// SetFieldRequest sets one draft field by name.
type SetFieldRequest struct {
	Value string `json:"value" binding:"max=1000"`
}

// SelectAccountRequest chooses the posting account by name. An empty name
// clears the selection.
type SelectAccountRequest struct {
	Name string `json:"name" binding:"max=100"`
}

// OpenForm mounts a new transaction form
// @Summary     Open a transaction form
// @Description Mount a new entry form for the authenticated user. The form subscribes to the user's payees and accounts.
// @Tags        forms
// @Produce     json
// @Security    BearerAuth
// @Success     201 {object} form.State "Mounted form"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     409 {object} ErrorResponse "Identity not ready"
// @Failure     429 {object} ErrorResponse "Too many open forms"
// @Router      /forms [post]
func (h *FormHandler) OpenForm(c *gin.Context) {
	m, err := h.forms.Open(getSession(c))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"form": m.Controller.State()})
}

// GetForm returns the current form state
// @Summary     Get form state
// @Tags        forms
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Form ID"
// @Success     200 {object} form.State "Form state"
// @Failure     404 {object} ErrorResponse "Form not found"
// @Router      /forms/{id} [get]
func (h *FormHandler) GetForm(c *gin.Context) {
	m, ok := h.lookup(c)
	if !ok {
		return
	}

	m.Controller.Touch()
	c.JSON(http.StatusOK, gin.H{"form": m.Controller.State()})
}

// UpdateDraft merges fields into the draft
// @Summary     Update the draft
// @Description Merge the given fields into the draft. Omitted fields are unchanged.
// @Tags        forms
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string          true "Form ID"
// @Param       request body form.DraftPatch true "Draft fields"
// @Success     200 {object} form.State "Form state"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Form not found"
// @Router      /forms/{id}/draft [patch]
func (h *FormHandler) UpdateDraft(c *gin.Context) {
	m, ok := h.lookup(c)
	if !ok {
		return
	}

	var patch form.DraftPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	st, err := m.Controller.Update(patch)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"form": st})
}

// SetField sets a single draft field
// @Summary     Set a draft field
// @Description Set one field by name: date, payee, amount, note, type, loan.isLoan, loan.paid, loan.paidDate.
// @Tags        forms
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string          true "Form ID"
// @Param       field   path string          true "Field name"
// @Param       request body SetFieldRequest true "Field value"
// @Success     200 {object} form.State "Form state"
// @Failure     400 {object} ErrorResponse "Unknown field or invalid value"
// @Failure     404 {object} ErrorResponse "Form not found"
// @Router      /forms/{id}/fields/{field} [put]
func (h *FormHandler) SetField(c *gin.Context) {
	m, ok := h.lookup(c)
	if !ok {
		return
	}

	var req SetFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	st, err := m.Controller.SetField(c.Param("field"), req.Value)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"form": st})
}

// SelectAccount chooses the posting account
// @Summary     Select account
// @Tags        forms
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string               true "Form ID"
// @Param       request body SelectAccountRequest true "Account name"
// @Success     200 {object} form.State "Form state"
// @Failure     404 {object} ErrorResponse "Form or account not found"
// @Router      /forms/{id}/account [put]
func (h *FormHandler) SelectAccount(c *gin.Context) {
	m, ok := h.lookup(c)
	if !ok {
		return
	}

	var req SelectAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	st, err := m.Controller.SelectAccount(req.Name)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"form": st})
}

// Submit validates the draft and records the transaction
// @Summary     Submit the form
// @Description Validate payee, amount and account, then write the transaction in a single store write and reset the draft.
// @Tags        forms
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Form ID"
// @Success     201 {object} models.Transaction "Transaction recorded"
// @Failure     404 {object} ErrorResponse "Form not found"
// @Failure     409 {object} ErrorResponse "Submission already in progress"
// @Failure     422 {object} ErrorResponse "Please fill all the fields"
// @Failure     502 {object} ErrorResponse "Store unavailable"
// @Router      /forms/{id}/submit [post]
func (h *FormHandler) Submit(c *gin.Context) {
	m, ok := h.lookup(c)
	if !ok {
		return
	}

	tx, err := m.Controller.Submit(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), tx.CreatedBy, "CREATE_TRANSACTION", "transaction", tx.ID, c.ClientIP(),
		map[string]any{"acc": tx.Account, "payee": tx.Payee, "amount": tx.Amount, "type": tx.Type})

	c.JSON(http.StatusCreated, gin.H{"transaction": tx, "form": m.Controller.State()})
}

// Events streams form state and notifications
// @Summary     Form event stream
// @Description Server-Sent Events: "state" after every change, "notification" for toasts, "closed" when the form is unmounted. Pass the token as access_token when the client cannot set headers.
// @Tags        forms
// @Produce     text/event-stream
// @Security    BearerAuth
// @Param       id path string true "Form ID"
// @Success     200 {string} string "event stream"
// @Failure     404 {object} ErrorResponse "Form not found"
// @Router      /forms/{id}/events [get]
func (h *FormHandler) Events(c *gin.Context) {
	m, ok := h.lookup(c)
	if !ok {
		return
	}

	release := m.Watch()
	defer release()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.SSEvent("state", m.Controller.State())
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-m.Controller.Changes():
			c.SSEvent("state", m.Controller.State())
		case n, open := <-m.Feed.C():
			if !open {
				c.SSEvent("closed", gin.H{"id": m.Controller.ID()})
				return false
			}
			c.SSEvent("notification", n)
		case <-ticker.C:
			m.Controller.Touch()
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
		}
		return true
	})
}

// CloseForm unmounts a form
// @Summary     Close a form
// @Description Unmount the form and cancel its subscriptions.
// @Tags        forms
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Form ID"
// @Success     200 {object} MessageResponse "Form closed"
// @Failure     404 {object} ErrorResponse "Form not found"
// @Router      /forms/{id} [delete]
func (h *FormHandler) CloseForm(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.forms.Close(userID, c.Param("id")); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Form closed"})
}

// lookup resolves the form in the path for the caller, writing the error
// response when it cannot.
func (h *FormHandler) lookup(c *gin.Context) (*form.Mounted, bool) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return nil, false
	}

	m, err := h.forms.Get(userID, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return nil, false
	}
	return m, true
}
