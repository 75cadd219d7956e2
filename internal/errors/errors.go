// Package errors provides custom error types for the hisaab API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is reports whether target is an AppError carrying the same code, so that
// errors.Is(err, ErrNotFound) works for wrapped copies of a sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & identity errors.
var (
	ErrUnauthorized     = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrIdentityNotReady = &AppError{Code: "IDENTITY_NOT_READY", Message: "Identity has not been resolved yet", StatusCode: http.StatusConflict}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
	ErrStoreFailure   = &AppError{Code: "STORE_FAILURE", Message: "The document store is unavailable", StatusCode: http.StatusBadGateway}
)

// Account errors.
var (
	ErrAccountNotFound  = &AppError{Code: "ACCOUNT_NOT_FOUND", Message: "Account not found", StatusCode: http.StatusNotFound}
	ErrDuplicateAccount = &AppError{Code: "DUPLICATE_ACCOUNT", Message: "An account with this name already exists", StatusCode: http.StatusConflict}
)

// Payee errors.
var (
	ErrPayeeNotFound = &AppError{Code: "PAYEE_NOT_FOUND", Message: "Payee not found", StatusCode: http.StatusNotFound}
)

// Transaction errors.
var (
	ErrTransactionNotFound    = &AppError{Code: "TRANSACTION_NOT_FOUND", Message: "Transaction not found", StatusCode: http.StatusNotFound}
	ErrInvalidTransactionType = &AppError{Code: "INVALID_TRANSACTION_TYPE", Message: "Unsupported transaction type", StatusCode: http.StatusBadRequest}
	ErrNotALoan               = &AppError{Code: "NOT_A_LOAN", Message: "Transaction is not a loan", StatusCode: http.StatusBadRequest}
)

// Form errors.
var (
	ErrFormNotFound      = &AppError{Code: "FORM_NOT_FOUND", Message: "Form not found", StatusCode: http.StatusNotFound}
	ErrFormClosed        = &AppError{Code: "FORM_CLOSED", Message: "Form has been closed", StatusCode: http.StatusGone}
	ErrMissingFields     = &AppError{Code: "MISSING_FIELDS", Message: "Please fill all the fields", StatusCode: http.StatusUnprocessableEntity}
	ErrSubmitInProgress  = &AppError{Code: "SUBMIT_IN_PROGRESS", Message: "A submission is already in progress", StatusCode: http.StatusConflict}
	ErrUnknownDraftField = &AppError{Code: "UNKNOWN_DRAFT_FIELD", Message: "Unknown draft field", StatusCode: http.StatusBadRequest}
	ErrTooManyForms      = &AppError{Code: "TOO_MANY_FORMS", Message: "Too many open forms", StatusCode: http.StatusTooManyRequests}
)
