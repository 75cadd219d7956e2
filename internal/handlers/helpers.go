package handlers

import (
	"github.com/gin-gonic/gin"

	apperrors "hisaab/internal/errors"
	"hisaab/internal/identity"
	"hisaab/internal/middleware"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code" example:"INVALID_INPUT"`
		Message string `json:"message" example:"Invalid input"`
	} `json:"error"`
}

// MessageResponse represents a simple message response.
type MessageResponse struct {
	Message string `json:"message" example:"Operation completed successfully"`
}

// getUserID extracts the authenticated user ID from the Gin context.
// Returns ErrUnauthorized if not present.
func getUserID(c *gin.Context) (string, error) {
	userID, exists := c.Get(middleware.UserIDKey)
	if !exists {
		return "", apperrors.ErrUnauthorized
	}
	id, ok := userID.(string)
	if !ok || id == "" {
		return "", apperrors.ErrUnauthorized
	}
	return id, nil
}

// getSession returns the caller's session; it is not ready for anonymous callers.
func getSession(c *gin.Context) identity.Session {
	return middleware.SessionFrom(c)
}

// respondWithError writes the JSON error envelope for err.
func respondWithError(c *gin.Context, err error) {
	middleware.WriteError(c, err)
}

// bindError converts a binding failure into an invalid input error.
func bindError(err error) error {
	return apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
}
