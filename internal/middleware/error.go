package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "hisaab/internal/errors"
	"hisaab/internal/logger"
)

// ErrorHandler renders the last error attached to the Gin context with
// c.Error, unless the handler already wrote a response.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		WriteError(c, c.Errors.Last().Err)
	}
}

// WriteError writes err as the JSON error envelope. AppErrors keep their code,
// message and status; the wrapped internal error is only logged. Any other
// error is logged and reported as INTERNAL_ERROR.
func WriteError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		logger.Get().Errorw("unexpected error", append(requestFields(c), "error", err.Error())...)
		appErr = apperrors.ErrInternalServer
	} else if appErr.Internal != nil {
		logger.Get().Errorw("app error", append(requestFields(c),
			"code", appErr.Code,
			"internal", appErr.Internal.Error(),
		)...)
	}

	c.AbortWithStatusJSON(appErr.StatusCode, gin.H{
		"error": gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
		},
	})
}

func requestFields(c *gin.Context) []any {
	fields := []any{"method", c.Request.Method, "path", c.Request.URL.Path}
	if id, ok := c.Get(requestIDKey); ok {
		fields = append(fields, "request_id", id)
	}
	if userID, ok := c.Get(UserIDKey); ok {
		fields = append(fields, "user_id", userID)
	}
	return fields
}
