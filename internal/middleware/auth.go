package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "hisaab/internal/errors"
	"hisaab/internal/identity"
)

// Context keys set by the session middleware.
const (
	SessionKey = "session"
	UserIDKey  = "userID"
)

// RequireSession verifies the bearer token and stores the caller's session
// in the context. Requests without a valid token are rejected.
func RequireSession(verifier identity.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortUnauthorized(c, "Authorization header is required")
			return
		}

		session, err := verifier.Verify(token)
		if err != nil || !session.Ready {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		setSession(c, session)
		c.Next()
	}
}

// OptionalSession resolves the bearer token when one is sent. Callers
// without a token, or with one that does not verify, get a session that is
// not ready.
func OptionalSession(verifier identity.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := identity.Anonymous()
		if token, ok := bearerToken(c); ok {
			if s, err := verifier.Verify(token); err == nil {
				session = s
			}
		}
		setSession(c, session)
		c.Next()
	}
}

// SessionFrom returns the session stored by the session middleware.
func SessionFrom(c *gin.Context) identity.Session {
	if v, ok := c.Get(SessionKey); ok {
		if s, ok := v.(identity.Session); ok {
			return s
		}
	}
	return identity.Anonymous()
}

func setSession(c *gin.Context, session identity.Session) {
	c.Set(SessionKey, session)
	if session.Ready {
		c.Set(UserIDKey, session.UserID)
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		// EventSource cannot set headers, so SSE clients pass the token as a query parameter.
		if t := c.Query("access_token"); t != "" {
			return t, true
		}
		return "", false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func abortUnauthorized(c *gin.Context, message string) {
	WriteError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, message))
}
