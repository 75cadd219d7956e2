// Package identity adapts the external identity provider. A Session is
// passed explicitly to everything that needs the current user.
package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for malformed, expired or foreign tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// Session is the resolved identity of a caller. UserID is empty until Ready.
type Session struct {
	UserID string `json:"userId,omitempty"`
	Ready  bool   `json:"ready"`
}

// Anonymous is the session of a caller the provider has not identified.
func Anonymous() Session {
	return Session{}
}

// NewSession returns a ready session for userID.
func NewSession(userID string) Session {
	return Session{UserID: userID, Ready: userID != ""}
}

// Verifier resolves bearer tokens into sessions.
type Verifier interface {
	Verify(token string) (Session, error)
}

// Tokens issues and verifies HS256 identity tokens.
type Tokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens creates a Tokens for the given shared secret.
func NewTokens(secret, issuer string, ttl time.Duration) *Tokens {
	return &Tokens{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock returns a copy of t that reads time from now.
func (t *Tokens) WithClock(now func() time.Time) *Tokens {
	c := *t
	c.now = now
	return &c
}

// Issue signs a token for userID.
func (t *Tokens) Issue(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("issue token: empty user id")
	}
	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    t.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify implements Verifier.
func (t *Tokens) Verify(tokenString string) (Session, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	},
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid {
		return Anonymous(), ErrInvalidToken
	}
	if claims.Subject == "" {
		return Anonymous(), ErrInvalidToken
	}
	return NewSession(claims.Subject), nil
}
