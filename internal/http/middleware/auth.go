// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements SessionAuth, a bearer-token gate for the operator API.
// Tokens are opaque session identifiers minted by the auth service at login;
// the middleware validates the presented token through a narrow function type
// and stores the resolved operator username in the Gin context for handlers,
// logging, and rate limiting.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// usernameKey is the Gin context key under which the authenticated
	// operator's username is stored.
	usernameKey = "username"

	// HeaderSessionToken is an alternate header for clients that cannot set
	// Authorization (e.g. EventSource).
	HeaderSessionToken = "X-Session-Token"
)

// TokenValidator resolves a session token to the owning username. It returns
// an error for unknown, malformed, or expired tokens.
//
// This narrow function type keeps the middleware decoupled from the auth
// service implementation.
type TokenValidator func(ctx context.Context, token string) (string, error)

// Username returns the authenticated operator username stored by SessionAuth,
// or "" when the request is unauthenticated.
func Username(c *gin.Context) string {
	if v, ok := c.Get(usernameKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// SessionAuth returns a Gin middleware that requires a valid session token on
// every request it guards.
//
// Token extraction order:
//  1. Authorization: Bearer <token>
//  2. X-Session-Token: <token>
//
// On success the username is stored in the context; on failure the request is
// aborted with a 401 envelope matching the API's standard error shape.
func SessionAuth(validate TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			unauthorized(c, "missing session token")
			return
		}
		username, err := validate(c.Request.Context(), token)
		if err != nil {
			unauthorized(c, "invalid or expired session")
			return
		}
		c.Set(usernameKey, username)
		c.Next()
	}
}

// bearerToken extracts the session token from the request headers.
func bearerToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(c.GetHeader(HeaderSessionToken))
}

// unauthorized aborts with the standard error envelope.
func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get("X-Request-ID"),
		"code":       "unauthorized",
		"message":    msg,
	})
}
