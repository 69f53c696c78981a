// Auth HTTP handlers.
//
// This file exposes the operator session endpoints:
//   - POST /auth/login   (exchange credentials for a session token)
//   - POST /auth/logout  (invalidate the presented token)
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/growhub/instabulk/internal/http/middleware"
	"github.com/growhub/instabulk/internal/services"
)

// LoginRequest is the JSON payload for operator login.
type LoginRequest struct {
	Username string `json:"username" binding:"required" example:"admin"`
	Password string `json:"password" binding:"required" example:"s3cret"`
}

// LoginResponse carries the minted session token.
type LoginResponse struct {
	Token string `json:"token" example:"8a9f1ef4-0f5e-4f6a-9f5e-3a2b1c0d9e8f"`
}

// Login godoc
// @ID          login
// @Summary     Operator login
// @Description Verifies operator credentials and returns an opaque session token.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.LoginRequest  true  "Credentials"
//
// @Success     200  {object}  handlers.LoginResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid credentials"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "username and password required")
		return
	}

	token, err := h.auth.Login(c.Request.Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid credentials")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, LoginResponse{Token: token})
}

// Logout godoc
// @ID          logout
// @Summary     Operator logout
// @Description Invalidates the presented session token.
// @Tags        Auth
// @Produce     json
//
// @Param       Authorization  header  string  true  "Bearer token"
//
// @Success     204  {string}  string "No Content"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /auth/logout [post]
// @Security    BearerAuth
func (h *Handlers) Logout(c *gin.Context) {
	token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
	if token == "" {
		token = strings.TrimSpace(c.GetHeader(middleware.HeaderSessionToken))
	}
	if err := h.auth.Logout(c.Request.Context(), token); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}
