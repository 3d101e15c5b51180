package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taskpilot/identity/internal/http/middleware"
	"github.com/taskpilot/identity/internal/http/session"
	"github.com/taskpilot/identity/internal/service"
)

// UserHandler exposes self-service profile endpoints.
type UserHandler struct {
	Auth      *service.AuthService
	Transport *session.Transport
}

// NewUserHandler creates the handler set.
func NewUserHandler(auth *service.AuthService, transport *session.Transport) *UserHandler {
	return &UserHandler{Auth: auth, Transport: transport}
}

// Profile returns the authenticated user's account.
func (h *UserHandler) Profile(c *gin.Context) {
	user, ok := middleware.Principal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "error_description": "Authentication required."})
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

// UpdateName changes the display name.
func (h *UserHandler) UpdateName(c *gin.Context) {
	user, ok := middleware.Principal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "error_description": "Authentication required."})
		return
	}

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid profile payload."})
		return
	}

	updated, err := h.Auth.UpdateName(c.Request.Context(), user, req.Name)
	if err != nil {
		serverError(c)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(updated))
}

// DeleteAccount removes the authenticated user's own account. The presented
// credential is revoked before the row is deleted, and the cookie cleared.
func (h *UserHandler) DeleteAccount(c *gin.Context) {
	user, ok := middleware.Principal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "error_description": "Authentication required."})
		return
	}
	raw, _ := middleware.RawToken(c)

	if err := h.Auth.DeleteAccount(c.Request.Context(), user, raw); err != nil {
		serverError(c)
		return
	}

	h.Transport.ClearCookie(c.Writer)
	c.JSON(http.StatusOK, gin.H{"message": "Account deleted."})
}
