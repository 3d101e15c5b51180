package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taskpilot/identity/internal/domain"
	"github.com/taskpilot/identity/internal/http/middleware"
	"github.com/taskpilot/identity/internal/http/session"
	"github.com/taskpilot/identity/internal/service"
)

// AuthHandler exposes local credential endpoints.
type AuthHandler struct {
	Auth      *service.AuthService
	Transport *session.Transport
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(auth *service.AuthService, transport *session.Transport) *AuthHandler {
	return &AuthHandler{Auth: auth, Transport: transport}
}

// userResponse is the public shape of an account. The password hash never
// leaves the service.
type userResponse struct {
	ID        int64     `json:"id,string"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Provider  string    `json:"provider"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u domain.User) userResponse {
	roles := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = append(roles, string(r))
	}
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
		Provider:  string(u.Provider),
		Roles:     roles,
		CreatedAt: u.CreatedAt,
	}
}

// Register creates a local account.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid registration payload."})
		return
	}

	user, err := h.Auth.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrEmailInUse) {
			c.JSON(http.StatusConflict, gin.H{"error": "email_in_use", "error_description": "Email is already registered."})
			return
		}
		serverError(c)
		return
	}

	c.JSON(http.StatusCreated, toUserResponse(user))
}

// Login verifies credentials and hands out a token through the configured
// transport: the response body for header mode, a Set-Cookie for cookie mode.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid login payload."})
		return
	}

	issued, user, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials", "error_description": "Email or password is incorrect."})
			return
		}
		serverError(c)
		return
	}

	h.Transport.SetCookie(c.Writer, issued)
	resp := gin.H{"user": toUserResponse(user)}
	if !h.Transport.UsesCookie() {
		resp["token"] = issued
		resp["token_type"] = "Bearer"
	}
	c.JSON(http.StatusOK, resp)
}

// Logout revokes the presented credential and clears the session cookie.
// Safe to call with an expired or already revoked token.
func (h *AuthHandler) Logout(c *gin.Context) {
	raw, ok := h.Transport.Extract(c.Request)
	if ok {
		if err := h.Auth.Logout(c.Request.Context(), raw); err != nil {
			serverError(c)
			return
		}
	}
	h.Transport.ClearCookie(c.Writer)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out."})
}

// Me returns the authenticated principal.
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.Principal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "error_description": "Authentication required."})
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

// ChangePassword rotates the local password after re-verifying the old one.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	user, ok := middleware.Principal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "error_description": "Authentication required."})
		return
	}

	var req struct {
		OldPassword string `json:"old_password" binding:"required"`
		NewPassword string `json:"new_password" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid password payload."})
		return
	}

	if err := h.Auth.ChangePassword(c.Request.Context(), user, req.OldPassword, req.NewPassword); err != nil {
		if errors.Is(err, domain.ErrIncorrectOldPassword) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "incorrect_password", "error_description": "Old password is incorrect."})
			return
		}
		serverError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password updated."})
}

func serverError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Something went wrong."})
}
