package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taskpilot/identity/internal/domain"
	"github.com/taskpilot/identity/internal/http/session"
	"github.com/taskpilot/identity/internal/service"
)

// OAuthHandler drives the browser through the external provider flow.
type OAuthHandler struct {
	OAuth       *service.OAuthService
	Transport   *session.Transport
	FrontendURL string
	Logger      *zap.Logger
}

// NewOAuthHandler creates the handler set.
func NewOAuthHandler(oauth *service.OAuthService, transport *session.Transport, frontendURL string, logger *zap.Logger) *OAuthHandler {
	return &OAuthHandler{OAuth: oauth, Transport: transport, FrontendURL: frontendURL, Logger: logger}
}

// Begin redirects the browser to the provider's consent screen.
func (h *OAuthHandler) Begin(c *gin.Context) {
	authURL, err := h.OAuth.AuthURL(c.Request.Context(), c.Query("redirect_uri"))
	if err != nil {
		h.Logger.Error("oauth begin failed", zap.Error(err))
		c.Redirect(http.StatusFound, h.FrontendURL+"/login?error=oauth")
		return
	}
	c.Redirect(http.StatusFound, authURL)
}

// Callback completes the code exchange, establishes the session through the
// configured transport, and sends the browser back to the frontend. Every
// failure lands on the failure page without detail; the cause is logged
// server-side only.
func (h *OAuthHandler) Callback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if errParam := c.Query("error"); errParam != "" || code == "" {
		h.Logger.Warn("oauth callback rejected", zap.String("provider_error", errParam))
		c.Redirect(http.StatusFound, h.FrontendURL+"/login?error=oauth")
		return
	}

	issued, _, err := h.OAuth.HandleCallback(c.Request.Context(), state, code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidState):
			h.Logger.Warn("oauth state rejected")
		case errors.Is(err, domain.ErrMissingProviderEmail):
			h.Logger.Warn("oauth profile missing email")
		default:
			h.Logger.Error("oauth callback failed", zap.Error(err))
		}
		c.Redirect(http.StatusFound, h.FrontendURL+"/login?error=oauth")
		return
	}

	h.Transport.SetCookie(c.Writer, issued)
	target := h.FrontendURL + "/oauth/success"
	if !h.Transport.UsesCookie() {
		// Header deployments receive the token in the fragment so it never
		// reaches server logs via the query string.
		target += "#token=" + issued
	}
	c.Redirect(http.StatusFound, target)
}

// Failure is the terminal page for aborted provider flows.
func (h *OAuthHandler) Failure(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"error":             "oauth_failed",
		"error_description": "External sign-in did not complete.",
	})
}
