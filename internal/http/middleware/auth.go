package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taskpilot/identity/internal/domain"
	"github.com/taskpilot/identity/internal/http/session"
	"github.com/taskpilot/identity/internal/service"
	"github.com/taskpilot/identity/internal/token"
)

const (
	principalKey = "principal"
	rawTokenKey  = "rawToken"
)

// Authenticator turns a bearer credential into a request principal. Requests
// without a credential pass through anonymously; route guards decide whether
// anonymity is acceptable.
type Authenticator struct {
	Tokens    *token.Service
	Auth      *service.AuthService
	Transport *session.Transport
	Logger    *zap.Logger
}

// Authenticate extracts the token from the configured transport, validates
// it, and resolves the subject to a fresh principal. Roles come from the
// store on every request so a role change takes effect immediately.
func (m *Authenticator) Authenticate(c *gin.Context) {
	raw, ok := m.Transport.Extract(c.Request)
	if !ok {
		c.Next()
		return
	}

	subject, err := m.Tokens.Validate(c.Request.Context(), raw)
	if err != nil {
		if !isCredentialError(err) {
			// Revocation lookup failures are an outage, not a bad token.
			m.Logger.Error("token validation failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":             "server_error",
				"error_description": "Unable to authenticate request.",
			})
			return
		}
		m.reject(c, err)
		return
	}

	user, err := m.Auth.CurrentUser(c.Request.Context(), subject)
	if err != nil {
		if errors.Is(err, domain.ErrPrincipalNotFound) {
			m.reject(c, err)
			return
		}
		m.Logger.Error("principal lookup failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": "Unable to authenticate request.",
		})
		return
	}

	c.Set(principalKey, user)
	c.Set(rawTokenKey, raw)
	c.Next()
}

// reject handles every credential failure the same way: the cookie (if any)
// is cleared so the browser stops replaying a dead token, and the response
// never distinguishes malformed from expired from revoked.
func (m *Authenticator) reject(c *gin.Context, err error) {
	m.Transport.ClearCookie(c.Writer)
	m.Logger.Debug("token rejected", zap.Error(err))
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":             "invalid_token",
		"error_description": "Invalid or expired credential.",
	})
}

func isCredentialError(err error) bool {
	for _, target := range []error{
		domain.ErrMalformedToken,
		domain.ErrExpiredToken,
		domain.ErrUnsupportedToken,
		domain.ErrEmptyTokenClaims,
		domain.ErrRevokedToken,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Principal returns the authenticated user attached to the request.
func Principal(c *gin.Context) (domain.User, bool) {
	value, ok := c.Get(principalKey)
	if !ok {
		return domain.User{}, false
	}
	user, ok := value.(domain.User)
	return user, ok
}

// RawToken returns the credential string the request authenticated with.
func RawToken(c *gin.Context) (string, bool) {
	value, ok := c.Get(rawTokenKey)
	if !ok {
		return "", false
	}
	raw, ok := value.(string)
	return raw, ok
}
