package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taskpilot/identity/internal/domain"
)

// RequireAuth rejects anonymous requests with 401.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := Principal(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":             "unauthorized",
				"error_description": "Authentication required.",
			})
			return
		}
		c.Next()
	}
}

// RequireRole rejects anonymous requests with 401 and authenticated
// principals lacking the role with 403.
func RequireRole(role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := Principal(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":             "unauthorized",
				"error_description": "Authentication required.",
			})
			return
		}
		if !user.HasRole(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":             "forbidden",
				"error_description": "Insufficient privileges.",
			})
			return
		}
		c.Next()
	}
}
