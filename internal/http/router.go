package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/taskpilot/identity/internal/config"
	"github.com/taskpilot/identity/internal/domain"
	"github.com/taskpilot/identity/internal/http/handler"
	httpmiddleware "github.com/taskpilot/identity/internal/http/middleware"
	"github.com/taskpilot/identity/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(
	cfg config.Config,
	authHandler *handler.AuthHandler,
	oauthHandler *handler.OAuthHandler,
	userHandler *handler.UserHandler,
	adminHandler *handler.AdminHandler,
	authenticator *httpmiddleware.Authenticator,
	rateLimiter *middleware.RateLimiter,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(authenticator.Authenticate)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := r.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/logout", authHandler.Logout)
		auth.GET("/me", httpmiddleware.RequireAuth(), authHandler.Me)
		auth.PUT("/password", httpmiddleware.RequireAuth(), authHandler.ChangePassword)
	}

	oauth := r.Group("/oauth2")
	{
		oauth.GET("/google", oauthHandler.Begin)
		oauth.GET("/callback", oauthHandler.Callback)
		oauth.GET("/failure", oauthHandler.Failure)
	}

	users := r.Group("/users", httpmiddleware.RequireAuth())
	{
		users.GET("/me", userHandler.Profile)
		users.PUT("/me", userHandler.UpdateName)
		users.DELETE("/me", userHandler.DeleteAccount)
	}

	admin := r.Group("/admin", httpmiddleware.RequireRole(domain.RoleAdmin))
	{
		admin.GET("/users", adminHandler.ListUsers)
		admin.GET("/users/:id", adminHandler.GetUser)
		admin.DELETE("/users/:id", adminHandler.DeleteUser)
	}

	return r
}
