package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cacheadapter "github.com/taskpilot/identity/internal/adapter/cache"
	oauthadapter "github.com/taskpilot/identity/internal/adapter/oauth"
	"github.com/taskpilot/identity/internal/bootstrap"
	"github.com/taskpilot/identity/internal/config"
	httptransport "github.com/taskpilot/identity/internal/http"
	"github.com/taskpilot/identity/internal/http/handler"
	httpmiddleware "github.com/taskpilot/identity/internal/http/middleware"
	"github.com/taskpilot/identity/internal/http/session"
	apimiddleware "github.com/taskpilot/identity/internal/middleware"
	"github.com/taskpilot/identity/internal/password"
	"github.com/taskpilot/identity/internal/repository"
	"github.com/taskpilot/identity/internal/server"
	"github.com/taskpilot/identity/internal/service"
	"github.com/taskpilot/identity/internal/telemetry"
	"github.com/taskpilot/identity/internal/token"
)

const (
	googleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newUserStore,
			newRedisClient,
			newRevocationList,
			newOAuthStateStore,
			newOAuthProviderClient,
			newProviderConfig,
			newHasher,
			newTokenService,
			newSessionTransport,
			newRateLimiter,
			service.NewAuthService,
			newOAuthService,
			service.NewAdminService,
			handler.NewAuthHandler,
			newOAuthHandler,
			handler.NewUserHandler,
			handler.NewAdminHandler,
			newAuthenticator,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, bootstrap.EnsureAdmin, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	node, err := snowflake.NewNode(1)
	return node, err
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newUserStore(pool *pgxpool.Pool) repository.UserStore {
	return repository.NewPostgresUserStore(pool)
}

// newRedisClient returns nil when REDIS_ADDR is unset; downstream providers
// fall back to in-process stores.
func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newRevocationList(client redis.UniversalClient, cfg config.Config) token.RevocationList {
	if client == nil {
		return token.NewMemoryRevocationList()
	}
	return cacheadapter.NewRedisRevocationList(client, cfg.TokenTTL)
}

func newOAuthStateStore(client redis.UniversalClient) repository.OAuthStateStore {
	if client == nil {
		return repository.NewMemoryStateStore()
	}
	return cacheadapter.NewRedisStateStore(client)
}

func newOAuthProviderClient() oauthadapter.ProviderClient {
	return oauthadapter.NewHTTPProviderClient(nil)
}

func newProviderConfig(cfg config.Config) oauthadapter.ProviderConfig {
	return oauthadapter.ProviderConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		AuthURL:      googleAuthURL,
		TokenURL:     googleTokenURL,
		UserInfoURL:  googleUserInfoURL,
		RedirectURI:  cfg.GoogleRedirectURI,
		Scopes:       []string{"openid", "email", "profile"},
	}
}

func newHasher(cfg config.Config) password.Hasher {
	return password.NewHasher(uint32(cfg.PasswordHashCost))
}

func newTokenService(cfg config.Config, revoked token.RevocationList) *token.Service {
	signer := token.NewSigner([]byte(cfg.JWTSecret), cfg.TokenTTL)
	return token.NewService(signer, revoked)
}

func newSessionTransport(cfg config.Config) *session.Transport {
	transport := session.New(cfg)
	return &transport
}

func newRateLimiter(cfg config.Config) *apimiddleware.RateLimiter {
	return apimiddleware.NewRateLimiter(cfg.RateLimitRPM)
}

func newOAuthService(
	users repository.UserStore,
	states repository.OAuthStateStore,
	provider oauthadapter.ProviderClient,
	providerConfig oauthadapter.ProviderConfig,
	tokens *token.Service,
	node *snowflake.Node,
	logger *zap.Logger,
) *service.OAuthService {
	return service.NewOAuthService(users, states, provider, providerConfig, tokens, node, logger)
}

func newOAuthHandler(oauth *service.OAuthService, transport *session.Transport, cfg config.Config, logger *zap.Logger) *handler.OAuthHandler {
	return handler.NewOAuthHandler(oauth, transport, cfg.FrontendURL, logger)
}

func newAuthenticator(tokens *token.Service, auth *service.AuthService, transport *session.Transport, logger *zap.Logger) *httpmiddleware.Authenticator {
	return &httpmiddleware.Authenticator{
		Tokens:    tokens,
		Auth:      auth,
		Transport: transport,
		Logger:    logger,
	}
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
