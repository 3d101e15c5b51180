package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/taskpilot/identity/internal/config"
	"github.com/taskpilot/identity/internal/domain"
	"github.com/taskpilot/identity/internal/password"
	"github.com/taskpilot/identity/internal/repository"
)

// EnsureAdmin seeds the configured admin account at startup if it is missing.
// Noop when ADMIN_EMAIL/ADMIN_PASSWORD are not set.
func EnsureAdmin(lc fx.Lifecycle, cfg config.Config, users repository.UserStore, hasher password.Hasher, node *snowflake.Node, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return ensureAdmin(ctx, cfg, users, hasher, node, logger)
		},
	})
}

func ensureAdmin(ctx context.Context, cfg config.Config, users repository.UserStore, hasher password.Hasher, node *snowflake.Node, logger *zap.Logger) error {
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	if email == "" || strings.TrimSpace(cfg.AdminPassword) == "" {
		return nil
	}

	if _, err := users.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return fmt.Errorf("bootstrap lookup user: %w", err)
	}

	hashed, err := hasher.Hash(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap hash password: %w", err)
	}

	user := domain.User{
		ID:           node.Generate().Int64(),
		Email:        email,
		PasswordHash: hashed,
		Name:         "Admin",
		Provider:     domain.ProviderLocal,
		Roles:        []domain.Role{domain.RoleUser, domain.RoleAdmin},
	}

	created, err := users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, domain.ErrEmailInUse) {
			return nil
		}
		return fmt.Errorf("bootstrap create user: %w", err)
	}

	if logger != nil {
		logger.Info("bootstrap admin user created",
			zap.String("email", created.Email),
			zap.Int64("user_id", created.ID),
		)
	}
	return nil
}
