package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/taskpilot/identity/internal/domain"
	"github.com/taskpilot/identity/internal/password"
	"github.com/taskpilot/identity/internal/repository"
	"github.com/taskpilot/identity/internal/token"
)

// AuthService implements local credential flows: registration, login,
// logout, password change and account lifecycle.
type AuthService struct {
	users     repository.UserStore
	tokens    *token.Service
	hasher    password.Hasher
	snowflake *snowflake.Node
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewAuthService wires dependencies.
func NewAuthService(users repository.UserStore, tokens *token.Service, hasher password.Hasher, node *snowflake.Node, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		hasher:    hasher,
		snowflake: node,
		logger:    logger,
		tracer:    otel.Tracer("github.com/taskpilot/identity/internal/service"),
	}
}

// NormalizeEmail lowercases and trims the login identifier. All email
// comparison happens on this form, so registrations differing only by case
// collide as duplicates.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a local account with the default USER role. The raw
// password is hashed immediately and never logged.
func (s *AuthService) Register(ctx context.Context, name, email, rawPassword string) (domain.User, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Register")
	defer span.End()

	normalized := NormalizeEmail(email)
	exists, err := s.users.ExistsByEmail(ctx, normalized)
	if err != nil {
		span.RecordError(err)
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, domain.ErrEmailInUse
	}

	hash, err := s.hasher.Hash(rawPassword)
	if err != nil {
		span.RecordError(err)
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:           s.snowflake.Generate().Int64(),
		Email:        normalized,
		PasswordHash: hash,
		Name:         strings.TrimSpace(name),
		Provider:     domain.ProviderLocal,
		Roles:        []domain.Role{domain.RoleUser},
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, domain.ErrEmailInUse) {
			return domain.User{}, domain.ErrEmailInUse
		}
		span.RecordError(err)
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	s.audit("register.success", "user_id", created.ID)
	return created, nil
}

// Login verifies the email/password pair and issues a bearer token whose
// subject is the normalized email. Unknown email and wrong password yield the
// same error so callers cannot probe for registered addresses.
func (s *AuthService) Login(ctx context.Context, email, rawPassword string) (string, domain.User, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Login")
	defer span.End()

	normalized := NormalizeEmail(email)
	user, err := s.users.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", domain.User{}, domain.ErrInvalidCredentials
		}
		span.RecordError(err)
		return "", domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if user.PasswordHash == "" {
		// Externally-authenticated account; it has no local password.
		return "", domain.User{}, domain.ErrInvalidCredentials
	}

	valid, err := password.Verify(rawPassword, user.PasswordHash)
	if err != nil || !valid {
		return "", domain.User{}, domain.ErrInvalidCredentials
	}

	issued, err := s.tokens.Issue(user.Email)
	if err != nil {
		span.RecordError(err)
		return "", domain.User{}, fmt.Errorf("issue token: %w", err)
	}

	s.audit("login.success", "user_id", user.ID)
	return issued, user, nil
}

// Logout revokes the presented token. Idempotent: revoking an expired or
// already-revoked token succeeds.
func (s *AuthService) Logout(ctx context.Context, raw string) error {
	ctx, span := s.startSpan(ctx, "AuthService.Logout")
	defer span.End()

	if err := s.tokens.Revoke(ctx, raw); err != nil {
		span.RecordError(err)
		return fmt.Errorf("revoke token: %w", err)
	}
	s.audit("logout.success")
	return nil
}

// ChangePassword re-verifies the old password before storing a hash of the
// new one. Outstanding tokens stay valid until they expire.
func (s *AuthService) ChangePassword(ctx context.Context, user domain.User, oldRaw, newRaw string) error {
	ctx, span := s.startSpan(ctx, "AuthService.ChangePassword")
	defer span.End()

	valid, err := password.Verify(oldRaw, user.PasswordHash)
	if err != nil || !valid {
		return domain.ErrIncorrectOldPassword
	}

	hash, err := s.hasher.Hash(newRaw)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("hash password: %w", err)
	}

	user.PasswordHash = hash
	if _, err := s.users.Update(ctx, user); err != nil {
		span.RecordError(err)
		return fmt.Errorf("update user: %w", err)
	}

	s.audit("password.change.success", "user_id", user.ID)
	return nil
}

// CurrentUser resolves a token subject to a fresh principal. Roles always
// come from the store, never from the token.
func (s *AuthService) CurrentUser(ctx context.Context, email string) (domain.User, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.User{}, domain.ErrPrincipalNotFound
		}
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

// UpdateName changes the principal's display name.
func (s *AuthService) UpdateName(ctx context.Context, user domain.User, name string) (domain.User, error) {
	user.Name = strings.TrimSpace(name)
	updated, err := s.users.Update(ctx, user)
	if err != nil {
		return domain.User{}, fmt.Errorf("update user: %w", err)
	}
	return updated, nil
}

// DeleteAccount revokes the presented token, then removes the user. The
// revocation comes first so a failed delete can't leave a live credential for
// a half-removed account.
func (s *AuthService) DeleteAccount(ctx context.Context, user domain.User, raw string) error {
	ctx, span := s.startSpan(ctx, "AuthService.DeleteAccount")
	defer span.End()

	if err := s.tokens.Revoke(ctx, raw); err != nil {
		span.RecordError(err)
		return fmt.Errorf("revoke token: %w", err)
	}
	if err := s.users.Delete(ctx, user.ID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("delete user: %w", err)
	}

	s.audit("account.delete.success", "user_id", user.ID)
	return nil
}

func (s *AuthService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *AuthService) audit(event string, attrs ...any) {
	logger := s.log()
	if logger == nil {
		return
	}
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	logger.Info("audit", fields...)
}

func (s *AuthService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
