package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/taskpilot/identity/internal/adapter/oauth"
	"github.com/taskpilot/identity/internal/domain"
	"github.com/taskpilot/identity/internal/repository"
	"github.com/taskpilot/identity/internal/token"
)

const stateTTL = 10 * time.Minute

// ErrInvalidState rejects callbacks whose state parameter is missing,
// expired, or was never issued by this service.
var ErrInvalidState = errors.New("oauth: invalid or expired state")

// OAuthService drives the authorization-code flow against an external
// identity provider and links provider identities to local accounts.
type OAuthService struct {
	users     repository.UserStore
	states    repository.OAuthStateStore
	provider  oauth.ProviderClient
	config    oauth.ProviderConfig
	tokens    *token.Service
	snowflake *snowflake.Node
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewOAuthService wires dependencies.
func NewOAuthService(
	users repository.UserStore,
	states repository.OAuthStateStore,
	provider oauth.ProviderClient,
	config oauth.ProviderConfig,
	tokens *token.Service,
	node *snowflake.Node,
	logger *zap.Logger,
) *OAuthService {
	return &OAuthService{
		users:     users,
		states:    states,
		provider:  provider,
		config:    config,
		tokens:    tokens,
		snowflake: node,
		logger:    logger,
		tracer:    otel.Tracer("github.com/taskpilot/identity/internal/service"),
	}
}

// AuthURL mints a single-use state value, persists it, and returns the
// provider authorization URL the browser should be sent to.
func (s *OAuthService) AuthURL(ctx context.Context, redirectURI string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "OAuthService.AuthURL")
	defer span.End()

	state, err := randomState()
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}

	record := domain.OAuthState{
		State:       state,
		RedirectURI: redirectURI,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.states.SaveState(ctx, record, stateTTL); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("save state: %w", err)
	}

	q := url.Values{}
	q.Set("client_id", s.config.ClientID)
	q.Set("redirect_uri", s.config.RedirectURI)
	q.Set("response_type", "code")
	q.Set("scope", strings.Join(s.config.Scopes, " "))
	q.Set("state", state)
	q.Set("access_type", "online")
	return s.config.AuthURL + "?" + q.Encode(), nil
}

// HandleCallback validates the state, exchanges the code, fetches the
// provider profile, and resolves it to a local principal. On success it
// returns a freshly issued token for that principal.
func (s *OAuthService) HandleCallback(ctx context.Context, state, code string) (string, domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "OAuthService.HandleCallback")
	defer span.End()

	stored, err := s.states.GetState(ctx, state)
	if err != nil {
		span.RecordError(err)
		return "", domain.User{}, fmt.Errorf("load state: %w", err)
	}
	if stored == nil {
		return "", domain.User{}, ErrInvalidState
	}
	// Single use regardless of outcome.
	if err := s.states.DeleteState(ctx, state); err != nil {
		s.logger.Warn("oauth state delete failed", zap.Error(err))
	}

	tokens, err := s.provider.ExchangeCode(ctx, s.config, code)
	if err != nil {
		span.RecordError(err)
		return "", domain.User{}, fmt.Errorf("exchange code: %w", err)
	}

	claims, err := s.provider.FetchUserInfo(ctx, s.config, tokens.AccessToken)
	if err != nil {
		span.RecordError(err)
		return "", domain.User{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	if strings.TrimSpace(claims.Email) == "" {
		return "", domain.User{}, domain.ErrMissingProviderEmail
	}

	user, err := s.ensureUser(ctx, claims)
	if err != nil {
		return "", domain.User{}, err
	}

	issued, err := s.tokens.Issue(user.Email)
	if err != nil {
		span.RecordError(err)
		return "", domain.User{}, fmt.Errorf("issue token: %w", err)
	}

	s.logger.Info("audit",
		zap.String("event", "oauth.login.success"),
		zap.Int64("user_id", user.ID),
	)
	return issued, user, nil
}

// ensureUser links the provider identity to an existing account by email, or
// provisions a new password-less account with the default USER role. The
// avatar follows the provider profile on every login.
func (s *OAuthService) ensureUser(ctx context.Context, claims *domain.ProviderClaims) (domain.User, error) {
	email := NormalizeEmail(claims.Email)

	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if claims.Picture != "" && existing.AvatarURL != claims.Picture {
			existing.AvatarURL = claims.Picture
			updated, uerr := s.users.Update(ctx, existing)
			if uerr != nil {
				return domain.User{}, fmt.Errorf("update avatar: %w", uerr)
			}
			return updated, nil
		}
		return existing, nil
	case errors.Is(err, domain.ErrUserNotFound):
		user := domain.User{
			ID:        s.snowflake.Generate().Int64(),
			Email:     email,
			Name:      claims.Name,
			AvatarURL: claims.Picture,
			Provider:  domain.ProviderGoogle,
			Roles:     []domain.Role{domain.RoleUser},
		}
		created, cerr := s.users.Create(ctx, user)
		if cerr != nil {
			if errors.Is(cerr, domain.ErrEmailInUse) {
				// Raced with a concurrent first login; the row exists now.
				return s.users.GetByEmail(ctx, email)
			}
			return domain.User{}, fmt.Errorf("create user: %w", cerr)
		}
		s.logger.Info("audit",
			zap.String("event", "oauth.user.provisioned"),
			zap.Int64("user_id", created.ID),
		)
		return created, nil
	default:
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
}

func randomState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
