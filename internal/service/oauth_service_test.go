package service

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taskpilot/identity/internal/adapter/oauth"
	"github.com/taskpilot/identity/internal/domain"
	"github.com/taskpilot/identity/internal/repository"
	"github.com/taskpilot/identity/internal/token"
)

type fakeProviderClient struct {
	claims       *domain.ProviderClaims
	exchangedFor string
}

func (c *fakeProviderClient) ExchangeCode(_ context.Context, _ oauth.ProviderConfig, code string) (*domain.ProviderTokens, error) {
	c.exchangedFor = code
	return &domain.ProviderTokens{AccessToken: "provider-access-token"}, nil
}

func (c *fakeProviderClient) FetchUserInfo(_ context.Context, _ oauth.ProviderConfig, accessToken string) (*domain.ProviderClaims, error) {
	return c.claims, nil
}

func newTestOAuthService(t *testing.T, claims *domain.ProviderClaims) (*OAuthService, *memoryUserStore, *token.Service, *fakeProviderClient) {
	t.Helper()
	store := newMemoryUserStore()
	states := repository.NewMemoryStateStore()
	signer := token.NewSigner([]byte("test-secret-test-secret-test-sec"), time.Hour)
	tokens := token.NewService(signer, token.NewMemoryRevocationList())
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	provider := &fakeProviderClient{claims: claims}
	cfg := oauth.ProviderConfig{
		ClientID:    "client-id",
		AuthURL:     "https://provider.example.com/authorize",
		RedirectURI: "https://api.example.com/oauth2/callback",
		Scopes:      []string{"openid", "email", "profile"},
	}
	svc := NewOAuthService(store, states, provider, cfg, tokens, node, zap.NewNop())
	return svc, store, tokens, provider
}

func stateFromAuthURL(t *testing.T, authURL string) string {
	t.Helper()
	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	state := parsed.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestAuthURLCarriesState(t *testing.T) {
	svc, _, _, _ := newTestOAuthService(t, nil)
	ctx := context.Background()

	authURL, err := svc.AuthURL(ctx, "")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(authURL, "https://provider.example.com/authorize?"))

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	q := parsed.Query()
	require.Equal(t, "client-id", q.Get("client_id"))
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "openid email profile", q.Get("scope"))
	require.NotEmpty(t, q.Get("state"))
}

func TestHandleCallbackProvisionsUser(t *testing.T) {
	claims := &domain.ProviderClaims{
		Subject: "google-sub-1",
		Email:   "New.User@Example.com",
		Name:    "New User",
		Picture: "https://img.example.com/a.png",
	}
	svc, store, tokens, provider := newTestOAuthService(t, claims)
	ctx := context.Background()

	authURL, err := svc.AuthURL(ctx, "")
	require.NoError(t, err)
	state := stateFromAuthURL(t, authURL)

	raw, user, err := svc.HandleCallback(ctx, state, "the-code")
	require.NoError(t, err)
	require.Equal(t, "the-code", provider.exchangedFor)
	require.Equal(t, "new.user@example.com", user.Email)
	require.Equal(t, domain.ProviderGoogle, user.Provider)
	require.Equal(t, []domain.Role{domain.RoleUser}, user.Roles)
	require.Empty(t, user.PasswordHash)

	subject, err := tokens.Validate(ctx, raw)
	require.NoError(t, err)
	require.Equal(t, "new.user@example.com", subject)

	stored, err := store.GetByEmail(ctx, "new.user@example.com")
	require.NoError(t, err)
	require.Equal(t, user.ID, stored.ID)
}

func TestHandleCallbackLinksExistingAccountByEmail(t *testing.T) {
	claims := &domain.ProviderClaims{
		Subject: "google-sub-2",
		Email:   "alice@example.com",
		Name:    "Alice From Google",
		Picture: "https://img.example.com/new.png",
	}
	svc, store, _, _ := newTestOAuthService(t, claims)
	ctx := context.Background()

	existing, err := store.Create(ctx, domain.User{
		ID:           7,
		Email:        "alice@example.com",
		PasswordHash: "some-hash",
		Name:         "Alice",
		Provider:     domain.ProviderLocal,
		Roles:        []domain.Role{domain.RoleUser, domain.RoleAdmin},
	})
	require.NoError(t, err)

	authURL, err := svc.AuthURL(ctx, "")
	require.NoError(t, err)
	state := stateFromAuthURL(t, authURL)

	_, user, err := svc.HandleCallback(ctx, state, "code")
	require.NoError(t, err)
	require.Equal(t, existing.ID, user.ID, "no second account for the same email")
	require.Equal(t, "Alice", user.Name, "existing profile name is kept")
	require.Equal(t, "https://img.example.com/new.png", user.AvatarURL, "avatar follows the provider")
	require.Contains(t, user.Roles, domain.RoleAdmin)
}

func TestHandleCallbackRejectsMissingEmail(t *testing.T) {
	claims := &domain.ProviderClaims{Subject: "google-sub-3", Name: "No Email"}
	svc, _, _, _ := newTestOAuthService(t, claims)
	ctx := context.Background()

	authURL, err := svc.AuthURL(ctx, "")
	require.NoError(t, err)
	state := stateFromAuthURL(t, authURL)

	_, _, err = svc.HandleCallback(ctx, state, "code")
	require.ErrorIs(t, err, domain.ErrMissingProviderEmail)
}

func TestHandleCallbackRejectsUnknownState(t *testing.T) {
	svc, _, _, _ := newTestOAuthService(t, nil)

	_, _, err := svc.HandleCallback(context.Background(), "never-issued", "code")
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestHandleCallbackStateIsSingleUse(t *testing.T) {
	claims := &domain.ProviderClaims{Subject: "google-sub-4", Email: "bob@example.com", Name: "Bob"}
	svc, _, _, _ := newTestOAuthService(t, claims)
	ctx := context.Background()

	authURL, err := svc.AuthURL(ctx, "")
	require.NoError(t, err)
	state := stateFromAuthURL(t, authURL)

	_, _, err = svc.HandleCallback(ctx, state, "code")
	require.NoError(t, err)

	_, _, err = svc.HandleCallback(ctx, state, "code")
	require.ErrorIs(t, err, ErrInvalidState)
}
