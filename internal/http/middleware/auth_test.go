package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taskpilot/identity/internal/config"
	"github.com/taskpilot/identity/internal/domain"
	"github.com/taskpilot/identity/internal/http/session"
	"github.com/taskpilot/identity/internal/password"
	"github.com/taskpilot/identity/internal/service"
	"github.com/taskpilot/identity/internal/token"
)

type stubUserStore struct {
	byEmail map[string]domain.User
}

func (s *stubUserStore) GetByEmail(_ context.Context, email string) (domain.User, error) {
	u, ok := s.byEmail[email]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (s *stubUserStore) GetByID(context.Context, int64) (domain.User, error) {
	return domain.User{}, domain.ErrUserNotFound
}

func (s *stubUserStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	_, ok := s.byEmail[email]
	return ok, nil
}

func (s *stubUserStore) Create(_ context.Context, u domain.User) (domain.User, error) {
	s.byEmail[u.Email] = u
	return u, nil
}

func (s *stubUserStore) Update(_ context.Context, u domain.User) (domain.User, error) {
	s.byEmail[u.Email] = u
	return u, nil
}

func (s *stubUserStore) Delete(context.Context, int64) error { return nil }

func (s *stubUserStore) List(context.Context) ([]domain.User, error) { return nil, nil }

type pipelineFixture struct {
	router *gin.Engine
	tokens *token.Service
}

func newPipelineFixture(t *testing.T, mode config.TransportMode) *pipelineFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := &stubUserStore{byEmail: map[string]domain.User{
		"user@example.com": {
			ID:    1,
			Email: "user@example.com",
			Roles: []domain.Role{domain.RoleUser},
		},
		"admin@example.com": {
			ID:    2,
			Email: "admin@example.com",
			Roles: []domain.Role{domain.RoleUser, domain.RoleAdmin},
		},
	}}

	signer := token.NewSigner([]byte("test-secret-test-secret-test-sec"), time.Hour)
	tokens := token.NewService(signer, token.NewMemoryRevocationList())
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	auth := service.NewAuthService(store, tokens, password.NewHasher(1), node, zap.NewNop())

	transport := session.New(config.Config{
		TokenTransport:    mode,
		SessionCookieName: "session",
		CookieSameSite:    http.SameSiteStrictMode,
		TokenTTL:          time.Hour,
	})
	authenticator := &Authenticator{
		Tokens:    tokens,
		Auth:      auth,
		Transport: &transport,
		Logger:    zap.NewNop(),
	}

	r := gin.New()
	r.Use(authenticator.Authenticate)
	r.GET("/public", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/private", RequireAuth(), func(c *gin.Context) {
		user, _ := Principal(c)
		c.JSON(http.StatusOK, gin.H{"email": user.Email})
	})
	r.GET("/admin", RequireRole(domain.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	return &pipelineFixture{router: r, tokens: tokens}
}

func (f *pipelineFixture) get(path string, decorate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if decorate != nil {
		decorate(req)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func bearer(raw string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+raw)
	}
}

func TestAnonymousRequests(t *testing.T) {
	f := newPipelineFixture(t, config.TransportHeader)

	require.Equal(t, http.StatusOK, f.get("/public", nil).Code)
	require.Equal(t, http.StatusUnauthorized, f.get("/private", nil).Code)
	require.Equal(t, http.StatusUnauthorized, f.get("/admin", nil).Code)
}

func TestAuthenticatedRequests(t *testing.T) {
	f := newPipelineFixture(t, config.TransportHeader)

	userToken, err := f.tokens.Issue("user@example.com")
	require.NoError(t, err)
	adminToken, err := f.tokens.Issue("admin@example.com")
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, f.get("/private", bearer(userToken)).Code)
	require.Equal(t, http.StatusForbidden, f.get("/admin", bearer(userToken)).Code)
	require.Equal(t, http.StatusOK, f.get("/admin", bearer(adminToken)).Code)
}

func TestRevokedTokenRejected(t *testing.T) {
	f := newPipelineFixture(t, config.TransportHeader)

	raw, err := f.tokens.Issue("user@example.com")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, f.get("/private", bearer(raw)).Code)

	require.NoError(t, f.tokens.Revoke(context.Background(), raw))
	require.Equal(t, http.StatusUnauthorized, f.get("/private", bearer(raw)).Code)
}

func TestMalformedTokenRejected(t *testing.T) {
	f := newPipelineFixture(t, config.TransportHeader)

	require.Equal(t, http.StatusUnauthorized, f.get("/private", bearer("definitely.not.valid")).Code)
}

func TestDeletedPrincipalRejected(t *testing.T) {
	f := newPipelineFixture(t, config.TransportHeader)

	raw, err := f.tokens.Issue("ghost@example.com")
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, f.get("/private", bearer(raw)).Code)
}

func TestBadCookieIsCleared(t *testing.T) {
	f := newPipelineFixture(t, config.TransportCookie)

	w := f.get("/private", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "session", Value: "definitely.not.valid"})
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestCookieTransportAuthenticates(t *testing.T) {
	f := newPipelineFixture(t, config.TransportCookie)

	raw, err := f.tokens.Issue("user@example.com")
	require.NoError(t, err)

	w := f.get("/private", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "session", Value: raw})
	})
	require.Equal(t, http.StatusOK, w.Code)
}
