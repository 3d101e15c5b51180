package config

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "unit-test-secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/identity_test")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, TransportHeader, cfg.TokenTransport)
	require.Equal(t, 72*time.Hour, cfg.TokenTTL)
	require.Equal(t, "session", cfg.SessionCookieName)
	require.Equal(t, http.SameSiteStrictMode, cfg.CookieSameSite)
	require.Equal(t, "8080", cfg.HTTPPort)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/identity_test")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("JWT_SECRET", "unit-test-secret")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadCookieTransport(t *testing.T) {
	setRequired(t)
	t.Setenv("TOKEN_TRANSPORT", "cookie")
	t.Setenv("COOKIE_SAMESITE", "none")
	t.Setenv("TOKEN_TTL", "24h")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, TransportCookie, cfg.TokenTransport)
	require.Equal(t, http.SameSiteNoneMode, cfg.CookieSameSite)
	require.Equal(t, 24*time.Hour, cfg.TokenTTL)
}

func TestLoadRejectsUnknownTransport(t *testing.T) {
	setRequired(t)
	t.Setenv("TOKEN_TRANSPORT", "querystring")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsLaxSameSite(t *testing.T) {
	setRequired(t)
	t.Setenv("COOKIE_SAMESITE", "lax")

	_, err := Load()
	require.Error(t, err)
}
