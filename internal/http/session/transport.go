// Package session moves bearer tokens between client and server over exactly
// one of two transports: the Authorization header or an HTTP cookie.
package session

import (
	"net/http"
	"strings"

	"github.com/taskpilot/identity/internal/config"
)

const bearerPrefix = "Bearer "

// FromHeader returns the token carried in the Authorization header, or ""
// when the header is absent or not a Bearer credential. The prefix match is
// case-sensitive.
func FromHeader(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}
	return strings.TrimPrefix(header, bearerPrefix)
}

// FromCookie returns the value of the named session cookie, or "" when no
// such cookie is present.
func FromCookie(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// Transport is the active wire mechanism for a deployment profile. Header and
// cookie modes must not be mixed within one request cycle.
type Transport struct {
	mode       config.TransportMode
	cookieName string
	sameSite   http.SameSite
	maxAge     int
}

// New builds the transport from config. The cookie max-age equals the token
// TTL so the cookie never outlives its credential.
func New(cfg config.Config) Transport {
	return Transport{
		mode:       cfg.TokenTransport,
		cookieName: cfg.SessionCookieName,
		sameSite:   cfg.CookieSameSite,
		maxAge:     int(cfg.TokenTTL.Seconds()),
	}
}

// UsesCookie reports whether the cookie transport is active.
func (t Transport) UsesCookie() bool {
	return t.mode == config.TransportCookie
}

// Extract pulls the token from the request according to the active mode. The
// boolean reports whether a credential was present at all.
func (t Transport) Extract(r *http.Request) (string, bool) {
	var raw string
	if t.mode == config.TransportCookie {
		raw = FromCookie(r, t.cookieName)
	} else {
		raw = FromHeader(r)
	}
	return raw, raw != ""
}

// SetCookie writes the session cookie. No-op for the header transport, where
// the client stores the token itself.
func (t Transport) SetCookie(w http.ResponseWriter, token string) {
	if !t.UsesCookie() {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     t.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   t.maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: t.sameSite,
	})
}

// ClearCookie overwrites the session cookie with an empty value and MaxAge 0.
// Attributes must match SetCookie for browsers to honor the removal.
func (t Transport) ClearCookie(w http.ResponseWriter) {
	if !t.UsesCookie() {
		return
	}
	// MaxAge -1 serializes as Max-Age=0, which expires the cookie immediately.
	http.SetCookie(w, &http.Cookie{
		Name:     t.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: t.sameSite,
	})
}
