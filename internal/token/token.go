package token

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"

	"github.com/taskpilot/identity/internal/domain"
)

const signingAlgorithm = gojose.HS256

// Signer issues and verifies HS256 bearer tokens. Tokens are self-contained:
// subject, issued-at and expiry only. Role data never rides in the payload.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner constructs a Signer with a symmetric secret and a fixed TTL.
func NewSigner(secret []byte, ttl time.Duration) *Signer {
	return &Signer{secret: secret, ttl: ttl, now: time.Now}
}

// TTL returns the configured token lifetime.
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for the subject. The subject is the principal's login
// identifier (its email), so replay resolution matches store lookups.
func (s *Signer) Issue(subject string) (string, error) {
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: signingAlgorithm, Key: s.secret},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	issuedAt := s.now().UTC()
	claims := gojwt.Claims{
		Subject:  subject,
		IssuedAt: gojwt.NewNumericDate(issuedAt),
		Expiry:   gojwt.NewNumericDate(issuedAt.Add(s.ttl)),
	}

	raw, err := gojwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize token: %w", err)
	}
	return raw, nil
}

// Verify checks signature and expiry and returns the subject. It is pure and
// does not consult the revocation list. Failures map onto the token error
// taxonomy; expiry is inclusive at exactly issued-at plus TTL.
func (s *Signer) Verify(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", domain.ErrEmptyTokenClaims
	}

	if err := checkAlgorithm(trimmed); err != nil {
		return "", err
	}

	parsed, err := gojwt.ParseSigned(trimmed, []gojose.SignatureAlgorithm{signingAlgorithm})
	if err != nil {
		return "", domain.ErrMalformedToken
	}

	var claims gojwt.Claims
	if err := parsed.Claims(s.secret, &claims); err != nil {
		return "", domain.ErrMalformedToken
	}
	if claims.Subject == "" {
		return "", domain.ErrEmptyTokenClaims
	}

	if err := claims.ValidateWithLeeway(gojwt.Expected{Time: s.now()}, 0); err != nil {
		if errors.Is(err, gojwt.ErrExpired) {
			return "", domain.ErrExpiredToken
		}
		return "", domain.ErrMalformedToken
	}

	return claims.Subject, nil
}

// checkAlgorithm inspects the protected header before signature verification
// so an unexpected algorithm surfaces as its own failure kind.
func checkAlgorithm(raw string) error {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return domain.ErrMalformedToken
	}
	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return domain.ErrMalformedToken
	}
	var header struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return domain.ErrMalformedToken
	}
	if header.Alg != string(signingAlgorithm) {
		return domain.ErrUnsupportedToken
	}
	return nil
}

// Service combines stateless verification with the mutable revocation list.
type Service struct {
	signer  *Signer
	revoked RevocationList
}

// NewService wires a Signer with an injected revocation list.
func NewService(signer *Signer, revoked RevocationList) *Service {
	return &Service{signer: signer, revoked: revoked}
}

// TTL returns the underlying signer's token lifetime.
func (s *Service) TTL() time.Duration {
	return s.signer.TTL()
}

// Issue signs a new token for the subject.
func (s *Service) Issue(subject string) (string, error) {
	return s.signer.Issue(subject)
}

// Validate checks revocation first, then signature and expiry. The revocation
// lookup is cheap and skips crypto work for known-bad tokens.
func (s *Service) Validate(ctx context.Context, raw string) (string, error) {
	revoked, err := s.revoked.IsRevoked(ctx, raw)
	if err != nil {
		return "", fmt.Errorf("revocation lookup: %w", err)
	}
	if revoked {
		return "", domain.ErrRevokedToken
	}
	return s.signer.Verify(raw)
}

// Revoke adds the raw token to the revocation list. It is idempotent and
// succeeds for tokens that are already expired or already revoked.
func (s *Service) Revoke(ctx context.Context, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return s.revoked.Revoke(ctx, raw)
}
