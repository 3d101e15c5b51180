package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskpilot/identity/internal/token"
)

const revocationPrefix = "auth:revoked:"

// RedisRevocationList shares the revocation set across instances. Entries
// carry a TTL at least as long as the token lifetime, after which the token
// fails expiry validation on its own.
type RedisRevocationList struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ token.RevocationList = (*RedisRevocationList)(nil)

// NewRedisRevocationList constructs a Redis-backed revocation list. ttl should
// be the token TTL or longer.
func NewRedisRevocationList(client redis.UniversalClient, ttl time.Duration) *RedisRevocationList {
	return &RedisRevocationList{client: client, ttl: ttl}
}

// Revoke marks the token revoked. Idempotent: re-setting an existing key is
// harmless and refreshes its TTL.
func (l *RedisRevocationList) Revoke(ctx context.Context, tok string) error {
	if err := l.client.Set(ctx, revocationPrefix+tok, 1, l.ttl).Err(); err != nil {
		return fmt.Errorf("persist revocation: %w", err)
	}
	return nil
}

// IsRevoked reports membership.
func (l *RedisRevocationList) IsRevoked(ctx context.Context, tok string) (bool, error) {
	n, err := l.client.Exists(ctx, revocationPrefix+tok).Result()
	if err != nil {
		return false, fmt.Errorf("revocation lookup: %w", err)
	}
	return n > 0, nil
}
