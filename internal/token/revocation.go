package token

import (
	"context"
	"sync"
)

// RevocationList is the injected denylist capability. A revoked token must be
// treated as invalid regardless of signature validity. Implementations must be
// safe for concurrent use.
type RevocationList interface {
	Revoke(ctx context.Context, token string) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// MemoryRevocationList keeps revoked tokens in a process-local set. Entries
// are never pruned: expired tokens fail validation on their own, so pruning is
// an optimization, not a correctness requirement. The set's lifetime is tied
// to the process; tokens stay bounded by their TTL across restarts.
type MemoryRevocationList struct {
	mu     sync.RWMutex
	tokens map[string]struct{}
}

var _ RevocationList = (*MemoryRevocationList)(nil)

// NewMemoryRevocationList returns an empty in-memory revocation list.
func NewMemoryRevocationList() *MemoryRevocationList {
	return &MemoryRevocationList{tokens: make(map[string]struct{})}
}

// Revoke inserts the token. Repeated calls are no-ops.
func (l *MemoryRevocationList) Revoke(ctx context.Context, token string) error {
	l.mu.Lock()
	l.tokens[token] = struct{}{}
	l.mu.Unlock()
	return nil
}

// IsRevoked reports membership.
func (l *MemoryRevocationList) IsRevoked(ctx context.Context, token string) (bool, error) {
	l.mu.RLock()
	_, ok := l.tokens[token]
	l.mu.RUnlock()
	return ok, nil
}
