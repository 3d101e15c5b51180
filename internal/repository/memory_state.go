package repository

import (
	"context"
	"sync"
	"time"

	"github.com/taskpilot/identity/internal/domain"
)

// MemoryStateStore keeps OAuth states in process memory. Suitable for single
// instance deployments without Redis.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]memoryState
}

type memoryState struct {
	record    domain.OAuthState
	expiresAt time.Time
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]memoryState)}
}

func (s *MemoryStateStore) SaveState(_ context.Context, state domain.OAuthState, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.State] = memoryState{record: state, expiresAt: time.Now().Add(ttl)}
	s.pruneLocked()
	return nil
}

func (s *MemoryStateStore) GetState(_ context.Context, state string) (*domain.OAuthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.states[state]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, nil
	}
	record := entry.record
	return &record, nil
}

func (s *MemoryStateStore) DeleteState(_ context.Context, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, state)
	return nil
}

func (s *MemoryStateStore) pruneLocked() {
	now := time.Now()
	for key, entry := range s.states {
		if now.After(entry.expiresAt) {
			delete(s.states, key)
		}
	}
}

var _ OAuthStateStore = (*MemoryStateStore)(nil)
