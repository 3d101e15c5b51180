package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taskpilot/identity/internal/domain"
	"github.com/taskpilot/identity/internal/password"
	"github.com/taskpilot/identity/internal/token"
)

type memoryUserStore struct {
	mu    sync.Mutex
	users map[int64]domain.User
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{users: make(map[int64]domain.User)}
}

func (s *memoryUserStore) GetByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (s *memoryUserStore) GetByID(_ context.Context, id int64) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (s *memoryUserStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := s.GetByEmail(ctx, email)
	if err == nil {
		return true, nil
	}
	return false, nil
}

func (s *memoryUserStore) Create(_ context.Context, user domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return domain.User{}, domain.ErrEmailInUse
		}
	}
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	s.users[user.ID] = user
	return user, nil
}

func (s *memoryUserStore) Update(_ context.Context, user domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	user.UpdatedAt = time.Now().UTC()
	s.users[user.ID] = user
	return user, nil
}

func (s *memoryUserStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *memoryUserStore) List(_ context.Context) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

func newTestAuthService(t *testing.T) (*AuthService, *memoryUserStore, *token.Service) {
	t.Helper()
	store := newMemoryUserStore()
	signer := token.NewSigner([]byte("test-secret-test-secret-test-sec"), time.Hour)
	tokens := token.NewService(signer, token.NewMemoryRevocationList())
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	svc := NewAuthService(store, tokens, password.NewHasher(1), node, zap.NewNop())
	return svc, store, tokens
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _, tokens := newTestAuthService(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, "Alice", "Alice@Example.com", "s3cret-pass")
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", created.Email, "email normalized on write")
	require.Equal(t, []domain.Role{domain.RoleUser}, created.Roles)
	require.Equal(t, domain.ProviderLocal, created.Provider)
	require.NotEmpty(t, created.PasswordHash)
	require.NotContains(t, created.PasswordHash, "s3cret-pass")

	raw, user, err := svc.Login(ctx, "ALICE@example.COM", "s3cret-pass")
	require.NoError(t, err)
	require.Equal(t, created.ID, user.ID)

	subject, err := tokens.Validate(ctx, raw)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", subject, "token subject is the normalized email")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Alice", "alice@example.com", "s3cret-pass")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "Imposter", "ALICE@EXAMPLE.COM", "other-pass")
	require.ErrorIs(t, err, domain.ErrEmailInUse, "duplicate detection is case-insensitive")
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Alice", "alice@example.com", "s3cret-pass")
	require.NoError(t, err)

	_, _, wrongPassword := svc.Login(ctx, "alice@example.com", "not-the-password")
	_, _, unknownEmail := svc.Login(ctx, "nobody@example.com", "s3cret-pass")

	require.ErrorIs(t, wrongPassword, domain.ErrInvalidCredentials)
	require.ErrorIs(t, unknownEmail, domain.ErrInvalidCredentials)
}

func TestLoginRejectsPasswordlessAccount(t *testing.T) {
	svc, store, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := store.Create(ctx, domain.User{
		ID:       42,
		Email:    "oauth@example.com",
		Provider: domain.ProviderGoogle,
		Roles:    []domain.Role{domain.RoleUser},
	})
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "oauth@example.com", "anything")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestLogoutInvalidatesToken(t *testing.T) {
	svc, _, tokens := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Alice", "alice@example.com", "s3cret-pass")
	require.NoError(t, err)
	raw, _, err := svc.Login(ctx, "alice@example.com", "s3cret-pass")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, raw))
	_, err = tokens.Validate(ctx, raw)
	require.ErrorIs(t, err, domain.ErrRevokedToken)

	// Logging out twice is fine.
	require.NoError(t, svc.Logout(ctx, raw))
}

func TestChangePassword(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Alice", "alice@example.com", "old-password")
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, user, "wrong-old", "new-password")
	require.ErrorIs(t, err, domain.ErrIncorrectOldPassword)

	require.NoError(t, svc.ChangePassword(ctx, user, "old-password", "new-password"))

	_, _, err = svc.Login(ctx, "alice@example.com", "old-password")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "alice@example.com", "new-password")
	require.NoError(t, err)
}

func TestChangePasswordKeepsOutstandingTokens(t *testing.T) {
	svc, _, tokens := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Alice", "alice@example.com", "old-password")
	require.NoError(t, err)
	raw, _, err := svc.Login(ctx, "alice@example.com", "old-password")
	require.NoError(t, err)

	require.NoError(t, svc.ChangePassword(ctx, user, "old-password", "new-password"))

	_, err = tokens.Validate(ctx, raw)
	require.NoError(t, err, "rotation does not revoke issued tokens")
}

func TestDeleteAccountRevokesPresentedToken(t *testing.T) {
	svc, store, tokens := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Alice", "alice@example.com", "s3cret-pass")
	require.NoError(t, err)
	raw, _, err := svc.Login(ctx, "alice@example.com", "s3cret-pass")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAccount(ctx, user, raw))

	_, err = tokens.Validate(ctx, raw)
	require.ErrorIs(t, err, domain.ErrRevokedToken)
	_, err = store.GetByID(ctx, user.ID)
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestCurrentUserMissingPrincipal(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	_, err := svc.CurrentUser(context.Background(), "ghost@example.com")
	require.ErrorIs(t, err, domain.ErrPrincipalNotFound)
}
