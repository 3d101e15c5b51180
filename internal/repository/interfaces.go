package repository

import (
	"context"
	"time"

	"github.com/taskpilot/identity/internal/domain"
)

// UserStore is the narrow persistence boundary for principals. Absence is a
// value (domain.ErrUserNotFound), never a panic or a raw driver error.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, id int64) (domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
	Update(ctx context.Context, user domain.User) (domain.User, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]domain.User, error)
}

// OAuthStateStore persists the short-lived state handed to the provider
// during the authorization redirect.
type OAuthStateStore interface {
	SaveState(ctx context.Context, state domain.OAuthState, ttl time.Duration) error
	GetState(ctx context.Context, state string) (*domain.OAuthState, error)
	DeleteState(ctx context.Context, state string) error
}
