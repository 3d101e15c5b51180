package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/taskpilot/identity/internal/domain"
	"github.com/taskpilot/identity/internal/repository"
)

// AdminService exposes the user-management surface reserved for the ADMIN
// role. Authorization happens in the routing layer; these methods only
// enforce invariants that hold regardless of who calls them.
type AdminService struct {
	users  repository.UserStore
	logger *zap.Logger
}

func NewAdminService(users repository.UserStore, logger *zap.Logger) *AdminService {
	return &AdminService{users: users, logger: logger}
}

// ListUsers returns every account.
func (s *AdminService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// GetUser fetches a single account by id.
func (s *AdminService) GetUser(ctx context.Context, id int64) (domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// DeleteUser removes an account. Accounts holding the ADMIN role cannot be
// deleted through this path.
func (s *AdminService) DeleteUser(ctx context.Context, id int64) error {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if user.IsAdmin() {
		return domain.ErrAdminDeletion
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.logger.Info("audit",
		zap.String("event", "admin.user.deleted"),
		zap.Int64("user_id", id),
	)
	return nil
}
