package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/atinyakov/vultsync/internal/models"
)

// UserRepository defines the persistence operations
// required by the user service.
type UserRepository interface {
	// SetUser stores the secrets of alias unless some are already stored.
	// It reports whether a row was created.
	SetUser(ctx context.Context, alias string, secrets models.UserSecrets) (bool, error)
	// GetUser returns the secrets of alias, or models.ErrUninitializedUser.
	GetUser(ctx context.Context, alias string) (models.UserSecrets, error)
	// RemoveUser deletes the secrets of alias.
	RemoveUser(ctx context.Context, alias string) error
}

// UserService keeps the key derivation salt and verification hash that
// clients of one user share.
type UserService struct {
	// repo performs the data-layer operations.
	repo UserRepository
	log  *zap.Logger
}

// NewUserService constructs a new UserService using the provided repository.
func NewUserService(repo UserRepository, log *zap.Logger) *UserService {
	return &UserService{repo: repo, log: log}
}

// InitUser stores secrets for alias once. A second call fails with
// models.ErrExistingUser and leaves the stored secrets untouched.
func (s *UserService) InitUser(ctx context.Context, alias string, secrets models.UserSecrets) error {
	created, err := s.repo.SetUser(ctx, alias, secrets)
	if err != nil {
		return err
	}
	if !created {
		return fmt.Errorf("init user %q: %w", alias, models.ErrExistingUser)
	}
	s.log.Info("user initialised", zap.String("alias", alias))
	return nil
}

// ImportUser returns the stored secrets of alias.
func (s *UserService) ImportUser(ctx context.Context, alias string) (models.UserSecrets, error) {
	return s.repo.GetUser(ctx, alias)
}
