package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ResetService wipes everything stored for a user. It backs the test-only
// reset endpoint.
type ResetService struct {
	store CredentialStore
	cache MutationCache
	users UserRepository
	log   *zap.Logger
}

// NewResetService constructs a ResetService.
func NewResetService(store CredentialStore, cache MutationCache, users UserRepository, log *zap.Logger) *ResetService {
	return &ResetService{store: store, cache: cache, users: users, log: log}
}

// Reset removes the store, the cache and the secrets of alias.
func (s *ResetService) Reset(ctx context.Context, alias string) error {
	if err := s.store.Reset(ctx, alias); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	if err := s.cache.Reset(ctx, alias); err != nil {
		return fmt.Errorf("reset cache: %w", err)
	}
	if err := s.users.RemoveUser(ctx, alias); err != nil {
		return fmt.Errorf("reset user: %w", err)
	}
	s.log.Warn("user data reset", zap.String("alias", alias))
	return nil
}
