// Package auth is the thin API-key surface spec §6's /auth/generate_api_key
// endpoint resolves to. Grounded on original_source/app/routers/auth.py: mint
// a key, persist the user, look the key back up on every authenticated
// request. No sessions, no scopes — spec §1 treats the HTTP auth surface
// itself as external; this is only the minting/lookup it needs to exist.
package auth

import (
	"context"

	"github.com/google/uuid"

	"tradesim/pkg/types"
)

// Store is the persistence slice auth depends on.
type Store interface {
	CreateUser(ctx context.Context, apiKey string) (types.User, error)
	GetUserByAPIKey(ctx context.Context, apiKey string) (types.User, error)
}

// Service mints and resolves API keys.
type Service struct {
	store Store
}

// New builds an auth Service backed by store.
func New(store Store) *Service {
	return &Service{store: store}
}

// GenerateAPIKey mints a fresh user with a new UUID-class API key.
func (s *Service) GenerateAPIKey(ctx context.Context) (types.User, error) {
	return s.store.CreateUser(ctx, uuid.NewString())
}

// Resolve looks up the user owning apiKey, or apperr.Auth if unknown.
func (s *Service) Resolve(ctx context.Context, apiKey string) (types.User, error) {
	return s.store.GetUserByAPIKey(ctx, apiKey)
}
