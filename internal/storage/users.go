package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tradesim/internal/apperr"
	"tradesim/pkg/types"
)

// CreateUser mints a fresh user with a unique API key and returns it.
func (s *Storage) CreateUser(ctx context.Context, apiKey string) (types.User, error) {
	row := UserRow{ID: uuid.NewString(), APIKey: apiKey, CreatedAt: time.Now()}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return types.User{}, apperr.Internal("create user", err)
	}
	return types.User{ID: row.ID, APIKey: row.APIKey, CreatedAt: row.CreatedAt}, nil
}

// GetUserByAPIKey resolves an API key to a user, or apperr.Auth if unknown.
func (s *Storage) GetUserByAPIKey(ctx context.Context, apiKey string) (types.User, error) {
	var row UserRow
	err := s.db.WithContext(ctx).Where("api_key = ?", apiKey).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.User{}, apperr.Auth("unknown api key")
	}
	if err != nil {
		return types.User{}, apperr.Internal("lookup user", err)
	}
	return types.User{ID: row.ID, APIKey: row.APIKey, CreatedAt: row.CreatedAt}, nil
}
