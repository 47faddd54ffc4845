package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tradesim/internal/apperr"
	"tradesim/pkg/types"
)

// LoadSnapshot returns the persisted exchange instance for userID and true,
// or a zero snapshot and false if the user has never had one persisted.
func (s *Storage) LoadSnapshot(ctx context.Context, userID string) (types.ExchangeSnapshot, bool, error) {
	var row ExchangeInstanceRow
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.ExchangeSnapshot{}, false, nil
	}
	if err != nil {
		return types.ExchangeSnapshot{}, false, apperr.Internal("load exchange instance", err)
	}
	return types.ExchangeSnapshot{
		UserID:            row.UserID,
		LastUsedTimestamp: row.LastUsedTimestamp,
		Multiplier:        row.Multiplier,
		Commission:        row.Commission,
	}, true, nil
}

// SaveSnapshot upserts the exchange instance row for snap.UserID.
func (s *Storage) SaveSnapshot(ctx context.Context, snap types.ExchangeSnapshot) error {
	row := ExchangeInstanceRow{
		UserID:            snap.UserID,
		LastUsedTimestamp: snap.LastUsedTimestamp,
		Multiplier:        snap.Multiplier,
		Commission:        snap.Commission,
	}
	err := s.db.WithContext(ctx).
		Where(ExchangeInstanceRow{UserID: snap.UserID}).
		Assign(row).
		FirstOrCreate(&ExchangeInstanceRow{}).Error
	if err != nil {
		return apperr.Internal("save exchange instance", err)
	}
	return nil
}

// DefaultSnapshot returns a snapshot for a user with none persisted. The
// Exchange Manager replaces its Multiplier and Commission with the
// configured defaults before constructing a fresh engine.
func DefaultSnapshot(userID string) types.ExchangeSnapshot {
	return types.ExchangeSnapshot{
		UserID:            userID,
		LastUsedTimestamp: time.Now(),
		Multiplier:        1.0,
		Commission:        decimal.NewFromFloat(0.001),
	}
}
