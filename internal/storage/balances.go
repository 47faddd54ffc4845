package storage

import (
	"context"

	"github.com/shopspring/decimal"

	"tradesim/internal/apperr"
	"tradesim/pkg/types"
)

// LoadBalances returns the persisted balance snapshot for a user, or a zero
// snapshot (cash 0, no assets) if the user has never had balances persisted
// (a brand new account hydrating for the first time).
func (s *Storage) LoadBalances(ctx context.Context, userID string) (types.BalanceSnapshot, error) {
	var rows []BalanceRow
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return types.BalanceSnapshot{}, apperr.Internal("load balances", err)
	}

	snap := types.BalanceSnapshot{Cash: decimal.Zero, Assets: make(map[string]decimal.Decimal)}
	for _, row := range rows {
		if row.AssetName == CashAsset {
			snap.Cash = row.Amount
			continue
		}
		snap.Assets[row.AssetName] = row.Amount
	}
	return snap, nil
}

// SaveBalances upserts every asset (and cash) in snap for userID, replacing
// whatever was previously persisted for those keys.
func (s *Storage) SaveBalances(ctx context.Context, userID string, snap types.BalanceSnapshot) error {
	rows := make([]BalanceRow, 0, len(snap.Assets)+1)
	rows = append(rows, BalanceRow{UserID: userID, AssetName: CashAsset, Amount: snap.Cash})
	for asset, amount := range snap.Assets {
		rows = append(rows, BalanceRow{UserID: userID, AssetName: asset, Amount: amount})
	}

	for _, row := range rows {
		err := s.db.WithContext(ctx).
			Where(BalanceRow{UserID: row.UserID, AssetName: row.AssetName}).
			Assign(BalanceRow{Amount: row.Amount}).
			FirstOrCreate(&BalanceRow{}).Error
		if err != nil {
			return apperr.Internal("save balances", err)
		}
	}
	return nil
}
