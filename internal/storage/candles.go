package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"tradesim/internal/candles"
	"tradesim/pkg/types"
)

// CandleStore is the Postgres-backed candles.Store implementation. It
// embeds Storage so the same connection pool backs both domain state and
// candle reads.
type CandleStore struct {
	*Storage
}

// NewCandleStore adapts an open Storage into a candles.Store.
func NewCandleStore(s *Storage) *CandleStore {
	return &CandleStore{Storage: s}
}

var _ candles.Store = (*CandleStore)(nil)

func toCandle(row CandleRow) types.Candle {
	return types.Candle{
		Symbol:    row.Symbol,
		Timeframe: types.Timeframe(row.Timeframe),
		Timestamp: row.Timestamp,
		Open:      row.Open,
		High:      row.High,
		Low:       row.Low,
		Close:     row.Close,
		Volume:    row.Volume,
	}
}

// GetByTime implements candles.Store.
func (c *CandleStore) GetByTime(ctx context.Context, symbol string, tf types.Timeframe, ts time.Time) (types.Candle, error) {
	var row CandleRow
	err := c.db.WithContext(ctx).
		Where("symbol = ? AND timeframe = ? AND timestamp = ?", symbol, string(tf), ts).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.Candle{}, candles.ErrNotFound
	}
	if err != nil {
		return types.Candle{}, err
	}
	return toCandle(row), nil
}

// Latest implements candles.Store.
func (c *CandleStore) Latest(ctx context.Context, symbol string, tf types.Timeframe, n int) ([]types.Candle, error) {
	var rows []CandleRow
	err := c.db.WithContext(ctx).
		Where("symbol = ? AND timeframe = ?", symbol, string(tf)).
		Order("timestamp desc").
		Limit(n).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.Candle, len(rows))
	for i, row := range rows {
		out[i] = toCandle(row)
	}
	return out, nil
}

// LatestBefore implements candles.Store.
func (c *CandleStore) LatestBefore(ctx context.Context, symbol string, tf types.Timeframe, ts time.Time, n int) ([]types.Candle, error) {
	var rows []CandleRow
	err := c.db.WithContext(ctx).
		Where("symbol = ? AND timeframe = ? AND timestamp < ?", symbol, string(tf), ts).
		Order("timestamp desc").
		Limit(n).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.Candle, len(rows))
	for i, row := range rows {
		out[i] = toCandle(row)
	}
	return out, nil
}

// InsertCandles bulk-inserts rows, used by the backfill tool. Duplicate
// (symbol, timeframe, timestamp) rows are skipped rather than erroring, so a
// re-run of the backfill is idempotent.
func (c *CandleStore) InsertCandles(ctx context.Context, rows []types.Candle) error {
	for _, candle := range rows {
		row := CandleRow{
			Symbol:    candle.Symbol,
			Timeframe: string(candle.Timeframe),
			Timestamp: candle.Timestamp,
			Open:      candle.Open,
			High:      candle.High,
			Low:       candle.Low,
			Close:     candle.Close,
			Volume:    candle.Volume,
		}
		err := c.db.WithContext(ctx).
			Where(CandleRow{Symbol: row.Symbol, Timeframe: row.Timeframe, Timestamp: row.Timestamp}).
			FirstOrCreate(&row).Error
		if err != nil {
			return err
		}
	}
	return nil
}
