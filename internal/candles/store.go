// Package candles defines the Candle Store (C1) contract: durable, indexed,
// read-only access to OHLCV bars by (symbol, timeframe, timestamp). The
// concrete Postgres-backed implementation lives in internal/storage; this
// package exists so the engine can depend on the interface alone and accept
// a fake in tests.
package candles

import (
	"context"
	"errors"
	"time"

	"tradesim/pkg/types"
)

// ErrNotFound is returned when no candle exists at the requested timestamp.
// The engine treats this as data-absent, not fatal: it logs the miss and
// keeps resolving against the last-known candle (spec §4.4).
var ErrNotFound = errors.New("candles: not found")

// Store is the read-only interface the engine and ingest tooling share.
type Store interface {
	// GetByTime returns the single candle whose timestamp equals ts exactly,
	// or ErrNotFound.
	GetByTime(ctx context.Context, symbol string, tf types.Timeframe, ts time.Time) (types.Candle, error)

	// Latest returns the n most recent candles in descending time order.
	Latest(ctx context.Context, symbol string, tf types.Timeframe, n int) ([]types.Candle, error)

	// LatestBefore returns up to n candles strictly earlier than ts, in
	// descending time order.
	LatestBefore(ctx context.Context, symbol string, tf types.Timeframe, ts time.Time, n int) ([]types.Candle, error)
}
