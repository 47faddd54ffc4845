// Package ingest is the (spec §1: explicitly out-of-core) candle ingestion
// collaborator: an offline tool that pages a third-party klines REST API and
// loads CSV exports into the Candle Store. It never runs from inside the
// matching engine's hot path (spec §1 Non-goals: no live market
// connectivity).
//
// Grounded on original_source/app/data/extractors/binance_data_extractor.py,
// which pages a klines endpoint by symbol/interval/startTime/endTime window
// and stores each row; and on the teacher's internal/exchange/client.go,
// which wraps resty with a base URL, timeout, and retry policy.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"tradesim/internal/storage"
	"tradesim/pkg/types"
)

// Client pages a klines-style REST API into the Candle Store.
type Client struct {
	http    *resty.Client
	limiter *RateLimiter
	store   *storage.CandleStore
}

// klineRow is one row of the API's array-of-arrays klines response:
// [openTime, open, high, low, close, volume, closeTime, ...].
type klineRow [12]interface{}

// NewClient builds a Client pointed at baseURL (a klines-compatible API),
// rate-limited by a generic conservative token bucket.
func NewClient(baseURL string, store *storage.CandleStore) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)

	return &Client{http: http, limiter: NewRateLimiter(), store: store}
}

// Backfill pages [from, to) for symbol/timeframe in windows no larger than
// the API's max rows per call, and inserts every candle returned.
func (c *Client) Backfill(ctx context.Context, symbol string, tf types.Timeframe, from, to time.Time) error {
	const maxRowsPerCall = 500
	window := tf.Duration() * maxRowsPerCall

	for start := from; start.Before(to); start = start.Add(window) {
		end := start.Add(window)
		if end.After(to) {
			end = to
		}

		if err := c.limiter.Klines.Wait(ctx); err != nil {
			return fmt.Errorf("ingest: rate limit wait: %w", err)
		}

		rows, err := c.fetchKlines(ctx, symbol, tf, start, end)
		if err != nil {
			return fmt.Errorf("ingest: fetch klines for %s %s [%s,%s): %w", symbol, tf, start, end, err)
		}

		candles := make([]types.Candle, 0, len(rows))
		for _, row := range rows {
			candle, err := parseKline(symbol, tf, row)
			if err != nil {
				return fmt.Errorf("ingest: parse kline: %w", err)
			}
			candles = append(candles, candle)
		}

		if err := c.store.InsertCandles(ctx, candles); err != nil {
			return fmt.Errorf("ingest: insert candles: %w", err)
		}
	}
	return nil
}

func (c *Client) fetchKlines(ctx context.Context, symbol string, tf types.Timeframe, from, to time.Time) ([]klineRow, error) {
	var rows []klineRow
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":    symbol,
			"interval":  string(tf),
			"startTime": fmt.Sprintf("%d", from.UnixMilli()),
			"endTime":   fmt.Sprintf("%d", to.UnixMilli()),
		}).
		SetResult(&rows).
		Get("/api/v3/klines")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("klines request failed: %s", resp.Status())
	}
	return rows, nil
}

func parseKline(symbol string, tf types.Timeframe, row klineRow) (types.Candle, error) {
	openMillis, ok := row[0].(float64)
	if !ok {
		return types.Candle{}, fmt.Errorf("unexpected open-time field type")
	}

	toDecimal := func(v interface{}) (decimal.Decimal, error) {
		s, ok := v.(string)
		if !ok {
			return decimal.Decimal{}, fmt.Errorf("unexpected numeric field type")
		}
		return decimal.NewFromString(s)
	}

	open, err := toDecimal(row[1])
	if err != nil {
		return types.Candle{}, err
	}
	high, err := toDecimal(row[2])
	if err != nil {
		return types.Candle{}, err
	}
	low, err := toDecimal(row[3])
	if err != nil {
		return types.Candle{}, err
	}
	closePrice, err := toDecimal(row[4])
	if err != nil {
		return types.Candle{}, err
	}
	volume, err := toDecimal(row[5])
	if err != nil {
		return types.Candle{}, err
	}

	return types.Candle{
		Symbol:    symbol,
		Timeframe: tf,
		Timestamp: time.UnixMilli(int64(openMillis)).UTC(),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
	}, nil
}
