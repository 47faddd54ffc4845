package ingest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradesim/pkg/types"
)

func TestParseCSVRowParsesFields(t *testing.T) {
	t.Parallel()
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	record := []string{"2024-03-01", "100.5", "105", "99.25", "101", "1234.5"}

	candle, err := parseCSVRow("BTC", types.Timeframe1d, ts, record)
	if err != nil {
		t.Fatalf("parseCSVRow returned error: %v", err)
	}

	if !candle.Open.Equal(decimal.RequireFromString("100.5")) {
		t.Errorf("open = %s, want 100.5", candle.Open)
	}
	if !candle.Close.Equal(decimal.RequireFromString("101")) {
		t.Errorf("close = %s, want 101", candle.Close)
	}
	if candle.Symbol != "BTC" || candle.Timeframe != types.Timeframe1d {
		t.Errorf("symbol/timeframe = %s/%s, want BTC/1d", candle.Symbol, candle.Timeframe)
	}
	if !candle.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %s, want %s", candle.Timestamp, ts)
	}
}

func TestParseCSVRowRejectsMalformedNumber(t *testing.T) {
	t.Parallel()
	record := []string{"2024-03-01", "not-a-number", "105", "99.25", "101", "1234.5"}
	if _, err := parseCSVRow("BTC", types.Timeframe1d, time.Now(), record); err == nil {
		t.Error("expected error for malformed numeric field, got nil")
	}
}
