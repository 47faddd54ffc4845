package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"tradesim/internal/storage"
	"tradesim/pkg/types"
)

// csvDateLayout matches spec §6's candle CSV ingest format: Date parsed as
// YYYY-MM-DD.
const csvDateLayout = "2006-01-02"

// LoadCSV reads Date,Open,High,Low,Close,Volume rows from r (no header row
// assumed; the first record is skipped if it does not parse as a date) and
// inserts them into the Candle Store under symbol/tf.
//
// Grounded on original_source/app/data/postgres.py's CSV loader, the
// supplemented feature spec §1 names as an out-of-core collaborator but
// spec §6 still specifies the exact column format for.
func LoadCSV(ctx context.Context, store *storage.CandleStore, symbol string, tf types.Timeframe, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 6

	var batch []types.Candle
	lineNo := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("ingest: read csv row %d: %w", lineNo, err)
		}
		lineNo++

		ts, err := time.Parse(csvDateLayout, record[0])
		if err != nil {
			if lineNo == 1 {
				// Likely a header row ("Date,Open,High,Low,Close,Volume").
				continue
			}
			return 0, fmt.Errorf("ingest: parse date on row %d: %w", lineNo, err)
		}

		candle, err := parseCSVRow(symbol, tf, ts, record)
		if err != nil {
			return 0, fmt.Errorf("ingest: parse row %d: %w", lineNo, err)
		}
		batch = append(batch, candle)
	}

	if err := store.InsertCandles(ctx, batch); err != nil {
		return 0, fmt.Errorf("ingest: insert csv candles: %w", err)
	}
	return len(batch), nil
}

func parseCSVRow(symbol string, tf types.Timeframe, ts time.Time, record []string) (types.Candle, error) {
	fields := make([]decimal.Decimal, 5)
	for i, raw := range record[1:6] {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return types.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		fields[i] = v
	}
	return types.Candle{
		Symbol:    symbol,
		Timeframe: tf,
		Timestamp: ts,
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
	}, nil
}
