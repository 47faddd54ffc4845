// Command backfill populates the Candle Store ahead of time, either by
// paging a klines-style REST API or by loading a CSV export. It never runs
// as part of the live matching engine (spec §1 Non-goals: no live market
// connectivity) — this is strictly an offline data-loading tool, grounded
// on original_source/app/data/postgres.py's loader and
// binance_data_extractor.py's pager.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"tradesim/internal/config"
	"tradesim/internal/ingest"
	"tradesim/internal/storage"
	"tradesim/pkg/types"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "path to config.yaml")
	mode := flag.String("mode", "remote", "backfill source: remote or csv")
	symbol := flag.String("symbol", "", "tradable asset symbol, e.g. BTCUSDT")
	timeframe := flag.String("timeframe", "1h", "candle timeframe: 1h, 4h, or 1d")
	from := flag.String("from", "", "start date, YYYY-MM-DD (remote mode)")
	to := flag.String("to", "", "end date, YYYY-MM-DD (remote mode)")
	csvPath := flag.String("csv", "", "path to a Date,Open,High,Low,Close,Volume CSV file (csv mode)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if *symbol == "" {
		logger.Error("-symbol is required")
		os.Exit(1)
	}
	tf := types.Timeframe(*timeframe)
	if !tf.Valid() {
		logger.Error("invalid -timeframe", "value", *timeframe)
		os.Exit(1)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := storage.Open(cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	candleStore := storage.NewCandleStore(db)
	ctx := context.Background()

	switch *mode {
	case "remote":
		if *from == "" || *to == "" {
			logger.Error("-from and -to are required in remote mode")
			os.Exit(1)
		}
		fromTime, err := time.Parse("2006-01-02", *from)
		if err != nil {
			logger.Error("invalid -from", "error", err)
			os.Exit(1)
		}
		toTime, err := time.Parse("2006-01-02", *to)
		if err != nil {
			logger.Error("invalid -to", "error", err)
			os.Exit(1)
		}

		client := ingest.NewClient(cfg.Ingest.BaseURL, candleStore)
		if err := client.Backfill(ctx, *symbol, tf, fromTime, toTime); err != nil {
			logger.Error("backfill failed", "error", err)
			os.Exit(1)
		}
		logger.Info("backfill complete", "symbol", *symbol, "timeframe", tf, "from", *from, "to", *to)

	case "csv":
		if *csvPath == "" {
			logger.Error("-csv is required in csv mode")
			os.Exit(1)
		}
		f, err := os.Open(*csvPath)
		if err != nil {
			logger.Error("failed to open csv file", "error", err)
			os.Exit(1)
		}
		defer f.Close()

		n, err := ingest.LoadCSV(ctx, candleStore, *symbol, tf, f)
		if err != nil {
			logger.Error("csv load failed", "error", err)
			os.Exit(1)
		}
		logger.Info("csv load complete", "symbol", *symbol, "timeframe", tf, "rows", n)

	default:
		logger.Error("unknown -mode", "value", *mode)
		os.Exit(1)
	}
}
