// Command server runs the multi-user exchange simulator: the Candle Store,
// the Exchange Manager and its idle-eviction reaper, and the HTTP/WebSocket
// façade, all wired from configs/config.yaml.
//
// Adapted from the teacher's cmd/bot/main.go: load config, build a logger,
// construct the core, start the API server in a goroutine, wait for
// SIGINT/SIGTERM, shut down in reverse order.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"

	"tradesim/internal/api"
	"tradesim/internal/auth"
	"tradesim/internal/config"
	"tradesim/internal/manager"
	"tradesim/internal/storage"
	"tradesim/pkg/types"

	"log/slog"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("TRADESIM_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(newLogHandler(cfg.Logging))

	db, err := storage.Open(cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}

	candleStore := storage.NewCandleStore(db)

	timeframe := types.Timeframe(cfg.Sim.Timeframe)
	mgr := manager.New(manager.Config{
		Timeframe:         timeframe,
		TicksForTest:      cfg.Sim.TicksForTest,
		TradableAssets:    cfg.Sim.TradableAssets,
		DefaultMultiplier: cfg.Sim.DefaultMultiplier,
		DefaultCommission: decimal.NewFromFloat(cfg.Sim.DefaultCommission),
		InitialCash:       decimal.NewFromFloat(cfg.Sim.InitialCash),
		IdleEvictionAfter: cfg.Sim.IdleEvictionAfter,
		ReaperInterval:    cfg.Sim.ReaperInterval,
	}, candleStore, db, logger)

	reaperCtx, stopReaper := context.WithCancel(context.Background())
	go mgr.Run(reaperCtx)

	authSvc := auth.New(db)
	apiServer := api.NewServer(cfg.HTTP, mgr, authSvc, logger)

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("api server failed", "error", err)
		}
	}()

	logger.Info("exchange simulator started",
		"addr", cfg.HTTP.Addr,
		"timeframe", cfg.Sim.Timeframe,
		"tradable_assets", cfg.Sim.TradableAssets,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	if err := apiServer.Stop(); err != nil {
		logger.Error("failed to stop api server", "error", err)
	}
	stopReaper()

	if err := db.Close(); err != nil {
		logger.Error("failed to close database", "error", err)
	}
}

func newLogHandler(cfg config.LoggingConfig) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "json" {
		return slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.NewTextHandler(os.Stdout, opts)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
