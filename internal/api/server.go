package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradesim/internal/auth"
	"tradesim/internal/config"
	"tradesim/internal/manager"
)

// Server runs the HTTP/WebSocket façade (C6) over the Exchange Manager.
type Server struct {
	cfg      config.HTTPConfig
	manager  *manager.Manager
	hub      *Hub
	handlers *Handlers
	server   *http.Server
	logger   *slog.Logger

	broadcastStop chan struct{}
}

// NewServer wires every spec §6 route to its handler.
func NewServer(cfg config.HTTPConfig, mgr *manager.Manager, authSvc *auth.Service, logger *slog.Logger) *Server {
	hub := NewHub(logger)
	handlers := NewHandlers(mgr, authSvc, hub, cfg.AllowedOrigins, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handlers.HandleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /ws", handlers.HandleWebSocket)

	mux.HandleFunc("POST /auth/generate_api_key", handlers.HandleGenerateAPIKey)

	mux.HandleFunc("POST /playground/exchange/start_exchange", handlers.HandleStartExchange)
	mux.HandleFunc("POST /playground/exchange/stop_exchange", handlers.HandleStopExchange)
	mux.HandleFunc("POST /playground/exchange/set_multiplier", handlers.HandleSetMultiplier)
	mux.HandleFunc("POST /playground/exchange/set_commission", handlers.HandleSetCommission)

	mux.HandleFunc("POST /playground/exchange/trade/place_order", handlers.HandlePlaceOrder)
	mux.HandleFunc("GET /playground/exchange/trade/orders", handlers.HandleListOrders)
	mux.HandleFunc("GET /playground/exchange/trade/orders/{id}", handlers.HandleGetOrder)
	mux.HandleFunc("POST /playground/exchange/trade/cancel_order/{id}", handlers.HandleCancelOrder)
	mux.HandleFunc("GET /playground/exchange/trade/asset_balance", handlers.HandleAssetBalance)
	mux.HandleFunc("GET /playground/exchange/trade/asset_balance/{asset}", handlers.HandleSingleAssetBalance)
	mux.HandleFunc("GET /playground/exchange/trade/statistics", handlers.HandleStatistics)

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		cfg:           cfg,
		manager:       mgr,
		hub:           hub,
		handlers:      handlers,
		server:        server,
		logger:        logger.With("component", "api-server"),
		broadcastStop: make(chan struct{}),
	}
}

// Start runs the WebSocket hub, the tick broadcaster, and the HTTP server.
// Blocks until the server stops.
func (s *Server) Start() error {
	go s.hub.Run()
	go s.broadcastTicks()

	s.logger.Info("api server starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the server and the tick broadcaster.
func (s *Server) Stop() error {
	s.logger.Info("stopping api server")
	close(s.broadcastStop)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// broadcastTicks polls the manager's live engines and pushes a tick event
// per user whenever their simulated clock has moved, adapting the
// teacher's consumeEvents loop (server.go) from a channel read to a poll
// since the engine has no event channel of its own (spec §5's engine is a
// plain mutex-guarded struct, not a publisher).
func (s *Server) broadcastTicks() {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	last := make(map[string]time.Time)
	for {
		select {
		case <-s.broadcastStop:
			return
		case <-ticker.C:
			for userID, currentTime := range s.manager.ActiveTicks() {
				if prev, ok := last[userID]; ok && prev.Equal(currentTime) {
					continue
				}
				last[userID] = currentTime
				s.hub.BroadcastEvent(NewTickEvent(userID, currentTime))
			}
		}
	}
}
