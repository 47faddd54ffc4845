// Package manager implements the Exchange Manager (C5): the user_id->engine
// map every API request resolves through, plus the idle-eviction reaper.
//
// The reaper's ticker-driven sweep is grounded on the teacher's scanner poll
// loop (internal/manager/_scanner_reference.go.bak, Scanner.Run): a
// time.NewTicker select loop that exits on context cancellation. The domain
// changes from polling a market-discovery API to sweeping idle engines. The
// scanner's initial pass is not kept: Run sweeps only when the ticker fires.
package manager

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tradesim/internal/apperr"
	"tradesim/internal/candles"
	"tradesim/internal/engine"
	"tradesim/internal/metrics"
	"tradesim/internal/storage"
	"tradesim/pkg/types"
)

// Manager owns the single live engine per user (spec §4.5: "at most one live
// engine per user; all map mutations are serialized").
type Manager struct {
	mu      sync.Mutex
	engines map[string]*engine.Engine

	store   candles.Store
	storage *storage.Storage
	logger  *slog.Logger

	timeframe         types.Timeframe
	ticksForTest      int
	tradableAssets    []string
	defaultMultiplier float64
	defaultCommission decimal.Decimal
	initialCash       decimal.Decimal

	idleEvictionAfter time.Duration
	reaperInterval    time.Duration

	stopReaper context.CancelFunc
}

// Config bundles the construction-time parameters every hydrated engine
// needs.
type Config struct {
	Timeframe         types.Timeframe
	TicksForTest      int
	TradableAssets    []string
	DefaultMultiplier float64
	DefaultCommission decimal.Decimal
	InitialCash       decimal.Decimal
	IdleEvictionAfter time.Duration
	ReaperInterval    time.Duration
}

// New constructs a Manager with no live engines. Call Run to start the
// reaper.
func New(cfg Config, store candles.Store, db *storage.Storage, logger *slog.Logger) *Manager {
	return &Manager{
		engines:           make(map[string]*engine.Engine),
		store:             store,
		storage:           db,
		logger:            logger.With("component", "manager"),
		timeframe:         cfg.Timeframe,
		ticksForTest:      cfg.TicksForTest,
		tradableAssets:    cfg.TradableAssets,
		defaultMultiplier: cfg.DefaultMultiplier,
		defaultCommission: cfg.DefaultCommission,
		initialCash:       cfg.InitialCash,
		idleEvictionAfter: cfg.IdleEvictionAfter,
		reaperInterval:    cfg.ReaperInterval,
	}
}

// Start resolves userID's engine, hydrating one from the persisted snapshot
// (or defaults) and starting it if none is live yet (spec §4.5).
func (m *Manager) Start(ctx context.Context, userID string) (*engine.Engine, error) {
	m.mu.Lock()
	if e, ok := m.engines[userID]; ok {
		m.mu.Unlock()
		return e, e.Start()
	}
	m.mu.Unlock()

	e, err := m.hydrate(ctx, userID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if existing, ok := m.engines[userID]; ok {
		m.mu.Unlock()
		return existing, existing.Start()
	}
	m.engines[userID] = e
	metrics.SetActiveEngines(len(m.engines))
	m.mu.Unlock()

	return e, e.Start()
}

// Get resolves userID's engine without forcing it to RUNNING, hydrating one
// if none is live (spec §4.5: "like start but does not transition to
// RUNNING").
func (m *Manager) Get(ctx context.Context, userID string) (*engine.Engine, error) {
	m.mu.Lock()
	if e, ok := m.engines[userID]; ok {
		m.mu.Unlock()
		return e, nil
	}
	m.mu.Unlock()

	e, err := m.hydrate(ctx, userID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if existing, ok := m.engines[userID]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	m.engines[userID] = e
	metrics.SetActiveEngines(len(m.engines))
	m.mu.Unlock()
	return e, nil
}

// Stop persists userID's engine snapshot, stops it, and removes it from the
// map. Per spec §7: a persistence failure never prevents the in-memory
// stop; the snapshot save is retried once before being logged and dropped.
func (m *Manager) Stop(ctx context.Context, userID string) error {
	m.mu.Lock()
	e, ok := m.engines[userID]
	if !ok {
		m.mu.Unlock()
		return apperr.NotFound("no live engine for user")
	}
	delete(m.engines, userID)
	metrics.SetActiveEngines(len(m.engines))
	m.mu.Unlock()

	snap := types.ExchangeSnapshot{
		UserID:            userID,
		LastUsedTimestamp: time.Now(),
		Multiplier:        e.Multiplier(),
		Commission:        e.Commission(),
	}
	if err := m.storage.SaveSnapshot(ctx, snap); err != nil {
		m.logger.Error("save exchange snapshot failed, retrying once", "user_id", userID, "error", err)
		if err := m.storage.SaveSnapshot(ctx, snap); err != nil {
			m.logger.Error("save exchange snapshot retry failed, stopping anyway", "user_id", userID, "error", err)
		}
	}

	e.Stop()
	return nil
}

// SetMultiplier applies m to userID's live engine and persists the change.
func (m *Manager) SetMultiplier(ctx context.Context, userID string, multiplier float64) error {
	e, err := m.Get(ctx, userID)
	if err != nil {
		return err
	}
	e.SetMultiplier(multiplier)
	return m.storage.SaveSnapshot(ctx, types.ExchangeSnapshot{
		UserID:            userID,
		LastUsedTimestamp: time.Now(),
		Multiplier:        multiplier,
		Commission:        e.Commission(),
	})
}

// SetCommission applies c to userID's live engine and persists the change.
func (m *Manager) SetCommission(ctx context.Context, userID string, commission decimal.Decimal) error {
	e, err := m.Get(ctx, userID)
	if err != nil {
		return err
	}
	e.SetCommission(commission)
	return m.storage.SaveSnapshot(ctx, types.ExchangeSnapshot{
		UserID:            userID,
		LastUsedTimestamp: time.Now(),
		Multiplier:        e.Multiplier(),
		Commission:        commission,
	})
}

// hydrate builds a fresh engine for userID from persisted balances, open
// orders, and the exchange instance snapshot (or defaults for a new user).
func (m *Manager) hydrate(ctx context.Context, userID string) (*engine.Engine, error) {
	snap, found, err := m.storage.LoadSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		snap = storage.DefaultSnapshot(userID)
		snap.Multiplier = m.defaultMultiplier
		snap.Commission = m.defaultCommission
	}

	balances, err := m.storage.LoadBalances(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balances.Cash.IsZero() && len(balances.Assets) == 0 {
		balances.Cash = m.initialCash
	}
	for _, asset := range m.tradableAssets {
		if _, ok := balances.Assets[asset]; !ok {
			if balances.Assets == nil {
				balances.Assets = make(map[string]decimal.Decimal)
			}
			balances.Assets[asset] = decimal.Zero
		}
	}

	openOrders, err := m.storage.LoadOpenOrders(ctx, userID)
	if err != nil {
		return nil, err
	}

	lastCandle, err := m.lastCandleTimestamp(ctx)
	if err != nil {
		return nil, err
	}

	cfg := engine.Config{
		UserID:            userID,
		Timeframe:         m.timeframe,
		TicksForTest:      m.ticksForTest,
		TradableAssets:    m.tradableAssets,
		Multiplier:        snap.Multiplier,
		Commission:        snap.Commission,
		InitialBalances:   balances,
		OpenOrders:        openOrders,
		LastCandleAtStart: lastCandle,
	}
	return engine.New(cfg, m.store, m.storage, m.logger), nil
}

// lastCandleTimestamp returns last_candle_timestamp(asset0, 1d) per the
// simulated-time initialization formula (spec §4.4), falling back to now if
// the asset has no daily candles yet (an empty Candle Store in a fresh
// deployment).
func (m *Manager) lastCandleTimestamp(ctx context.Context) (time.Time, error) {
	if len(m.tradableAssets) == 0 {
		return time.Now(), nil
	}
	latest, err := m.store.Latest(ctx, m.tradableAssets[0], types.Timeframe1d, 1)
	if err != nil {
		return time.Time{}, apperr.Internal("load latest daily candle", err)
	}
	if len(latest) == 0 {
		return time.Now(), nil
	}
	return latest[0].Timestamp, nil
}

// Run starts the idle-eviction reaper. Blocks until ctx is cancelled, so
// callers run it in a goroutine.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.reaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

// ActiveTicks returns the current simulated time of every live engine,
// keyed by user id. Used by the API server's broadcast loop to push tick
// events without the manager depending on the api package.
func (m *Manager) ActiveTicks() map[string]time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]time.Time, len(m.engines))
	for userID, e := range m.engines {
		if e.State() == engine.StateRunning {
			out[userID] = e.CurrentTime()
		}
	}
	return out
}

// sweep stops and evicts every engine idle for longer than
// idleEvictionAfter (spec §4.5 reaper).
func (m *Manager) sweep(ctx context.Context) {
	m.mu.Lock()
	idle := make([]string, 0)
	now := time.Now()
	for userID, e := range m.engines {
		if now.Sub(e.LastActivity()) > m.idleEvictionAfter {
			idle = append(idle, userID)
		}
	}
	m.mu.Unlock()

	for _, userID := range idle {
		m.logger.Info("evicting idle engine", "user_id", userID)
		if err := m.Stop(ctx, userID); err != nil {
			m.logger.Error("idle eviction failed", "user_id", userID, "error", err)
			continue
		}
		metrics.IncIdleEviction()
	}
}
