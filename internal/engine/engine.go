// Package engine implements the Matching Engine (C4): one per-user
// simulation loop that advances a multiplier-scaled clock, streams candles,
// blocks and releases balances, and resolves orders against each new
// candle.
//
// The concurrency shape follows spec §5 literally rather than the
// coordinator-goroutine alternative in §9's design notes: a single
// per-engine mutex guards current_time, open_orders, latest candles, and
// the ledger view, and a tick driver hands off to a resolver over a
// buffered signal channel. This mirrors the bot's own orchestrator
// (internal/engine in the teacher repo), which likewise runs independent
// background goroutines coordinated through channels under a shared lock
// rather than actor-style message passing.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tradesim/internal/apperr"
	"tradesim/internal/candles"
	"tradesim/internal/ledger"
	"tradesim/internal/metrics"
	"tradesim/pkg/types"
)

// State is the engine's lifecycle state (spec §4.4).
type State int

const (
	StateCreated State = iota
	StateRunning
	StateStopped
)

// Persistence is the narrow slice of the storage layer the engine calls
// into per operation. Defined here rather than depended on directly so
// tests can supply a fake without pulling in GORM or a live database.
type Persistence interface {
	SaveOrder(ctx context.Context, order types.Order) error
	DeleteOrder(ctx context.Context, orderID string) error
	SaveBalances(ctx context.Context, userID string, snap types.BalanceSnapshot) error
}

// Config bundles the construction-time parameters an engine needs beyond
// its seeded balances and open orders.
type Config struct {
	UserID            string
	Timeframe         types.Timeframe
	TicksForTest      int
	TradableAssets    []string
	Multiplier        float64
	Commission        decimal.Decimal
	InitialBalances   types.BalanceSnapshot
	OpenOrders        []types.Order
	LastCandleAtStart time.Time // last_candle_timestamp(asset0, 1d), spec §4.4
}

// Engine is one user's simulation: a tick driver and a resolver cooperating
// under a single mutex, per spec §5.
type Engine struct {
	userID string
	store  candles.Store
	persist Persistence
	logger *slog.Logger

	timeframe      types.Timeframe
	tradableAssets []string
	oneTick        time.Duration

	mu           sync.Mutex
	state        State
	currentTime  time.Time
	lastActivity time.Time
	multiplier   float64
	commission   decimal.Decimal
	openOrders   []*types.Order
	latestCandle map[string]types.Candle
	ledger       *ledger.Ledger
	stats        statsTracker

	signalCh chan struct{}
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New constructs a CREATED engine from hydrated state. It does not start the
// background loops; call Start for that (or Place, which implicitly starts).
func New(cfg Config, store candles.Store, persist Persistence, logger *slog.Logger) *Engine {
	oneTick := cfg.Timeframe.Duration()
	tickBudget := cfg.TicksForTest

	start := cfg.LastCandleAtStart.Add(-oneTick * time.Duration(tickBudget))

	openOrders := make([]*types.Order, len(cfg.OpenOrders))
	for i := range cfg.OpenOrders {
		o := cfg.OpenOrders[i]
		openOrders[i] = &o
	}

	return &Engine{
		userID:         cfg.UserID,
		store:          store,
		persist:        persist,
		logger:         logger.With("component", "engine", "user_id", cfg.UserID),
		timeframe:      cfg.Timeframe,
		tradableAssets: cfg.TradableAssets,
		oneTick:        oneTick,
		state:          StateCreated,
		currentTime:    start,
		lastActivity:   time.Now(),
		multiplier:     cfg.Multiplier,
		commission:     cfg.Commission,
		openOrders:     openOrders,
		latestCandle:   make(map[string]types.Candle),
		ledger:         ledger.New(cfg.UserID, cfg.InitialBalances.Cash, cfg.InitialBalances.Assets),
		signalCh:       make(chan struct{}, 1),
		stopCh:         make(chan struct{}),
	}
}

// Start transitions CREATED -> RUNNING and launches the tick driver and
// resolver. Idempotent: calling it again while RUNNING is a no-op.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.state == StateRunning {
		e.mu.Unlock()
		return nil
	}
	if e.state == StateStopped {
		e.mu.Unlock()
		return apperr.State("engine already stopped")
	}
	e.state = StateRunning
	e.lastActivity = time.Now()
	e.stopCh = make(chan struct{})
	e.mu.Unlock()

	e.wg.Add(2)
	go e.runTickDriver()
	go e.runResolver()
	return nil
}

// Stop transitions RUNNING -> STOPPED, signals both background loops to
// exit, and waits for them. Idempotent: calling it twice is a no-op after
// the first (spec §8 property 6).
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state != StateRunning {
		e.state = StateStopped
		e.mu.Unlock()
		return
	}
	e.state = StateStopped
	close(e.stopCh)
	e.mu.Unlock()

	e.wg.Wait()
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// CurrentTime returns the engine's simulated clock.
func (e *Engine) CurrentTime() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentTime
}

// LastActivity returns the wall-clock time of the last tick or API call,
// readable without reaching into engine internals (spec §9 design note).
func (e *Engine) LastActivity() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastActivity
}

// Multiplier returns the current tick-driver speed.
func (e *Engine) Multiplier() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.multiplier
}

// Commission returns the current commission rate.
func (e *Engine) Commission() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.commission
}

// SetMultiplier updates the tick driver's speed. Takes effect on the tick
// driver's next sleep.
func (e *Engine) SetMultiplier(m float64) {
	e.mu.Lock()
	e.multiplier = m
	e.mu.Unlock()
}

// SetCommission updates the commission rate new blocks and settlements use.
func (e *Engine) SetCommission(c decimal.Decimal) {
	e.mu.Lock()
	e.commission = c
	e.mu.Unlock()
}

func (e *Engine) runTickDriver() {
	defer e.wg.Done()
	for {
		e.mu.Lock()
		interval := time.Duration(float64(time.Second) / e.multiplier)
		e.mu.Unlock()

		select {
		case <-e.stopCh:
			return
		case <-time.After(interval):
		}

		e.mu.Lock()
		e.currentTime = e.currentTime.Add(e.oneTick)
		e.lastActivity = time.Now()
		e.mu.Unlock()

		select {
		case e.signalCh <- struct{}{}:
		default:
		}
	}
}

func (e *Engine) runResolver() {
	defer e.wg.Done()
	for {
		select {
		case <-e.stopCh:
			return
		case <-e.signalCh:
			e.resolveOnce(context.Background())
		}
	}
}

// Place admits order or rejects it on insufficient solvency. On admission it
// blocks funds and appends to the open-orders list; placement in CREATED
// implicitly starts the engine (spec §4.4).
func (e *Engine) Place(ctx context.Context, order types.Order) error {
	e.mu.Lock()
	if e.state == StateCreated {
		e.mu.Unlock()
		if err := e.Start(); err != nil {
			return err
		}
		e.mu.Lock()
	}
	if e.state != StateRunning {
		e.mu.Unlock()
		return apperr.State("engine is not running")
	}
	defer e.mu.Unlock()

	order.UserID = e.userID
	if err := e.ledger.Block(&order, e.commission); err != nil {
		metrics.IncOrderRejected("insufficient_funds")
		return err
	}

	if err := e.persist.SaveOrder(ctx, order); err != nil {
		_ = e.ledger.Unblock(&order)
		return err
	}
	if err := e.persist.SaveBalances(ctx, e.userID, e.ledger.Snapshot()); err != nil {
		e.logger.Error("persist balances after place failed", "error", err)
	}

	e.openOrders = append(e.openOrders, &order)
	e.lastActivity = time.Now()
	metrics.IncOrderPlaced(string(order.Kind), string(order.Direction))
	return nil
}

// PlaceOCO admits both legs of an OCO pair as a single reservation: the
// larger of the two legs' worst-case blocks, not their sum (spec §9 open
// question). Either both legs are admitted or neither is.
func (e *Engine) PlaceOCO(ctx context.Context, legs [2]types.Order, blockAmount decimal.Decimal) error {
	e.mu.Lock()
	if e.state == StateCreated {
		e.mu.Unlock()
		if err := e.Start(); err != nil {
			return err
		}
		e.mu.Lock()
	}
	if e.state != StateRunning {
		e.mu.Unlock()
		return apperr.State("engine is not running")
	}
	defer e.mu.Unlock()

	direction := legs[0].Direction
	asset := legs[0].TargetAsset
	if err := e.ledger.BlockAmount(direction, asset, blockAmount); err != nil {
		return err
	}

	for i := range legs {
		legs[i].UserID = e.userID
		legs[i].BlockedAmount = blockAmount
		if err := e.persist.SaveOrder(ctx, legs[i]); err != nil {
			e.logger.Error("persist oco leg failed", "error", err)
		}
	}
	if err := e.persist.SaveBalances(ctx, e.userID, e.ledger.Snapshot()); err != nil {
		e.logger.Error("persist balances after oco place failed", "error", err)
	}

	e.openOrders = append(e.openOrders, &legs[0], &legs[1])
	e.lastActivity = time.Now()
	return nil
}

// Cancel removes an order, unblocks its residual, and for an OCO leg cancels
// the sibling too.
func (e *Engine) Cancel(ctx context.Context, orderID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateRunning {
		return apperr.State("engine is not running")
	}

	order, idx, ok := e.findOrderLocked(orderID)
	if !ok {
		return apperr.NotFound("no such order")
	}

	if err := e.ledger.Unblock(order); err != nil {
		return err
	}
	if err := e.persist.DeleteOrder(ctx, order.ID); err != nil {
		e.logger.Error("persist order delete failed", "error", err)
	}
	e.openOrders = removeAt(e.openOrders, idx)

	if order.IsOCOLeg() {
		if sibling, sIdx, found := e.findOrderLocked(order.BoundedOrderID); found {
			// Both legs carry the single reservation PlaceOCO made, which the
			// Unblock above already returned; the sibling is only dropped.
			sibling.BlockedAmount = decimal.Zero
			_ = e.persist.DeleteOrder(ctx, sibling.ID)
			e.openOrders = removeAt(e.openOrders, sIdx)
		}
	}

	if err := e.persist.SaveBalances(ctx, e.userID, e.ledger.Snapshot()); err != nil {
		e.logger.Error("persist balances after cancel failed", "error", err)
	}
	e.lastActivity = time.Now()
	return nil
}

// ListOrders returns every open order matching filter, in placement order.
func (e *Engine) ListOrders(filter types.OrderFilter) ([]types.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateRunning {
		return nil, apperr.State("engine is not running")
	}

	out := make([]types.Order, 0, len(e.openOrders))
	for _, o := range e.openOrders {
		if filter.Kind != "" && o.Kind != filter.Kind {
			continue
		}
		if filter.BaseAsset != "" && o.BaseAsset != filter.BaseAsset {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

// GetOrder returns a single open order by id.
func (e *Engine) GetOrder(orderID string) (types.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateRunning {
		return types.Order{}, apperr.State("engine is not running")
	}
	order, _, ok := e.findOrderLocked(orderID)
	if !ok {
		return types.Order{}, apperr.NotFound("no such order")
	}
	return *order, nil
}

// GetBalance returns the full balance snapshot, or a single asset's amount
// when asset is non-empty.
func (e *Engine) GetBalance(asset string) types.BalanceSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	if asset == "" {
		return e.ledger.Snapshot()
	}
	return types.BalanceSnapshot{Cash: decimal.Zero, Assets: map[string]decimal.Decimal{asset: e.ledger.Asset(asset)}}
}

// GetStatistics returns the fixed statistics schema (spec §9 open question).
func (e *Engine) GetStatistics() types.Statistics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats.snapshot(e.latestCandle, e.openOrders)
}

func (e *Engine) findOrderLocked(id string) (*types.Order, int, bool) {
	for i, o := range e.openOrders {
		if o.ID == id {
			return o, i, true
		}
	}
	return nil, -1, false
}

func removeAt(orders []*types.Order, idx int) []*types.Order {
	return append(orders[:idx], orders[idx+1:]...)
}
