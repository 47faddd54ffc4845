package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradesim/internal/candles"
	"tradesim/internal/orders"
	"tradesim/pkg/types"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore is an in-memory candles.Store keyed by (asset, timestamp),
// letting tests drive the resolver directly without a real database (spec
// §9: "tests should be able to drive the resolver directly").
type fakeStore struct {
	mu      sync.Mutex
	candles map[string]map[time.Time]types.Candle
}

func newFakeStore() *fakeStore {
	return &fakeStore{candles: make(map[string]map[time.Time]types.Candle)}
}

func (f *fakeStore) put(asset string, ts time.Time, closePrice string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.candles[asset] == nil {
		f.candles[asset] = make(map[time.Time]types.Candle)
	}
	f.candles[asset][ts] = types.Candle{Symbol: asset, Timestamp: ts, Close: d(closePrice)}
}

func (f *fakeStore) GetByTime(_ context.Context, symbol string, _ types.Timeframe, ts time.Time) (types.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.candles[symbol][ts]
	if !ok {
		return types.Candle{}, candles.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) Latest(context.Context, string, types.Timeframe, int) ([]types.Candle, error) {
	return nil, nil
}

func (f *fakeStore) LatestBefore(context.Context, string, types.Timeframe, time.Time, int) ([]types.Candle, error) {
	return nil, nil
}

// fakePersistence is a no-op Persistence: engine tests exercise in-memory
// state only.
type fakePersistence struct{}

func (fakePersistence) SaveOrder(context.Context, types.Order) error                     { return nil }
func (fakePersistence) DeleteOrder(context.Context, string) error                        { return nil }
func (fakePersistence) SaveBalances(context.Context, string, types.BalanceSnapshot) error { return nil }

func newTestEngine(t *testing.T, store *fakeStore, cash decimal.Decimal, assets map[string]decimal.Decimal, commission decimal.Decimal) *Engine {
	t.Helper()
	cfg := Config{
		UserID:            "u1",
		Timeframe:         types.Timeframe1h,
		TicksForTest:      10,
		TradableAssets:    []string{"BTC"},
		Multiplier:        1e-6, // tick driver sleeps ~11 days, so it never fires; tests advance time by calling resolveOnce directly
		Commission:        commission,
		InitialBalances:   types.BalanceSnapshot{Cash: cash, Assets: assets},
		LastCandleAtStart: time.Unix(0, 0),
	}
	e := New(cfg, store, fakePersistence{}, discardLogger())
	require.NoError(t, e.Start())
	t.Cleanup(e.Stop)
	return e
}

// simTime reads the engine's simulated clock under its mutex, for test
// sequencing only.
func (e *Engine) simTime() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentTime
}

// tick advances current_time by one tick and drives the resolver
// synchronously by invoking resolveOnce directly, bypassing the wall-clock
// tick driver entirely (spec §9 design note).
func tick(e *Engine) {
	e.mu.Lock()
	e.currentTime = e.currentTime.Add(e.oneTick)
	e.mu.Unlock()
	e.resolveOnce(context.Background())
}

// mustOrder runs req through the order factory and returns its single order
// (the OCO test below calls orders.Create directly, since OCO produces two).
func mustOrder(t *testing.T, req types.OrderRequest) types.Order {
	t.Helper()
	made, err := orders.Create(req)
	require.NoError(t, err)
	require.Len(t, made, 1)
	return made[0]
}

func TestScenario1BasicMarketBuy(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	e := newTestEngine(t, store, d("100000"), map[string]decimal.Decimal{"BTC": decimal.Zero}, d("0.001"))

	req := types.OrderRequest{
		OrderType: types.OrderTypeMarket, Direction: types.Buy,
		Quantity: d("10"), BaseAsset: "USD", TargetAsset: "BTC", ExecutionPrice: d("100"),
	}
	order := mustOrder(t, req)
	require.NoError(t, e.Place(context.Background(), order))

	nextTime := e.simTime().Add(e.oneTick)
	store.put("BTC", nextTime, "100")
	tick(e)

	bal := e.GetBalance("")
	assert.True(t, bal.Cash.Equal(d("98999.0")), "cash = %s", bal.Cash)
	assert.True(t, bal.Assets["BTC"].Equal(d("10")))

	open, err := e.ListOrders(types.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestScenario2LimitBuyTriggersOnDip(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	e := newTestEngine(t, store, d("10000"), map[string]decimal.Decimal{"BTC": decimal.Zero}, d("0.001"))

	req := types.OrderRequest{
		OrderType: types.OrderTypeLimit, Direction: types.Buy,
		Quantity: d("5"), BaseAsset: "USD", TargetAsset: "BTC", ExecutionPrice: d("100"),
	}
	order := mustOrder(t, req)
	require.NoError(t, e.Place(context.Background(), order))

	bal := e.GetBalance("")
	assert.True(t, bal.Cash.Equal(d("9499.5")), "blocked cash = %s", bal.Cash)

	for _, c := range []string{"120", "110", "95"} {
		nextTime := e.simTime().Add(e.oneTick)
		store.put("BTC", nextTime, c)
		tick(e)
	}

	bal = e.GetBalance("")
	assert.True(t, bal.Cash.Equal(d("9499.5")), "final cash = %s", bal.Cash)
	assert.True(t, bal.Assets["BTC"].Equal(d("5")))

	open, _ := e.ListOrders(types.OrderFilter{})
	assert.Empty(t, open)
}

func TestScenario3StopLimitSellPromotesToLimit(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	e := newTestEngine(t, store, decimal.Zero, map[string]decimal.Decimal{"BTC": d("3")}, decimal.Zero)

	req := types.OrderRequest{
		OrderType: types.OrderTypeStopLimit, Direction: types.Sell,
		Quantity: d("3"), BaseAsset: "USD", TargetAsset: "BTC",
		StopPrice: d("190"), ExecutionPrice: d("185"),
	}
	order := mustOrder(t, req)
	require.NoError(t, e.Place(context.Background(), order))

	for _, c := range []string{"200", "180", "170"} {
		nextTime := e.simTime().Add(e.oneTick)
		store.put("BTC", nextTime, c)
		tick(e)
	}

	bal := e.GetBalance("")
	assert.True(t, bal.Assets["BTC"].IsZero(), "3 BTC should still be blocked (held), free = %s", bal.Assets["BTC"])

	open, err := e.ListOrders(types.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, types.KindLimit, open[0].Kind)
}

func TestScenario4CancellationRestoresBalances(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	e := newTestEngine(t, store, d("1000"), map[string]decimal.Decimal{"BTC": decimal.Zero}, d("0.01"))

	req := types.OrderRequest{
		OrderType: types.OrderTypeLimit, Direction: types.Buy,
		Quantity: d("1"), BaseAsset: "USD", TargetAsset: "BTC", ExecutionPrice: d("500"),
	}
	order := mustOrder(t, req)
	require.NoError(t, e.Place(context.Background(), order))

	bal := e.GetBalance("")
	assert.True(t, bal.Cash.Equal(d("495")), "blocked cash = %s", bal.Cash)

	require.NoError(t, e.Cancel(context.Background(), order.ID))

	bal = e.GetBalance("")
	assert.True(t, bal.Cash.Equal(d("1000")))
	open, _ := e.ListOrders(types.OrderFilter{})
	assert.Empty(t, open)
}

func TestScenario5InsufficientFundsRejection(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	e := newTestEngine(t, store, d("100"), map[string]decimal.Decimal{"BTC": decimal.Zero}, decimal.Zero)

	req := types.OrderRequest{
		OrderType: types.OrderTypeLimit, Direction: types.Buy,
		Quantity: d("1"), BaseAsset: "USD", TargetAsset: "BTC", ExecutionPrice: d("200"),
	}
	order := mustOrder(t, req)
	err := e.Place(context.Background(), order)
	require.Error(t, err)

	bal := e.GetBalance("")
	assert.True(t, bal.Cash.Equal(d("100")))
	open, _ := e.ListOrders(types.OrderFilter{})
	assert.Empty(t, open)
}

func TestStopIsIdempotent(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	e := newTestEngine(t, store, d("100"), nil, decimal.Zero)
	e.Stop()
	e.Stop()
	assert.Equal(t, StateStopped, e.State())
}

func TestPlaceThenCancelRestoresBalancesExactly(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	e := newTestEngine(t, store, d("100000"), map[string]decimal.Decimal{"BTC": d("5")}, d("0.001"))

	before := e.GetBalance("")

	req := types.OrderRequest{
		OrderType: types.OrderTypeLimit, Direction: types.Sell,
		Quantity: d("2"), BaseAsset: "USD", TargetAsset: "BTC", ExecutionPrice: d("30000"),
	}
	order := mustOrder(t, req)
	require.NoError(t, e.Place(context.Background(), order))
	require.NoError(t, e.Cancel(context.Background(), order.ID))

	after := e.GetBalance("")
	assert.True(t, before.Cash.Equal(after.Cash))
	assert.True(t, before.Assets["BTC"].Equal(after.Assets["BTC"]))
}

func TestOCOPlacementReservesMaxOfLegsAndCancelBothLegs(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	e := newTestEngine(t, store, decimal.Zero, map[string]decimal.Decimal{"BTC": d("10")}, decimal.Zero)

	req := types.OrderRequest{
		OrderType: types.OrderTypeOCO, Direction: types.Sell,
		Quantity: d("4"), BaseAsset: "USD", TargetAsset: "BTC",
		ExecutionPrice: d("250"), StopPrice: d("150"),
	}
	legs, err := orders.Create(req)
	require.NoError(t, err)
	require.Len(t, legs, 2)
	blockAmount := orders.OCOBlockAmount(legs, decimal.Zero)

	require.NoError(t, e.PlaceOCO(context.Background(), [2]types.Order{legs[0], legs[1]}, blockAmount))

	bal := e.GetBalance("")
	assert.True(t, bal.Assets["BTC"].Equal(d("6")), "only one leg's worth of BTC should be held, free = %s", bal.Assets["BTC"])

	open, err := e.ListOrders(types.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, open, 2)

	require.NoError(t, e.Cancel(context.Background(), legs[0].ID))

	bal = e.GetBalance("")
	assert.True(t, bal.Assets["BTC"].Equal(d("10")), "cancelling one leg must release both, free = %s", bal.Assets["BTC"])
	open, _ = e.ListOrders(types.OrderFilter{})
	assert.Empty(t, open)
}
