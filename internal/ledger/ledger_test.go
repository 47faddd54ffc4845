package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradesim/internal/apperr"
	"tradesim/pkg/types"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestBlockBuyReservesCash(t *testing.T) {
	t.Parallel()
	l := New("u1", d("100000"), map[string]decimal.Decimal{"BTC": decimal.Zero})

	order := &types.Order{
		Direction:      types.Buy,
		TargetAsset:    "BTC",
		Quantity:       d("1"),
		ExecutionPrice: d("20000"),
	}
	err := l.Block(order, d("0.001"))
	require.NoError(t, err)

	assert.True(t, order.BlockedAmount.Equal(d("20020")))
	assert.True(t, l.Cash().Equal(d("79980")))
}

func TestBlockSellReservesAsset(t *testing.T) {
	t.Parallel()
	l := New("u1", decimal.Zero, map[string]decimal.Decimal{"BTC": d("2")})

	order := &types.Order{
		Direction:      types.Sell,
		TargetAsset:    "BTC",
		Quantity:       d("1.5"),
		ExecutionPrice: d("20000"),
	}
	err := l.Block(order, d("0.001"))
	require.NoError(t, err)

	assert.True(t, order.BlockedAmount.Equal(d("1.5")))
	assert.True(t, l.Asset("BTC").Equal(d("0.5")))
}

func TestBlockInsufficientCashRejectsAndLeavesLedgerUnchanged(t *testing.T) {
	t.Parallel()
	l := New("u1", d("100"), map[string]decimal.Decimal{})

	order := &types.Order{
		Direction:      types.Buy,
		TargetAsset:    "BTC",
		Quantity:       d("1"),
		ExecutionPrice: d("200"),
	}
	err := l.Block(order, decimal.Zero)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInsufficientFunds))
	assert.True(t, l.Cash().Equal(d("100")))
	assert.True(t, order.BlockedAmount.IsZero())
}

func TestBlockInsufficientAssetRejects(t *testing.T) {
	t.Parallel()
	l := New("u1", decimal.Zero, map[string]decimal.Decimal{"BTC": d("0.1")})

	order := &types.Order{
		Direction:      types.Sell,
		TargetAsset:    "BTC",
		Quantity:       d("1"),
		ExecutionPrice: d("20000"),
	}
	err := l.Block(order, decimal.Zero)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInsufficientFunds))
	assert.True(t, l.Asset("BTC").Equal(d("0.1")))
}

func TestPlaceThenCancelRestoresBalancesExactly(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name      string
		direction types.Side
		cash      decimal.Decimal
		assets    map[string]decimal.Decimal
		quantity  decimal.Decimal
		price     decimal.Decimal
	}{
		{"buy", types.Buy, d("100000"), map[string]decimal.Decimal{"BTC": decimal.Zero}, d("1"), d("20000")},
		{"sell", types.Sell, decimal.Zero, map[string]decimal.Decimal{"BTC": d("2")}, d("1.5"), d("20000")},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			l := New("u1", tc.cash, tc.assets)
			before := l.Snapshot()

			order := &types.Order{
				Direction:      tc.direction,
				TargetAsset:    "BTC",
				Quantity:       tc.quantity,
				ExecutionPrice: tc.price,
			}
			require.NoError(t, l.Block(order, d("0.001")))
			require.NoError(t, l.Unblock(order))

			after := l.Snapshot()
			assert.True(t, before.Cash.Equal(after.Cash))
			assert.True(t, before.Assets["BTC"].Equal(after.Assets["BTC"]))
			assert.True(t, order.BlockedAmount.IsZero())
		})
	}
}

func TestSettleBuyDebitsAtFillPriceNotBlockPrice(t *testing.T) {
	t.Parallel()
	l := New("u1", d("100000"), map[string]decimal.Decimal{"BTC": decimal.Zero})

	order := &types.Order{
		Direction:      types.Buy,
		TargetAsset:    "BTC",
		Quantity:       d("1"),
		ExecutionPrice: d("20000"), // hint used to block
	}
	require.NoError(t, l.Block(order, d("0.001")))

	// MARKET fills at the next candle's close, which may differ from the hint.
	require.NoError(t, l.Settle(order, d("19500"), d("0.001")))

	snap := l.Snapshot()
	assert.True(t, snap.Cash.Equal(d("80480.5")), "cash = %s", snap.Cash)
	assert.True(t, snap.Assets["BTC"].Equal(d("1")))
	assert.True(t, order.BlockedAmount.IsZero())
}

func TestSettleSellCreditsProceedsWithoutDoubleDecrement(t *testing.T) {
	t.Parallel()
	l := New("u1", d("1000"), map[string]decimal.Decimal{"BTC": d("2")})

	order := &types.Order{
		Direction:      types.Sell,
		TargetAsset:    "BTC",
		Quantity:       d("1"),
		ExecutionPrice: d("20000"),
	}
	require.NoError(t, l.Block(order, d("0.001")))
	require.NoError(t, l.Settle(order, d("20000"), d("0.001")))

	snap := l.Snapshot()
	assert.True(t, snap.Assets["BTC"].Equal(d("1")), "BTC should stay at the post-block level, not drop again")
	assert.True(t, snap.Cash.Equal(d("20980")), "cash = %s", snap.Cash)
}

func TestInsufficientFundsScenarioLeavesLedgerUnchanged(t *testing.T) {
	t.Parallel()
	// Starting cash 100; LIMIT BUY 1 @ 200 -> rejected; ledger unchanged.
	l := New("u1", d("100"), map[string]decimal.Decimal{"BTC": decimal.Zero})

	order := &types.Order{
		Kind:           types.KindLimit,
		Direction:      types.Buy,
		TargetAsset:    "BTC",
		Quantity:       d("1"),
		ExecutionPrice: d("200"),
	}
	err := l.Block(order, decimal.Zero)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInsufficientFunds))

	snap := l.Snapshot()
	assert.True(t, snap.Cash.Equal(d("100")))
	assert.True(t, snap.Assets["BTC"].IsZero())
}

func TestBlockAmountForOCOUsesCallerSuppliedReservation(t *testing.T) {
	t.Parallel()
	l := New("u1", d("100000"), map[string]decimal.Decimal{"BTC": decimal.Zero})

	// Two BUY legs: a limit at 19000 and a stop-limit whose post-trigger
	// limit is 21000. The worse-case reservation is the larger of the two,
	// not their sum.
	legA := RequiredAmount(types.Order{Direction: types.Buy, Quantity: d("1"), ExecutionPrice: d("19000")}, d("0.001"))
	legB := RequiredAmount(types.Order{Direction: types.Buy, Quantity: d("1"), ExecutionPrice: d("21000")}, d("0.001"))

	max := legA
	if legB.GreaterThan(max) {
		max = legB
	}

	require.NoError(t, l.BlockAmount(types.Buy, "BTC", max))
	assert.True(t, l.Cash().Equal(d("100000").Sub(max)))
}
