package orders

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

func baseRequest(orderType types.OrderType) types.OrderRequest {
	return types.OrderRequest{
		OrderType:   orderType,
		Quantity:    d("1"),
		BaseAsset:   "USD",
		TargetAsset: "BTC",
		Direction:   types.Buy,
	}
}

func TestCreateRejectsMissingOrderType(t *testing.T) {
	t.Parallel()
	req := baseRequest("")
	_, err := Create(req)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCreateRejectsUnknownOrderType(t *testing.T) {
	t.Parallel()
	req := baseRequest(types.OrderType("WHATEVER"))
	_, err := Create(req)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCreateRejectsNonPositiveQuantity(t *testing.T) {
	t.Parallel()
	req := baseRequest(types.OrderTypeMarket)
	req.Quantity = decimal.Zero
	req.ExecutionPrice = d("100")
	_, err := Create(req)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCreateMarketRequiresExecutionPrice(t *testing.T) {
	t.Parallel()
	req := baseRequest(types.OrderTypeMarket)
	_, err := Create(req)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCreateMarketStampsFreshIDAndKind(t *testing.T) {
	t.Parallel()
	req := baseRequest(types.OrderTypeMarket)
	req.ExecutionPrice = d("100")

	got, err := Create(req)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, types.KindMarket, got[0].Kind)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].CreatedAt.IsZero())
}

func TestCreateLimitRequiresExecutionPrice(t *testing.T) {
	t.Parallel()
	req := baseRequest(types.OrderTypeLimit)
	_, err := Create(req)
	require.Error(t, err)
}

func TestCreateStopLimitRequiresBothPrices(t *testing.T) {
	t.Parallel()
	req := baseRequest(types.OrderTypeStopLimit)
	req.ExecutionPrice = d("100")
	_, err := Create(req)
	require.Error(t, err, "missing stop_price should reject")

	req2 := baseRequest(types.OrderTypeStopLimit)
	req2.StopPrice = d("90")
	_, err = Create(req2)
	require.Error(t, err, "missing execution_price should reject")

	req3 := baseRequest(types.OrderTypeStopLimit)
	req3.StopPrice = d("90")
	req3.ExecutionPrice = d("100")
	got, err := Create(req3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, types.KindStopLimit, got[0].Kind)
}

func TestCreateOCOProducesTwoLinkedLegs(t *testing.T) {
	t.Parallel()
	req := baseRequest(types.OrderTypeOCO)
	req.ExecutionPrice = d("19000")
	req.StopPrice = d("21000")

	got, err := Create(req)
	require.NoError(t, err)
	require.Len(t, got, 2)

	limitLeg, stopLeg := got[0], got[1]
	assert.Equal(t, types.KindLimit, limitLeg.Kind)
	assert.Equal(t, types.KindStopLimit, stopLeg.Kind)
	assert.Equal(t, stopLeg.ID, limitLeg.BoundedOrderID)
	assert.Equal(t, limitLeg.ID, stopLeg.BoundedOrderID)
	assert.True(t, limitLeg.IsOCOLeg())
	assert.True(t, stopLeg.IsOCOLeg())
}

func TestCreateOCORejectsMissingSignalOrStopPrice(t *testing.T) {
	t.Parallel()
	req := baseRequest(types.OrderTypeOCO)
	req.ExecutionPrice = d("19000")
	_, err := Create(req)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestOCOBlockAmountTakesMaxNotSum(t *testing.T) {
	t.Parallel()
	req := baseRequest(types.OrderTypeOCO)
	req.Direction = types.Buy
	req.Quantity = d("1")
	req.ExecutionPrice = d("19000")
	req.StopPrice = d("21000")

	legs, err := Create(req)
	require.NoError(t, err)

	commission := d("0.001")
	got := OCOBlockAmount(legs, commission)

	// Both legs buy 1 unit with a limit of 19000 (the stop leg trips at 21000
	// and reuses execution_price as its limit), so each blocks 19019; the
	// reservation should equal one leg's block, not the sum (38038).
	assert.True(t, got.Equal(d("19019")), "got %s", got)
}
