// Package orders implements the Order Factory (C2): validated construction
// of typed orders from the untyped request the API layer parses off the
// wire.
//
// Grounded on the original playground's OrderFactory, which looked up a
// order_type in a registry, reflected on the target class's constructor
// arguments, and rejected the request if any were missing. Go has no
// reflection-driven constructor dispatch worth using here, so the schema
// check becomes an explicit switch over OrderType with one required-field
// list per kind — same policy, no reflection.
package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradesim/internal/apperr"
	"tradesim/internal/ledger"
	"tradesim/pkg/types"
)

// Create validates req and returns the typed order(s) it denotes. MARKET,
// LIMIT, and STOP_LIMIT requests produce exactly one order. OCO produces two
// linked orders (one LIMIT, one STOP_LIMIT) sharing a BoundedOrderID. Balance
// admission is not performed here; callers run the result through the
// engine's place, which blocks funds before accepting.
func Create(req types.OrderRequest) ([]types.Order, error) {
	if req.OrderType == "" {
		return nil, apperr.Validation("order_type must be provided")
	}
	if req.Quantity.LessThanOrEqual(decimal.Zero) {
		return nil, apperr.Validation("quantity must be > 0")
	}
	if req.BaseAsset == "" || req.TargetAsset == "" {
		return nil, apperr.Validation("base_asset and target_asset must be provided")
	}
	if req.Direction != types.Buy && req.Direction != types.Sell {
		return nil, apperr.Validation("direction must be BUY or SELL")
	}

	switch req.OrderType {
	case types.OrderTypeMarket:
		return createMarket(req)
	case types.OrderTypeLimit:
		return createLimit(req)
	case types.OrderTypeStopLimit:
		return createStopLimit(req)
	case types.OrderTypeOCO:
		return createOCO(req)
	default:
		return nil, apperr.Validation("invalid order type: " + string(req.OrderType))
	}
}

func newOrder(req types.OrderRequest, kind types.OrderKind) types.Order {
	return types.Order{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now(),
		BaseAsset:   req.BaseAsset,
		TargetAsset: req.TargetAsset,
		Direction:   req.Direction,
		Quantity:    req.Quantity,
		Kind:        kind,
	}
}

func createMarket(req types.OrderRequest) ([]types.Order, error) {
	// execution_price is a hint only, but the factory still requires it: the
	// ledger needs something to block against before the next close is known.
	if req.ExecutionPrice.LessThanOrEqual(decimal.Zero) {
		return nil, apperr.Validation("execution_price must be provided for MARKET orders")
	}
	o := newOrder(req, types.KindMarket)
	o.ExecutionPrice = req.ExecutionPrice
	return []types.Order{o}, nil
}

func createLimit(req types.OrderRequest) ([]types.Order, error) {
	if req.ExecutionPrice.LessThanOrEqual(decimal.Zero) {
		return nil, apperr.Validation("execution_price must be provided for LIMIT orders")
	}
	o := newOrder(req, types.KindLimit)
	o.ExecutionPrice = req.ExecutionPrice
	return []types.Order{o}, nil
}

func createStopLimit(req types.OrderRequest) ([]types.Order, error) {
	if req.StopPrice.LessThanOrEqual(decimal.Zero) {
		return nil, apperr.Validation("stop_price must be provided for STOP_LIMIT orders")
	}
	if req.ExecutionPrice.LessThanOrEqual(decimal.Zero) {
		return nil, apperr.Validation("execution_price must be provided for STOP_LIMIT orders")
	}
	o := newOrder(req, types.KindStopLimit)
	o.ExecutionPrice = req.ExecutionPrice
	o.StopPrice = req.StopPrice
	return []types.Order{o}, nil
}

// createOCO builds the LIMIT and STOP_LIMIT legs of an OCO pair. execution_price
// is the LIMIT leg's trigger; signal_price (falling back to stop_price) is the
// STOP_LIMIT leg's activation price, with execution_price reused as the
// resulting limit once it trips.
func createOCO(req types.OrderRequest) ([]types.Order, error) {
	if req.ExecutionPrice.LessThanOrEqual(decimal.Zero) {
		return nil, apperr.Validation("execution_price must be provided for OCO orders")
	}
	signal := req.SignalPrice
	if signal.IsZero() {
		signal = req.StopPrice
	}
	if signal.LessThanOrEqual(decimal.Zero) {
		return nil, apperr.Validation("signal_price or stop_price must be provided for OCO orders")
	}

	limitLeg := newOrder(req, types.KindLimit)
	limitLeg.ExecutionPrice = req.ExecutionPrice

	stopLeg := newOrder(req, types.KindStopLimit)
	stopLeg.StopPrice = signal
	stopLeg.ExecutionPrice = req.ExecutionPrice
	stopLeg.SignalPrice = signal

	limitLeg.BoundedOrderID = stopLeg.ID
	stopLeg.BoundedOrderID = limitLeg.ID

	return []types.Order{limitLeg, stopLeg}, nil
}

// OCOBlockAmount computes the single reservation an OCO pair requires: the
// larger of its two legs' individual worst-case blocks, not their sum, since
// only one leg can ever settle.
func OCOBlockAmount(legs []types.Order, commission decimal.Decimal) decimal.Decimal {
	max := decimal.Zero
	for i, leg := range legs {
		amt := ledger.RequiredAmount(leg, commission)
		if i == 0 || amt.GreaterThan(max) {
			max = amt
		}
	}
	return max
}
