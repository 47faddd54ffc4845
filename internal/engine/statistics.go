package engine

import (
	"github.com/shopspring/decimal"

	"tradesim/internal/money"
	"tradesim/pkg/types"
)

// statsTracker accumulates the closed-orders journal get_statistics reads
// from (spec §9 open question: get_statistics is unimplemented in the
// source, so the schema is the only contract). BUY fills open or add to a
// position at average cost; SELL fills realize PnL against that average
// cost and close a trade. Unrealized PnL is computed at query time from the
// latest known candle, never stored.
type statsTracker struct {
	avgCost       map[string]decimal.Decimal
	positionQty   map[string]decimal.Decimal
	realizedPnL   decimal.Decimal
	closedOrders  int
	winningTrades int
}

func (s *statsTracker) recordFill(order types.Order, price, commission decimal.Decimal) {
	if s.avgCost == nil {
		s.avgCost = make(map[string]decimal.Decimal)
		s.positionQty = make(map[string]decimal.Decimal)
	}

	asset := order.TargetAsset
	qty := s.positionQty[asset]
	cost := s.avgCost[asset]

	if order.Direction == types.Buy {
		newQty := qty.Add(order.Quantity)
		if money.IsPositive(newQty) {
			s.avgCost[asset] = qty.Mul(cost).Add(order.Quantity.Mul(price)).Div(newQty)
		}
		s.positionQty[asset] = newQty
		return
	}

	// SELL: realize PnL against the average cost basis, then reduce position.
	proceeds := order.Quantity.Mul(price).Mul(decimal.NewFromInt(1).Sub(commission))
	basis := order.Quantity.Mul(cost)
	pnl := proceeds.Sub(basis)

	s.realizedPnL = s.realizedPnL.Add(pnl)
	s.closedOrders++
	if money.IsPositive(pnl) {
		s.winningTrades++
	}
	s.positionQty[asset] = qty.Sub(order.Quantity)
}

func (s *statsTracker) snapshot(latest map[string]types.Candle, openOrders []*types.Order) types.Statistics {
	unrealized := decimal.Zero
	for asset, qty := range s.positionQty {
		if !money.IsPositive(qty) {
			continue
		}
		candle, ok := latest[asset]
		if !ok {
			continue
		}
		cost := s.avgCost[asset]
		unrealized = unrealized.Add(qty.Mul(candle.Close.Sub(cost)))
	}

	winRate := 0.0
	if s.closedOrders > 0 {
		winRate = float64(s.winningTrades) / float64(s.closedOrders)
	}

	return types.Statistics{
		PnL:           s.realizedPnL.Add(unrealized),
		RealizedPnL:   s.realizedPnL,
		UnrealizedPnL: unrealized,
		OpenOrders:    len(openOrders),
		ClosedOrders:  s.closedOrders,
		WinRate:       winRate,
	}
}
