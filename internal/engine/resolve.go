package engine

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"tradesim/internal/candles"
	"tradesim/internal/metrics"
	"tradesim/pkg/types"
)

// resolveOnce is one resolver pass: refresh the latest candle for every
// tradable asset, then resolve open orders in FIFO placement order. It runs
// entirely under e.mu, so no caller observes a half-resolved state (spec
// §5).
func (e *Engine) resolveOnce(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateRunning {
		return
	}

	for _, asset := range e.tradableAssets {
		candle, err := e.store.GetByTime(ctx, asset, e.timeframe, e.currentTime)
		if err != nil {
			if errors.Is(err, candles.ErrNotFound) {
				// Missing-candle policy (spec §4.4): leave the last-known
				// candle in place and proceed. Resolution below uses it.
				e.logger.Debug("missing candle, reusing last known", "asset", asset)
				continue
			}
			e.logger.Error("candle lookup failed", "asset", asset, "error", err)
			continue
		}
		e.latestCandle[asset] = candle
	}

	removed := make(map[string]bool)
	for _, order := range e.openOrders {
		if removed[order.ID] {
			continue
		}
		candle, ok := e.latestCandle[order.TargetAsset]
		if !ok {
			continue
		}
		e.resolveOrderLocked(ctx, order, candle, removed)
	}

	if len(removed) == 0 {
		return
	}
	kept := e.openOrders[:0]
	for _, order := range e.openOrders {
		if !removed[order.ID] {
			kept = append(kept, order)
		}
	}
	e.openOrders = kept
}

// resolveOrderLocked applies the per-kind resolution table from spec §4.4.
// Callers hold e.mu. Orders marked for removal are recorded in removed
// rather than spliced out immediately, since the caller is still iterating
// the slice they belong to.
func (e *Engine) resolveOrderLocked(ctx context.Context, order *types.Order, candle types.Candle, removed map[string]bool) {
	switch order.Kind {
	case types.KindMarket:
		if !e.settleLocked(ctx, order, candle.MatchPrice()) {
			return
		}
		removed[order.ID] = true
		e.cancelSiblingLocked(ctx, order, removed)

	case types.KindLimit:
		triggered := (order.Direction == types.Buy && candle.Close.LessThanOrEqual(order.ExecutionPrice)) ||
			(order.Direction == types.Sell && candle.Close.GreaterThanOrEqual(order.ExecutionPrice))
		if !triggered {
			return
		}
		if !e.settleLocked(ctx, order, order.ExecutionPrice) {
			return
		}
		removed[order.ID] = true
		e.cancelSiblingLocked(ctx, order, removed)

	case types.KindStopLimit:
		triggered := (order.Direction == types.Buy && candle.Close.GreaterThanOrEqual(order.StopPrice)) ||
			(order.Direction == types.Sell && candle.Close.LessThanOrEqual(order.StopPrice))
		if !triggered {
			return
		}
		e.promoteToLimitLocked(ctx, order)
		e.cancelSiblingLocked(ctx, order, removed)
	}
}

// settleLocked finalizes a fill at price: applies it to the ledger, records
// it in the statistics tracker, and persists the result. Resolver errors on
// a single order are logged and the order is left in place rather than
// propagated (spec §7 policy): settleLocked then reports false and the
// caller does not mark it removed.
func (e *Engine) settleLocked(ctx context.Context, order *types.Order, price decimal.Decimal) bool {
	if err := e.ledger.Settle(order, price, e.commission); err != nil {
		e.logger.Error("settle failed", "order_id", order.ID, "error", err)
		return false
	}
	e.stats.recordFill(*order, price, e.commission)
	metrics.IncFill(string(order.Kind), string(order.Direction))

	if err := e.persist.DeleteOrder(ctx, order.ID); err != nil {
		e.logger.Error("persist order delete after settle failed", "order_id", order.ID, "error", err)
	}
	if err := e.persist.SaveBalances(ctx, e.userID, e.ledger.Snapshot()); err != nil {
		e.logger.Error("persist balances after settle failed", "error", err)
	}
	return true
}

// promoteToLimitLocked replaces a triggered STOP_LIMIT with a LIMIT carrying
// the same id, blocked amount, and execution price (spec §4.4). The order
// is not re-evaluated against the current candle this pass: fills and
// conversions within a pass do not influence other orders in the same pass
// (spec §5).
func (e *Engine) promoteToLimitLocked(ctx context.Context, order *types.Order) {
	order.Kind = types.KindLimit
	order.StopPrice = decimal.Zero
	if err := e.persist.SaveOrder(ctx, *order); err != nil {
		e.logger.Error("persist stop-limit promotion failed", "order_id", order.ID, "error", err)
	}
}

// cancelSiblingLocked cancels the OCO sibling of a just-resolved order and
// removes it from open_orders. Both legs carry the single reservation
// PlaceOCO made, which stays with the resolved leg (consumed by its fill, or
// kept by its promotion), so the sibling releases nothing. A no-op if order
// is not part of an OCO pair, or its sibling is already gone.
func (e *Engine) cancelSiblingLocked(ctx context.Context, order *types.Order, removed map[string]bool) {
	if !order.IsOCOLeg() || removed[order.BoundedOrderID] {
		return
	}
	sibling, _, ok := e.findOrderLocked(order.BoundedOrderID)
	if !ok {
		return
	}
	sibling.BlockedAmount = decimal.Zero
	if err := e.persist.DeleteOrder(ctx, sibling.ID); err != nil {
		e.logger.Error("persist oco sibling delete failed", "order_id", sibling.ID, "error", err)
	}
	removed[sibling.ID] = true
}
