// Package ledger implements the Balance Ledger: the per-user cash and asset
// bookkeeping the matching engine consults on every placement and fill.
//
// The shape follows the teacher's inventory tracker: a mutex-guarded struct
// with a Snapshot method returning a value copy, so callers never hold a
// reference into live state. Unlike a market-maker's inventory, the ledger
// distinguishes a block from a settle: placing an order reserves funds
// up front, and a fill or a cancel always resolves that reservation exactly
// once, either into a real debit/credit or back into the free balance.
package ledger

import (
	"sync"

	"github.com/shopspring/decimal"

	"tradesim/internal/apperr"
	"tradesim/internal/money"
	"tradesim/pkg/types"
)

// Ledger holds one user's cash balance and asset holdings. Cash is the
// single quote currency every order trades against; Assets maps a target
// asset symbol (e.g. "BTC") to the amount currently held.
type Ledger struct {
	mu     sync.RWMutex
	userID string
	cash   decimal.Decimal
	assets map[string]decimal.Decimal
}

// New builds a Ledger seeded with the given cash and asset balances. A nil
// assets map is treated as empty.
func New(userID string, cash decimal.Decimal, assets map[string]decimal.Decimal) *Ledger {
	seeded := make(map[string]decimal.Decimal, len(assets))
	for asset, amount := range assets {
		seeded[asset] = amount
	}
	return &Ledger{userID: userID, cash: cash, assets: seeded}
}

// Snapshot returns a read-only copy of the current balances.
func (l *Ledger) Snapshot() types.BalanceSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	assets := make(map[string]decimal.Decimal, len(l.assets))
	for asset, amount := range l.assets {
		assets[asset] = amount
	}
	return types.BalanceSnapshot{Cash: l.cash, Assets: assets}
}

// Asset returns the free balance of a single asset, zero if never held.
func (l *Ledger) Asset(asset string) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if amount, ok := l.assets[asset]; ok {
		return amount
	}
	return decimal.Zero
}

// Cash returns the free cash balance.
func (l *Ledger) Cash() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash
}

// requiredAmount computes how much of which resource an order's placement
// must reserve, without mutating the ledger. BUY reserves cash at
// order.ExecutionPrice (the hint/trigger/post-trigger limit, whichever the
// order kind carries); SELL reserves units of the target asset, independent
// of price.
func requiredAmount(order types.Order, commission decimal.Decimal) decimal.Decimal {
	if order.Direction == types.Buy {
		return money.BuyCost(order.Quantity, order.ExecutionPrice, commission)
	}
	return order.Quantity
}

// Block reserves the funds or asset units order.Place needs to admit order,
// and records the reserved amount on BlockedAmount. It fails with
// apperr.InsufficientFunds without mutating the ledger if the reservation
// would drive a balance negative; blocking is all-or-nothing.
func (l *Ledger) Block(order *types.Order, commission decimal.Decimal) error {
	amount := requiredAmount(*order, commission)

	l.mu.Lock()
	defer l.mu.Unlock()

	if order.Direction == types.Buy {
		if l.cash.LessThan(amount) {
			return apperr.InsufficientFunds("insufficient cash to block order")
		}
		l.cash = l.cash.Sub(amount)
	} else {
		held := l.assets[order.TargetAsset]
		if held.LessThan(amount) {
			return apperr.InsufficientFunds("insufficient " + order.TargetAsset + " to block order")
		}
		l.assets[order.TargetAsset] = held.Sub(amount)
	}
	order.BlockedAmount = amount
	return nil
}

// BlockAmount reserves a caller-supplied amount directly, bypassing
// requiredAmount. The engine's PlaceOCO uses this for OCO admission, with the
// amount orders.OCOBlockAmount computes: the larger of the two legs'
// individual requirements rather than their sum.
func (l *Ledger) BlockAmount(direction types.Side, targetAsset string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if direction == types.Buy {
		if l.cash.LessThan(amount) {
			return apperr.InsufficientFunds("insufficient cash to block order")
		}
		l.cash = l.cash.Sub(amount)
		return nil
	}
	held := l.assets[targetAsset]
	if held.LessThan(amount) {
		return apperr.InsufficientFunds("insufficient " + targetAsset + " to block order")
	}
	l.assets[targetAsset] = held.Sub(amount)
	return nil
}

// RequiredAmount exposes requiredAmount to callers (the order factory,
// computing an OCO leg's worst-case block without touching the ledger).
func RequiredAmount(order types.Order, commission decimal.Decimal) decimal.Decimal {
	return requiredAmount(order, commission)
}

// Unblock reverses a reservation exactly, returning order.BlockedAmount to
// free balance and zeroing it. Cancelling an order always calls this so that
// place-then-cancel restores balances to their pre-place values.
func (l *Ledger) Unblock(order *types.Order) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if order.BlockedAmount.IsZero() {
		return nil
	}
	if order.Direction == types.Buy {
		l.cash = l.cash.Add(order.BlockedAmount)
	} else {
		l.assets[order.TargetAsset] = l.assets[order.TargetAsset].Add(order.BlockedAmount)
	}
	order.BlockedAmount = decimal.Zero
	return nil
}

// Settle finalizes a fill at fillPrice, which may differ from the price the
// original block reserved against (a MARKET order blocks against a hint and
// fills at the next candle's close). For a BUY, the hold is refunded and the
// real cost at fillPrice is debited in its place; the target asset is
// credited with the filled quantity. For a SELL, the blocked asset units
// were already removed at block time, so only the cash proceeds are
// credited. Either way BlockedAmount is zeroed: the reservation is resolved.
func (l *Ledger) Settle(order *types.Order, fillPrice decimal.Decimal, commission decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if order.Direction == types.Buy {
		cost := money.BuyCost(order.Quantity, fillPrice, commission)
		l.cash = l.cash.Add(order.BlockedAmount).Sub(cost)
		l.assets[order.TargetAsset] = l.assets[order.TargetAsset].Add(order.Quantity)
	} else {
		proceeds := money.SellProceeds(order.Quantity, fillPrice, commission)
		l.cash = l.cash.Add(proceeds)
	}
	order.BlockedAmount = decimal.Zero
	return nil
}
