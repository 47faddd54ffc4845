// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the simulator: candles, users,
// orders and their requests, and snapshot/statistics DTOs. It has no
// dependencies on internal packages, so it can be imported by any layer.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Core enums
// ---------------------------------------------------------------------------

// Side represents the direction of an order: BUY or SELL.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// OrderType enumerates the order request kinds accepted at the API surface.
// OCO is admission-only: the factory expands it into a LIMIT and a STOP_LIMIT
// order linked via BoundedOrderID (see Order.Kind below).
type OrderType string

const (
	OrderTypeMarket    OrderType = "MARKET"
	OrderTypeLimit     OrderType = "LIMIT"
	OrderTypeStopLimit OrderType = "STOP_LIMIT"
	OrderTypeOCO       OrderType = "OCO"
)

// OrderKind is the discriminator actually stored on a resolved Order. Unlike
// OrderType, there is no OCO kind here: an OCO request produces two Orders
// (KindLimit + KindStopLimit) that reference each other by BoundedOrderID.
type OrderKind string

const (
	KindMarket    OrderKind = "MARKET"
	KindLimit     OrderKind = "LIMIT"
	KindStopLimit OrderKind = "STOP_LIMIT"
)

// Timeframe is one of the three candle granularities the replay supports.
type Timeframe string

const (
	Timeframe1h Timeframe = "1h"
	Timeframe4h Timeframe = "4h"
	Timeframe1d Timeframe = "1d"
)

// Duration returns the wall-clock span one candle of this timeframe covers.
func (t Timeframe) Duration() time.Duration {
	switch t {
	case Timeframe1h:
		return time.Hour
	case Timeframe4h:
		return 4 * time.Hour
	case Timeframe1d:
		return 24 * time.Hour
	default:
		return time.Hour
	}
}

// Valid reports whether t is one of the three supported timeframes.
func (t Timeframe) Valid() bool {
	switch t {
	case Timeframe1h, Timeframe4h, Timeframe1d:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// Candles
// ---------------------------------------------------------------------------

// Candle is an immutable OHLCV bar for a symbol at a given timeframe and
// timestamp. Average price for matching is defined as Close (a deliberate
// choice; see MatchPrice).
type Candle struct {
	Symbol    string
	Timeframe Timeframe
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// MatchPrice returns the price used for order resolution against this candle.
func (c Candle) MatchPrice() decimal.Decimal {
	return c.Close
}

// ---------------------------------------------------------------------------
// Users and balances
// ---------------------------------------------------------------------------

// User is an authenticated identity: a unique API key and a creation
// timestamp. It carries no balances; a user's cash and asset amounts are
// held separately (BalanceSnapshot, and the ledger inside each engine).
type User struct {
	ID        string
	APIKey    string
	CreatedAt time.Time
}

// BalanceSnapshot is a read-only view of a user's cash and asset holdings,
// returned by the ledger and the API layer.
type BalanceSnapshot struct {
	Cash   decimal.Decimal
	Assets map[string]decimal.Decimal
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// OrderRequest is the untyped input to the order factory: whatever fields the
// HTTP layer parsed from the request body, before kind-specific validation.
type OrderRequest struct {
	OrderType      OrderType
	Quantity       decimal.Decimal
	BaseAsset      string
	TargetAsset    string
	Direction      Side
	ExecutionPrice decimal.Decimal // LIMIT trigger / STOP_LIMIT post-trigger limit / MARKET hint
	StopPrice      decimal.Decimal // STOP_LIMIT activation price; OCO's stop leg
	SignalPrice    decimal.Decimal // OCO's stop leg activation price, mirrors StopPrice when OrderType is OCO
}

// Order is a tagged variant over OrderKind, with fields shared by every kind
// plus the few kind-specific ones. Dispatch on Kind rather than a type
// hierarchy, per the simulator's design notes.
type Order struct {
	ID            string
	CreatedAt     time.Time
	UserID        string
	BaseAsset     string
	TargetAsset   string
	Direction     Side
	Quantity      decimal.Decimal
	BlockedAmount decimal.Decimal

	Kind OrderKind

	// ExecutionPrice is a hint for MARKET, the trigger for LIMIT, and the
	// limit placed once a STOP_LIMIT activates.
	ExecutionPrice decimal.Decimal

	// StopPrice activates a STOP_LIMIT order; zero for MARKET and LIMIT.
	StopPrice decimal.Decimal

	// SignalPrice is the original activation price an OCO request was
	// placed with, preserved for audit even though StopPrice already
	// carries it forward for matching; zero outside OCO's stop leg.
	SignalPrice decimal.Decimal

	// BoundedOrderID is the sibling order's ID for an OCO pair; empty
	// otherwise. Cancelling or filling one leg cancels the sibling.
	BoundedOrderID string
}

// IsOCOLeg reports whether this order is one half of an OCO pair.
func (o Order) IsOCOLeg() bool {
	return o.BoundedOrderID != ""
}

// OrderFilter narrows list_orders results. A zero value matches every order
// belonging to the caller.
type OrderFilter struct {
	Kind      OrderKind // empty = any kind
	BaseAsset string    // empty = any
}

// ---------------------------------------------------------------------------
// Exchange instance snapshot and runtime statistics
// ---------------------------------------------------------------------------

// ExchangeSnapshot is the persisted state of one user's engine: enough to
// resume a session after the in-memory engine is evicted or the process
// restarts.
type ExchangeSnapshot struct {
	UserID            string
	LastUsedTimestamp time.Time
	Multiplier        float64
	Commission        decimal.Decimal
}

// Statistics is the fixed schema returned by get_statistics. Fields default
// to zero when the user has no trade history. PnL bookkeeping is intentionally
// simple: spec.md flags get_statistics as unimplemented in the source and
// leaves the schema as the only contract to honor.
type Statistics struct {
	PnL           decimal.Decimal
	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
	OpenOrders    int
	ClosedOrders  int
	WinRate       float64
}
