// Package api is the External API façade (C6): for every endpoint,
// authenticate the API key, resolve the user, obtain/start their engine,
// invoke the engine operation, and translate the result. This layer owns no
// business logic (spec §4.6).
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"tradesim/pkg/types"
)

// ---------------------------------------------------------------------------
// Request payloads
// ---------------------------------------------------------------------------

// OrderRequestDTO is the wire shape of place_order's body (spec §6):
// {order_type, quantity, base_asset, target_asset, direction, execution_price,
// stop_price?, signal_price?, blocked_amount?}. blocked_amount is accepted but
// ignored: the ledger always computes its own reservation.
type OrderRequestDTO struct {
	OrderType      string          `json:"order_type"`
	Quantity       decimal.Decimal `json:"quantity"`
	BaseAsset      string          `json:"base_asset"`
	TargetAsset    string          `json:"target_asset"`
	Direction      string          `json:"direction"`
	ExecutionPrice decimal.Decimal `json:"execution_price"`
	StopPrice      decimal.Decimal `json:"stop_price,omitempty"`
	SignalPrice    decimal.Decimal `json:"signal_price,omitempty"`
}

func (d OrderRequestDTO) toOrderRequest() types.OrderRequest {
	return types.OrderRequest{
		OrderType:      types.OrderType(d.OrderType),
		Quantity:       d.Quantity,
		BaseAsset:      d.BaseAsset,
		TargetAsset:    d.TargetAsset,
		Direction:      types.Side(d.Direction),
		ExecutionPrice: d.ExecutionPrice,
		StopPrice:      d.StopPrice,
		SignalPrice:    d.SignalPrice,
	}
}

// SetMultiplierRequest is set_multiplier's body.
type SetMultiplierRequest struct {
	Multiplier float64 `json:"multiplier"`
}

// SetCommissionRequest is set_commission's body (supplemented endpoint: spec
// §4.5 names set_commission alongside set_multiplier but §6's table only
// lists the latter explicitly).
type SetCommissionRequest struct {
	Commission decimal.Decimal `json:"commission"`
}

// ---------------------------------------------------------------------------
// Response payloads
// ---------------------------------------------------------------------------

// MessageResponse is the generic {message} envelope most POST endpoints
// return.
type MessageResponse struct {
	Message string `json:"message"`
}

// APIKeyResponse is generate_api_key's success body.
type APIKeyResponse struct {
	APIKey string `json:"api_key"`
}

// OrderResponse is place_order's success body.
type OrderResponse struct {
	OrderID string `json:"order_id"`
}

// OrderDTO is the wire shape of a resolved order returned from orders/list
// and orders/{id}.
type OrderDTO struct {
	ID             string          `json:"id"`
	CreatedAt      time.Time       `json:"created_at"`
	Kind           string          `json:"kind"`
	Direction      string          `json:"direction"`
	Quantity       decimal.Decimal `json:"quantity"`
	BaseAsset      string          `json:"base_asset"`
	TargetAsset    string          `json:"target_asset"`
	ExecutionPrice decimal.Decimal `json:"execution_price"`
	StopPrice      decimal.Decimal `json:"stop_price,omitempty"`
	SignalPrice    decimal.Decimal `json:"signal_price,omitempty"`
	BlockedAmount  decimal.Decimal `json:"blocked_amount"`
	BoundedOrderID string          `json:"bounded_order_id,omitempty"`
}

func orderToDTO(o types.Order) OrderDTO {
	return OrderDTO{
		ID:             o.ID,
		CreatedAt:      o.CreatedAt,
		Kind:           string(o.Kind),
		Direction:      string(o.Direction),
		Quantity:       o.Quantity,
		BaseAsset:      o.BaseAsset,
		TargetAsset:    o.TargetAsset,
		ExecutionPrice: o.ExecutionPrice,
		StopPrice:      o.StopPrice,
		SignalPrice:    o.SignalPrice,
		BlockedAmount:  o.BlockedAmount,
		BoundedOrderID: o.BoundedOrderID,
	}
}

// BalanceResponse is asset_balance's success body.
type BalanceResponse struct {
	Cash   decimal.Decimal            `json:"cash"`
	Assets map[string]decimal.Decimal `json:"assets"`
}

// SingleBalanceResponse is asset_balance/{asset}'s success body.
type SingleBalanceResponse struct {
	Asset  string          `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
}

// StatisticsResponse is statistics's success body.
type StatisticsResponse struct {
	PnL           decimal.Decimal `json:"pnl"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	OpenOrders    int             `json:"open_orders"`
	ClosedOrders  int             `json:"closed_orders"`
	WinRate       float64         `json:"win_rate"`
}

func statisticsToDTO(s types.Statistics) StatisticsResponse {
	return StatisticsResponse{
		PnL:           s.PnL,
		RealizedPnL:   s.RealizedPnL,
		UnrealizedPnL: s.UnrealizedPnL,
		OpenOrders:    s.OpenOrders,
		ClosedOrders:  s.ClosedOrders,
		WinRate:       s.WinRate,
	}
}

// ErrorResponse is the body every non-2xx response carries.
type ErrorResponse struct {
	Error string `json:"error"`
}
