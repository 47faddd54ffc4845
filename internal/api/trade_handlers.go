package api

import (
	"encoding/json"
	"net/http"

	"tradesim/internal/apperr"
	"tradesim/internal/orders"
	"tradesim/pkg/types"
)

// HandlePlaceOrder validates and admits an order (spec §6 /trade/place_order,
// §4.2 Order Factory, §4.3 Balance Ledger).
func (h *Handlers) HandlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var dto OrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.writeError(w, apperr.Validation("malformed request body"))
		return
	}

	made, err := orders.Create(dto.toOrderRequest())
	if err != nil {
		h.writeError(w, err)
		return
	}

	e, err := h.manager.Get(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if len(made) == 2 {
		blockAmount := orders.OCOBlockAmount(made, e.Commission())
		if err := e.PlaceOCO(r.Context(), [2]types.Order{made[0], made[1]}, blockAmount); err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, OrderResponse{OrderID: made[0].ID})
		return
	}

	if err := e.Place(r.Context(), made[0]); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, OrderResponse{OrderID: made[0].ID})
}

// HandleListOrders returns every open order for the caller, optionally
// filtered by kind/base_asset query params (spec §6 /trade/orders).
func (h *Handlers) HandleListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	e, err := h.manager.Get(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	filter := types.OrderFilter{
		Kind:      types.OrderKind(r.URL.Query().Get("kind")),
		BaseAsset: r.URL.Query().Get("base_asset"),
	}
	list, err := e.ListOrders(filter)
	if err != nil {
		h.writeError(w, err)
		return
	}

	dtos := make([]OrderDTO, 0, len(list))
	for _, o := range list {
		dtos = append(dtos, orderToDTO(o))
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

// HandleGetOrder returns a single open order by id (spec §6
// /trade/orders/{id}).
func (h *Handlers) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	orderID := r.PathValue("id")
	if orderID == "" {
		h.writeError(w, apperr.Validation("order id must be provided"))
		return
	}

	e, err := h.manager.Get(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	order, err := e.GetOrder(orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, orderToDTO(order))
}

// HandleCancelOrder cancels an open order and unblocks its reservation
// (spec §6 /trade/cancel_order/{id}).
func (h *Handlers) HandleCancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	orderID := r.PathValue("id")
	if orderID == "" {
		h.writeError(w, apperr.Validation("order id must be provided"))
		return
	}

	e, err := h.manager.Get(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := e.Cancel(r.Context(), orderID); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, MessageResponse{Message: "order cancelled"})
}

// HandleAssetBalance returns the caller's full balance snapshot (spec §6
// /trade/asset_balance).
func (h *Handlers) HandleAssetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	e, err := h.manager.Get(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	snap := e.GetBalance("")
	h.writeJSON(w, http.StatusOK, BalanceResponse{Cash: snap.Cash, Assets: snap.Assets})
}

// HandleSingleAssetBalance returns the caller's holding of one asset (spec
// §6 /trade/asset_balance/{asset}).
func (h *Handlers) HandleSingleAssetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	asset := r.PathValue("asset")
	if asset == "" {
		h.writeError(w, apperr.Validation("asset must be provided"))
		return
	}

	e, err := h.manager.Get(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	snap := e.GetBalance(asset)
	h.writeJSON(w, http.StatusOK, SingleBalanceResponse{Asset: asset, Amount: snap.Assets[asset]})
}

// HandleStatistics returns the caller's average-cost-basis PnL snapshot
// (spec §6 /trade/statistics, §9 open question: unimplemented upstream).
func (h *Handlers) HandleStatistics(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	e, err := h.manager.Get(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, statisticsToDTO(e.GetStatistics()))
}
