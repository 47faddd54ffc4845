package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"tradesim/internal/apperr"
)

// HandleGenerateAPIKey mints a new user and API key (spec §6
// /auth/generate_api_key, grounded on original_source/app/routers/auth.py).
func (h *Handlers) HandleGenerateAPIKey(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.GenerateAPIKey(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, APIKeyResponse{APIKey: user.APIKey})
}

// HandleStartExchange starts (or resumes) the caller's engine (spec §6
// /playground/exchange/start_exchange).
func (h *Handlers) HandleStartExchange(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	if _, err := h.manager.Start(r.Context(), userID); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, MessageResponse{Message: fmt.Sprintf("exchange is up for user: %s", userID)})
}

// HandleStopExchange persists and tears down the caller's engine (spec §6
// /playground/exchange/stop_exchange).
func (h *Handlers) HandleStopExchange(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	if err := h.manager.Stop(r.Context(), userID); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, MessageResponse{Message: fmt.Sprintf("exchange stopped for user: %s", userID)})
}

// HandleSetMultiplier updates the caller's tick-driver speed (spec §6
// /playground/exchange/set_multiplier).
func (h *Handlers) HandleSetMultiplier(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req SetMultiplierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperr.Validation("malformed request body"))
		return
	}
	if req.Multiplier <= 0 {
		h.writeError(w, apperr.Validation("multiplier must be > 0"))
		return
	}

	if err := h.manager.SetMultiplier(r.Context(), userID, req.Multiplier); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, MessageResponse{Message: "multiplier updated"})
}

// HandleSetCommission updates the caller's commission rate. Supplemented
// alongside set_multiplier: spec §4.5 names both operations even though
// §6's endpoint table only spells out the multiplier route explicitly.
func (h *Handlers) HandleSetCommission(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req SetCommissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperr.Validation("malformed request body"))
		return
	}
	if req.Commission.IsNegative() {
		h.writeError(w, apperr.Validation("commission must be >= 0"))
		return
	}

	if err := h.manager.SetCommission(r.Context(), userID, req.Commission); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, MessageResponse{Message: "commission updated"})
}
