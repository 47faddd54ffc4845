package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"tradesim/internal/apperr"
	"tradesim/internal/auth"
	"tradesim/internal/manager"
)

// Handlers holds all HTTP handler dependencies (spec §4.6 External API
// façade: authenticate, resolve the engine, call its operation, translate
// the result).
type Handlers struct {
	manager        *manager.Manager
	auth           *auth.Service
	hub            *Hub
	allowedOrigins []string
	logger         *slog.Logger
}

// NewHandlers creates a new handlers instance.
func NewHandlers(mgr *manager.Manager, authSvc *auth.Service, hub *Hub, allowedOrigins []string, logger *slog.Logger) *Handlers {
	return &Handlers{
		manager:        mgr,
		auth:           authSvc,
		hub:            hub,
		allowedOrigins: allowedOrigins,
		logger:         logger.With("component", "api-handlers"),
	}
}

// authenticate resolves the caller's API key to a user id, writing a 403
// and returning ok=false on failure. The key is read from the api_key query
// parameter (the original playground's convention) or the X-API-Key header.
func (h *Handlers) authenticate(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := r.URL.Query().Get("api_key")
	if key == "" {
		key = r.Header.Get("X-API-Key")
	}
	if key == "" {
		h.writeError(w, apperr.Auth("api_key must be provided"))
		return "", false
	}

	user, err := h.auth.Resolve(r.Context(), key)
	if err != nil {
		h.writeError(w, apperr.Auth("unknown api_key"))
		return "", false
	}
	return user.ID, true
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError maps err to the HTTP status spec §7 assigns its apperr.Kind
// and writes the error body. Errors with no *apperr.Error in their chain (a
// bug elsewhere in the stack) fall back to 500.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var ae *apperr.Error
	if errors.As(err, &ae) {
		status = ae.HTTPStatus()
	} else {
		h.logger.Error("unclassified error reached api layer", "error", err)
	}
	h.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}
