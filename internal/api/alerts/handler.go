// Package alerts exposes raised-alert endpoints: listing and the
// acknowledge/resolve/snooze lifecycle.
package alerts

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/truthsource/syncwatch/internal/alerting"
	"github.com/truthsource/syncwatch/internal/storage"
)

// Response helpers
type errorResponse struct {
	Error errorBody `json:"error"`
}
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
type dataResponse struct {
	Data any `json:"data"`
}

const (
	errCodeBadRequest    = "BAD_REQUEST"
	errCodeNotFound      = "NOT_FOUND"
	errCodeInternalError = "INTERNAL_ERROR"
)

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Code: code, Message: message}}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(dataResponse{Data: data}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

// Handler handles alert endpoints.
type Handler struct {
	store   storage.Store
	manager *alerting.Manager
}

// NewHandler creates an alerts handler.
func NewHandler(store storage.Store, manager *alerting.Manager) *Handler {
	return &Handler{store: store, manager: manager}
}

// List returns alerts for an organization, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("organization_id")
	if orgID == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "organization_id is required")
		return
	}
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	alerts, err := h.store.Alerts().List(r.Context(), orgID, limit, offset)
	if err != nil {
		log.Printf("list alerts error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	jsonOK(w, alerts)
}

// GetByID returns one alert.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	alert, err := h.store.Alerts().GetByID(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "alert not found")
		return
	}
	if err != nil {
		log.Printf("get alert error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	jsonOK(w, alert)
}

// AcknowledgeRequest is the body of POST /alerts/{id}/acknowledge.
type AcknowledgeRequest struct {
	AcknowledgedBy string `json:"acknowledged_by"`
}

// Acknowledge marks an alert as acknowledged.
func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req AcknowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}
	if req.AcknowledgedBy == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "acknowledged_by is required")
		return
	}

	h.lifecycle(w, r, id, func() error {
		return h.manager.Acknowledge(r.Context(), id, req.AcknowledgedBy)
	}, "acknowledged")
}

// Resolve closes an alert.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.lifecycle(w, r, id, func() error {
		return h.manager.Resolve(r.Context(), id)
	}, "resolved")
}

// SnoozeRequest is the body of POST /alerts/{id}/snooze.
type SnoozeRequest struct {
	Duration string `json:"duration"`
}

// Snooze silences an alert for the given duration.
func (h *Handler) Snooze(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SnoozeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}
	d, err := time.ParseDuration(req.Duration)
	if err != nil || d <= 0 {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "duration must be a positive duration string")
		return
	}

	h.lifecycle(w, r, id, func() error {
		return h.manager.Snooze(r.Context(), id, d)
	}, "snoozed")
}

func (h *Handler) lifecycle(w http.ResponseWriter, r *http.Request, id string, op func() error, status string) {
	err := op()
	switch {
	case errors.Is(err, storage.ErrNotFound):
		jsonError(w, http.StatusNotFound, errCodeNotFound, "alert not found")
	case err != nil:
		log.Printf("alert %s error: %v", status, err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
	default:
		jsonOK(w, map[string]string{"id": id, "status": status})
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
