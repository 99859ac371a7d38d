// Package discrepancies exposes the open-discrepancy backlog and its
// triage lifecycle.
package discrepancies

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/truthsource/syncwatch/internal/models"
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
	errCodeConflict      = "CONFLICT"
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

// Handler handles discrepancy endpoints.
type Handler struct {
	store storage.Store
}

// NewHandler creates a discrepancies handler.
func NewHandler(store storage.Store) *Handler {
	return &Handler{store: store}
}

// ListOpen returns the open backlog for an organization.
func (h *Handler) ListOpen(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("organization_id")
	if orgID == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "organization_id is required")
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	discs, err := h.store.Discrepancies().ListOpen(r.Context(), orgID, limit)
	if err != nil {
		log.Printf("list open discrepancies error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	jsonOK(w, discs)
}

// GetByID returns one discrepancy.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	d, err := h.store.Discrepancies().GetByID(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "discrepancy not found")
		return
	}
	if err != nil {
		log.Printf("get discrepancy error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	jsonOK(w, d)
}

// UpdateStatusRequest is the body of PUT /discrepancies/{id}/status.
type UpdateStatusRequest struct {
	Status     string `json:"status"`
	Resolution string `json:"resolution,omitempty"`
}

// UpdateStatus moves a discrepancy through its triage lifecycle. Invalid
// transitions (reopening a resolved discrepancy, for example) return 409.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	status := models.DiscrepancyStatus(req.Status)
	switch status {
	case models.DiscrepancyInvestigating, models.DiscrepancyResolved, models.DiscrepancyIgnored:
	default:
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid status "+req.Status)
		return
	}

	resolution := models.ResolutionType(req.Resolution)
	if resolution == "" {
		switch status {
		case models.DiscrepancyResolved:
			resolution = models.ResolutionManual
		case models.DiscrepancyIgnored:
			resolution = models.ResolutionIgnored
		}
	}

	err := h.store.Discrepancies().UpdateStatus(r.Context(), id, status, resolution)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		jsonError(w, http.StatusNotFound, errCodeNotFound, "discrepancy not found")
	case errors.Is(err, storage.ErrInvalidTransition):
		jsonError(w, http.StatusConflict, errCodeConflict, err.Error())
	case err != nil:
		log.Printf("update discrepancy status error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
	default:
		jsonOK(w, map[string]string{"id": id, "status": req.Status})
	}
}

// ListRemediations returns the remediation audit trail of a discrepancy.
func (h *Handler) ListRemediations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.store.Discrepancies().GetByID(r.Context(), id); errors.Is(err, storage.ErrNotFound) {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "discrepancy not found")
		return
	} else if err != nil {
		log.Printf("get discrepancy error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	logs, err := h.store.Remediations().ListByDiscrepancy(r.Context(), id)
	if err != nil {
		log.Printf("list remediations error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	jsonOK(w, logs)
}
