// Package checks exposes accuracy check endpoints: starting scans,
// inspecting results, and aborting in-flight work.
package checks

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/truthsource/syncwatch/internal/checker"
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

func jsonStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(dataResponse{Data: data}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

// CheckResponse is an accuracy check over the wire.
type CheckResponse struct {
	ID                 string   `json:"id"`
	OrganizationID     string   `json:"organization_id"`
	Scope              string   `json:"scope"`
	IntegrationID      string   `json:"integration_id,omitempty"`
	Status             string   `json:"status"`
	AccuracyScore      *float64 `json:"accuracy_score,omitempty"`
	DiscrepanciesFound int      `json:"discrepancies_found"`
	RecordsChecked     int      `json:"records_checked"`
	ErrorMessage       string   `json:"error_message,omitempty"`
	StartedAt          string   `json:"started_at"`
	CompletedAt        string   `json:"completed_at,omitempty"`
	DurationMs         int64    `json:"duration_ms,omitempty"`
}

func checkToResponse(c *models.AccuracyCheck) *CheckResponse {
	resp := &CheckResponse{
		ID:                 c.ID,
		OrganizationID:     c.OrganizationID,
		Scope:              string(c.Scope),
		IntegrationID:      c.IntegrationID,
		Status:             string(c.Status),
		AccuracyScore:      c.AccuracyScore,
		DiscrepanciesFound: c.DiscrepanciesFound,
		RecordsChecked:     c.RecordsChecked,
		ErrorMessage:       c.ErrorMessage,
		StartedAt:          c.StartedAt.Format(timeFormat),
		DurationMs:         c.DurationMs,
	}
	if c.CompletedAt != nil {
		resp.CompletedAt = c.CompletedAt.Format(timeFormat)
	}
	return resp
}

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// Handler handles accuracy check endpoints.
type Handler struct {
	store   storage.Store
	checker *checker.Checker
}

// NewHandler creates a checks handler.
func NewHandler(store storage.Store, chk *checker.Checker) *Handler {
	return &Handler{store: store, checker: chk}
}

// StartRequest is the body of POST /checks.
type StartRequest struct {
	OrganizationID string `json:"organization_id"`
	Scope          string `json:"scope"`
	IntegrationID  string `json:"integration_id"`
	SampleSize     int    `json:"sample_size"`
}

// Start launches a scan and returns 202 with the new check id.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	cfg := checker.CheckConfig{
		OrganizationID: req.OrganizationID,
		Scope:          models.ParseCheckScope(req.Scope),
		IntegrationID:  req.IntegrationID,
		SampleSize:     req.SampleSize,
	}
	checkID, events, err := h.checker.Run(r.Context(), cfg)
	if err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, err.Error())
		return
	}

	// The scan outlives the request; its events are drained here so the
	// sink never backs up.
	go func() {
		for range events {
		}
	}()

	jsonStatus(w, http.StatusAccepted, map[string]string{"id": checkID, "status": string(models.CheckRunning)})
}

// List returns checks for an organization, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("organization_id")
	if orgID == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "organization_id is required")
		return
	}
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	checks, err := h.store.Checks().List(r.Context(), orgID, limit, offset)
	if err != nil {
		log.Printf("list checks error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	resp := make([]*CheckResponse, len(checks))
	for i, c := range checks {
		resp[i] = checkToResponse(c)
	}
	jsonStatus(w, http.StatusOK, resp)
}

// GetByID returns one check.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	check, err := h.store.Checks().GetByID(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "check not found")
		return
	}
	if err != nil {
		log.Printf("get check error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	jsonStatus(w, http.StatusOK, checkToResponse(check))
}

// Abort cancels an in-flight check. Finished checks return 409.
func (h *Handler) Abort(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	check, err := h.store.Checks().GetByID(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "check not found")
		return
	}
	if err != nil {
		log.Printf("abort check error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if check.IsTerminal() {
		jsonError(w, http.StatusConflict, errCodeConflict, "check already finished")
		return
	}

	if !h.checker.Abort(id) {
		// Raced with completion between the read and the abort.
		jsonError(w, http.StatusConflict, errCodeConflict, "check already finished")
		return
	}
	jsonStatus(w, http.StatusAccepted, map[string]string{"id": id, "status": "aborting"})
}

// ListDiscrepancies returns all discrepancies of one check.
func (h *Handler) ListDiscrepancies(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.store.Checks().GetByID(r.Context(), id); errors.Is(err, storage.ErrNotFound) {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "check not found")
		return
	} else if err != nil {
		log.Printf("get check error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	discs, err := h.store.Discrepancies().ListByCheck(r.Context(), id)
	if err != nil {
		log.Printf("list check discrepancies error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	jsonStatus(w, http.StatusOK, discs)
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
