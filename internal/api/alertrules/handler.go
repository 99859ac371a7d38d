// Package alertrules exposes alert rule management endpoints.
package alertrules

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

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
	errCodeBadRequest       = "BAD_REQUEST"
	errCodeValidationFailed = "VALIDATION_FAILED"
	errCodeNotFound         = "NOT_FOUND"
	errCodeInternalError    = "INTERNAL_ERROR"
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

// RuleResponse is an alert rule over the wire.
type RuleResponse struct {
	ID                        string   `json:"id"`
	OrganizationID            string   `json:"organization_id"`
	Name                      string   `json:"name"`
	IsActive                  bool     `json:"is_active"`
	EntityTypes               []string `json:"entity_types,omitempty"`
	SeverityThreshold         string   `json:"severity_threshold"`
	AccuracyThreshold         float64  `json:"accuracy_threshold"`
	DiscrepancyCountThreshold int      `json:"discrepancy_count_threshold"`
	CheckFrequency            string   `json:"check_frequency"`
	EvaluationWindow          string   `json:"evaluation_window"`
	NotificationChannels      []string `json:"notification_channels,omitempty"`
	AutoRemediate             bool     `json:"auto_remediate"`
	CreatedAt                 string   `json:"created_at"`
	UpdatedAt                 string   `json:"updated_at"`
}

func ruleToResponse(r *models.AlertRule) *RuleResponse {
	ets := make([]string, len(r.EntityTypes))
	for i, et := range r.EntityTypes {
		ets[i] = string(et)
	}
	return &RuleResponse{
		ID:                        r.ID,
		OrganizationID:            r.OrganizationID,
		Name:                      r.Name,
		IsActive:                  r.IsActive,
		EntityTypes:               ets,
		SeverityThreshold:         string(r.SeverityThreshold),
		AccuracyThreshold:         r.AccuracyThreshold,
		DiscrepancyCountThreshold: r.DiscrepancyCountThreshold,
		CheckFrequency:            r.CheckFrequency.String(),
		EvaluationWindow:          r.EvaluationWindow.String(),
		NotificationChannels:      r.NotificationChannels,
		AutoRemediate:             r.AutoRemediate,
		CreatedAt:                 r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:                 r.UpdatedAt.Format(time.RFC3339),
	}
}

// Handler handles alert rule endpoints.
type Handler struct {
	store storage.Store
}

// NewHandler creates an alert rules handler.
func NewHandler(store storage.Store) *Handler {
	return &Handler{store: store}
}

// CreateRequest is the body of POST /alert-rules.
type CreateRequest struct {
	OrganizationID            string   `json:"organization_id"`
	Name                      string   `json:"name"`
	IsActive                  *bool    `json:"is_active,omitempty"`
	EntityTypes               []string `json:"entity_types,omitempty"`
	SeverityThreshold         string   `json:"severity_threshold,omitempty"`
	AccuracyThreshold         float64  `json:"accuracy_threshold"`
	DiscrepancyCountThreshold int      `json:"discrepancy_count_threshold"`
	CheckFrequency            string   `json:"check_frequency"`
	EvaluationWindow          string   `json:"evaluation_window"`
	NotificationChannels      []string `json:"notification_channels,omitempty"`
	AutoRemediate             bool     `json:"auto_remediate"`
}

// List returns all rules of an organization.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("organization_id")
	if orgID == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "organization_id is required")
		return
	}

	rules, err := h.store.AlertRules().List(r.Context(), orgID)
	if err != nil {
		log.Printf("list alert rules error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	resp := make([]*RuleResponse, len(rules))
	for i, rule := range rules {
		resp[i] = ruleToResponse(rule)
	}
	jsonStatus(w, http.StatusOK, resp)
}

// Create creates a rule.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	rule, err := ruleFromRequest(&req)
	if err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	now := time.Now().UTC()
	rule.ID = uuid.New().String()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := h.store.AlertRules().Create(r.Context(), rule); err != nil {
		log.Printf("create alert rule error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	jsonStatus(w, http.StatusCreated, ruleToResponse(rule))
}

// GetByID returns one rule.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rule, err := h.store.AlertRules().GetByID(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "alert rule not found")
		return
	}
	if err != nil {
		log.Printf("get alert rule error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	jsonStatus(w, http.StatusOK, ruleToResponse(rule))
}

// Update replaces a rule's configuration.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := h.store.AlertRules().GetByID(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "alert rule not found")
		return
	}
	if err != nil {
		log.Printf("get alert rule error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	rule, err := ruleFromRequest(&req)
	if err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}
	rule.ID = existing.ID
	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = time.Now().UTC()

	if err := h.store.AlertRules().Update(r.Context(), rule); err != nil {
		log.Printf("update alert rule error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	jsonStatus(w, http.StatusOK, ruleToResponse(rule))
}

// Delete removes a rule.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := h.store.AlertRules().Delete(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "alert rule not found")
		return
	}
	if err != nil {
		log.Printf("delete alert rule error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetActiveRequest is the body of PUT /alert-rules/{id}/active.
type SetActiveRequest struct {
	IsActive bool `json:"is_active"`
}

// SetActive toggles a rule without replacing its configuration.
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	err := h.store.AlertRules().SetActive(r.Context(), id, req.IsActive)
	if errors.Is(err, storage.ErrNotFound) {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "alert rule not found")
		return
	}
	if err != nil {
		log.Printf("set alert rule active error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	jsonStatus(w, http.StatusOK, map[string]any{"id": id, "is_active": req.IsActive})
}
