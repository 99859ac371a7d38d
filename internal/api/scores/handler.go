// Package scores exposes accuracy score history, trend analysis, and
// per-check breakdowns.
package scores

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/truthsource/syncwatch/internal/scoring"
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
	errCodeUnavailable   = "SERVICE_UNAVAILABLE"
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

// Handler handles score endpoints.
type Handler struct {
	store       storage.Store
	metricStore storage.MetricStore
	baseline    *scoring.Baseline
}

// NewHandler creates a scores handler. metricStore may be nil; the
// history and trend endpoints then return 503. baseline may be nil;
// the trend benchmark then falls back to the score itself.
func NewHandler(store storage.Store, metricStore storage.MetricStore, baseline *scoring.Baseline) *Handler {
	return &Handler{store: store, metricStore: metricStore, baseline: baseline}
}

// History returns recent score snapshots, oldest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.metricStore == nil {
		jsonError(w, http.StatusServiceUnavailable, errCodeUnavailable, "metric backend is disabled")
		return
	}
	orgID := r.URL.Query().Get("organization_id")
	if orgID == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "organization_id is required")
		return
	}
	integrationID := r.URL.Query().Get("integration_id")
	limit := queryInt(r, "limit", 100)

	metrics, err := h.metricStore.Metrics().ListRecent(r.Context(), orgID, integrationID, limit)
	if err != nil {
		log.Printf("list score history error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	jsonOK(w, metrics)
}

// Trend runs trend analysis over the recent score history.
func (h *Handler) Trend(w http.ResponseWriter, r *http.Request) {
	if h.metricStore == nil {
		jsonError(w, http.StatusServiceUnavailable, errCodeUnavailable, "metric backend is disabled")
		return
	}
	orgID := r.URL.Query().Get("organization_id")
	if orgID == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "organization_id is required")
		return
	}
	integrationID := r.URL.Query().Get("integration_id")
	limit := queryInt(r, "limit", 30)

	metrics, err := h.metricStore.Metrics().ListRecent(r.Context(), orgID, integrationID, limit)
	if err != nil {
		log.Printf("score trend error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	scores := make([]float64, len(metrics))
	for i, m := range metrics {
		scores[i] = m.AccuracyScore
	}

	resp := trendResponse{TrendAnalysis: scoring.AnalyzeTrend(scores)}
	if len(scores) > 0 {
		resp.Benchmark = scoring.CompareBenchmark(scores[len(scores)-1], h.baseline)
	}
	jsonOK(w, resp)
}

// trendResponse extends the trend analysis with a benchmark position
// for the most recent score.
type trendResponse struct {
	scoring.TrendAnalysis
	Benchmark scoring.BenchmarkComparison `json:"benchmark"`
}

// Breakdown recomputes the weighted score breakdown of a finished check
// from its stored discrepancies.
func (h *Handler) Breakdown(w http.ResponseWriter, r *http.Request) {
	checkID := r.URL.Query().Get("check_id")
	if checkID == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "check_id is required")
		return
	}

	check, err := h.store.Checks().GetByID(r.Context(), checkID)
	if errors.Is(err, storage.ErrNotFound) {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "check not found")
		return
	}
	if err != nil {
		log.Printf("get check error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	discs, err := h.store.Discrepancies().ListByCheck(r.Context(), checkID)
	if err != nil {
		log.Printf("list check discrepancies error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	jsonOK(w, scoring.CalculateBreakdown(check.RecordsChecked, discs))
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
