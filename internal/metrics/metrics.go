// Package metrics provides Prometheus metrics for SyncWatch.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "syncwatch"
)

// HTTP metrics
var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// HTTPRequestsInFlight tracks concurrent HTTP requests.
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)
)

// Check metrics
var (
	// ChecksActive tracks currently running accuracy checks.
	ChecksActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "checks",
			Name:      "active",
			Help:      "Number of accuracy checks currently running",
		},
	)

	// ChecksTotal counts finished checks by outcome.
	ChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checks",
			Name:      "total",
			Help:      "Total finished accuracy checks",
		},
		[]string{"status"}, // completed, failed
	)

	// CheckDuration tracks scan duration.
	CheckDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "checks",
			Name:      "duration_seconds",
			Help:      "Accuracy check scan duration in seconds",
			Buckets:   []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	// CheckRecordsScanned counts records compared across all checks.
	CheckRecordsScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checks",
			Name:      "records_scanned_total",
			Help:      "Total records compared by accuracy checks",
		},
	)

	// AccuracyScore exposes the latest accuracy score per integration.
	AccuracyScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "accuracy_score",
			Help:      "Latest weighted accuracy score (0-100)",
		},
		[]string{"organization_id", "integration_id"},
	)
)

// Discrepancy metrics
var (
	// DiscrepanciesDetected counts detected discrepancies by type and severity.
	DiscrepanciesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discrepancies",
			Name:      "detected_total",
			Help:      "Total discrepancies detected",
		},
		[]string{"type", "severity", "entity_type"},
	)

	// DiscrepanciesOpen tracks the current open discrepancy backlog.
	DiscrepanciesOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "discrepancies",
			Name:      "open",
			Help:      "Open discrepancies awaiting resolution",
		},
	)
)

// Alerting metrics
var (
	// AlertsRaised counts raised alerts by trigger and severity.
	AlertsRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "raised_total",
			Help:      "Total alerts raised",
		},
		[]string{"trigger", "severity"},
	)

	// AlertsSuppressed counts evaluations short-circuited by the
	// suppression window.
	AlertsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "suppressed_total",
			Help:      "Total rule evaluations suppressed by a recent alert",
		},
	)

	// NotificationsTotal counts notification deliveries by channel and result.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "total",
			Help:      "Total notification delivery attempts",
		},
		[]string{"channel", "result"}, // delivered, failed, rate_limited
	)
)

// Remediation metrics
var (
	// RemediationsTotal counts remediation attempts by action and outcome.
	RemediationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "remediation",
			Name:      "attempts_total",
			Help:      "Total remediation attempts",
		},
		[]string{"action", "result"}, // success, failure, skipped
	)

	// RemediationQueueDepth tracks batches waiting in the work queue.
	RemediationQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "remediation",
			Name:      "queue_depth",
			Help:      "Remediation batches waiting in the work queue",
		},
	)
)

// Storage metrics
var (
	// StorageQueryDuration tracks query latency.
	StorageQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "query_duration_seconds",
			Help:      "Storage query latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation", "backend"},
	)

	// StorageErrors counts storage operation errors.
	StorageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "errors_total",
			Help:      "Total storage operation errors",
		},
		[]string{"operation", "backend"},
	)
)

// Info metric
var (
	// BuildInfo exposes build information.
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information",
		},
		[]string{"version", "commit", "build_time"},
	)
)

// SetBuildInfo sets the build info metric.
func SetBuildInfo(version, commit, buildTime string) {
	BuildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}
