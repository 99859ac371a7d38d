// Package storage provides database storage interfaces and implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/truthsource/syncwatch/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidTransition is returned when a discrepancy status change
// violates the allowed lifecycle.
var ErrInvalidTransition = errors.New("invalid status transition")

// Store is the main interface for metadata persistence.
type Store interface {
	// Open initializes the database connection.
	Open() error
	// Close closes the database connection.
	Close() error
	// Migrate runs database migrations.
	Migrate() error

	// Repository accessors
	Checks() CheckRepository
	Discrepancies() DiscrepancyRepository
	AlertRules() AlertRuleRepository
	Alerts() AlertRepository
	Notifications() NotificationRepository
	Remediations() RemediationRepository
	SyncStates() SyncStateRepository
}

// CheckRepository defines operations for accuracy checks.
type CheckRepository interface {
	Create(ctx context.Context, check *models.AccuracyCheck) error
	GetByID(ctx context.Context, id string) (*models.AccuracyCheck, error)
	// Complete finalizes a running check with its results. Completed
	// checks are never mutated again.
	Complete(ctx context.Context, id string, score float64, discrepancies, records int, completedAt time.Time, durationMs int64) error
	// Fail marks a running check as failed with an error message.
	Fail(ctx context.Context, id string, message string, completedAt time.Time) error
	List(ctx context.Context, organizationID string, limit, offset int) ([]*models.AccuracyCheck, error)
}

// DiscrepancyRepository defines operations for discrepancies.
type DiscrepancyRepository interface {
	// InsertBatch atomically inserts all discrepancies of one check, so
	// concurrent readers never observe a partially written set.
	InsertBatch(ctx context.Context, discrepancies []*models.Discrepancy) error
	GetByID(ctx context.Context, id string) (*models.Discrepancy, error)
	ListByCheck(ctx context.Context, checkID string) ([]*models.Discrepancy, error)
	ListOpen(ctx context.Context, organizationID string, limit int) ([]*models.Discrepancy, error)
	// UpdateStatus enforces the open -> investigating -> resolved/ignored
	// lifecycle and returns ErrInvalidTransition on violations.
	UpdateStatus(ctx context.Context, id string, status models.DiscrepancyStatus, resolution models.ResolutionType) error
}

// AlertRuleRepository defines operations for alert rule management.
type AlertRuleRepository interface {
	Create(ctx context.Context, rule *models.AlertRule) error
	GetByID(ctx context.Context, id string) (*models.AlertRule, error)
	Update(ctx context.Context, rule *models.AlertRule) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, organizationID string) ([]*models.AlertRule, error)
	ListActive(ctx context.Context, organizationID string) ([]*models.AlertRule, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// AlertRepository defines operations for raised alerts.
type AlertRepository interface {
	Create(ctx context.Context, alert *models.Alert) error
	GetByID(ctx context.Context, id string) (*models.Alert, error)
	List(ctx context.Context, organizationID string, limit, offset int) ([]*models.Alert, error)
	UpdateStatus(ctx context.Context, id string, status models.AlertStatus, acknowledgedBy string) error
	Snooze(ctx context.Context, id string, until time.Time) error
	// LatestForRule returns the most recent alert for the rule created at
	// or after since, or nil when none exists. Used for suppression.
	LatestForRule(ctx context.Context, ruleID string, since time.Time) (*models.Alert, error)
	// ReactivateSnoozedBefore flips snoozed alerts whose snooze expiry has
	// passed back to active, returning how many were updated.
	ReactivateSnoozedBefore(ctx context.Context, now time.Time) (int64, error)
}

// NotificationRepository defines operations for scheduled notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.NotificationLog) error
	ListPending(ctx context.Context, limit int) ([]*models.NotificationLog, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	// RecordAttempt counts a failed delivery attempt without leaving the
	// pending state.
	RecordAttempt(ctx context.Context, id string, message string) error
	MarkFailed(ctx context.Context, id string, message string, at time.Time) error
}

// RemediationRepository defines operations for the remediation audit trail.
type RemediationRepository interface {
	Create(ctx context.Context, l *models.RemediationLog) error
	// Finish records the terminal state of an attempt. Logs are immutable
	// once completed or failed.
	Finish(ctx context.Context, id string, status models.RemediationStatus, success bool, result map[string]any, errorMessage string, completedAt time.Time) error
	GetByID(ctx context.Context, id string) (*models.RemediationLog, error)
	ListByDiscrepancy(ctx context.Context, discrepancyID string) ([]*models.RemediationLog, error)
}

// SyncStateRepository tracks per-integration scan bookkeeping.
type SyncStateRepository interface {
	// Upsert inserts or replaces the row for the (integration, entity
	// type) composite key.
	Upsert(ctx context.Context, s *models.SyncState) error
	Get(ctx context.Context, integrationID string, entityType models.EntityType) (*models.SyncState, error)
}

// MetricStore persists the append-only accuracy metric series. Separate
// from Store because metrics have different access patterns (high-volume
// appends, time-series reads) and may live in a different backend.
type MetricStore interface {
	Open() error
	Close() error
	Migrate() error
	Ping(ctx context.Context) error

	Metrics() MetricRepository
}

// MetricRepository defines operations on the metric series.
type MetricRepository interface {
	// Insert appends one metric snapshot. Rows are never updated.
	Insert(ctx context.Context, m *models.AccuracyMetric) error
	// ListRecent returns up to limit snapshots for the organization
	// (optionally filtered by integration), ordered oldest to newest.
	ListRecent(ctx context.Context, organizationID, integrationID string, limit int) ([]*models.AccuracyMetric, error)
	// DeleteBefore removes snapshots older than the given time.
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
