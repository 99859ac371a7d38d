// Package source defines the collaborator contracts the core depends on:
// the entity diff source, the sync trigger, the field store used by
// remediation, and an injectable clock. PlatformClient implements all of
// them over the sync platform's internal API.
package source

import (
	"context"
	"time"

	"github.com/truthsource/syncwatch/internal/models"
)

// Integration identifies one connected downstream system.
type Integration struct {
	ID       string
	Name     string
	IsActive bool
}

// Record is one entity snapshot from either side of an integration.
type Record struct {
	EntityID     string
	EntityType   models.EntityType
	Fields       map[string]any
	UpdatedAt    time.Time
	LastSyncedAt time.Time
}

// Pair couples an authoritative source record with the last-known synced
// record for the same entity. Synced is nil when no mapping or sync record
// exists.
type Pair struct {
	Source *Record
	Synced *Record
}

// DiffSource yields paired records for comparison. How the pairing is
// obtained is opaque to the core.
type DiffSource interface {
	// ActiveIntegrations lists active integrations for an organization.
	ActiveIntegrations(ctx context.Context, organizationID string) ([]Integration, error)

	// Pairs returns up to limit paired records for the integration and
	// entity family.
	Pairs(ctx context.Context, integrationID string, entityType models.EntityType, limit int) ([]Pair, error)

	// ExpectedRecords estimates the record count for progress reporting.
	// Returns 0 when no estimate is available.
	ExpectedRecords(ctx context.Context, integrationID string, entityType models.EntityType) (int, error)

	// RecentTransactionDelta sums transaction-driven quantity changes for
	// the entity field since the given time, used to explain raw
	// differences that are not sync drift.
	RecentTransactionDelta(ctx context.Context, integrationID, entityID, fieldName string, since time.Time) (float64, error)
}

// SyncJobStatus is the state of a requested sync job.
type SyncJobStatus string

const (
	SyncJobPending   SyncJobStatus = "pending"
	SyncJobCompleted SyncJobStatus = "completed"
	SyncJobFailed    SyncJobStatus = "failed"
)

// SyncTrigger requests a resync of an entity and reports job status.
type SyncTrigger interface {
	RequestSync(ctx context.Context, integrationID string, entityType models.EntityType, entityID string, forceRefresh bool) (jobID string, err error)
	SyncJobStatus(ctx context.Context, jobID string) (SyncJobStatus, error)
}

// FieldStore reads and writes single entity fields in the downstream
// system. Used by the value-update remediation path.
type FieldStore interface {
	ReadField(ctx context.Context, integrationID string, entityType models.EntityType, entityID, fieldName string) (any, error)
	WriteField(ctx context.Context, integrationID string, entityType models.EntityType, entityID, fieldName string, value any) error
	// ClearCache invalidates derived caches for the entity.
	ClearCache(ctx context.Context, integrationID string, entityType models.EntityType, entityID string) error
}

// Clock supplies the current time. Injectable for deterministic tests of
// suppression windows, staleness thresholds, and trend math.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }
