package models

import "time"

// SyncState is per-integration scan bookkeeping, keyed by
// (IntegrationID, EntityType). The checker upserts one row per entity
// family it finishes scanning.
type SyncState struct {
	IntegrationID    string     `json:"integration_id"`
	EntityType       EntityType `json:"entity_type"`
	LastCheckedAt    time.Time  `json:"last_checked_at"`
	RecordsChecked   int        `json:"records_checked"`
	DiscrepancyCount int        `json:"discrepancy_count"`
}
