package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/truthsource/syncwatch/internal/models"
)

type sqliteSyncStateRepo struct {
	db *sql.DB
}

// Upsert inserts or replaces the row for the (integration_id,
// entity_type) composite key.
func (r *sqliteSyncStateRepo) Upsert(ctx context.Context, s *models.SyncState) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_state (integration_id, entity_type, last_checked_at, records_checked, discrepancy_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (integration_id, entity_type) DO UPDATE SET
			last_checked_at = excluded.last_checked_at,
			records_checked = excluded.records_checked,
			discrepancy_count = excluded.discrepancy_count
	`, s.IntegrationID, string(s.EntityType), s.LastCheckedAt, s.RecordsChecked, s.DiscrepancyCount)
	if err != nil {
		return fmt.Errorf("upsert sync state: %w", err)
	}
	return nil
}

func (r *sqliteSyncStateRepo) Get(ctx context.Context, integrationID string, entityType models.EntityType) (*models.SyncState, error) {
	s := &models.SyncState{}
	var et string
	err := r.db.QueryRowContext(ctx, `
		SELECT integration_id, entity_type, last_checked_at, records_checked, discrepancy_count
		FROM sync_state
		WHERE integration_id = ? AND entity_type = ?
	`, integrationID, string(entityType)).Scan(
		&s.IntegrationID, &et, &s.LastCheckedAt, &s.RecordsChecked, &s.DiscrepancyCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sync state: %w", err)
	}
	s.EntityType = models.EntityType(et)
	return s, nil
}
