package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/truthsource/syncwatch/internal/models"
)

type sqliteDiscrepancyRepo struct {
	db *sql.DB
}

// InsertBatch writes all discrepancies in one transaction. Readers either
// see the full set for a check or none of it.
func (r *sqliteDiscrepancyRepo) InsertBatch(ctx context.Context, discrepancies []*models.Discrepancy) error {
	if len(discrepancies) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO discrepancies (id, accuracy_check_id, organization_id, integration_id,
			entity_type, entity_id, field_name, source_value, target_value,
			discrepancy_type, severity, confidence_score, status, detected_at, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range discrepancies {
		sourceJSON, err := marshalValue(d.SourceValue)
		if err != nil {
			return fmt.Errorf("encode source value for %s: %w", d.EntityID, err)
		}
		targetJSON, err := marshalValue(d.TargetValue)
		if err != nil {
			return fmt.Errorf("encode target value for %s: %w", d.EntityID, err)
		}
		metadataJSON, err := marshalMap(d.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata for %s: %w", d.EntityID, err)
		}
		status := d.Status
		if status == "" {
			status = models.DiscrepancyOpen
		}
		if _, err := stmt.ExecContext(ctx,
			d.ID, d.AccuracyCheckID, d.OrganizationID, nullString(d.IntegrationID),
			d.EntityType, d.EntityID, nullString(d.FieldName), sourceJSON, targetJSON,
			d.Type, d.Severity, d.ConfidenceScore, status, d.DetectedAt, metadataJSON,
		); err != nil {
			return fmt.Errorf("insert discrepancy %s: %w", d.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (r *sqliteDiscrepancyRepo) GetByID(ctx context.Context, id string) (*models.Discrepancy, error) {
	query := discrepancySelect + ` WHERE id = ?`
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query discrepancy: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return scanDiscrepancy(rows)
}

func (r *sqliteDiscrepancyRepo) ListByCheck(ctx context.Context, checkID string) ([]*models.Discrepancy, error) {
	query := discrepancySelect + ` WHERE accuracy_check_id = ? ORDER BY detected_at, id`
	return r.queryMany(ctx, query, checkID)
}

func (r *sqliteDiscrepancyRepo) ListOpen(ctx context.Context, organizationID string, limit int) ([]*models.Discrepancy, error) {
	if limit <= 0 {
		limit = 100
	}
	query := discrepancySelect + ` WHERE organization_id = ? AND status = ? ORDER BY detected_at DESC LIMIT ?`
	return r.queryMany(ctx, query, organizationID, models.DiscrepancyOpen, limit)
}

// UpdateStatus applies a lifecycle transition. The current status is read
// inside the transaction so concurrent updates cannot race past the
// lifecycle check.
func (r *sqliteDiscrepancyRepo) UpdateStatus(ctx context.Context, id string, status models.DiscrepancyStatus, resolution models.ResolutionType) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	var current models.DiscrepancyStatus
	err = tx.QueryRowContext(ctx, "SELECT status FROM discrepancies WHERE id = ?", id).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("discrepancy %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}

	probe := models.Discrepancy{Status: current}
	if !probe.CanTransitionTo(status) {
		return fmt.Errorf("discrepancy %s: %s -> %s: %w", id, current, status, ErrInvalidTransition)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE discrepancies SET status = ?, resolution_type = ? WHERE id = ?",
		status, nullString(string(resolution)), id,
	); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	return nil
}

const discrepancySelect = `
	SELECT id, accuracy_check_id, organization_id, integration_id, entity_type, entity_id,
		field_name, source_value, target_value, discrepancy_type, severity,
		confidence_score, status, resolution_type, detected_at, metadata_json
	FROM discrepancies`

func (r *sqliteDiscrepancyRepo) queryMany(ctx context.Context, query string, args ...any) ([]*models.Discrepancy, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query discrepancies: %w", err)
	}
	defer rows.Close()

	var out []*models.Discrepancy
	for rows.Next() {
		d, err := scanDiscrepancy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDiscrepancy(rows *sql.Rows) (*models.Discrepancy, error) {
	d := &models.Discrepancy{}
	var integrationID, fieldName, sourceJSON, targetJSON, resolution, metadataJSON sql.NullString

	err := rows.Scan(
		&d.ID, &d.AccuracyCheckID, &d.OrganizationID, &integrationID, &d.EntityType, &d.EntityID,
		&fieldName, &sourceJSON, &targetJSON, &d.Type, &d.Severity,
		&d.ConfidenceScore, &d.Status, &resolution, &d.DetectedAt, &metadataJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("scan discrepancy: %w", err)
	}

	d.IntegrationID = integrationID.String
	d.FieldName = fieldName.String
	d.ResolutionType = models.ResolutionType(resolution.String)
	if sourceJSON.Valid {
		if err := json.Unmarshal([]byte(sourceJSON.String), &d.SourceValue); err != nil {
			return nil, fmt.Errorf("decode source value: %w", err)
		}
	}
	if targetJSON.Valid {
		if err := json.Unmarshal([]byte(targetJSON.String), &d.TargetValue); err != nil {
			return nil, fmt.Errorf("decode target value: %w", err)
		}
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &d.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return d, nil
}

func marshalValue(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func marshalMap(m map[string]any) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
