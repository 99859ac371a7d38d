package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/truthsource/syncwatch/internal/models"
)

type sqliteMetricRepo struct {
	db *sql.DB
}

func (r *sqliteMetricRepo) Insert(ctx context.Context, m *models.AccuracyMetric) error {
	var byType sql.NullString
	if len(m.MetricsByType) > 0 {
		b, err := json.Marshal(m.MetricsByType)
		if err != nil {
			return fmt.Errorf("encode metrics by type: %w", err)
		}
		byType = sql.NullString{String: string(b), Valid: true}
	}
	query := `
		INSERT INTO accuracy_metrics (id, organization_id, integration_id, accuracy_score,
			total_records, discrepancy_count, metrics_by_type_json, timestamp, bucket_duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.OrganizationID, nullString(m.IntegrationID), m.AccuracyScore,
		m.TotalRecords, m.DiscrepancyCount, byType, m.Timestamp, int64(m.BucketDuration),
	)
	if err != nil {
		return fmt.Errorf("insert metric: %w", err)
	}
	return nil
}

func (r *sqliteMetricRepo) ListRecent(ctx context.Context, organizationID, integrationID string, limit int) ([]*models.AccuracyMetric, error) {
	if limit <= 0 {
		limit = 100
	}
	// Newest N rows, re-sorted oldest first for trend analysis.
	query := `
		SELECT id, organization_id, integration_id, accuracy_score, total_records,
			discrepancy_count, metrics_by_type_json, timestamp, bucket_duration_ns
		FROM accuracy_metrics
		WHERE organization_id = ? AND (? = '' OR integration_id = ?)
		ORDER BY timestamp DESC LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, organizationID, integrationID, integrationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	var out []*models.AccuracyMetric
	for rows.Next() {
		m := &models.AccuracyMetric{}
		var integration, byType sql.NullString
		var bucketNs int64
		if err := rows.Scan(&m.ID, &m.OrganizationID, &integration, &m.AccuracyScore,
			&m.TotalRecords, &m.DiscrepancyCount, &byType, &m.Timestamp, &bucketNs); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		m.IntegrationID = integration.String
		m.BucketDuration = durationFromNs(bucketNs)
		if byType.Valid && byType.String != "" {
			if err := json.Unmarshal([]byte(byType.String), &m.MetricsByType); err != nil {
				return nil, fmt.Errorf("decode metrics by type: %w", err)
			}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *sqliteMetricRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM accuracy_metrics WHERE timestamp < ?", before)
	if err != nil {
		return 0, fmt.Errorf("delete metrics: %w", err)
	}
	return result.RowsAffected()
}
