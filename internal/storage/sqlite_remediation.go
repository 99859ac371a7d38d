package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/truthsource/syncwatch/internal/models"
)

type sqliteRemediationRepo struct {
	db *sql.DB
}

func (r *sqliteRemediationRepo) Create(ctx context.Context, l *models.RemediationLog) error {
	configJSON, err := marshalMap(l.ActionConfig)
	if err != nil {
		return fmt.Errorf("encode action config: %w", err)
	}
	status := l.Status
	if status == "" {
		status = models.RemediationPending
	}
	query := `
		INSERT INTO remediation_logs (id, discrepancy_id, organization_id, action_type,
			action_config_json, status, success, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		l.ID, l.DiscrepancyID, l.OrganizationID, l.ActionType,
		configJSON, status, boolToInt(l.Success), l.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("insert remediation log: %w", err)
	}
	return nil
}

// Finish records the terminal state of an attempt. The WHERE clause only
// matches non-terminal rows, so a finished log is never rewritten.
func (r *sqliteRemediationRepo) Finish(ctx context.Context, id string, status models.RemediationStatus, success bool, result map[string]any, errorMessage string, completedAt time.Time) error {
	resultJSON, err := marshalMap(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	query := `
		UPDATE remediation_logs
		SET status = ?, success = ?, result_json = ?, error_message = ?, completed_at = ?
		WHERE id = ? AND status IN (?, ?)
	`
	res, err := r.db.ExecContext(ctx, query,
		status, boolToInt(success), resultJSON, nullString(errorMessage), completedAt,
		id, models.RemediationPending, models.RemediationRunning,
	)
	if err != nil {
		return fmt.Errorf("finish remediation log: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("remediation log %s: %w (not pending or running)", id, ErrNotFound)
	}
	return nil
}

func (r *sqliteRemediationRepo) GetByID(ctx context.Context, id string) (*models.RemediationLog, error) {
	rows, err := r.db.QueryContext(ctx, remediationSelect+` WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query remediation log: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return scanRemediationLog(rows)
}

func (r *sqliteRemediationRepo) ListByDiscrepancy(ctx context.Context, discrepancyID string) ([]*models.RemediationLog, error) {
	query := remediationSelect + ` WHERE discrepancy_id = ? ORDER BY started_at`
	rows, err := r.db.QueryContext(ctx, query, discrepancyID)
	if err != nil {
		return nil, fmt.Errorf("query remediation logs: %w", err)
	}
	defer rows.Close()

	var out []*models.RemediationLog
	for rows.Next() {
		l, err := scanRemediationLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

const remediationSelect = `
	SELECT id, discrepancy_id, organization_id, action_type, action_config_json,
		status, success, result_json, error_message, started_at, completed_at
	FROM remediation_logs`

func scanRemediationLog(rows *sql.Rows) (*models.RemediationLog, error) {
	l := &models.RemediationLog{}
	var configJSON, resultJSON, errorMessage sql.NullString
	var success int
	var completedAt sql.NullTime

	err := rows.Scan(
		&l.ID, &l.DiscrepancyID, &l.OrganizationID, &l.ActionType, &configJSON,
		&l.Status, &success, &resultJSON, &errorMessage, &l.StartedAt, &completedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan remediation log: %w", err)
	}

	l.Success = success == 1
	l.ErrorMessage = errorMessage.String
	if configJSON.Valid && configJSON.String != "" {
		if err := json.Unmarshal([]byte(configJSON.String), &l.ActionConfig); err != nil {
			return nil, fmt.Errorf("decode action config: %w", err)
		}
	}
	if resultJSON.Valid && resultJSON.String != "" {
		if err := json.Unmarshal([]byte(resultJSON.String), &l.Result); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
	}
	if completedAt.Valid {
		t := completedAt.Time
		l.CompletedAt = &t
	}
	return l, nil
}
