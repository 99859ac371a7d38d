package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/truthsource/syncwatch/internal/models"
)

type sqliteCheckRepo struct {
	db *sql.DB
}

func (r *sqliteCheckRepo) Create(ctx context.Context, check *models.AccuracyCheck) error {
	query := `
		INSERT INTO accuracy_checks (id, organization_id, scope, integration_id, status,
			discrepancies_found, records_checked, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		check.ID, check.OrganizationID, check.Scope, nullString(check.IntegrationID),
		check.Status, check.DiscrepanciesFound, check.RecordsChecked, check.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("insert check: %w", err)
	}
	return nil
}

func (r *sqliteCheckRepo) GetByID(ctx context.Context, id string) (*models.AccuracyCheck, error) {
	query := `
		SELECT id, organization_id, scope, integration_id, status, accuracy_score,
			discrepancies_found, records_checked, error_message, started_at, completed_at, duration_ms
		FROM accuracy_checks WHERE id = ?
	`
	return scanCheck(r.db.QueryRowContext(ctx, query, id))
}

// Complete finalizes a running check. The WHERE clause keeps completed
// checks immutable: a terminal row is never rewritten.
func (r *sqliteCheckRepo) Complete(ctx context.Context, id string, score float64, discrepancies, records int, completedAt time.Time, durationMs int64) error {
	query := `
		UPDATE accuracy_checks
		SET status = ?, accuracy_score = ?, discrepancies_found = ?, records_checked = ?,
			completed_at = ?, duration_ms = ?
		WHERE id = ? AND status = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		models.CheckCompleted, score, discrepancies, records, completedAt, durationMs,
		id, models.CheckRunning,
	)
	if err != nil {
		return fmt.Errorf("complete check: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("check %s: %w (not running)", id, ErrNotFound)
	}
	return nil
}

func (r *sqliteCheckRepo) Fail(ctx context.Context, id string, message string, completedAt time.Time) error {
	query := `
		UPDATE accuracy_checks SET status = ?, error_message = ?, completed_at = ?
		WHERE id = ? AND status = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		models.CheckFailed, message, completedAt, id, models.CheckRunning,
	)
	if err != nil {
		return fmt.Errorf("fail check: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("check %s: %w (not running)", id, ErrNotFound)
	}
	return nil
}

func (r *sqliteCheckRepo) List(ctx context.Context, organizationID string, limit, offset int) ([]*models.AccuracyCheck, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, organization_id, scope, integration_id, status, accuracy_score,
			discrepancies_found, records_checked, error_message, started_at, completed_at, duration_ms
		FROM accuracy_checks WHERE organization_id = ?
		ORDER BY started_at DESC LIMIT ? OFFSET ?
	`
	rows, err := r.db.QueryContext(ctx, query, organizationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query checks: %w", err)
	}
	defer rows.Close()

	var checks []*models.AccuracyCheck
	for rows.Next() {
		check, err := scanCheckRow(rows)
		if err != nil {
			return nil, err
		}
		checks = append(checks, check)
	}
	return checks, rows.Err()
}

func scanCheck(row *sql.Row) (*models.AccuracyCheck, error) {
	check := &models.AccuracyCheck{}
	var integrationID, errorMessage sql.NullString
	var score sql.NullFloat64
	var completedAt sql.NullTime
	var durationMs sql.NullInt64

	err := row.Scan(
		&check.ID, &check.OrganizationID, &check.Scope, &integrationID, &check.Status, &score,
		&check.DiscrepanciesFound, &check.RecordsChecked, &errorMessage,
		&check.StartedAt, &completedAt, &durationMs,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan check: %w", err)
	}
	applyCheckNullables(check, integrationID, errorMessage, score, completedAt, durationMs)
	return check, nil
}

func scanCheckRow(rows *sql.Rows) (*models.AccuracyCheck, error) {
	check := &models.AccuracyCheck{}
	var integrationID, errorMessage sql.NullString
	var score sql.NullFloat64
	var completedAt sql.NullTime
	var durationMs sql.NullInt64

	err := rows.Scan(
		&check.ID, &check.OrganizationID, &check.Scope, &integrationID, &check.Status, &score,
		&check.DiscrepanciesFound, &check.RecordsChecked, &errorMessage,
		&check.StartedAt, &completedAt, &durationMs,
	)
	if err != nil {
		return nil, fmt.Errorf("scan check: %w", err)
	}
	applyCheckNullables(check, integrationID, errorMessage, score, completedAt, durationMs)
	return check, nil
}

func applyCheckNullables(check *models.AccuracyCheck, integrationID, errorMessage sql.NullString, score sql.NullFloat64, completedAt sql.NullTime, durationMs sql.NullInt64) {
	check.IntegrationID = integrationID.String
	check.ErrorMessage = errorMessage.String
	if score.Valid {
		v := score.Float64
		check.AccuracyScore = &v
	}
	if completedAt.Valid {
		t := completedAt.Time
		check.CompletedAt = &t
	}
	if durationMs.Valid {
		check.DurationMs = durationMs.Int64
	}
}
