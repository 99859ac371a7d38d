package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/truthsource/syncwatch/internal/models"
)

type sqliteAlertRepo struct {
	db *sql.DB
}

func (r *sqliteAlertRepo) Create(ctx context.Context, alert *models.Alert) error {
	query := `
		INSERT INTO alerts (id, alert_rule_id, organization_id, title, message, severity,
			triggered_by, trigger_value, accuracy_check_id, status, acknowledged_by,
			snoozed_until, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		alert.ID, alert.AlertRuleID, alert.OrganizationID, alert.Title, alert.Message,
		alert.Severity, alert.TriggeredBy, alert.TriggerValue, nullString(alert.AccuracyCheckID),
		alert.Status, nullString(alert.AcknowledgedBy), nullTime(alert.SnoozedUntil),
		alert.CreatedAt, alert.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (r *sqliteAlertRepo) GetByID(ctx context.Context, id string) (*models.Alert, error) {
	rows, err := r.db.QueryContext(ctx, alertSelect+` WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query alert: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return scanAlert(rows)
}

func (r *sqliteAlertRepo) List(ctx context.Context, organizationID string, limit, offset int) ([]*models.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	query := alertSelect + ` WHERE organization_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`
	return r.queryMany(ctx, query, organizationID, limit, offset)
}

func (r *sqliteAlertRepo) UpdateStatus(ctx context.Context, id string, status models.AlertStatus, acknowledgedBy string) error {
	query := `
		UPDATE alerts SET status = ?, acknowledged_by = ?, snoozed_until = NULL, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query, status, nullString(acknowledgedBy), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update alert status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *sqliteAlertRepo) Snooze(ctx context.Context, id string, until time.Time) error {
	query := `
		UPDATE alerts SET status = ?, snoozed_until = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query, models.AlertSnoozed, until, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("snooze alert: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *sqliteAlertRepo) LatestForRule(ctx context.Context, ruleID string, since time.Time) (*models.Alert, error) {
	query := alertSelect + ` WHERE alert_rule_id = ? AND created_at >= ? ORDER BY created_at DESC LIMIT 1`
	rows, err := r.db.QueryContext(ctx, query, ruleID, since)
	if err != nil {
		return nil, fmt.Errorf("query latest alert: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanAlert(rows)
}

func (r *sqliteAlertRepo) ReactivateSnoozedBefore(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE alerts SET status = ?, snoozed_until = NULL, updated_at = ?
		WHERE status = ? AND snoozed_until IS NOT NULL AND snoozed_until <= ?
	`
	result, err := r.db.ExecContext(ctx, query, models.AlertActive, now, models.AlertSnoozed, now)
	if err != nil {
		return 0, fmt.Errorf("reactivate snoozed alerts: %w", err)
	}
	return result.RowsAffected()
}

const alertSelect = `
	SELECT id, alert_rule_id, organization_id, title, message, severity, triggered_by,
		trigger_value, accuracy_check_id, status, acknowledged_by, snoozed_until,
		created_at, updated_at
	FROM alerts`

func (r *sqliteAlertRepo) queryMany(ctx context.Context, query string, args ...any) ([]*models.Alert, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []*models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, alert)
	}
	return out, rows.Err()
}

func scanAlert(rows *sql.Rows) (*models.Alert, error) {
	alert := &models.Alert{}
	var checkID, acknowledgedBy sql.NullString
	var snoozedUntil sql.NullTime

	err := rows.Scan(
		&alert.ID, &alert.AlertRuleID, &alert.OrganizationID, &alert.Title, &alert.Message,
		&alert.Severity, &alert.TriggeredBy, &alert.TriggerValue, &checkID, &alert.Status,
		&acknowledgedBy, &snoozedUntil, &alert.CreatedAt, &alert.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan alert: %w", err)
	}

	alert.AccuracyCheckID = checkID.String
	alert.AcknowledgedBy = acknowledgedBy.String
	if snoozedUntil.Valid {
		t := snoozedUntil.Time
		alert.SnoozedUntil = &t
	}
	return alert, nil
}
