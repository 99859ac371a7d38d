package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/truthsource/syncwatch/internal/models"
)

type sqliteNotificationRepo struct {
	db *sql.DB
}

func (r *sqliteNotificationRepo) Create(ctx context.Context, n *models.NotificationLog) error {
	query := `
		INSERT INTO notification_logs (id, alert_id, channel, recipient, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	status := n.Status
	if status == "" {
		status = models.NotificationPending
	}
	_, err := r.db.ExecContext(ctx, query,
		n.ID, n.AlertID, n.Channel, nullString(n.Recipient), status, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *sqliteNotificationRepo) ListPending(ctx context.Context, limit int) ([]*models.NotificationLog, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, alert_id, channel, recipient, status, attempts, error_message, created_at, sent_at
		FROM notification_logs WHERE status = ? ORDER BY created_at LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, models.NotificationPending, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending notifications: %w", err)
	}
	defer rows.Close()

	var out []*models.NotificationLog
	for rows.Next() {
		n := &models.NotificationLog{}
		var recipient, errorMessage sql.NullString
		var sentAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.AlertID, &n.Channel, &recipient, &n.Status,
			&n.Attempts, &errorMessage, &n.CreatedAt, &sentAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Recipient = recipient.String
		n.ErrorMessage = errorMessage.String
		if sentAt.Valid {
			t := sentAt.Time
			n.SentAt = &t
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *sqliteNotificationRepo) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE notification_logs SET status = ?, sent_at = ? WHERE id = ?",
		models.NotificationDelivered, at, id)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	return nil
}

// RecordAttempt bumps the attempt counter and stores the transport error
// while keeping the notification pending for the next sweep.
func (r *sqliteNotificationRepo) RecordAttempt(ctx context.Context, id string, message string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE notification_logs SET attempts = attempts + 1, error_message = ? WHERE id = ?",
		message, id)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *sqliteNotificationRepo) MarkFailed(ctx context.Context, id string, message string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE notification_logs SET status = ?, error_message = ?, sent_at = ? WHERE id = ?",
		models.NotificationFailed, message, at, id)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	return nil
}
