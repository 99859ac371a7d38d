package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/truthsource/syncwatch/internal/models"
)

type sqliteAlertRuleRepo struct {
	db *sql.DB
}

func (r *sqliteAlertRuleRepo) Create(ctx context.Context, rule *models.AlertRule) error {
	entityTypes, err := json.Marshal(rule.EntityTypes)
	if err != nil {
		return fmt.Errorf("encode entity types: %w", err)
	}
	channels, err := json.Marshal(rule.NotificationChannels)
	if err != nil {
		return fmt.Errorf("encode channels: %w", err)
	}

	query := `
		INSERT INTO alert_rules (id, organization_id, name, is_active, entity_types_json,
			severity_threshold, accuracy_threshold, discrepancy_count_threshold,
			check_frequency_ns, evaluation_window_ns, notification_channels_json,
			auto_remediate, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		rule.ID, rule.OrganizationID, rule.Name, boolToInt(rule.IsActive), string(entityTypes),
		rule.SeverityThreshold, rule.AccuracyThreshold, rule.DiscrepancyCountThreshold,
		int64(rule.CheckFrequency), int64(rule.EvaluationWindow), string(channels),
		boolToInt(rule.AutoRemediate), rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert rule: %w", err)
	}
	return nil
}

func (r *sqliteAlertRuleRepo) GetByID(ctx context.Context, id string) (*models.AlertRule, error) {
	rows, err := r.db.QueryContext(ctx, alertRuleSelect+` WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query alert rule: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return scanAlertRule(rows)
}

func (r *sqliteAlertRuleRepo) Update(ctx context.Context, rule *models.AlertRule) error {
	entityTypes, err := json.Marshal(rule.EntityTypes)
	if err != nil {
		return fmt.Errorf("encode entity types: %w", err)
	}
	channels, err := json.Marshal(rule.NotificationChannels)
	if err != nil {
		return fmt.Errorf("encode channels: %w", err)
	}

	query := `
		UPDATE alert_rules
		SET name = ?, is_active = ?, entity_types_json = ?, severity_threshold = ?,
			accuracy_threshold = ?, discrepancy_count_threshold = ?, check_frequency_ns = ?,
			evaluation_window_ns = ?, notification_channels_json = ?, auto_remediate = ?,
			updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		rule.Name, boolToInt(rule.IsActive), string(entityTypes), rule.SeverityThreshold,
		rule.AccuracyThreshold, rule.DiscrepancyCountThreshold, int64(rule.CheckFrequency),
		int64(rule.EvaluationWindow), string(channels), boolToInt(rule.AutoRemediate),
		rule.UpdatedAt, rule.ID,
	)
	if err != nil {
		return fmt.Errorf("update alert rule: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("alert rule %s: %w", rule.ID, ErrNotFound)
	}
	return nil
}

func (r *sqliteAlertRuleRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM alert_rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete alert rule: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("alert rule %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *sqliteAlertRuleRepo) List(ctx context.Context, organizationID string) ([]*models.AlertRule, error) {
	query := alertRuleSelect + ` WHERE organization_id = ? ORDER BY name`
	return r.queryMany(ctx, query, organizationID)
}

func (r *sqliteAlertRuleRepo) ListActive(ctx context.Context, organizationID string) ([]*models.AlertRule, error) {
	query := alertRuleSelect + ` WHERE organization_id = ? AND is_active = 1 ORDER BY name`
	return r.queryMany(ctx, query, organizationID)
}

func (r *sqliteAlertRuleRepo) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE alert_rules SET is_active = ? WHERE id = ?", boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("alert rule %s: %w", id, ErrNotFound)
	}
	return nil
}

const alertRuleSelect = `
	SELECT id, organization_id, name, is_active, entity_types_json, severity_threshold,
		accuracy_threshold, discrepancy_count_threshold, check_frequency_ns,
		evaluation_window_ns, notification_channels_json, auto_remediate, created_at, updated_at
	FROM alert_rules`

func (r *sqliteAlertRuleRepo) queryMany(ctx context.Context, query string, args ...any) ([]*models.AlertRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alert rules: %w", err)
	}
	defer rows.Close()

	var out []*models.AlertRule
	for rows.Next() {
		rule, err := scanAlertRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func scanAlertRule(rows *sql.Rows) (*models.AlertRule, error) {
	rule := &models.AlertRule{}
	var isActive, autoRemediate int
	var entityTypesJSON, channelsJSON string
	var checkFrequencyNs, evaluationWindowNs int64

	err := rows.Scan(
		&rule.ID, &rule.OrganizationID, &rule.Name, &isActive, &entityTypesJSON,
		&rule.SeverityThreshold, &rule.AccuracyThreshold, &rule.DiscrepancyCountThreshold,
		&checkFrequencyNs, &evaluationWindowNs, &channelsJSON, &autoRemediate,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan alert rule: %w", err)
	}

	rule.IsActive = isActive == 1
	rule.AutoRemediate = autoRemediate == 1
	rule.CheckFrequency = durationFromNs(checkFrequencyNs)
	rule.EvaluationWindow = durationFromNs(evaluationWindowNs)
	if err := json.Unmarshal([]byte(entityTypesJSON), &rule.EntityTypes); err != nil {
		return nil, fmt.Errorf("decode entity types: %w", err)
	}
	if err := json.Unmarshal([]byte(channelsJSON), &rule.NotificationChannels); err != nil {
		return nil, fmt.Errorf("decode channels: %w", err)
	}
	return rule, nil
}
