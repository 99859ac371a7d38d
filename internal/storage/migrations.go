package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database migration.
type Migration struct {
	Version int
	Name    string
	Up      string
}

// migrations holds all database migrations in order.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up: `
			-- Accuracy checks
			CREATE TABLE IF NOT EXISTS accuracy_checks (
				id TEXT PRIMARY KEY,
				organization_id TEXT NOT NULL,
				scope TEXT NOT NULL,
				integration_id TEXT,
				status TEXT NOT NULL DEFAULT 'running',
				accuracy_score REAL,
				discrepancies_found INTEGER NOT NULL DEFAULT 0,
				records_checked INTEGER NOT NULL DEFAULT 0,
				error_message TEXT,
				started_at DATETIME NOT NULL,
				completed_at DATETIME,
				duration_ms INTEGER
			);

			-- Discrepancies (children of accuracy checks)
			CREATE TABLE IF NOT EXISTS discrepancies (
				id TEXT PRIMARY KEY,
				accuracy_check_id TEXT NOT NULL,
				organization_id TEXT NOT NULL,
				integration_id TEXT,
				entity_type TEXT NOT NULL,
				entity_id TEXT NOT NULL,
				field_name TEXT,
				source_value TEXT,
				target_value TEXT,
				discrepancy_type TEXT NOT NULL,
				severity TEXT NOT NULL,
				confidence_score REAL NOT NULL,
				status TEXT NOT NULL DEFAULT 'open',
				resolution_type TEXT,
				detected_at DATETIME NOT NULL,
				metadata_json TEXT,
				FOREIGN KEY (accuracy_check_id) REFERENCES accuracy_checks(id) ON DELETE CASCADE
			);

			-- Alert rules
			CREATE TABLE IF NOT EXISTS alert_rules (
				id TEXT PRIMARY KEY,
				organization_id TEXT NOT NULL,
				name TEXT NOT NULL,
				is_active INTEGER NOT NULL DEFAULT 1,
				entity_types_json TEXT NOT NULL,
				severity_threshold TEXT NOT NULL,
				accuracy_threshold REAL NOT NULL,
				discrepancy_count_threshold INTEGER NOT NULL,
				check_frequency_ns INTEGER NOT NULL,
				evaluation_window_ns INTEGER NOT NULL,
				notification_channels_json TEXT NOT NULL,
				auto_remediate INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);

			-- Alerts
			CREATE TABLE IF NOT EXISTS alerts (
				id TEXT PRIMARY KEY,
				alert_rule_id TEXT NOT NULL,
				organization_id TEXT NOT NULL,
				title TEXT NOT NULL,
				message TEXT NOT NULL,
				severity TEXT NOT NULL,
				triggered_by TEXT NOT NULL,
				trigger_value REAL NOT NULL,
				accuracy_check_id TEXT,
				status TEXT NOT NULL DEFAULT 'active',
				acknowledged_by TEXT,
				snoozed_until DATETIME,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				FOREIGN KEY (alert_rule_id) REFERENCES alert_rules(id) ON DELETE CASCADE
			);

			-- Scheduled notifications
			CREATE TABLE IF NOT EXISTS notification_logs (
				id TEXT PRIMARY KEY,
				alert_id TEXT NOT NULL,
				channel TEXT NOT NULL,
				recipient TEXT,
				status TEXT NOT NULL DEFAULT 'pending',
				error_message TEXT,
				created_at DATETIME NOT NULL,
				sent_at DATETIME,
				FOREIGN KEY (alert_id) REFERENCES alerts(id) ON DELETE CASCADE
			);

			-- Remediation audit trail
			CREATE TABLE IF NOT EXISTS remediation_logs (
				id TEXT PRIMARY KEY,
				discrepancy_id TEXT NOT NULL,
				organization_id TEXT NOT NULL,
				action_type TEXT NOT NULL,
				action_config_json TEXT,
				status TEXT NOT NULL DEFAULT 'pending',
				success INTEGER NOT NULL DEFAULT 0,
				result_json TEXT,
				error_message TEXT,
				started_at DATETIME NOT NULL,
				completed_at DATETIME,
				FOREIGN KEY (discrepancy_id) REFERENCES discrepancies(id) ON DELETE CASCADE
			);

			-- Accuracy metrics (SQLite fallback backend for small deployments)
			CREATE TABLE IF NOT EXISTS accuracy_metrics (
				id TEXT PRIMARY KEY,
				organization_id TEXT NOT NULL,
				integration_id TEXT,
				accuracy_score REAL NOT NULL,
				total_records INTEGER NOT NULL,
				discrepancy_count INTEGER NOT NULL,
				metrics_by_type_json TEXT,
				timestamp DATETIME NOT NULL,
				bucket_duration_ns INTEGER NOT NULL
			);

			-- Indexes
			CREATE INDEX IF NOT EXISTS idx_checks_org ON accuracy_checks(organization_id, started_at);
			CREATE INDEX IF NOT EXISTS idx_discrepancies_check ON discrepancies(accuracy_check_id);
			CREATE INDEX IF NOT EXISTS idx_discrepancies_org_status ON discrepancies(organization_id, status);
			CREATE INDEX IF NOT EXISTS idx_alert_rules_org ON alert_rules(organization_id, is_active);
			CREATE INDEX IF NOT EXISTS idx_alerts_rule_created ON alerts(alert_rule_id, created_at);
			CREATE INDEX IF NOT EXISTS idx_alerts_org_status ON alerts(organization_id, status);
			CREATE INDEX IF NOT EXISTS idx_notifications_status ON notification_logs(status, created_at);
			CREATE INDEX IF NOT EXISTS idx_remediation_discrepancy ON remediation_logs(discrepancy_id);
			CREATE INDEX IF NOT EXISTS idx_metrics_org_ts ON accuracy_metrics(organization_id, timestamp);
		`,
	},
	{
		Version: 2,
		Name:    "notification_attempts",
		Up: `
			ALTER TABLE notification_logs ADD COLUMN attempts INTEGER NOT NULL DEFAULT 0;
		`,
	},
	{
		Version: 3,
		Name:    "sync_state",
		Up: `
			-- Per-integration scan bookkeeping, one row per entity family
			CREATE TABLE IF NOT EXISTS sync_state (
				integration_id TEXT NOT NULL,
				entity_type TEXT NOT NULL,
				last_checked_at DATETIME NOT NULL,
				records_checked INTEGER NOT NULL DEFAULT 0,
				discrepancy_count INTEGER NOT NULL DEFAULT 0,
				PRIMARY KEY (integration_id, entity_type)
			);
		`,
	},
}

// runMigrations applies all pending migrations.
func runMigrations(db *sql.DB) error {
	// Create migrations table if not exists
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	for _, m := range migrations {
		var exists int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.Version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if exists > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(m.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Name, time.Now(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
