package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Pure-Go SQLite driver.
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	path string
	db   *sql.DB

	checks        *sqliteCheckRepo
	discrepancies *sqliteDiscrepancyRepo
	alertRules    *sqliteAlertRuleRepo
	alerts        *sqliteAlertRepo
	notifications *sqliteNotificationRepo
	remediations  *sqliteRemediationRepo
	syncStates    *sqliteSyncStateRepo
	metrics       *sqliteMetricRepo
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Open initializes the database connection.
func (s *SQLiteStore) Open() error {
	ctx := context.Background()

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	// SQLite is single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	s.db = db
	s.checks = &sqliteCheckRepo{db: db}
	s.discrepancies = &sqliteDiscrepancyRepo{db: db}
	s.alertRules = &sqliteAlertRuleRepo{db: db}
	s.alerts = &sqliteAlertRepo{db: db}
	s.notifications = &sqliteNotificationRepo{db: db}
	s.remediations = &sqliteRemediationRepo{db: db}
	s.syncStates = &sqliteSyncStateRepo{db: db}
	s.metrics = &sqliteMetricRepo{db: db}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying database connection for health checks.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate() error {
	return runMigrations(s.db)
}

// Ping checks the connection health.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Checks returns the accuracy check repository.
func (s *SQLiteStore) Checks() CheckRepository { return s.checks }

// Discrepancies returns the discrepancy repository.
func (s *SQLiteStore) Discrepancies() DiscrepancyRepository { return s.discrepancies }

// AlertRules returns the alert rule repository.
func (s *SQLiteStore) AlertRules() AlertRuleRepository { return s.alertRules }

// Alerts returns the alert repository.
func (s *SQLiteStore) Alerts() AlertRepository { return s.alerts }

// Notifications returns the notification repository.
func (s *SQLiteStore) Notifications() NotificationRepository { return s.notifications }

// Remediations returns the remediation log repository.
func (s *SQLiteStore) Remediations() RemediationRepository { return s.remediations }

// SyncStates returns the sync state repository.
func (s *SQLiteStore) SyncStates() SyncStateRepository { return s.syncStates }

// Metrics returns the SQLite-backed metric repository. Production
// deployments point MetricStore at ClickHouse instead; this backend keeps
// single-node setups self-contained.
func (s *SQLiteStore) Metrics() MetricRepository { return s.metrics }

// Helper functions

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func durationFromNs(ns int64) time.Duration {
	return time.Duration(ns)
}
