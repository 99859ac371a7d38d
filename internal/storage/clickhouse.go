package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"

	"github.com/truthsource/syncwatch/internal/models"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	// Addresses are the ClickHouse server addresses (host:port).
	Addresses []string

	// Database is the ClickHouse database name.
	Database string

	// Username for authentication.
	Username string

	// Password for authentication.
	Password string

	// MaxOpenConns is the maximum number of open connections.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns int

	// DialTimeout is the connection timeout.
	DialTimeout time.Duration

	// Compression enables LZ4 compression.
	Compression bool

	// RetentionDays is the TTL in days for metric retention.
	RetentionDays int
}

// ClickHouseMetricStore implements MetricStore for ClickHouse. The metric
// series is append-only, which maps cleanly onto MergeTree.
type ClickHouseMetricStore struct {
	config  *ClickHouseConfig
	db      *sql.DB
	metrics *clickhouseMetricRepo
}

// NewClickHouseMetricStore creates a new ClickHouse metric store.
func NewClickHouseMetricStore(config *ClickHouseConfig) *ClickHouseMetricStore {
	// Apply defaults
	if config.MaxOpenConns == 0 {
		config.MaxOpenConns = 5
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 5
	}
	if config.DialTimeout == 0 {
		config.DialTimeout = 5 * time.Second
	}
	if config.RetentionDays == 0 {
		config.RetentionDays = 90
	}

	return &ClickHouseMetricStore{config: config}
}

// Open initializes the ClickHouse connection.
func (s *ClickHouseMetricStore) Open() error {
	opts := &clickhouse.Options{
		Addr: s.config.Addresses,
		Auth: clickhouse.Auth{
			Database: s.config.Database,
			Username: s.config.Username,
			Password: s.config.Password,
		},
		DialTimeout:  s.config.DialTimeout,
		MaxOpenConns: s.config.MaxOpenConns,
		MaxIdleConns: s.config.MaxIdleConns,
	}

	if s.config.Compression {
		opts.Compression = &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		}
	}

	db := clickhouse.OpenDB(opts)

	ctx, cancel := context.WithTimeout(context.Background(), s.config.DialTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping clickhouse: %w", err)
	}

	s.db = db
	s.metrics = &clickhouseMetricRepo{db: db}
	return nil
}

// Close closes the database connection.
func (s *ClickHouseMetricStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Migrate creates the metrics table if it doesn't exist.
func (s *ClickHouseMetricStore) Migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS accuracy_metrics (
			id UUID DEFAULT generateUUIDv4(),
			organization_id String,
			integration_id String DEFAULT '',
			accuracy_score Float64,
			total_records Int64,
			discrepancy_count Int64,
			metrics_by_type String DEFAULT '',
			timestamp DateTime64(3, 'UTC'),
			bucket_duration_ns Int64,
			_date Date DEFAULT toDate(timestamp)
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMM(_date)
		ORDER BY (organization_id, integration_id, timestamp, id)
		TTL _date + INTERVAL %d DAY DELETE
		SETTINGS index_granularity = 8192
	`, s.config.RetentionDays)

	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create metrics table: %w", err)
	}
	return nil
}

// Ping checks the connection health.
func (s *ClickHouseMetricStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Metrics returns the metric repository.
func (s *ClickHouseMetricStore) Metrics() MetricRepository {
	return s.metrics
}

// clickhouseMetricRepo implements MetricRepository for ClickHouse.
type clickhouseMetricRepo struct {
	db *sql.DB
}

func (r *clickhouseMetricRepo) Insert(ctx context.Context, m *models.AccuracyMetric) error {
	id := m.ID
	if id == "" {
		id = uuid.New().String()
	}

	var byType string
	if len(m.MetricsByType) > 0 {
		b, err := json.Marshal(m.MetricsByType)
		if err != nil {
			return fmt.Errorf("encode metrics by type: %w", err)
		}
		byType = string(b)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accuracy_metrics (
			id, organization_id, integration_id, accuracy_score,
			total_records, discrepancy_count, metrics_by_type, timestamp, bucket_duration_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id, m.OrganizationID, m.IntegrationID, m.AccuracyScore,
		int64(m.TotalRecords), int64(m.DiscrepancyCount), byType,
		m.Timestamp, int64(m.BucketDuration),
	)
	if err != nil {
		return fmt.Errorf("insert metric: %w", err)
	}
	return nil
}

func (r *clickhouseMetricRepo) ListRecent(ctx context.Context, organizationID, integrationID string, limit int) ([]*models.AccuracyMetric, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, organization_id, integration_id, accuracy_score, total_records,
		       discrepancy_count, metrics_by_type, timestamp, bucket_duration_ns
		FROM accuracy_metrics
		WHERE organization_id = ? AND (? = '' OR integration_id = ?)
		ORDER BY timestamp DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, organizationID, integrationID, integrationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	var out []*models.AccuracyMetric
	for rows.Next() {
		m := &models.AccuracyMetric{}
		var byType string
		var totalRecords, discrepancyCount, bucketNs int64

		err := rows.Scan(
			&m.ID, &m.OrganizationID, &m.IntegrationID, &m.AccuracyScore,
			&totalRecords, &discrepancyCount, &byType, &m.Timestamp, &bucketNs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}

		m.TotalRecords = int(totalRecords)
		m.DiscrepancyCount = int(discrepancyCount)
		m.BucketDuration = time.Duration(bucketNs)
		if byType != "" {
			if err := json.Unmarshal([]byte(byType), &m.MetricsByType); err != nil {
				return nil, fmt.Errorf("decode metrics by type: %w", err)
			}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	// Newest N rows, re-sorted oldest first for trend analysis.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *clickhouseMetricRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	// First get count for return value
	var count int64
	err := r.db.QueryRowContext(ctx, "SELECT count() FROM accuracy_metrics WHERE timestamp < ?", before).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}

	// Delete using ALTER TABLE DELETE (async in ClickHouse)
	_, err = r.db.ExecContext(ctx, "ALTER TABLE accuracy_metrics DELETE WHERE timestamp < ?", before)
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}

	return count, nil
}
