package models

import "time"

// AccuracyMetric is a time-bucketed accuracy snapshot. The series is
// append-only; rows are never mutated after insertion, which is what keeps
// trend and forecast analysis valid.
type AccuracyMetric struct {
	ID               string         `json:"id"`
	OrganizationID   string         `json:"organization_id"`
	IntegrationID    string         `json:"integration_id,omitempty"`
	AccuracyScore    float64        `json:"accuracy_score"`
	TotalRecords     int            `json:"total_records"`
	DiscrepancyCount int            `json:"discrepancy_count"`
	MetricsByType    map[string]int `json:"metrics_by_type,omitempty"`
	Timestamp        time.Time      `json:"timestamp"`
	BucketDuration   time.Duration  `json:"bucket_duration"`
}
