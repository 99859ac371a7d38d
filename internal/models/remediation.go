package models

import "time"

// RemediationStatus is the lifecycle state of a remediation attempt.
type RemediationStatus string

const (
	RemediationPending   RemediationStatus = "pending"
	RemediationRunning   RemediationStatus = "running"
	RemediationCompleted RemediationStatus = "completed"
	RemediationFailed    RemediationStatus = "failed"
)

// RemediationLog is the audit trail for one remediation attempt.
// One entry per attempt; immutable once completed or failed.
type RemediationLog struct {
	ID             string            `json:"id"`
	DiscrepancyID  string            `json:"discrepancy_id"`
	OrganizationID string            `json:"organization_id"`
	ActionType     string            `json:"action_type"`
	ActionConfig   map[string]any    `json:"action_config,omitempty"`
	Status         RemediationStatus `json:"status"`
	Success        bool              `json:"success"`
	Result         map[string]any    `json:"result,omitempty"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	StartedAt      time.Time         `json:"started_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
}
