package models

import "time"

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	AlertActive       AlertStatus = "active"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
	AlertSnoozed      AlertStatus = "snoozed"
)

// Alert is a raised alert. Created by the alert manager when a rule fires;
// mutated by acknowledge/resolve/snooze operations and the snooze sweep.
type Alert struct {
	ID              string      `json:"id"`
	AlertRuleID     string      `json:"alert_rule_id"`
	OrganizationID  string      `json:"organization_id"`
	Title           string      `json:"title"`
	Message         string      `json:"message"`
	Severity        Severity    `json:"severity"`
	TriggeredBy     string      `json:"triggered_by"`
	TriggerValue    float64     `json:"trigger_value"`
	AccuracyCheckID string      `json:"accuracy_check_id,omitempty"`
	Status          AlertStatus `json:"status"`
	AcknowledgedBy  string      `json:"acknowledged_by,omitempty"`
	SnoozedUntil    *time.Time  `json:"snoozed_until,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Trigger reasons recorded on alerts.
const (
	TriggerAccuracyThreshold = "accuracy_threshold"
	TriggerDiscrepancyCount  = "discrepancy_count"
	TriggerEntityCount       = "entity_discrepancy_count"
	TriggerSeverityThreshold = "severity_threshold"
)

// NotificationStatus is the delivery state of a scheduled notification.
type NotificationStatus string

const (
	NotificationPending   NotificationStatus = "pending"
	NotificationDelivered NotificationStatus = "delivered"
	NotificationFailed    NotificationStatus = "failed"
)

// NotificationLog is one scheduled notification for an alert on one
// channel. The core decides that and what to notify; delivery is handled
// by the notification transport.
type NotificationLog struct {
	ID           string             `json:"id"`
	AlertID      string             `json:"alert_id"`
	Channel      string             `json:"channel"`
	Recipient    string             `json:"recipient,omitempty"`
	Status       NotificationStatus `json:"status"`
	Attempts     int                `json:"attempts"`
	ErrorMessage string             `json:"error_message,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	SentAt       *time.Time         `json:"sent_at,omitempty"`
}
