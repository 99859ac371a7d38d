package models

import (
	"fmt"
	"time"
)

// AlertRule is an externally authored alerting configuration. The core
// reads rules at evaluation time and never mutates them.
type AlertRule struct {
	ID                        string        `json:"id"`
	OrganizationID            string        `json:"organization_id"`
	Name                      string        `json:"name"`
	IsActive                  bool          `json:"is_active"`
	EntityTypes               []EntityType  `json:"entity_types,omitempty"`
	SeverityThreshold         Severity      `json:"severity_threshold"`
	AccuracyThreshold         float64       `json:"accuracy_threshold"`
	DiscrepancyCountThreshold int           `json:"discrepancy_count_threshold"`
	CheckFrequency            time.Duration `json:"check_frequency"`
	EvaluationWindow          time.Duration `json:"evaluation_window"`
	NotificationChannels      []string      `json:"notification_channels"`
	AutoRemediate             bool          `json:"auto_remediate"`
	CreatedAt                 time.Time     `json:"created_at"`
	UpdatedAt                 time.Time     `json:"updated_at"`
}

// Validate checks the rule configuration. Invalid rules are rejected
// before any evaluation work begins.
func (r *AlertRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if r.OrganizationID == "" {
		return fmt.Errorf("organization id is required for rule %q", r.Name)
	}
	if r.AccuracyThreshold < 0 || r.AccuracyThreshold > 100 {
		return fmt.Errorf("accuracy threshold must be in [0,100] for rule %q", r.Name)
	}
	if r.DiscrepancyCountThreshold < 0 {
		return fmt.Errorf("discrepancy count threshold must be non-negative for rule %q", r.Name)
	}
	if r.CheckFrequency < 0 {
		return fmt.Errorf("check frequency must be non-negative for rule %q", r.Name)
	}
	if r.EvaluationWindow <= 0 {
		return fmt.Errorf("evaluation window must be positive for rule %q", r.Name)
	}
	if r.EvaluationWindow < r.CheckFrequency {
		return fmt.Errorf("evaluation window must cover check frequency for rule %q", r.Name)
	}
	switch r.SeverityThreshold {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
	case "":
		r.SeverityThreshold = SeverityMedium
	default:
		return fmt.Errorf("invalid severity threshold %q for rule %q", r.SeverityThreshold, r.Name)
	}
	for _, et := range r.EntityTypes {
		switch et {
		case EntityProduct, EntityInventory, EntityPricing, EntityCustomer:
		default:
			return fmt.Errorf("invalid entity type %q for rule %q", et, r.Name)
		}
	}
	return nil
}

// MatchesEntityType reports whether the rule applies to the entity type.
// A rule with no entity filter applies to all types.
func (r *AlertRule) MatchesEntityType(et EntityType) bool {
	if len(r.EntityTypes) == 0 {
		return true
	}
	for _, t := range r.EntityTypes {
		if t == et {
			return true
		}
	}
	return false
}
