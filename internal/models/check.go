package models

import "time"

// CheckScope selects which entity families a check covers.
type CheckScope string

const (
	ScopeFull      CheckScope = "full"
	ScopeProducts  CheckScope = "products"
	ScopeInventory CheckScope = "inventory"
	ScopePricing   CheckScope = "pricing"
)

// ParseCheckScope converts a string to CheckScope.
func ParseCheckScope(s string) CheckScope {
	switch s {
	case "products":
		return ScopeProducts
	case "inventory":
		return ScopeInventory
	case "pricing":
		return ScopePricing
	default:
		return ScopeFull
	}
}

// EntityTypes returns the entity families covered by the scope.
func (s CheckScope) EntityTypes() []EntityType {
	switch s {
	case ScopeProducts:
		return []EntityType{EntityProduct}
	case ScopeInventory:
		return []EntityType{EntityInventory}
	case ScopePricing:
		return []EntityType{EntityPricing}
	default:
		return []EntityType{EntityProduct, EntityInventory, EntityPricing}
	}
}

// CheckStatus is the lifecycle state of an accuracy check.
type CheckStatus string

const (
	CheckRunning   CheckStatus = "running"
	CheckCompleted CheckStatus = "completed"
	CheckFailed    CheckStatus = "failed"
)

// AccuracyCheck records one scan of source data against synced data.
// A check is mutated only by the checker and becomes immutable once its
// status leaves running; new scans always create new rows.
type AccuracyCheck struct {
	ID                 string      `json:"id"`
	OrganizationID     string      `json:"organization_id"`
	Scope              CheckScope  `json:"scope"`
	IntegrationID      string      `json:"integration_id,omitempty"`
	Status             CheckStatus `json:"status"`
	AccuracyScore      *float64    `json:"accuracy_score,omitempty"`
	DiscrepanciesFound int         `json:"discrepancies_found"`
	RecordsChecked     int         `json:"records_checked"`
	ErrorMessage       string      `json:"error_message,omitempty"`
	StartedAt          time.Time   `json:"started_at"`
	CompletedAt        *time.Time  `json:"completed_at,omitempty"`
	DurationMs         int64       `json:"duration_ms,omitempty"`
}

// IsTerminal reports whether the check has finished.
func (c *AccuracyCheck) IsTerminal() bool {
	return c.Status == CheckCompleted || c.Status == CheckFailed
}
