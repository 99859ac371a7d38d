package models

import "time"

// EntityType identifies the business entity family a record belongs to.
type EntityType string

const (
	EntityProduct   EntityType = "product"
	EntityInventory EntityType = "inventory"
	EntityPricing   EntityType = "pricing"
	EntityCustomer  EntityType = "customer"
)

// DiscrepancyType classifies how the source and target records disagree.
type DiscrepancyType string

const (
	DiscrepancyMissing   DiscrepancyType = "missing"
	DiscrepancyMismatch  DiscrepancyType = "mismatch"
	DiscrepancyStale     DiscrepancyType = "stale"
	DiscrepancyDuplicate DiscrepancyType = "duplicate"
)

// DiscrepancyStatus is the lifecycle state of a discrepancy.
type DiscrepancyStatus string

const (
	DiscrepancyOpen          DiscrepancyStatus = "open"
	DiscrepancyInvestigating DiscrepancyStatus = "investigating"
	DiscrepancyResolved      DiscrepancyStatus = "resolved"
	DiscrepancyIgnored       DiscrepancyStatus = "ignored"
)

// ResolutionType records how a discrepancy was closed.
type ResolutionType string

const (
	ResolutionAutoFixed ResolutionType = "auto_fixed"
	ResolutionManual    ResolutionType = "manual"
	ResolutionIgnored   ResolutionType = "ignored"
)

// Discrepancy is one detected difference between the authoritative source
// record and its counterpart in an integrated system, for one field of
// one entity.
type Discrepancy struct {
	ID              string            `json:"id"`
	AccuracyCheckID string            `json:"accuracy_check_id"`
	OrganizationID  string            `json:"organization_id"`
	IntegrationID   string            `json:"integration_id,omitempty"`
	EntityType      EntityType        `json:"entity_type"`
	EntityID        string            `json:"entity_id"`
	FieldName       string            `json:"field_name,omitempty"`
	SourceValue     any               `json:"source_value,omitempty"`
	TargetValue     any               `json:"target_value,omitempty"`
	Type            DiscrepancyType   `json:"discrepancy_type"`
	Severity        Severity          `json:"severity"`
	ConfidenceScore float64           `json:"confidence_score"`
	Status          DiscrepancyStatus `json:"status"`
	ResolutionType  ResolutionType    `json:"resolution_type,omitempty"`
	DetectedAt      time.Time         `json:"detected_at"`
	Metadata        map[string]any    `json:"metadata,omitempty"`
}

// CanTransitionTo reports whether the status change is allowed.
// Open discrepancies may move to investigating, resolved, or ignored;
// investigating ones may only close. Resolved and ignored are terminal.
func (d *Discrepancy) CanTransitionTo(next DiscrepancyStatus) bool {
	switch d.Status {
	case DiscrepancyOpen:
		return next == DiscrepancyInvestigating || next == DiscrepancyResolved || next == DiscrepancyIgnored
	case DiscrepancyInvestigating:
		return next == DiscrepancyResolved || next == DiscrepancyIgnored
	default:
		return false
	}
}
