// Package remediation executes bounded, verified corrective actions for
// open discrepancies and keeps an immutable audit trail of every attempt.
package remediation

import (
	"github.com/truthsource/syncwatch/internal/models"
)

// ActionType identifies a remediation action variant.
type ActionType string

const (
	ActionNone         ActionType = "none"
	ActionSyncRetry    ActionType = "sync_retry"
	ActionValueUpdate  ActionType = "value_update"
	ActionCacheClear   ActionType = "cache_clear"
	ActionForceRefresh ActionType = "force_refresh"
)

// Action is a tagged union over the remediation variants. Only the fields
// of the selected variant are meaningful.
type Action struct {
	Type ActionType

	// ForceRefresh makes sync_retry request a full refresh.
	ForceRefresh bool

	// Create makes sync_retry create the missing downstream record.
	Create bool

	// Field and Value carry the value_update payload.
	Field string
	Value any

	// ChainSync makes cache_clear/force_refresh follow up with a
	// sync_retry after invalidation.
	ChainSync bool
}

// SelectAction maps a discrepancy to its remediation action. The mapping
// is static over (discrepancy type, entity type); unmapped combinations
// get ActionNone, which is an expected outcome, not an error.
func SelectAction(d *models.Discrepancy) Action {
	switch d.Type {
	case models.DiscrepancyMissing:
		switch d.EntityType {
		case models.EntityProduct, models.EntityInventory:
			return Action{Type: ActionSyncRetry, Create: true}
		}

	case models.DiscrepancyMismatch:
		switch d.EntityType {
		case models.EntityPricing:
			return Action{Type: ActionValueUpdate, Field: d.FieldName, Value: d.SourceValue}
		case models.EntityInventory:
			return Action{Type: ActionSyncRetry, ForceRefresh: true}
		}

	case models.DiscrepancyStale:
		switch d.EntityType {
		case models.EntityInventory:
			return Action{Type: ActionSyncRetry, ForceRefresh: true}
		case models.EntityPricing:
			return Action{Type: ActionForceRefresh, ChainSync: true}
		case models.EntityProduct:
			return Action{Type: ActionCacheClear, ChainSync: true}
		}
	}

	// Duplicates and everything else need human judgment.
	return Action{Type: ActionNone}
}

// config returns the audit representation of the action.
func (a Action) config() map[string]any {
	cfg := map[string]any{}
	switch a.Type {
	case ActionSyncRetry:
		cfg["force_refresh"] = a.ForceRefresh
		cfg["create"] = a.Create
	case ActionValueUpdate:
		cfg["field"] = a.Field
		cfg["value"] = a.Value
	case ActionCacheClear, ActionForceRefresh:
		cfg["chain_sync"] = a.ChainSync
	}
	return cfg
}
