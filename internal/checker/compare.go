package checker

import (
	"context"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/truthsource/syncwatch/internal/models"
	"github.com/truthsource/syncwatch/internal/source"
)

// Staleness thresholds for the last-sync age of a record.
const (
	staleAfter     = 24 * time.Hour
	staleHighAfter = 72 * time.Hour
)

// monetaryEpsilon is the tolerance for monetary field comparison.
// Quantities compare exactly.
const monetaryEpsilon = 0.01

// similarityThreshold separates near-duplicate strings from outright
// mismatches.
const similarityThreshold = 0.8

// Confidence values assigned per finding kind.
const (
	confMissingNeverSynced = 0.95
	confMissingMapped      = 0.90
	confNumericMismatch    = 0.95
	confStringMismatch     = 0.85
	confNearDuplicate      = 0.70
	confValueMismatch      = 0.90
	confStale              = 1.0
)

// comparer diffs one paired record set. It holds the per-scan knobs so the
// checker itself stays free of comparison detail.
type comparer struct {
	diff          source.DiffSource
	clock         source.Clock
	txnTolerance  float64
	integrationID string
}

// finding is a comparison result before it is shaped into a Discrepancy row.
type finding struct {
	entityID    string
	entityType  models.EntityType
	fieldName   string
	sourceValue any
	targetValue any
	kind        models.DiscrepancyType
	severity    models.Severity
	confidence  float64
	metadata    map[string]any
}

// comparePair diffs one source/synced pair and returns all findings.
func (c *comparer) comparePair(ctx context.Context, pair source.Pair) []finding {
	src := pair.Source
	if pair.Synced == nil {
		conf := confMissingMapped
		if src.LastSyncedAt.IsZero() {
			conf = confMissingNeverSynced
		}
		return []finding{{
			entityID:   src.EntityID,
			entityType: src.EntityType,
			kind:       models.DiscrepancyMissing,
			severity:   models.SeverityHigh,
			confidence: conf,
		}}
	}

	var findings []finding
	synced := pair.Synced

	if age := c.clock.Now().Sub(synced.LastSyncedAt); !synced.LastSyncedAt.IsZero() && age > staleAfter {
		severity := models.SeverityMedium
		if age > staleHighAfter {
			severity = models.SeverityHigh
		}
		findings = append(findings, finding{
			entityID:    src.EntityID,
			entityType:  src.EntityType,
			fieldName:   "last_synced_at",
			sourceValue: src.UpdatedAt,
			targetValue: synced.LastSyncedAt,
			kind:        models.DiscrepancyStale,
			severity:    severity,
			confidence:  confStale,
			metadata:    map[string]any{"sync_age_hours": age.Hours()},
		})
	}

	for field, sourceValue := range src.Fields {
		targetValue, ok := synced.Fields[field]
		if !ok {
			continue
		}
		if f := c.compareField(ctx, src, synced, field, sourceValue, targetValue); f != nil {
			findings = append(findings, *f)
		}
	}
	return findings
}

func (c *comparer) compareField(ctx context.Context, src, synced *source.Record, field string, sourceValue, targetValue any) *finding {
	srcNum, srcIsNum := toFloat(sourceValue)
	tgtNum, tgtIsNum := toFloat(targetValue)

	switch {
	case srcIsNum && tgtIsNum:
		return c.compareNumeric(ctx, src, synced, field, sourceValue, targetValue, srcNum, tgtNum)
	default:
		srcStr, srcIsStr := sourceValue.(string)
		tgtStr, tgtIsStr := targetValue.(string)
		if srcIsStr && tgtIsStr {
			return compareString(src, field, sourceValue, targetValue, srcStr, tgtStr)
		}
	}

	if reflect.DeepEqual(sourceValue, targetValue) {
		return nil
	}
	return &finding{
		entityID:    src.EntityID,
		entityType:  src.EntityType,
		fieldName:   field,
		sourceValue: sourceValue,
		targetValue: targetValue,
		kind:        models.DiscrepancyMismatch,
		severity:    models.SeverityLow,
		confidence:  confValueMismatch,
	}
}

func (c *comparer) compareNumeric(ctx context.Context, src, synced *source.Record, field string, sourceValue, targetValue any, srcNum, tgtNum float64) *finding {
	diff := math.Abs(srcNum - tgtNum)
	if isMonetary(src.EntityType, field) {
		if diff <= monetaryEpsilon {
			return nil
		}
	} else if diff == 0 {
		return nil
	}

	// A raw quantity difference may be transactions landed after the last
	// sync rather than drift. Reconcile before reporting.
	if isQuantity(field) && !synced.LastSyncedAt.IsZero() {
		delta, err := c.diff.RecentTransactionDelta(ctx, c.integrationID, src.EntityID, field, synced.LastSyncedAt)
		if err == nil && math.Abs((srcNum-tgtNum)-delta) <= c.txnTolerance {
			return nil
		}
	}

	deviation := deviationPct(srcNum, diff)
	return &finding{
		entityID:    src.EntityID,
		entityType:  src.EntityType,
		fieldName:   field,
		sourceValue: sourceValue,
		targetValue: targetValue,
		kind:        models.DiscrepancyMismatch,
		severity:    deviationSeverity(src.EntityType, deviation),
		confidence:  confNumericMismatch,
		metadata:    map[string]any{"deviation_pct": deviation},
	}
}

func compareString(src *source.Record, field string, sourceValue, targetValue any, srcStr, tgtStr string) *finding {
	if srcStr == tgtStr {
		return nil
	}
	sim := similarity(srcStr, tgtStr)
	f := &finding{
		entityID:    src.EntityID,
		entityType:  src.EntityType,
		fieldName:   field,
		sourceValue: sourceValue,
		targetValue: targetValue,
		metadata:    map[string]any{"similarity": sim},
	}
	if sim >= similarityThreshold {
		f.kind = models.DiscrepancyDuplicate
		f.severity = models.SeverityLow
		f.confidence = confNearDuplicate
	} else {
		f.kind = models.DiscrepancyMismatch
		f.severity = models.SeverityLow
		f.confidence = confStringMismatch
	}
	return f
}

// deviationSeverity buckets a percent deviation by entity family.
// Inventory tolerates more relative drift than pricing before escalating.
func deviationSeverity(et models.EntityType, deviation float64) models.Severity {
	if et == models.EntityInventory {
		switch {
		case deviation > 50:
			return models.SeverityCritical
		case deviation > 20:
			return models.SeverityHigh
		case deviation > 5:
			return models.SeverityMedium
		default:
			return models.SeverityLow
		}
	}
	switch {
	case deviation > 10:
		return models.SeverityCritical
	case deviation > 5:
		return models.SeverityHigh
	case deviation > 1:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func deviationPct(src, diff float64) float64 {
	if src == 0 {
		if diff == 0 {
			return 0
		}
		return 100
	}
	return diff / math.Abs(src) * 100
}

func isMonetary(et models.EntityType, field string) bool {
	if et == models.EntityPricing {
		return true
	}
	f := strings.ToLower(field)
	return strings.Contains(f, "price") || strings.Contains(f, "cost") || strings.Contains(f, "amount")
}

func isQuantity(field string) bool {
	f := strings.ToLower(field)
	return strings.Contains(f, "quantity") || strings.Contains(f, "stock") || strings.Contains(f, "count")
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// similarity is normalized edit-distance similarity in [0,1].
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(maxLen)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// toDiscrepancy shapes a finding into a persistable row.
func (f finding) toDiscrepancy(id, checkID, orgID, integrationID string, detectedAt time.Time) *models.Discrepancy {
	return &models.Discrepancy{
		ID:              id,
		AccuracyCheckID: checkID,
		OrganizationID:  orgID,
		IntegrationID:   integrationID,
		EntityType:      f.entityType,
		EntityID:        f.entityID,
		FieldName:       f.fieldName,
		SourceValue:     f.sourceValue,
		TargetValue:     f.targetValue,
		Type:            f.kind,
		Severity:        f.severity,
		ConfidenceScore: f.confidence,
		Status:          models.DiscrepancyOpen,
		DetectedAt:      detectedAt,
		Metadata:        f.metadata,
	}
}
