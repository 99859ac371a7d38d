// Package scoring converts discrepancy sets into a 0-100 accuracy score
// with breakdowns, trend analysis, forecasting, and benchmark comparison.
// All functions are pure over their inputs; history is fetched fresh by
// callers on every invocation.
package scoring

import (
	"github.com/truthsource/syncwatch/internal/models"
)

// Severity weights reflect the relative impact of a discrepancy.
var severityWeights = map[models.Severity]float64{
	models.SeverityCritical: 1.0,
	models.SeverityHigh:     0.7,
	models.SeverityMedium:   0.3,
	models.SeverityLow:      0.1,
}

// Entity weights: inventory accuracy is weighted highest because
// stock-outs have the most immediate business cost.
var entityWeights = map[models.EntityType]float64{
	models.EntityInventory: 1.0,
	models.EntityPricing:   0.9,
	models.EntityProduct:   0.8,
	models.EntityCustomer:  0.7,
}

const (
	// criticalRatioThreshold is the critical-discrepancy ratio above which
	// the multiplicative penalty kicks in.
	criticalRatioThreshold = 0.01
	// maxCriticalPenalty caps the multiplicative penalty at 50%.
	maxCriticalPenalty = 0.5
	// lowRateBonusThreshold is the overall discrepancy rate below which
	// the bonus applies.
	lowRateBonusThreshold = 0.01
	// lowRateBonus adds 10% of the remaining gap to 100.
	lowRateBonus = 0.10
	// staleRatioThreshold triggers the flat stale penalty.
	staleRatioThreshold = 0.05
	// stalePenalty is a flat 5% multiplicative penalty.
	stalePenalty = 0.05
)

func severityWeight(s models.Severity) float64 {
	if w, ok := severityWeights[s]; ok {
		return w
	}
	return severityWeights[models.SeverityMedium]
}

func entityWeight(et models.EntityType) float64 {
	if w, ok := entityWeights[et]; ok {
		return w
	}
	return entityWeights[models.EntityProduct]
}

// discrepancyWeight is the contribution of one discrepancy to the
// weighted-impact sum.
func discrepancyWeight(d *models.Discrepancy) float64 {
	return severityWeight(d.Severity) * entityWeight(d.EntityType) * d.ConfidenceScore
}

// CalculateScore computes the accuracy score for a checked record set.
// With zero records checked the score is 100: there was no data to be
// wrong about.
func CalculateScore(totalRecords int, discrepancies []*models.Discrepancy) float64 {
	if totalRecords <= 0 {
		return 100
	}

	var weightSum float64
	var criticalCount, staleCount int
	for _, d := range discrepancies {
		weightSum += discrepancyWeight(d)
		if d.Severity == models.SeverityCritical {
			criticalCount++
		}
		if d.Type == models.DiscrepancyStale {
			staleCount++
		}
	}

	score := 100 - (weightSum/float64(totalRecords))*100

	// Concentrated critical discrepancies degrade trust in the whole set.
	criticalRatio := float64(criticalCount) / float64(totalRecords)
	if criticalRatio > criticalRatioThreshold {
		penalty := criticalRatio * 10
		if penalty > maxCriticalPenalty {
			penalty = maxCriticalPenalty
		}
		score *= 1 - penalty
	}

	discrepancyRate := float64(len(discrepancies)) / float64(totalRecords)
	if discrepancyRate < lowRateBonusThreshold {
		score += (100 - score) * lowRateBonus
	}

	staleRatio := float64(staleCount) / float64(totalRecords)
	if staleRatio > staleRatioThreshold {
		score *= 1 - stalePenalty
	}

	return clampScore(score)
}

// BaseScore computes the unadjusted weighted score, exposed for breakdown
// views and tests.
func BaseScore(totalRecords int, discrepancies []*models.Discrepancy) float64 {
	if totalRecords <= 0 {
		return 100
	}
	var weightSum float64
	for _, d := range discrepancies {
		weightSum += discrepancyWeight(d)
	}
	return clampScore(100 - (weightSum/float64(totalRecords))*100)
}

// Breakdown holds per-bucket accuracy numbers. Buckets intentionally omit
// the top-level adjustments so drill-down views stay simple.
type Breakdown struct {
	ByEntityType      map[models.EntityType]float64      `json:"by_entity_type"`
	BySeverity        map[models.Severity]float64        `json:"by_severity"`
	ByDiscrepancyType map[models.DiscrepancyType]float64 `json:"by_discrepancy_type"`
	CountBySeverity   map[models.Severity]int            `json:"count_by_severity"`
	CountByType       map[models.DiscrepancyType]int     `json:"count_by_type"`
}

// CalculateBreakdown computes per-bucket accuracy as 100 minus the
// bucket's weighted impact as a percentage of total records.
func CalculateBreakdown(totalRecords int, discrepancies []*models.Discrepancy) *Breakdown {
	b := &Breakdown{
		ByEntityType:      make(map[models.EntityType]float64),
		BySeverity:        make(map[models.Severity]float64),
		ByDiscrepancyType: make(map[models.DiscrepancyType]float64),
		CountBySeverity:   make(map[models.Severity]int),
		CountByType:       make(map[models.DiscrepancyType]int),
	}

	entitySums := make(map[models.EntityType]float64)
	severitySums := make(map[models.Severity]float64)
	typeSums := make(map[models.DiscrepancyType]float64)
	for _, d := range discrepancies {
		w := discrepancyWeight(d)
		entitySums[d.EntityType] += w
		severitySums[d.Severity] += w
		typeSums[d.Type] += w
		b.CountBySeverity[d.Severity]++
		b.CountByType[d.Type]++
	}

	for et, sum := range entitySums {
		b.ByEntityType[et] = bucketScore(totalRecords, sum)
	}
	for sev, sum := range severitySums {
		b.BySeverity[sev] = bucketScore(totalRecords, sum)
	}
	for dt, sum := range typeSums {
		b.ByDiscrepancyType[dt] = bucketScore(totalRecords, sum)
	}
	return b
}

func bucketScore(totalRecords int, weightSum float64) float64 {
	if totalRecords <= 0 {
		return 100
	}
	return clampScore(100 - (weightSum/float64(totalRecords))*100)
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
