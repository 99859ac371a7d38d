// Package anomaly detects unusual discrepancy patterns against historical
// baselines. Three independent detectors run per (entityType, fieldName)
// group: statistical z-score, cyclical pattern, and fixed threshold.
package anomaly

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/truthsource/syncwatch/internal/models"
	"github.com/truthsource/syncwatch/internal/source"
)

const (
	// minStatisticalHistory gates the z-score detector.
	minStatisticalHistory = 10
	// minPatternHistory gates cyclical pattern detection.
	minPatternHistory = 14
	// baseZThreshold is the |z| cutoff at default sensitivity.
	baseZThreshold = 2.5
	// patternFoundConfidence is the minimum confidence to accept a
	// cyclical pattern as real.
	patternFoundConfidence = 0.8
	// patternDeviationThreshold flags deviation from the pattern-predicted
	// count.
	patternDeviationThreshold = 0.5
	// suddenChangeThreshold flags >100% change vs the most recent period.
	suddenChangeThreshold = 1.0

	// Threshold detector cutoffs and fixed confidences.
	highConfidenceMismatch = 0.9
	mismatchBurstCount     = 5
	staleRatioCutoff       = 0.3
	criticalThresholdConf  = 1.0
	mismatchBurstConf      = 0.9
	staleRatioConf         = 0.85
	defaultSensitivity     = 0.5
)

// GroupKey identifies a discrepancy group for history tracking.
type GroupKey struct {
	EntityType models.EntityType
	FieldName  string
}

// String renders the group key for use as an anomaly entity id.
func (k GroupKey) String() string {
	return fmt.Sprintf("%s/%s", k.EntityType, k.FieldName)
}

// HistoryPoint is one historical discrepancy count for a group.
type HistoryPoint struct {
	Timestamp time.Time
	Count     float64
}

// Input carries the current discrepancy set and per-group history.
// History slices are ordered oldest to newest.
type Input struct {
	Discrepancies []*models.Discrepancy
	History       map[GroupKey][]HistoryPoint
}

// Config tunes detection.
type Config struct {
	// Sensitivity in [0,1]. Higher sensitivity lowers the statistical
	// threshold and produces more anomalies. Defaults to 0.5, which keeps
	// the base |z| cutoff at 2.5.
	Sensitivity float64
}

// Detector runs the three anomaly detectors over a discrepancy set.
type Detector struct {
	sensitivity float64
	clock       source.Clock
}

// New creates a detector.
func New(cfg Config, clock source.Clock) *Detector {
	s := cfg.Sensitivity
	if s <= 0 || s > 1 {
		s = defaultSensitivity
	}
	if clock == nil {
		clock = source.SystemClock{}
	}
	return &Detector{sensitivity: s, clock: clock}
}

// zThreshold scales the base cutoff by sensitivity. At the default 0.5 the
// factor is 1.0; sensitivity 1.0 lowers the cutoff by a third.
func (d *Detector) zThreshold() float64 {
	return baseZThreshold * (2.0 - d.sensitivity) / 1.5
}

// Detect runs all detectors, deduplicates per (entityID, anomalyType)
// keeping the higher-confidence instance, and returns results sorted by
// confidence descending.
func (d *Detector) Detect(in Input) []*models.AnomalyResult {
	groups := groupDiscrepancies(in.Discrepancies)

	var results []*models.AnomalyResult
	for key, discs := range groups {
		current := float64(len(discs))
		history := in.History[key]

		if r := d.detectStatistical(key, current, history); r != nil {
			results = append(results, r)
		}
		results = append(results, d.detectPattern(key, current, history)...)
	}
	results = append(results, d.detectThreshold(in.Discrepancies)...)

	return dedupe(results)
}

func groupDiscrepancies(discs []*models.Discrepancy) map[GroupKey][]*models.Discrepancy {
	groups := make(map[GroupKey][]*models.Discrepancy)
	for _, d := range discs {
		key := GroupKey{EntityType: d.EntityType, FieldName: d.FieldName}
		groups[key] = append(groups[key], d)
	}
	return groups
}

// detectStatistical flags groups whose current count deviates from the
// historical mean by more than the z threshold. Requires at least 10
// historical points.
func (d *Detector) detectStatistical(key GroupKey, current float64, history []HistoryPoint) *models.AnomalyResult {
	if len(history) < minStatisticalHistory {
		return nil
	}

	counts := make([]float64, len(history))
	for i, p := range history {
		counts[i] = p.Count
	}
	m := meanOf(counts)
	sd := stdDevOf(counts, m)

	var z float64
	if sd < 1e-9 {
		if math.Abs(current-m) < 1e-9 {
			return nil
		}
		// Perfectly flat history makes any change infinitely surprising.
		z = math.Inf(1)
	} else {
		z = (current - m) / sd
	}

	if math.Abs(z) <= d.zThreshold() {
		return nil
	}

	avg := m
	return &models.AnomalyResult{
		EntityID:          key.String(),
		AnomalyType:       models.AnomalyStatistical,
		Confidence:        zConfidence(math.Abs(z)),
		DeviationScore:    math.Abs(z),
		HistoricalAverage: &avg,
		CurrentValue:      current,
		Explanation: fmt.Sprintf("discrepancy count %.0f deviates from historical mean %.1f (z=%.2f)",
			current, m, z),
	}
}

// zConfidence is a step function of |z|.
func zConfidence(absZ float64) float64 {
	switch {
	case absZ >= 3:
		return 0.99
	case absZ >= 2.5:
		return 0.95
	case absZ >= 2:
		return 0.90
	case absZ >= 1.5:
		return 0.80
	default:
		return 0.70
	}
}

// detectPattern looks for weekly or daily cyclical structure in the
// history and flags deviation from the pattern-predicted count for the
// current period. A second, pattern-independent check flags a sudden
// change vs the single most recent point.
func (d *Detector) detectPattern(key GroupKey, current float64, history []HistoryPoint) []*models.AnomalyResult {
	var results []*models.AnomalyResult

	// Sudden-change check needs only one historical point.
	if len(history) >= 1 {
		prev := history[len(history)-1].Count
		if prev > 0 {
			change := math.Abs(current-prev) / prev
			if change > suddenChangeThreshold {
				avg := prev
				results = append(results, &models.AnomalyResult{
					EntityID:          key.String(),
					AnomalyType:       models.AnomalyPattern,
					Confidence:        0.80,
					DeviationScore:    change,
					HistoricalAverage: &avg,
					CurrentValue:      current,
					Explanation: fmt.Sprintf("sudden change: count moved %.0f%% vs most recent period (%.0f -> %.0f)",
						change*100, prev, current),
				})
			}
		}
	}

	if len(history) < minPatternHistory {
		return results
	}

	now := d.clock.Now()
	for _, cycle := range []cycle{weeklyCycle{}, dailyCycle{}} {
		conf, predicted, ok := fitCycle(cycle, history, now)
		if !ok || conf <= patternFoundConfidence {
			continue
		}
		if predicted <= 0 {
			continue
		}
		deviation := math.Abs(current-predicted) / predicted
		if deviation <= patternDeviationThreshold {
			continue
		}
		avg := predicted
		results = append(results, &models.AnomalyResult{
			EntityID:          key.String(),
			AnomalyType:       models.AnomalyPattern,
			Confidence:        clamp01(conf / (1 + deviation/2)),
			DeviationScore:    deviation,
			HistoricalAverage: &avg,
			CurrentValue:      current,
			Explanation: fmt.Sprintf("%s pattern predicted %.1f, observed %.0f (%.0f%% deviation)",
				cycle.name(), predicted, current, deviation*100),
		})
		break // prefer the first (coarser) cycle that fits
	}

	return results
}

// cycle buckets timestamps into a repeating period.
type cycle interface {
	name() string
	bucket(t time.Time) int
	buckets() int
}

type weeklyCycle struct{}

func (weeklyCycle) name() string           { return "weekly" }
func (weeklyCycle) bucket(t time.Time) int { return int(t.Weekday()) }
func (weeklyCycle) buckets() int           { return 7 }

type dailyCycle struct{}

func (dailyCycle) name() string           { return "daily" }
func (dailyCycle) bucket(t time.Time) int { return t.Hour() }
func (dailyCycle) buckets() int           { return 24 }

// fitCycle computes pattern confidence as one minus the ratio of average
// within-bucket variance to overall variance, and the predicted count for
// the bucket containing now.
func fitCycle(c cycle, history []HistoryPoint, now time.Time) (confidence, predicted float64, ok bool) {
	counts := make([]float64, len(history))
	buckets := make([][]float64, c.buckets())
	for i, p := range history {
		counts[i] = p.Count
		b := c.bucket(p.Timestamp)
		buckets[b] = append(buckets[b], p.Count)
	}

	overallMean := meanOf(counts)
	overallVar := variance(counts, overallMean)
	if overallVar < 1e-9 {
		return 0, 0, false
	}

	var withinSum float64
	var withinBuckets int
	for _, vals := range buckets {
		if len(vals) < 2 {
			continue
		}
		m := meanOf(vals)
		withinSum += variance(vals, m)
		withinBuckets++
	}
	if withinBuckets == 0 {
		return 0, 0, false
	}

	confidence = 1 - (withinSum/float64(withinBuckets))/overallVar
	currentBucket := buckets[c.bucket(now)]
	if len(currentBucket) == 0 {
		return confidence, 0, false
	}
	return confidence, meanOf(currentBucket), true
}

// detectThreshold applies fixed rules that run regardless of history.
func (d *Detector) detectThreshold(discs []*models.Discrepancy) []*models.AnomalyResult {
	var results []*models.AnomalyResult

	var highConfMismatches, staleCount int
	for _, disc := range discs {
		if disc.Severity == models.SeverityCritical {
			results = append(results, &models.AnomalyResult{
				EntityID:       disc.EntityID,
				AnomalyType:    models.AnomalyThreshold,
				Confidence:     criticalThresholdConf,
				DeviationScore: float64(disc.Severity.Rank()),
				CurrentValue:   1,
				Explanation:    fmt.Sprintf("critical %s discrepancy on %s.%s", disc.Type, disc.EntityType, disc.FieldName),
			})
		}
		if disc.Type == models.DiscrepancyMismatch && disc.ConfidenceScore > highConfidenceMismatch {
			highConfMismatches++
		}
		if disc.Type == models.DiscrepancyStale {
			staleCount++
		}
	}

	if highConfMismatches > mismatchBurstCount {
		results = append(results, &models.AnomalyResult{
			EntityID:       "high_confidence_mismatches",
			AnomalyType:    models.AnomalyThreshold,
			Confidence:     mismatchBurstConf,
			DeviationScore: float64(highConfMismatches),
			CurrentValue:   float64(highConfMismatches),
			Explanation:    fmt.Sprintf("%d high-confidence mismatches detected", highConfMismatches),
		})
	}

	if len(discs) > 0 {
		staleRatio := float64(staleCount) / float64(len(discs))
		if staleRatio > staleRatioCutoff {
			results = append(results, &models.AnomalyResult{
				EntityID:       "stale_records",
				AnomalyType:    models.AnomalyThreshold,
				Confidence:     staleRatioConf,
				DeviationScore: staleRatio,
				CurrentValue:   staleRatio,
				Explanation:    fmt.Sprintf("%.0f%% of discrepancies are stale records", staleRatio*100),
			})
		}
	}

	return results
}

// dedupe keeps the higher-confidence result per (entityID, anomalyType)
// and sorts by confidence descending.
func dedupe(results []*models.AnomalyResult) []*models.AnomalyResult {
	type dedupeKey struct {
		entityID string
		kind     models.AnomalyType
	}
	best := make(map[dedupeKey]*models.AnomalyResult)
	for _, r := range results {
		k := dedupeKey{r.EntityID, r.AnomalyType}
		if existing, ok := best[k]; !ok || r.Confidence > existing.Confidence {
			best[k] = r
		}
	}

	out := make([]*models.AnomalyResult, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].EntityID < out[j].EntityID
	})
	return out
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func variance(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(values))
}

func stdDevOf(values []float64, mean float64) float64 {
	return math.Sqrt(variance(values, mean))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
