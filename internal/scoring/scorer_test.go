package scoring

import (
	"math"
	"testing"

	"github.com/truthsource/syncwatch/internal/models"
)

func disc(et models.EntityType, dt models.DiscrepancyType, sev models.Severity, conf float64) *models.Discrepancy {
	return &models.Discrepancy{
		EntityType:      et,
		Type:            dt,
		Severity:        sev,
		ConfidenceScore: conf,
	}
}

func TestCalculateScoreZeroRecords(t *testing.T) {
	if got := CalculateScore(0, nil); got != 100 {
		t.Errorf("score with zero records = %v, want 100", got)
	}
	discs := []*models.Discrepancy{disc(models.EntityInventory, models.DiscrepancyMismatch, models.SeverityCritical, 1)}
	if got := CalculateScore(0, discs); got != 100 {
		t.Errorf("score with zero records and discrepancies = %v, want 100", got)
	}
}

func TestCalculateScorePerfect(t *testing.T) {
	if got := CalculateScore(500, nil); got != 100 {
		t.Errorf("score with no discrepancies = %v, want 100", got)
	}
}

// One critical inventory mismatch (confidence 0.95) and two low pricing
// mismatches (confidence 0.7) over 1000 records: base is
// 100 - ((1.0*1.0*0.95 + 2*0.1*0.9*0.7)/1000)*100, the critical ratio is
// under 1% so no penalty applies, and the sub-1% discrepancy rate earns
// the bonus, so the final score lands slightly above the base.
func TestCalculateScoreEndToEndScenario(t *testing.T) {
	discs := []*models.Discrepancy{
		disc(models.EntityInventory, models.DiscrepancyMismatch, models.SeverityCritical, 0.95),
		disc(models.EntityPricing, models.DiscrepancyMismatch, models.SeverityLow, 0.7),
		disc(models.EntityPricing, models.DiscrepancyMismatch, models.SeverityLow, 0.7),
	}

	base := BaseScore(1000, discs)
	wantBase := 100 - ((1.0*1.0*0.95 + 2*0.1*0.9*0.7) / 1000 * 100)
	if math.Abs(base-wantBase) > 1e-9 {
		t.Errorf("base score = %v, want %v", base, wantBase)
	}

	final := CalculateScore(1000, discs)
	if final <= base {
		t.Errorf("final score %v should exceed base %v (low-rate bonus)", final, base)
	}
	wantFinal := wantBase + (100-wantBase)*0.10
	if math.Abs(final-wantFinal) > 1e-9 {
		t.Errorf("final score = %v, want %v", final, wantFinal)
	}
}

func TestCalculateScoreCriticalPenalty(t *testing.T) {
	// 2% critical ratio: the multiplicative penalty must pull the adjusted
	// score strictly below the base score.
	var discs []*models.Discrepancy
	for i := 0; i < 2; i++ {
		discs = append(discs, disc(models.EntityInventory, models.DiscrepancyMismatch, models.SeverityCritical, 1))
	}
	base := BaseScore(100, discs)
	final := CalculateScore(100, discs)
	if final >= base {
		t.Errorf("adjusted score %v should be strictly below base %v", final, base)
	}
}

func TestCalculateScoreCriticalPenaltyCapped(t *testing.T) {
	// Even a fully critical set loses at most 50% multiplicatively.
	var discs []*models.Discrepancy
	for i := 0; i < 10; i++ {
		discs = append(discs, disc(models.EntityCustomer, models.DiscrepancyMismatch, models.SeverityCritical, 0.5))
	}
	base := BaseScore(100, discs)
	final := CalculateScore(100, discs)
	if final < base*0.5-1e-9 {
		t.Errorf("penalty exceeded 50%%: base %v, final %v", base, final)
	}
}

func TestCalculateScoreStalePenalty(t *testing.T) {
	// 6% stale ratio triggers the flat 5% penalty.
	var discs []*models.Discrepancy
	for i := 0; i < 6; i++ {
		discs = append(discs, disc(models.EntityProduct, models.DiscrepancyStale, models.SeverityMedium, 1))
	}
	base := BaseScore(100, discs)
	final := CalculateScore(100, discs)
	want := base * 0.95
	if math.Abs(final-want) > 1e-9 {
		t.Errorf("stale-adjusted score = %v, want %v", final, want)
	}
}

func TestCalculateScoreClamped(t *testing.T) {
	var discs []*models.Discrepancy
	for i := 0; i < 500; i++ {
		discs = append(discs, disc(models.EntityInventory, models.DiscrepancyMismatch, models.SeverityCritical, 1))
	}
	if got := CalculateScore(100, discs); got != 0 {
		t.Errorf("score = %v, want clamped to 0", got)
	}
}

func TestCalculateBreakdown(t *testing.T) {
	discs := []*models.Discrepancy{
		disc(models.EntityInventory, models.DiscrepancyMismatch, models.SeverityCritical, 1),
		disc(models.EntityPricing, models.DiscrepancyStale, models.SeverityLow, 1),
	}
	b := CalculateBreakdown(100, discs)

	// inventory bucket: 100 - (1.0*1.0*1.0/100)*100 = 99
	if got := b.ByEntityType[models.EntityInventory]; math.Abs(got-99) > 1e-9 {
		t.Errorf("inventory breakdown = %v, want 99", got)
	}
	// pricing bucket: 100 - (0.1*0.9*1.0/100)*100 = 99.91
	if got := b.ByEntityType[models.EntityPricing]; math.Abs(got-99.91) > 1e-9 {
		t.Errorf("pricing breakdown = %v, want 99.91", got)
	}
	if b.CountBySeverity[models.SeverityCritical] != 1 {
		t.Errorf("critical count = %d, want 1", b.CountBySeverity[models.SeverityCritical])
	}
	if b.CountByType[models.DiscrepancyStale] != 1 {
		t.Errorf("stale count = %d, want 1", b.CountByType[models.DiscrepancyStale])
	}
}
