package checker

import (
	"context"
	"testing"
	"time"

	"github.com/truthsource/syncwatch/internal/models"
	"github.com/truthsource/syncwatch/internal/source"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// nullDelta reports no recent transactions for every query.
type nullDelta struct{}

func (nullDelta) ActiveIntegrations(context.Context, string) ([]source.Integration, error) {
	return nil, nil
}
func (nullDelta) Pairs(context.Context, string, models.EntityType, int) ([]source.Pair, error) {
	return nil, nil
}
func (nullDelta) ExpectedRecords(context.Context, string, models.EntityType) (int, error) {
	return 0, nil
}
func (nullDelta) RecentTransactionDelta(context.Context, string, string, string, time.Time) (float64, error) {
	return 0, nil
}

func newComparer(now time.Time) *comparer {
	return &comparer{
		diff:          nullDelta{},
		clock:         fixedClock{now},
		txnTolerance:  1,
		integrationID: "int-1",
	}
}

func record(et models.EntityType, id string, fields map[string]any, syncedAgo time.Duration, now time.Time) *source.Record {
	return &source.Record{
		EntityID:     id,
		EntityType:   et,
		Fields:       fields,
		UpdatedAt:    now.Add(-time.Hour),
		LastSyncedAt: now.Add(-syncedAgo),
	}
}

func TestDeviationSeverityBreakpoints(t *testing.T) {
	tests := []struct {
		name      string
		entity    models.EntityType
		deviation float64
		want      models.Severity
	}{
		{"inventory just below critical", models.EntityInventory, 49.9, models.SeverityHigh},
		{"inventory just above critical", models.EntityInventory, 50.1, models.SeverityCritical},
		{"inventory at boundary", models.EntityInventory, 50.0, models.SeverityHigh},
		{"inventory high", models.EntityInventory, 21, models.SeverityHigh},
		{"inventory medium", models.EntityInventory, 6, models.SeverityMedium},
		{"inventory low", models.EntityInventory, 5, models.SeverityLow},
		{"pricing critical", models.EntityPricing, 10.1, models.SeverityCritical},
		{"pricing at boundary", models.EntityPricing, 10.0, models.SeverityHigh},
		{"pricing high", models.EntityPricing, 5.5, models.SeverityHigh},
		{"pricing medium", models.EntityPricing, 1.5, models.SeverityMedium},
		{"pricing low", models.EntityPricing, 0.9, models.SeverityLow},
		{"product uses pricing breakpoints", models.EntityProduct, 11, models.SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deviationSeverity(tt.entity, tt.deviation); got != tt.want {
				t.Errorf("deviationSeverity(%s, %v) = %v, want %v", tt.entity, tt.deviation, got, tt.want)
			}
		})
	}
}

func TestCompareMissingRecord(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cmp := newComparer(now)

	src := record(models.EntityProduct, "p1", map[string]any{"name": "Widget"}, time.Hour, now)
	findings := cmp.comparePair(context.Background(), source.Pair{Source: src})
	if len(findings) != 1 {
		t.Fatalf("got %d findings, want 1", len(findings))
	}
	f := findings[0]
	if f.kind != models.DiscrepancyMissing || f.severity != models.SeverityHigh {
		t.Errorf("kind = %v severity = %v", f.kind, f.severity)
	}
	if f.confidence != confMissingMapped {
		t.Errorf("confidence = %v, want %v for a previously synced entity", f.confidence, confMissingMapped)
	}

	src.LastSyncedAt = time.Time{}
	findings = cmp.comparePair(context.Background(), source.Pair{Source: src})
	if findings[0].confidence != confMissingNeverSynced {
		t.Errorf("confidence = %v, want %v for a never-synced entity", findings[0].confidence, confMissingNeverSynced)
	}
}

func TestCompareMonetaryEpsilon(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cmp := newComparer(now)

	pair := source.Pair{
		Source: record(models.EntityPricing, "price-1", map[string]any{"price": 19.99}, time.Hour, now),
		Synced: record(models.EntityPricing, "price-1", map[string]any{"price": 19.985}, time.Hour, now),
	}
	if findings := cmp.comparePair(context.Background(), pair); len(findings) != 0 {
		t.Errorf("sub-epsilon price difference should not be a discrepancy: %+v", findings)
	}

	pair.Synced.Fields["price"] = 21.99 // ~10.005% deviation
	findings := cmp.comparePair(context.Background(), pair)
	if len(findings) != 1 {
		t.Fatalf("got %d findings, want 1", len(findings))
	}
	if findings[0].severity != models.SeverityCritical {
		t.Errorf("severity = %v, want critical above 10%% deviation", findings[0].severity)
	}
}

func TestCompareQuantityExact(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cmp := newComparer(now)

	pair := source.Pair{
		Source: record(models.EntityInventory, "sku-1", map[string]any{"quantity": 100.0}, time.Hour, now),
		Synced: record(models.EntityInventory, "sku-1", map[string]any{"quantity": 97.0}, time.Hour, now),
	}
	findings := cmp.comparePair(context.Background(), pair)
	if len(findings) != 1 {
		t.Fatalf("got %d findings, want 1", len(findings))
	}
	f := findings[0]
	if f.kind != models.DiscrepancyMismatch || f.severity != models.SeverityLow {
		t.Errorf("kind = %v severity = %v, want low mismatch for 3%% drift", f.kind, f.severity)
	}
	dev := f.metadata["deviation_pct"].(float64)
	if dev < 2.999 || dev > 3.001 {
		t.Errorf("deviation = %v, want ~3", dev)
	}
}

// deltaSource explains a fixed quantity difference as recent transactions.
type deltaSource struct {
	nullDelta
	delta float64
}

func (s deltaSource) RecentTransactionDelta(context.Context, string, string, string, time.Time) (float64, error) {
	return s.delta, nil
}

func TestCompareTransactionReconciliation(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cmp := newComparer(now)
	cmp.diff = deltaSource{delta: 3}

	// Source is 3 ahead of synced, fully explained by transactions since
	// the last sync.
	pair := source.Pair{
		Source: record(models.EntityInventory, "sku-1", map[string]any{"quantity": 100.0}, time.Hour, now),
		Synced: record(models.EntityInventory, "sku-1", map[string]any{"quantity": 97.0}, time.Hour, now),
	}
	if findings := cmp.comparePair(context.Background(), pair); len(findings) != 0 {
		t.Errorf("transaction-explained difference should not be a discrepancy: %+v", findings)
	}

	// Residual beyond tolerance still counts.
	cmp.diff = deltaSource{delta: 10}
	findings := cmp.comparePair(context.Background(), pair)
	if len(findings) != 1 {
		t.Errorf("got %d findings, want 1 for unexplained residual", len(findings))
	}
}

func TestCompareStale(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cmp := newComparer(now)

	tests := []struct {
		name     string
		age      time.Duration
		want     models.Severity
		expected bool
	}{
		{"fresh", 2 * time.Hour, "", false},
		{"just past a day", 25 * time.Hour, models.SeverityMedium, true},
		{"past three days", 80 * time.Hour, models.SeverityHigh, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair := source.Pair{
				Source: record(models.EntityProduct, "p1", map[string]any{"name": "Widget"}, tt.age, now),
				Synced: record(models.EntityProduct, "p1", map[string]any{"name": "Widget"}, tt.age, now),
			}
			findings := cmp.comparePair(context.Background(), pair)
			if !tt.expected {
				if len(findings) != 0 {
					t.Errorf("unexpected findings: %+v", findings)
				}
				return
			}
			if len(findings) != 1 {
				t.Fatalf("got %d findings, want 1", len(findings))
			}
			f := findings[0]
			if f.kind != models.DiscrepancyStale || f.severity != tt.want {
				t.Errorf("kind = %v severity = %v, want stale/%v", f.kind, f.severity, tt.want)
			}
			if f.confidence != 1.0 {
				t.Errorf("confidence = %v, want 1.0", f.confidence)
			}
		})
	}
}

func TestCompareStringSimilarity(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cmp := newComparer(now)

	tests := []struct {
		name string
		src  string
		tgt  string
		kind models.DiscrepancyType
		none bool
	}{
		{"equal", "Blue Widget", "Blue Widget", "", true},
		{"near duplicate", "Blue Widget", "Blue Widgets", models.DiscrepancyDuplicate, false},
		{"outright mismatch", "Blue Widget", "Red Gadget", models.DiscrepancyMismatch, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair := source.Pair{
				Source: record(models.EntityProduct, "p1", map[string]any{"name": tt.src}, time.Hour, now),
				Synced: record(models.EntityProduct, "p1", map[string]any{"name": tt.tgt}, time.Hour, now),
			}
			findings := cmp.comparePair(context.Background(), pair)
			if tt.none {
				if len(findings) != 0 {
					t.Errorf("unexpected findings: %+v", findings)
				}
				return
			}
			if len(findings) != 1 {
				t.Fatalf("got %d findings, want 1", len(findings))
			}
			f := findings[0]
			if f.kind != tt.kind {
				t.Errorf("kind = %v, want %v", f.kind, tt.kind)
			}
			if f.severity != models.SeverityLow {
				t.Errorf("severity = %v, want low", f.severity)
			}
		})
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"", "", 1, 1},
		{"abc", "abc", 1, 1},
		{"abc", "abd", 0.66, 0.67},
		{"abc", "xyz", 0, 0},
	}
	for _, tt := range tests {
		got := similarity(tt.a, tt.b)
		if got < tt.min || got > tt.max {
			t.Errorf("similarity(%q, %q) = %v, want in [%v, %v]", tt.a, tt.b, got, tt.min, tt.max)
		}
	}
}
