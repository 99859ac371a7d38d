package checker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/truthsource/syncwatch/internal/models"
	"github.com/truthsource/syncwatch/internal/source"
	"github.com/truthsource/syncwatch/internal/storage"
)

func setupStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "syncwatch-checker-*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	store := storage.NewSQLiteStore(filepath.Join(tmpDir, "test.db"))
	if err := store.Open(); err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate store: %v", err)
	}
	return store
}

// fakeDiff serves canned pairs per entity family for one integration.
type fakeDiff struct {
	mu           sync.Mutex
	integrations []source.Integration
	pairs        map[models.EntityType][]source.Pair
	pairsErr     error
	calls        int

	// blockAfterFirst makes every call after the first wait for ctx
	// cancellation, for abort tests.
	blockAfterFirst bool
	firstDone       chan struct{}
}

func (f *fakeDiff) ActiveIntegrations(context.Context, string) ([]source.Integration, error) {
	return f.integrations, nil
}

func (f *fakeDiff) Pairs(ctx context.Context, integrationID string, et models.EntityType, limit int) ([]source.Pair, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()

	if f.pairsErr != nil {
		return nil, f.pairsErr
	}
	if f.blockAfterFirst {
		if call == 1 {
			defer close(f.firstDone)
		} else {
			<-ctx.Done()
			return nil, ctx.Err()
		}
	}
	return f.pairs[et], nil
}

func (f *fakeDiff) ExpectedRecords(ctx context.Context, integrationID string, et models.EntityType) (int, error) {
	return len(f.pairs[et]), nil
}

func (f *fakeDiff) RecentTransactionDelta(context.Context, string, string, string, time.Time) (float64, error) {
	return 0, nil
}

func pairWithDrift(et models.EntityType, id string, field string, srcVal, tgtVal any, now time.Time) source.Pair {
	mk := func(v any) *source.Record {
		return &source.Record{
			EntityID:     id,
			EntityType:   et,
			Fields:       map[string]any{field: v},
			UpdatedAt:    now.Add(-time.Hour),
			LastSyncedAt: now.Add(-time.Hour),
		}
	}
	return source.Pair{Source: mk(srcVal), Synced: mk(tgtVal)}
}

func cleanPair(et models.EntityType, id string, now time.Time) source.Pair {
	return pairWithDrift(et, id, "name", "same", "same", now)
}

func drainEvents(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("events channel not closed; got %d events so far", len(out))
		}
	}
}

func eventOfKind(events []Event, kind EventKind) *Event {
	for i := range events {
		if events[i].Kind == kind {
			return &events[i]
		}
	}
	return nil
}

func TestRunCompletesScan(t *testing.T) {
	store := setupStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	diff := &fakeDiff{
		integrations: []source.Integration{{ID: "int-1", Name: "shopify", IsActive: true}},
		pairs: map[models.EntityType][]source.Pair{
			models.EntityProduct: {
				cleanPair(models.EntityProduct, "p1", now),
				cleanPair(models.EntityProduct, "p2", now),
			},
			models.EntityInventory: {
				pairWithDrift(models.EntityInventory, "sku-1", "quantity", 100.0, 30.0, now),
				cleanPair(models.EntityInventory, "sku-2", now),
			},
			models.EntityPricing: {
				cleanPair(models.EntityPricing, "price-1", now),
			},
		},
	}

	c := New(store, store.Metrics(), diff, fixedClock{now}, nil)
	checkID, events, err := c.Run(context.Background(), CheckConfig{
		OrganizationID: "org-1",
		Scope:          models.ScopeFull,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	got := drainEvents(t, events)
	if eventOfKind(got, EventStarted) == nil {
		t.Error("missing started event")
	}
	if eventOfKind(got, EventProgress) == nil {
		t.Error("missing progress events")
	}
	completed := eventOfKind(got, EventCompleted)
	if completed == nil {
		t.Fatal("missing completed event")
	}
	if completed.RecordsChecked != 5 {
		t.Errorf("records checked = %d, want 5", completed.RecordsChecked)
	}
	if completed.DiscrepanciesFound != 1 {
		t.Errorf("discrepancies = %d, want 1", completed.DiscrepanciesFound)
	}

	ctx := context.Background()
	check, err := store.Checks().GetByID(ctx, checkID)
	if err != nil {
		t.Fatalf("get check: %v", err)
	}
	if check.Status != models.CheckCompleted {
		t.Errorf("status = %v, want completed", check.Status)
	}
	if check.AccuracyScore == nil || *check.AccuracyScore >= 100 || *check.AccuracyScore <= 0 {
		t.Errorf("score = %v, want in (0,100)", check.AccuracyScore)
	}

	discs, err := store.Discrepancies().ListByCheck(ctx, checkID)
	if err != nil {
		t.Fatalf("list discrepancies: %v", err)
	}
	if len(discs) != 1 {
		t.Fatalf("got %d discrepancies, want 1", len(discs))
	}
	// 70% quantity deviation lands in the critical bucket.
	if discs[0].Severity != models.SeverityCritical {
		t.Errorf("severity = %v, want critical", discs[0].Severity)
	}

	metrics, err := store.Metrics().ListRecent(ctx, "org-1", "", 10)
	if err != nil {
		t.Fatalf("list metrics: %v", err)
	}
	if len(metrics) != 1 {
		t.Fatalf("got %d metrics, want 1", len(metrics))
	}
	if metrics[0].DiscrepancyCount != 1 || metrics[0].TotalRecords != 5 {
		t.Errorf("metric = %+v", metrics[0])
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	store := setupStore(t)
	c := New(store, store.Metrics(), &fakeDiff{}, source.SystemClock{}, nil)

	if _, _, err := c.Run(context.Background(), CheckConfig{}); err == nil {
		t.Error("missing organization id should be rejected")
	}
	if _, _, err := c.Run(context.Background(), CheckConfig{OrganizationID: "org-1", SampleSize: -1}); err == nil {
		t.Error("negative sample size should be rejected")
	}
}

func TestRunDataAccessFailureDiscardsScan(t *testing.T) {
	store := setupStore(t)
	diff := &fakeDiff{
		integrations: []source.Integration{{ID: "int-1", IsActive: true}},
		pairsErr:     errors.New("connection reset"),
	}
	c := New(store, store.Metrics(), diff, source.SystemClock{}, nil)

	checkID, events, err := c.Run(context.Background(), CheckConfig{
		OrganizationID: "org-1",
		Scope:          models.ScopeInventory,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	got := drainEvents(t, events)
	failed := eventOfKind(got, EventFailed)
	if failed == nil {
		t.Fatal("missing failed event")
	}
	if !strings.Contains(failed.Error, "connection reset") {
		t.Errorf("error = %q", failed.Error)
	}

	ctx := context.Background()
	check, err := store.Checks().GetByID(ctx, checkID)
	if err != nil {
		t.Fatalf("get check: %v", err)
	}
	if check.Status != models.CheckFailed {
		t.Errorf("status = %v, want failed", check.Status)
	}

	discs, err := store.Discrepancies().ListByCheck(ctx, checkID)
	if err != nil {
		t.Fatalf("list discrepancies: %v", err)
	}
	if len(discs) != 0 {
		t.Errorf("got %d discrepancies, want 0 after mid-scan failure", len(discs))
	}
}

func TestAbortPersistsCollectedDiscrepancies(t *testing.T) {
	store := setupStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	diff := &fakeDiff{
		integrations: []source.Integration{{ID: "int-1", IsActive: true}},
		pairs: map[models.EntityType][]source.Pair{
			models.EntityProduct: {
				pairWithDrift(models.EntityProduct, "p1", "name", "Widget", "Gadget", now),
			},
		},
		blockAfterFirst: true,
		firstDone:       make(chan struct{}),
	}

	c := New(store, store.Metrics(), diff, fixedClock{now}, nil)
	checkID, events, err := c.Run(context.Background(), CheckConfig{
		OrganizationID: "org-1",
		Scope:          models.ScopeFull,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	<-diff.firstDone
	if !c.Abort(checkID) {
		t.Fatal("abort should find the running check")
	}

	got := drainEvents(t, events)
	failed := eventOfKind(got, EventFailed)
	if failed == nil {
		t.Fatal("missing failed event")
	}
	if failed.Error != "aborted by user" {
		t.Errorf("error = %q, want aborted by user", failed.Error)
	}

	ctx := context.Background()
	check, err := store.Checks().GetByID(ctx, checkID)
	if err != nil {
		t.Fatalf("get check: %v", err)
	}
	if check.Status != models.CheckFailed || check.ErrorMessage != "aborted by user" {
		t.Errorf("status = %v message = %q", check.Status, check.ErrorMessage)
	}

	discs, err := store.Discrepancies().ListByCheck(ctx, checkID)
	if err != nil {
		t.Fatalf("list discrepancies: %v", err)
	}
	if len(discs) != 1 {
		t.Errorf("got %d discrepancies, want the one collected before abort", len(discs))
	}

	if c.Abort(checkID) {
		t.Error("abort on a finished check should report false")
	}
}

func TestProgressFallback(t *testing.T) {
	s := &scanState{intsTotal: 4, intsDone: 1}
	if got := s.progressPct(); got != 25 {
		t.Errorf("fallback progress = %v, want 25", got)
	}

	s = &scanState{expectedTotal: 200, recordsDone: 50}
	if got := s.progressPct(); got != 25 {
		t.Errorf("record progress = %v, want 25", got)
	}

	// Never reports past 100 even when samples run long.
	s = &scanState{expectedTotal: 100, recordsDone: 150}
	if got := s.progressPct(); got != 100 {
		t.Errorf("over-sample progress = %v, want 100", got)
	}
}
