package remediation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/truthsource/syncwatch/internal/models"
	"github.com/truthsource/syncwatch/internal/source"
	"github.com/truthsource/syncwatch/internal/storage"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func setupStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "syncwatch-remediation-*")
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

func seedDiscrepancy(t *testing.T, store storage.Store, mutate func(*models.Discrepancy)) *models.Discrepancy {
	t.Helper()
	ctx := context.Background()

	check := &models.AccuracyCheck{
		ID:             uuid.New().String(),
		OrganizationID: "org-1",
		Scope:          models.ScopeFull,
		Status:         models.CheckRunning,
		StartedAt:      time.Now().UTC(),
	}
	if err := store.Checks().Create(ctx, check); err != nil {
		t.Fatalf("seed check: %v", err)
	}

	d := &models.Discrepancy{
		ID:              uuid.New().String(),
		AccuracyCheckID: check.ID,
		OrganizationID:  "org-1",
		IntegrationID:   "int-1",
		EntityType:      models.EntityPricing,
		EntityID:        "price-1",
		FieldName:       "price",
		SourceValue:     19.99,
		TargetValue:     24.99,
		Type:            models.DiscrepancyMismatch,
		Severity:        models.SeverityHigh,
		ConfidenceScore: 0.95,
		Status:          models.DiscrepancyOpen,
		DetectedAt:      time.Now().UTC(),
	}
	if mutate != nil {
		mutate(d)
	}
	if err := store.Discrepancies().InsertBatch(ctx, []*models.Discrepancy{d}); err != nil {
		t.Fatalf("seed discrepancy: %v", err)
	}
	return d
}

// fakeTrigger serves sync jobs with a fixed terminal status.
type fakeTrigger struct {
	mu       sync.Mutex
	requests int
	status   source.SyncJobStatus
	err      error
}

func (f *fakeTrigger) RequestSync(ctx context.Context, integrationID string, et models.EntityType, entityID string, force bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.requests++
	return fmt.Sprintf("job-%d", f.requests), nil
}

func (f *fakeTrigger) SyncJobStatus(ctx context.Context, jobID string) (source.SyncJobStatus, error) {
	return f.status, nil
}

// fakeFields is an in-memory field store counting writes.
type fakeFields struct {
	mu       sync.Mutex
	values   map[string]any
	writes   int
	readErr  error
	writeErr error

	// miswrite makes writes land a different value, for verification
	// failure tests.
	miswrite any
}

func fieldKey(entityID, field string) string { return entityID + "/" + field }

func (f *fakeFields) ReadField(ctx context.Context, integrationID string, et models.EntityType, entityID, field string) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.values[fieldKey(entityID, field)], nil
}

func (f *fakeFields) WriteField(ctx context.Context, integrationID string, et models.EntityType, entityID, field string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes++
	if f.miswrite != nil {
		value = f.miswrite
	}
	if f.values == nil {
		f.values = make(map[string]any)
	}
	f.values[fieldKey(entityID, field)] = value
	return nil
}

func (f *fakeFields) ClearCache(ctx context.Context, integrationID string, et models.EntityType, entityID string) error {
	return nil
}

func (f *fakeFields) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func fastOptions() *Options {
	return &Options{
		Throttle:         time.Millisecond,
		SyncPollTimeout:  50 * time.Millisecond,
		SyncPollInterval: 5 * time.Millisecond,
		MaxChangesPerRun: 100,
		QueueSize:        8,
	}
}

func newEngine(store storage.Store, trigger source.SyncTrigger, fields source.FieldStore) *Engine {
	return NewEngine(store, trigger, fields, fixedClock{time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}, fastOptions())
}

func TestSelectAction(t *testing.T) {
	tests := []struct {
		name   string
		dtype  models.DiscrepancyType
		entity models.EntityType
		want   ActionType
	}{
		{"stale inventory", models.DiscrepancyStale, models.EntityInventory, ActionSyncRetry},
		{"stale pricing", models.DiscrepancyStale, models.EntityPricing, ActionForceRefresh},
		{"stale product", models.DiscrepancyStale, models.EntityProduct, ActionCacheClear},
		{"missing product", models.DiscrepancyMissing, models.EntityProduct, ActionSyncRetry},
		{"missing inventory", models.DiscrepancyMissing, models.EntityInventory, ActionSyncRetry},
		{"missing customer unmapped", models.DiscrepancyMissing, models.EntityCustomer, ActionNone},
		{"mismatch pricing", models.DiscrepancyMismatch, models.EntityPricing, ActionValueUpdate},
		{"mismatch inventory", models.DiscrepancyMismatch, models.EntityInventory, ActionSyncRetry},
		{"mismatch customer unmapped", models.DiscrepancyMismatch, models.EntityCustomer, ActionNone},
		{"duplicate never auto-fixed", models.DiscrepancyDuplicate, models.EntityProduct, ActionNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &models.Discrepancy{Type: tt.dtype, EntityType: tt.entity, FieldName: "f", SourceValue: 1.0}
			if got := SelectAction(d); got.Type != tt.want {
				t.Errorf("SelectAction(%s, %s) = %v, want %v", tt.dtype, tt.entity, got.Type, tt.want)
			}
		})
	}

	// Variant payloads.
	stale := SelectAction(&models.Discrepancy{Type: models.DiscrepancyStale, EntityType: models.EntityInventory})
	if !stale.ForceRefresh {
		t.Error("stale inventory should request a forced refresh")
	}
	missing := SelectAction(&models.Discrepancy{Type: models.DiscrepancyMissing, EntityType: models.EntityProduct})
	if !missing.Create {
		t.Error("missing product should request record creation")
	}
	update := SelectAction(&models.Discrepancy{Type: models.DiscrepancyMismatch, EntityType: models.EntityPricing, FieldName: "price", SourceValue: 9.99})
	if update.Field != "price" || update.Value != 9.99 {
		t.Errorf("value_update payload = %+v", update)
	}
}

func TestValidateValue(t *testing.T) {
	tests := []struct {
		name    string
		entity  models.EntityType
		field   string
		value   any
		wantErr bool
		errMsg  string
	}{
		{"valid quantity", models.EntityInventory, "quantity", 42.0, false, ""},
		{"negative quantity", models.EntityInventory, "quantity", -5.0, true, "non-negative"},
		{"fractional quantity", models.EntityInventory, "quantity", 1.5, true, "whole"},
		{"huge quantity", models.EntityInventory, "quantity", 2_000_000.0, true, "exceeds limit"},
		{"non-numeric quantity", models.EntityInventory, "quantity", "ten", true, "not numeric"},
		{"valid price", models.EntityPricing, "price", 19.99, false, ""},
		{"negative price", models.EntityPricing, "price", -1.0, true, "non-negative"},
		{"valid product name", models.EntityProduct, "name", "Widget", false, ""},
		{"empty product name", models.EntityProduct, "name", "", true, "empty"},
		{"unknown field", models.EntityCustomer, "loyalty_tier", "gold", true, "not auto-writable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateValue(tt.entity, tt.field, tt.value)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("error = %q, want substring %q", err, tt.errMsg)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestAttemptValueUpdateSuccess(t *testing.T) {
	store := setupStore(t)
	fields := &fakeFields{values: map[string]any{fieldKey("price-1", "price"): 24.99}}
	e := newEngine(store, &fakeTrigger{status: source.SyncJobCompleted}, fields)

	d := seedDiscrepancy(t, store, nil)
	r := e.Attempt(context.Background(), d)
	if !r.Success || r.Action != ActionValueUpdate {
		t.Fatalf("result = %+v", r)
	}
	if r.Result["before_state"] != 24.99 || r.Result["after_state"] != 19.99 {
		t.Errorf("audit states = %v / %v", r.Result["before_state"], r.Result["after_state"])
	}

	ctx := context.Background()
	got, err := store.Discrepancies().GetByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("get discrepancy: %v", err)
	}
	if got.Status != models.DiscrepancyResolved || got.ResolutionType != models.ResolutionAutoFixed {
		t.Errorf("discrepancy = %v/%v, want resolved/auto_fixed", got.Status, got.ResolutionType)
	}

	logs, err := store.Remediations().ListByDiscrepancy(ctx, d.ID)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("got %d logs, want 1", len(logs))
	}
	if logs[0].Status != models.RemediationCompleted || !logs[0].Success {
		t.Errorf("log = %+v", logs[0])
	}
}

func TestAttemptValueUpdateRejectedBeforeWrite(t *testing.T) {
	store := setupStore(t)
	fields := &fakeFields{}
	e := newEngine(store, &fakeTrigger{}, fields)

	// A negative source value must be stopped by the safety predicate
	// before any read or write happens.
	d := seedDiscrepancy(t, store, func(d *models.Discrepancy) {
		d.SourceValue = -5.0
	})
	r := e.Attempt(context.Background(), d)
	if r.Success {
		t.Fatal("negative value must not be written")
	}
	if !strings.Contains(r.Error, "safety predicate") {
		t.Errorf("error = %q", r.Error)
	}
	if fields.writeCount() != 0 {
		t.Errorf("writes = %d, want 0", fields.writeCount())
	}

	ctx := context.Background()
	logs, err := store.Remediations().ListByDiscrepancy(ctx, d.ID)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Status != models.RemediationFailed || logs[0].Success {
		t.Fatalf("log = %+v", logs[0])
	}
	if _, ok := logs[0].Result["before_state"]; ok {
		t.Error("rejected update must not capture a pre-image")
	}

	got, _ := store.Discrepancies().GetByID(ctx, d.ID)
	if got.Status != models.DiscrepancyOpen {
		t.Errorf("discrepancy status = %v, want still open", got.Status)
	}
}

func TestAttemptValueUpdateVerificationFailure(t *testing.T) {
	store := setupStore(t)
	fields := &fakeFields{
		values:   map[string]any{fieldKey("price-1", "price"): 24.99},
		miswrite: 24.99,
	}
	e := newEngine(store, &fakeTrigger{}, fields)

	d := seedDiscrepancy(t, store, nil)
	r := e.Attempt(context.Background(), d)
	if r.Success {
		t.Fatal("a write that does not read back must be a failure")
	}
	if !strings.Contains(r.Error, "verification failed") {
		t.Errorf("error = %q", r.Error)
	}

	got, _ := store.Discrepancies().GetByID(context.Background(), d.ID)
	if got.Status != models.DiscrepancyOpen {
		t.Errorf("discrepancy status = %v, want open after failed verify", got.Status)
	}
}

func TestAttemptSyncRetry(t *testing.T) {
	store := setupStore(t)
	e := newEngine(store, &fakeTrigger{status: source.SyncJobCompleted}, &fakeFields{})

	d := seedDiscrepancy(t, store, func(d *models.Discrepancy) {
		d.EntityType = models.EntityInventory
		d.Type = models.DiscrepancyStale
	})
	r := e.Attempt(context.Background(), d)
	if !r.Success || r.Action != ActionSyncRetry {
		t.Fatalf("result = %+v", r)
	}
	if r.Result["job_id"] != "job-1" || r.Result["job_status"] != "completed" {
		t.Errorf("details = %v", r.Result)
	}
}

func TestAttemptSyncRetryTimeout(t *testing.T) {
	store := setupStore(t)
	e := newEngine(store, &fakeTrigger{status: source.SyncJobPending}, &fakeFields{})

	d := seedDiscrepancy(t, store, func(d *models.Discrepancy) {
		d.EntityType = models.EntityInventory
		d.Type = models.DiscrepancyStale
	})
	r := e.Attempt(context.Background(), d)
	if r.Success {
		t.Fatal("a job pending past the window is a failure")
	}
	if !strings.Contains(r.Error, "still pending") {
		t.Errorf("error = %q", r.Error)
	}

	got, _ := store.Discrepancies().GetByID(context.Background(), d.ID)
	if got.Status != models.DiscrepancyOpen {
		t.Errorf("discrepancy status = %v, want open", got.Status)
	}
}

func TestAttemptUnmappedIsNotAnError(t *testing.T) {
	store := setupStore(t)
	e := newEngine(store, &fakeTrigger{}, &fakeFields{})

	d := seedDiscrepancy(t, store, func(d *models.Discrepancy) {
		d.Type = models.DiscrepancyDuplicate
	})
	r := e.Attempt(context.Background(), d)
	if r.Success || r.Action != ActionNone || r.Error != "" {
		t.Errorf("result = %+v, want plain no-action outcome", r)
	}

	logs, err := store.Remediations().ListByDiscrepancy(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 0 {
		t.Errorf("no-action outcomes must not write audit entries, got %d", len(logs))
	}
}

func TestBatchRemediateCapsRun(t *testing.T) {
	store := setupStore(t)
	fields := &fakeFields{values: map[string]any{}}
	e := newEngine(store, &fakeTrigger{status: source.SyncJobCompleted}, fields)

	ids := make([]string, 150)
	for i := range ids {
		d := seedDiscrepancy(t, store, func(d *models.Discrepancy) {
			d.EntityID = fmt.Sprintf("price-%d", i)
		})
		fields.values[fieldKey(d.EntityID, "price")] = 24.99
		ids[i] = d.ID
	}

	result := e.BatchRemediate(context.Background(), ids)
	if result.Total != 100 {
		t.Errorf("total = %d, want exactly the per-run cap", result.Total)
	}
	if result.Succeeded != 100 {
		t.Errorf("succeeded = %d, want 100", result.Succeeded)
	}
}

func TestBatchRemediateToleratesFailures(t *testing.T) {
	store := setupStore(t)
	fields := &fakeFields{values: map[string]any{}}
	e := newEngine(store, &fakeTrigger{status: source.SyncJobCompleted}, fields)

	good := seedDiscrepancy(t, store, nil)
	fields.values[fieldKey(good.EntityID, "price")] = 24.99
	bad := seedDiscrepancy(t, store, func(d *models.Discrepancy) {
		d.EntityID = "price-2"
		d.SourceValue = -1.0
	})
	noAction := seedDiscrepancy(t, store, func(d *models.Discrepancy) {
		d.EntityID = "price-3"
		d.Type = models.DiscrepancyDuplicate
	})

	result := e.BatchRemediate(context.Background(), []string{good.ID, bad.ID, noAction.ID, "missing-id"})
	if result.Total != 4 {
		t.Errorf("total = %d, want 4", result.Total)
	}
	if result.Succeeded != 1 || result.Failed != 1 || result.Skipped != 2 {
		t.Errorf("result = %+v, want 1 fixed / 1 failed / 2 skipped", result)
	}
}

func TestEnqueueFullQueue(t *testing.T) {
	store := setupStore(t)
	opts := fastOptions()
	opts.QueueSize = 1
	e := NewEngine(store, &fakeTrigger{}, &fakeFields{}, fixedClock{time.Now()}, opts)

	if err := e.Enqueue(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := e.Enqueue(context.Background(), []string{"b"}); err == nil {
		t.Error("enqueue on a full queue must fail fast, not block")
	}
	if err := e.Enqueue(context.Background(), nil); err != nil {
		t.Errorf("empty enqueue should be a no-op: %v", err)
	}
}
