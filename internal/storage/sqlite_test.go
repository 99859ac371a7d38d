package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/truthsource/syncwatch/internal/models"
)

func setupTestDB(t *testing.T) (*SQLiteStore, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "syncwatch-test-*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")
	store := NewSQLiteStore(dbPath)
	if err := store.Open(); err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("open database: %v", err)
	}

	if err := store.Migrate(); err != nil {
		store.Close()
		os.RemoveAll(tmpDir)
		t.Fatalf("migrate database: %v", err)
	}

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}

	return store, cleanup
}

func newTestCheck(orgID string) *models.AccuracyCheck {
	return &models.AccuracyCheck{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		Scope:          models.ScopeFull,
		Status:         models.CheckRunning,
		StartedAt:      time.Now().UTC().Truncate(time.Second),
	}
}

func newTestDiscrepancy(checkID, orgID, entityID string) *models.Discrepancy {
	return &models.Discrepancy{
		ID:              uuid.New().String(),
		AccuracyCheckID: checkID,
		OrganizationID:  orgID,
		EntityType:      models.EntityInventory,
		EntityID:        entityID,
		FieldName:       "quantity",
		SourceValue:     float64(10),
		TargetValue:     float64(7),
		Type:            models.DiscrepancyMismatch,
		Severity:        models.SeverityHigh,
		ConfidenceScore: 0.95,
		Status:          models.DiscrepancyOpen,
		DetectedAt:      time.Now().UTC().Truncate(time.Second),
	}
}

func TestSQLiteStore_Migrate(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	tables := []string{
		"accuracy_checks", "discrepancies", "alert_rules", "alerts",
		"notification_logs", "remediation_logs", "accuracy_metrics", "schema_migrations",
	}
	for _, table := range tables {
		var count int
		err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
		if err != nil {
			t.Errorf("table %s should exist: %v", table, err)
		}
	}
}

func TestCheckRepository_Lifecycle(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	check := newTestCheck("org-1")
	if err := store.Checks().Create(ctx, check); err != nil {
		t.Fatalf("create check: %v", err)
	}

	got, err := store.Checks().GetByID(ctx, check.ID)
	if err != nil {
		t.Fatalf("get check: %v", err)
	}
	if got.Status != models.CheckRunning {
		t.Errorf("status = %v, want running", got.Status)
	}
	if got.AccuracyScore != nil {
		t.Errorf("score should be unset before completion, got %v", *got.AccuracyScore)
	}

	completedAt := time.Now().UTC().Truncate(time.Second)
	if err := store.Checks().Complete(ctx, check.ID, 98.5, 3, 1000, completedAt, 1200); err != nil {
		t.Fatalf("complete check: %v", err)
	}

	got, err = store.Checks().GetByID(ctx, check.ID)
	if err != nil {
		t.Fatalf("get completed check: %v", err)
	}
	if got.Status != models.CheckCompleted {
		t.Errorf("status = %v, want completed", got.Status)
	}
	if got.AccuracyScore == nil || *got.AccuracyScore != 98.5 {
		t.Errorf("score = %v, want 98.5", got.AccuracyScore)
	}
	if got.DiscrepanciesFound != 3 || got.RecordsChecked != 1000 {
		t.Errorf("counts = %d/%d, want 3/1000", got.DiscrepanciesFound, got.RecordsChecked)
	}

	// Completed checks are immutable.
	err = store.Checks().Complete(ctx, check.ID, 50, 0, 0, completedAt, 1)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("re-completing a terminal check should fail, got %v", err)
	}
	err = store.Checks().Fail(ctx, check.ID, "boom", completedAt)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("failing a terminal check should fail, got %v", err)
	}
}

func TestCheckRepository_Fail(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	check := newTestCheck("org-1")
	if err := store.Checks().Create(ctx, check); err != nil {
		t.Fatalf("create check: %v", err)
	}
	if err := store.Checks().Fail(ctx, check.ID, "integration timeout", time.Now().UTC()); err != nil {
		t.Fatalf("fail check: %v", err)
	}

	got, err := store.Checks().GetByID(ctx, check.ID)
	if err != nil {
		t.Fatalf("get check: %v", err)
	}
	if got.Status != models.CheckFailed {
		t.Errorf("status = %v, want failed", got.Status)
	}
	if got.ErrorMessage != "integration timeout" {
		t.Errorf("error message = %q", got.ErrorMessage)
	}
}

func TestCheckRepository_List(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		check := newTestCheck("org-1")
		check.StartedAt = time.Now().UTC().Add(time.Duration(i) * time.Minute)
		if err := store.Checks().Create(ctx, check); err != nil {
			t.Fatalf("create check %d: %v", i, err)
		}
	}
	other := newTestCheck("org-2")
	if err := store.Checks().Create(ctx, other); err != nil {
		t.Fatalf("create other-org check: %v", err)
	}

	checks, err := store.Checks().List(ctx, "org-1", 10, 0)
	if err != nil {
		t.Fatalf("list checks: %v", err)
	}
	if len(checks) != 3 {
		t.Errorf("got %d checks, want 3", len(checks))
	}
	for i := 1; i < len(checks); i++ {
		if checks[i].StartedAt.After(checks[i-1].StartedAt) {
			t.Error("checks should be ordered newest first")
		}
	}
}

func TestDiscrepancyRepository_InsertBatch(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	check := newTestCheck("org-1")
	if err := store.Checks().Create(ctx, check); err != nil {
		t.Fatalf("create check: %v", err)
	}

	batch := []*models.Discrepancy{
		newTestDiscrepancy(check.ID, "org-1", "sku-1"),
		newTestDiscrepancy(check.ID, "org-1", "sku-2"),
	}
	batch[1].Metadata = map[string]any{"deviation_pct": 30.0}
	if err := store.Discrepancies().InsertBatch(ctx, batch); err != nil {
		t.Fatalf("insert batch: %v", err)
	}

	got, err := store.Discrepancies().ListByCheck(ctx, check.ID)
	if err != nil {
		t.Fatalf("list by check: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d discrepancies, want 2", len(got))
	}

	first, err := store.Discrepancies().GetByID(ctx, batch[0].ID)
	if err != nil {
		t.Fatalf("get discrepancy: %v", err)
	}
	if first.SourceValue != float64(10) {
		t.Errorf("source value = %v (%T), want 10", first.SourceValue, first.SourceValue)
	}
	if first.Status != models.DiscrepancyOpen {
		t.Errorf("status = %v, want open", first.Status)
	}

	second, err := store.Discrepancies().GetByID(ctx, batch[1].ID)
	if err != nil {
		t.Fatalf("get discrepancy with metadata: %v", err)
	}
	if second.Metadata["deviation_pct"] != 30.0 {
		t.Errorf("metadata = %v", second.Metadata)
	}
}

func TestDiscrepancyRepository_UpdateStatus(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	check := newTestCheck("org-1")
	if err := store.Checks().Create(ctx, check); err != nil {
		t.Fatalf("create check: %v", err)
	}
	d := newTestDiscrepancy(check.ID, "org-1", "sku-1")
	if err := store.Discrepancies().InsertBatch(ctx, []*models.Discrepancy{d}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := store.Discrepancies().UpdateStatus(ctx, d.ID, models.DiscrepancyInvestigating, ""); err != nil {
		t.Fatalf("open -> investigating: %v", err)
	}
	if err := store.Discrepancies().UpdateStatus(ctx, d.ID, models.DiscrepancyResolved, models.ResolutionAutoFixed); err != nil {
		t.Fatalf("investigating -> resolved: %v", err)
	}

	got, err := store.Discrepancies().GetByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ResolutionType != models.ResolutionAutoFixed {
		t.Errorf("resolution = %v, want auto_fixed", got.ResolutionType)
	}

	// Resolved is terminal.
	err = store.Discrepancies().UpdateStatus(ctx, d.ID, models.DiscrepancyOpen, "")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("reopening a resolved discrepancy should fail, got %v", err)
	}
}

func TestDiscrepancyRepository_ListOpen(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	check := newTestCheck("org-1")
	if err := store.Checks().Create(ctx, check); err != nil {
		t.Fatalf("create check: %v", err)
	}
	open := newTestDiscrepancy(check.ID, "org-1", "sku-1")
	closed := newTestDiscrepancy(check.ID, "org-1", "sku-2")
	if err := store.Discrepancies().InsertBatch(ctx, []*models.Discrepancy{open, closed}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.Discrepancies().UpdateStatus(ctx, closed.ID, models.DiscrepancyIgnored, models.ResolutionIgnored); err != nil {
		t.Fatalf("ignore: %v", err)
	}

	got, err := store.Discrepancies().ListOpen(ctx, "org-1", 10)
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(got) != 1 || got[0].ID != open.ID {
		t.Errorf("got %d open discrepancies, want exactly the open one", len(got))
	}
}

func newTestRule(orgID string) *models.AlertRule {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.AlertRule{
		ID:                        uuid.New().String(),
		OrganizationID:            orgID,
		Name:                      "low accuracy",
		IsActive:                  true,
		EntityTypes:               []models.EntityType{models.EntityInventory},
		SeverityThreshold:         models.SeverityMedium,
		AccuracyThreshold:         95,
		DiscrepancyCountThreshold: 10,
		CheckFrequency:            30 * time.Minute,
		EvaluationWindow:          time.Hour,
		NotificationChannels:      []string{"slack"},
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
}

func TestAlertRuleRepository_CRUD(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	rule := newTestRule("org-1")
	if err := store.AlertRules().Create(ctx, rule); err != nil {
		t.Fatalf("create rule: %v", err)
	}

	got, err := store.AlertRules().GetByID(ctx, rule.ID)
	if err != nil {
		t.Fatalf("get rule: %v", err)
	}
	if got.CheckFrequency != 30*time.Minute {
		t.Errorf("check frequency = %v, want 30m", got.CheckFrequency)
	}
	if len(got.EntityTypes) != 1 || got.EntityTypes[0] != models.EntityInventory {
		t.Errorf("entity types = %v", got.EntityTypes)
	}
	if len(got.NotificationChannels) != 1 || got.NotificationChannels[0] != "slack" {
		t.Errorf("channels = %v", got.NotificationChannels)
	}

	rule.Name = "renamed"
	rule.AccuracyThreshold = 90
	if err := store.AlertRules().Update(ctx, rule); err != nil {
		t.Fatalf("update rule: %v", err)
	}
	got, err = store.AlertRules().GetByID(ctx, rule.ID)
	if err != nil {
		t.Fatalf("get updated rule: %v", err)
	}
	if got.Name != "renamed" || got.AccuracyThreshold != 90 {
		t.Errorf("update not applied: %+v", got)
	}

	if err := store.AlertRules().SetActive(ctx, rule.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	active, err := store.AlertRules().ListActive(ctx, "org-1")
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("got %d active rules, want 0", len(active))
	}

	if err := store.AlertRules().Delete(ctx, rule.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.AlertRules().GetByID(ctx, rule.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get deleted rule: %v, want ErrNotFound", err)
	}
}

func newTestAlert(ruleID, orgID string, createdAt time.Time) *models.Alert {
	return &models.Alert{
		ID:             uuid.New().String(),
		AlertRuleID:    ruleID,
		OrganizationID: orgID,
		Title:          "Accuracy below threshold",
		Message:        "accuracy 92.1 below 95.0",
		Severity:       models.SeverityHigh,
		TriggeredBy:    models.TriggerAccuracyThreshold,
		TriggerValue:   92.1,
		Status:         models.AlertActive,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
}

func TestAlertRepository_SuppressionWindow(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	rule := newTestRule("org-1")
	if err := store.AlertRules().Create(ctx, rule); err != nil {
		t.Fatalf("create rule: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	old := newTestAlert(rule.ID, "org-1", now.Add(-2*time.Hour))
	recent := newTestAlert(rule.ID, "org-1", now.Add(-10*time.Minute))
	for _, a := range []*models.Alert{old, recent} {
		if err := store.Alerts().Create(ctx, a); err != nil {
			t.Fatalf("create alert: %v", err)
		}
	}

	got, err := store.Alerts().LatestForRule(ctx, rule.ID, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("latest for rule: %v", err)
	}
	if got == nil || got.ID != recent.ID {
		t.Fatalf("latest = %v, want the recent alert", got)
	}

	none, err := store.Alerts().LatestForRule(ctx, rule.ID, now.Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("latest for rule: %v", err)
	}
	if none != nil {
		t.Errorf("expected no alert within 5m window, got %v", none.ID)
	}
}

func TestAlertRepository_SnoozeAndReactivate(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	rule := newTestRule("org-1")
	if err := store.AlertRules().Create(ctx, rule); err != nil {
		t.Fatalf("create rule: %v", err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	alert := newTestAlert(rule.ID, "org-1", now)
	if err := store.Alerts().Create(ctx, alert); err != nil {
		t.Fatalf("create alert: %v", err)
	}

	until := now.Add(time.Hour)
	if err := store.Alerts().Snooze(ctx, alert.ID, until); err != nil {
		t.Fatalf("snooze: %v", err)
	}
	got, err := store.Alerts().GetByID(ctx, alert.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.AlertSnoozed || got.SnoozedUntil == nil {
		t.Fatalf("status = %v, snoozed_until = %v", got.Status, got.SnoozedUntil)
	}

	// Before expiry nothing flips.
	n, err := store.Alerts().ReactivateSnoozedBefore(ctx, now.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if n != 0 {
		t.Errorf("reactivated %d alerts before expiry, want 0", n)
	}

	n, err = store.Alerts().ReactivateSnoozedBefore(ctx, until.Add(time.Minute))
	if err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if n != 1 {
		t.Errorf("reactivated %d alerts, want 1", n)
	}
	got, err = store.Alerts().GetByID(ctx, alert.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.AlertActive || got.SnoozedUntil != nil {
		t.Errorf("status = %v, snoozed_until = %v after expiry", got.Status, got.SnoozedUntil)
	}
}

func TestAlertRepository_Acknowledge(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	rule := newTestRule("org-1")
	if err := store.AlertRules().Create(ctx, rule); err != nil {
		t.Fatalf("create rule: %v", err)
	}
	alert := newTestAlert(rule.ID, "org-1", time.Now().UTC().Truncate(time.Second))
	if err := store.Alerts().Create(ctx, alert); err != nil {
		t.Fatalf("create alert: %v", err)
	}

	if err := store.Alerts().UpdateStatus(ctx, alert.ID, models.AlertAcknowledged, "ops@example.com"); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	got, err := store.Alerts().GetByID(ctx, alert.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.AlertAcknowledged || got.AcknowledgedBy != "ops@example.com" {
		t.Errorf("status = %v, acknowledged_by = %q", got.Status, got.AcknowledgedBy)
	}
}

func TestNotificationRepository_Delivery(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	rule := newTestRule("org-1")
	if err := store.AlertRules().Create(ctx, rule); err != nil {
		t.Fatalf("create rule: %v", err)
	}
	alert := newTestAlert(rule.ID, "org-1", time.Now().UTC().Truncate(time.Second))
	if err := store.Alerts().Create(ctx, alert); err != nil {
		t.Fatalf("create alert: %v", err)
	}

	n1 := &models.NotificationLog{ID: uuid.New().String(), AlertID: alert.ID, Channel: "slack", CreatedAt: time.Now().UTC()}
	n2 := &models.NotificationLog{ID: uuid.New().String(), AlertID: alert.ID, Channel: "email", Recipient: "ops@example.com", CreatedAt: time.Now().UTC()}
	for _, n := range []*models.NotificationLog{n1, n2} {
		if err := store.Notifications().Create(ctx, n); err != nil {
			t.Fatalf("create notification: %v", err)
		}
	}

	pending, err := store.Notifications().ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("got %d pending, want 2", len(pending))
	}

	if err := store.Notifications().MarkDelivered(ctx, n1.ID, time.Now().UTC()); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	if err := store.Notifications().MarkFailed(ctx, n2.ID, "smtp timeout", time.Now().UTC()); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	pending, err = store.Notifications().ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending after delivery, want 0", len(pending))
	}
}

func TestRemediationRepository_AuditTrail(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	check := newTestCheck("org-1")
	if err := store.Checks().Create(ctx, check); err != nil {
		t.Fatalf("create check: %v", err)
	}
	d := newTestDiscrepancy(check.ID, "org-1", "sku-1")
	if err := store.Discrepancies().InsertBatch(ctx, []*models.Discrepancy{d}); err != nil {
		t.Fatalf("insert discrepancy: %v", err)
	}

	l := &models.RemediationLog{
		ID:             uuid.New().String(),
		DiscrepancyID:  d.ID,
		OrganizationID: "org-1",
		ActionType:     "sync_retry",
		ActionConfig:   map[string]any{"force": true},
		Status:         models.RemediationRunning,
		StartedAt:      time.Now().UTC().Truncate(time.Second),
	}
	if err := store.Remediations().Create(ctx, l); err != nil {
		t.Fatalf("create log: %v", err)
	}

	completedAt := time.Now().UTC().Truncate(time.Second)
	result := map[string]any{"job_id": "job-42"}
	if err := store.Remediations().Finish(ctx, l.ID, models.RemediationCompleted, true, result, "", completedAt); err != nil {
		t.Fatalf("finish log: %v", err)
	}

	got, err := store.Remediations().GetByID(ctx, l.ID)
	if err != nil {
		t.Fatalf("get log: %v", err)
	}
	if !got.Success || got.Status != models.RemediationCompleted {
		t.Errorf("status = %v success = %v", got.Status, got.Success)
	}
	if got.Result["job_id"] != "job-42" {
		t.Errorf("result = %v", got.Result)
	}
	if got.ActionConfig["force"] != true {
		t.Errorf("action config = %v", got.ActionConfig)
	}

	// Finished logs are immutable.
	err = store.Remediations().Finish(ctx, l.ID, models.RemediationFailed, false, nil, "late", completedAt)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("re-finishing a terminal log should fail, got %v", err)
	}

	logs, err := store.Remediations().ListByDiscrepancy(ctx, d.ID)
	if err != nil {
		t.Fatalf("list by discrepancy: %v", err)
	}
	if len(logs) != 1 {
		t.Errorf("got %d logs, want 1", len(logs))
	}
}

func TestMetricRepository_SeriesOrder(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second).Add(-3 * time.Hour)
	scores := []float64{97.0, 95.5, 96.2}
	for i, score := range scores {
		m := &models.AccuracyMetric{
			ID:               uuid.New().String(),
			OrganizationID:   "org-1",
			AccuracyScore:    score,
			TotalRecords:     1000,
			DiscrepancyCount: 12,
			MetricsByType:    map[string]int{"mismatch": 10, "stale": 2},
			Timestamp:        base.Add(time.Duration(i) * time.Hour),
			BucketDuration:   time.Hour,
		}
		if err := store.Metrics().Insert(ctx, m); err != nil {
			t.Fatalf("insert metric %d: %v", i, err)
		}
	}

	got, err := store.Metrics().ListRecent(ctx, "org-1", "", 2)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d metrics, want 2", len(got))
	}
	// The newest two, oldest first.
	if got[0].AccuracyScore != 95.5 || got[1].AccuracyScore != 96.2 {
		t.Errorf("scores = %v, %v; want 95.5 then 96.2", got[0].AccuracyScore, got[1].AccuracyScore)
	}
	if got[0].MetricsByType["mismatch"] != 10 {
		t.Errorf("metrics by type = %v", got[0].MetricsByType)
	}

	n, err := store.Metrics().DeleteBefore(ctx, base.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("delete before: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d rows, want 2", n)
	}
}

func TestSyncStateUpsert(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := store.SyncStates().Get(ctx, "int-1", models.EntityProduct); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get missing sync state: err = %v, want ErrNotFound", err)
	}

	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := store.SyncStates().Upsert(ctx, &models.SyncState{
		IntegrationID:    "int-1",
		EntityType:       models.EntityProduct,
		LastCheckedAt:    first,
		RecordsChecked:   50,
		DiscrepancyCount: 3,
	}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	// Same composite key updates in place.
	second := first.Add(time.Hour)
	if err := store.SyncStates().Upsert(ctx, &models.SyncState{
		IntegrationID:    "int-1",
		EntityType:       models.EntityProduct,
		LastCheckedAt:    second,
		RecordsChecked:   80,
		DiscrepancyCount: 0,
	}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := store.SyncStates().Get(ctx, "int-1", models.EntityProduct)
	if err != nil {
		t.Fatalf("get sync state: %v", err)
	}
	if !got.LastCheckedAt.Equal(second) {
		t.Errorf("last checked = %v, want %v", got.LastCheckedAt, second)
	}
	if got.RecordsChecked != 80 || got.DiscrepancyCount != 0 {
		t.Errorf("got records=%d discrepancies=%d, want 80 and 0", got.RecordsChecked, got.DiscrepancyCount)
	}

	// A different entity family is an independent row.
	if _, err := store.SyncStates().Get(ctx, "int-1", models.EntityPricing); !errors.Is(err, ErrNotFound) {
		t.Errorf("pricing sync state: err = %v, want ErrNotFound", err)
	}
}
