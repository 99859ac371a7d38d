// Package scheduler drives recurring accuracy scans per organization and
// adapts the cadence to what the scans find: anomalies shorten the wait,
// quiet runs lengthen it.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/truthsource/syncwatch/internal/alerting"
	"github.com/truthsource/syncwatch/internal/anomaly"
	"github.com/truthsource/syncwatch/internal/checker"
	"github.com/truthsource/syncwatch/internal/models"
	"github.com/truthsource/syncwatch/internal/source"
	"github.com/truthsource/syncwatch/internal/storage"
)

// Config configures the scan scheduler.
type Config struct {
	// Organizations to scan on a recurring basis.
	Organizations []string

	// Scope of the recurring scans. Defaults to full.
	Scope models.CheckScope

	// MaxHistory caps the per-group history fed to anomaly detection.
	MaxHistory int

	// Sensitivity is passed to the anomaly detector.
	Sensitivity float64
}

// SetDefaults applies default values for missing configuration.
func (c *Config) SetDefaults() {
	if c.Scope == "" {
		c.Scope = models.ScopeFull
	}
	if c.MaxHistory == 0 {
		c.MaxHistory = 60
	}
}

// Scheduler runs the scan → score → detect → alert pipeline per
// organization and schedules the next run from the detection outcome.
type Scheduler struct {
	config   *Config
	checker  *checker.Checker
	alerts   *alerting.Manager
	store    storage.Store
	detector *anomaly.Detector
	clock    source.Clock

	mu      sync.Mutex
	history map[string]map[anomaly.GroupKey][]anomaly.HistoryPoint
}

// New creates a scheduler.
func New(cfg *Config, chk *checker.Checker, alerts *alerting.Manager, store storage.Store, clock source.Clock) *Scheduler {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.SetDefaults()
	if clock == nil {
		clock = source.SystemClock{}
	}
	return &Scheduler{
		config:   cfg,
		checker:  chk,
		alerts:   alerts,
		store:    store,
		detector: anomaly.New(anomaly.Config{Sensitivity: cfg.Sensitivity}, clock),
		clock:    clock,
		history:  make(map[string]map[anomaly.GroupKey][]anomaly.HistoryPoint),
	}
}

// Run scans every configured organization in its own loop until the
// context is canceled. The first scan starts immediately.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, org := range s.config.Organizations {
		wg.Add(1)
		go func(org string) {
			defer wg.Done()
			s.runLoop(ctx, org)
		}(org)
	}
	wg.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, organizationID string) {
	for {
		results, err := s.RunOnce(ctx, organizationID)
		if err != nil && ctx.Err() == nil {
			log.Printf("scheduler: scan for %s: %v", organizationID, err)
		}

		wait := anomaly.NextCheckAfter(results)
		log.Printf("scheduler: %s next scan in %s (%d anomalies)", organizationID, wait, len(results))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// RunOnce scans one organization, evaluates alert rules against the
// outcome, and returns the anomalies found.
func (s *Scheduler) RunOnce(ctx context.Context, organizationID string) ([]*models.AnomalyResult, error) {
	checkID, events, err := s.checker.Run(ctx, checker.CheckConfig{
		OrganizationID: organizationID,
		Scope:          s.config.Scope,
	})
	if err != nil {
		return nil, fmt.Errorf("start check: %w", err)
	}
	for range events {
	}

	check, err := s.store.Checks().GetByID(ctx, checkID)
	if err != nil {
		return nil, fmt.Errorf("load check %s: %w", checkID, err)
	}
	if check.Status != models.CheckCompleted || check.AccuracyScore == nil {
		return nil, fmt.Errorf("check %s ended %s: %s", checkID, check.Status, check.ErrorMessage)
	}

	discs, err := s.store.Discrepancies().ListByCheck(ctx, checkID)
	if err != nil {
		return nil, fmt.Errorf("load discrepancies of %s: %w", checkID, err)
	}

	raised, err := s.alerts.Evaluate(ctx, check, *check.AccuracyScore, discs)
	if err != nil {
		log.Printf("scheduler: evaluate rules for %s: %v", organizationID, err)
	}
	if len(raised) > 0 {
		log.Printf("scheduler: %s raised %d alerts", organizationID, len(raised))
	}

	history := s.recordHistory(organizationID, discs)
	return s.detector.Detect(anomaly.Input{Discrepancies: discs, History: history}), nil
}

// recordHistory returns a copy of the organization's history as it stood
// before this run, then appends the current per-group counts. Detection
// baselines must end with the previous period, never the point under
// test, or a sudden jump compares against itself. Groups seen before but
// absent now get a zero point so quiet runs count.
func (s *Scheduler) recordHistory(organizationID string, discs []*models.Discrepancy) map[anomaly.GroupKey][]anomaly.HistoryPoint {
	now := s.clock.Now().UTC()

	counts := make(map[anomaly.GroupKey]float64)
	for _, d := range discs {
		counts[anomaly.GroupKey{EntityType: d.EntityType, FieldName: d.FieldName}]++
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	orgHistory := s.history[organizationID]
	if orgHistory == nil {
		orgHistory = make(map[anomaly.GroupKey][]anomaly.HistoryPoint)
		s.history[organizationID] = orgHistory
	}

	baseline := make(map[anomaly.GroupKey][]anomaly.HistoryPoint, len(orgHistory))
	for key, points := range orgHistory {
		cp := make([]anomaly.HistoryPoint, len(points))
		copy(cp, points)
		baseline[key] = cp
	}

	for key := range orgHistory {
		if _, ok := counts[key]; !ok {
			counts[key] = 0
		}
	}
	for key, count := range counts {
		points := append(orgHistory[key], anomaly.HistoryPoint{Timestamp: now, Count: count})
		if len(points) > s.config.MaxHistory {
			points = points[len(points)-s.config.MaxHistory:]
		}
		orgHistory[key] = points
	}

	return baseline
}
