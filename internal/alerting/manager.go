// Package alerting evaluates alert rules against finished accuracy checks,
// raises alerts, schedules notifications, and hands qualifying
// discrepancies to the remediation queue.
package alerting

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/truthsource/syncwatch/internal/metrics"
	"github.com/truthsource/syncwatch/internal/models"
	"github.com/truthsource/syncwatch/internal/source"
	"github.com/truthsource/syncwatch/internal/storage"
)

// Alert severity buckets derived from the score and the discrepancy count.
// The raised alert always reflects the worst signal observed.
const (
	scoreCriticalBelow = 80
	scoreHighBelow     = 90
	scoreMediumBelow   = 95

	countCriticalAbove = 100
	countHighAbove     = 50
	countMediumAbove   = 20
)

// RemediationQueue receives discrepancy ids for asynchronous remediation.
// Evaluation never runs remediation inline.
type RemediationQueue interface {
	Enqueue(ctx context.Context, discrepancyIDs []string) error
}

// Manager evaluates alert rules.
type Manager struct {
	store storage.Store
	clock source.Clock
	queue RemediationQueue
}

// NewManager creates an alert manager. queue may be nil when
// auto-remediation is disabled deployment-wide.
func NewManager(store storage.Store, clock source.Clock, queue RemediationQueue) *Manager {
	if clock == nil {
		clock = source.SystemClock{}
	}
	return &Manager{store: store, clock: clock, queue: queue}
}

// Evaluate runs every active rule of the check's organization against the
// check outcome and returns the ids of raised alerts.
func (m *Manager) Evaluate(ctx context.Context, check *models.AccuracyCheck, score float64, discrepancies []*models.Discrepancy) ([]string, error) {
	rules, err := m.store.AlertRules().ListActive(ctx, check.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("load active rules: %w", err)
	}

	var raised []string
	for _, rule := range rules {
		alertID, err := m.evaluateRule(ctx, rule, check, score, discrepancies)
		if err != nil {
			return raised, err
		}
		if alertID != "" {
			raised = append(raised, alertID)
		}
	}
	return raised, nil
}

// evaluateRule applies the fixed evaluation order, short-circuiting on the
// first condition that fires. Returns "" when the rule does not fire.
func (m *Manager) evaluateRule(ctx context.Context, rule *models.AlertRule, check *models.AccuracyCheck, score float64, discrepancies []*models.Discrepancy) (string, error) {
	now := m.clock.Now().UTC()

	// 1. Suppression: a recent alert for this rule mutes new ones for the
	// rule's check frequency.
	latest, err := m.store.Alerts().LatestForRule(ctx, rule.ID, now.Add(-rule.EvaluationWindow))
	if err != nil {
		return "", fmt.Errorf("suppression lookup for rule %s: %w", rule.ID, err)
	}
	if latest != nil && now.Sub(latest.CreatedAt) < rule.CheckFrequency {
		metrics.AlertsSuppressed.Inc()
		return "", nil
	}

	total := len(discrepancies)

	// 2. Accuracy threshold.
	if score < rule.AccuracyThreshold {
		return m.raise(ctx, rule, check, score, total, models.TriggerAccuracyThreshold, score, discrepancies)
	}

	// 3. Total discrepancy count.
	if total > rule.DiscrepancyCountThreshold {
		return m.raise(ctx, rule, check, score, total, models.TriggerDiscrepancyCount, float64(total), discrepancies)
	}

	// 4. Entity-filtered count against the same threshold.
	if len(rule.EntityTypes) > 0 {
		filtered := 0
		for _, d := range discrepancies {
			if rule.MatchesEntityType(d.EntityType) {
				filtered++
			}
		}
		if filtered > rule.DiscrepancyCountThreshold {
			return m.raise(ctx, rule, check, score, total, models.TriggerEntityCount, float64(filtered), discrepancies)
		}
	}

	// 5. Any discrepancy at or above the rule's severity floor.
	for _, d := range discrepancies {
		if d.Severity.AtLeast(rule.SeverityThreshold) {
			return m.raise(ctx, rule, check, score, total, models.TriggerSeverityThreshold, float64(d.Severity.Rank()), discrepancies)
		}
	}

	return "", nil
}

func (m *Manager) raise(ctx context.Context, rule *models.AlertRule, check *models.AccuracyCheck, score float64, total int, trigger string, triggerValue float64, discrepancies []*models.Discrepancy) (string, error) {
	now := m.clock.Now().UTC()
	severity := alertSeverity(score, total, rule.SeverityThreshold)

	alert := &models.Alert{
		ID:              uuid.New().String(),
		AlertRuleID:     rule.ID,
		OrganizationID:  rule.OrganizationID,
		Title:           buildTitle(rule, trigger),
		Message:         buildMessage(rule, check, score, trigger, triggerValue, discrepancies),
		Severity:        severity,
		TriggeredBy:     trigger,
		TriggerValue:    triggerValue,
		AccuracyCheckID: check.ID,
		Status:          models.AlertActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := m.store.Alerts().Create(ctx, alert); err != nil {
		return "", fmt.Errorf("persist alert for rule %s: %w", rule.ID, err)
	}
	metrics.AlertsRaised.WithLabelValues(trigger, string(severity)).Inc()

	for _, channel := range rule.NotificationChannels {
		n := &models.NotificationLog{
			ID:        uuid.New().String(),
			AlertID:   alert.ID,
			Channel:   channel,
			Status:    models.NotificationPending,
			CreatedAt: now,
		}
		if err := m.store.Notifications().Create(ctx, n); err != nil {
			log.Printf("alerting: schedule %s notification for alert %s: %v", channel, alert.ID, err)
		}
	}

	if rule.AutoRemediate && m.queue != nil {
		var ids []string
		for _, d := range discrepancies {
			if d.Status == models.DiscrepancyOpen && rule.MatchesEntityType(d.EntityType) {
				ids = append(ids, d.ID)
			}
		}
		if len(ids) > 0 {
			if err := m.queue.Enqueue(ctx, ids); err != nil {
				log.Printf("alerting: enqueue %d discrepancies for remediation: %v", len(ids), err)
			}
		}
	}

	return alert.ID, nil
}

// alertSeverity is the max of the score bucket, the count bucket, and the
// rule's configured floor.
func alertSeverity(score float64, count int, floor models.Severity) models.Severity {
	return models.MaxSeverity(scoreBucket(score), countBucket(count), floor)
}

func scoreBucket(score float64) models.Severity {
	switch {
	case score < scoreCriticalBelow:
		return models.SeverityCritical
	case score < scoreHighBelow:
		return models.SeverityHigh
	case score < scoreMediumBelow:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func countBucket(count int) models.Severity {
	switch {
	case count > countCriticalAbove:
		return models.SeverityCritical
	case count > countHighAbove:
		return models.SeverityHigh
	case count > countMediumAbove:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// Acknowledge moves an active alert to acknowledged.
func (m *Manager) Acknowledge(ctx context.Context, alertID, by string) error {
	return m.store.Alerts().UpdateStatus(ctx, alertID, models.AlertAcknowledged, by)
}

// Resolve closes an alert.
func (m *Manager) Resolve(ctx context.Context, alertID string) error {
	return m.store.Alerts().UpdateStatus(ctx, alertID, models.AlertResolved, "")
}

// Snooze silences an alert for the given duration.
func (m *Manager) Snooze(ctx context.Context, alertID string, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("snooze duration must be positive")
	}
	return m.store.Alerts().Snooze(ctx, alertID, m.clock.Now().UTC().Add(d))
}
