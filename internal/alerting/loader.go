package alerting

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/truthsource/syncwatch/internal/models"
	"github.com/truthsource/syncwatch/internal/storage"
)

// rulesConfig is the YAML shape of a bootstrap rules file.
type rulesConfig struct {
	Rules []*ruleSpec `yaml:"rules"`
}

type ruleSpec struct {
	ID                        string   `yaml:"id"`
	OrganizationID            string   `yaml:"organization_id"`
	Name                      string   `yaml:"name"`
	IsActive                  *bool    `yaml:"is_active"`
	EntityTypes               []string `yaml:"entity_types"`
	SeverityThreshold         string   `yaml:"severity_threshold"`
	AccuracyThreshold         float64  `yaml:"accuracy_threshold"`
	DiscrepancyCountThreshold int      `yaml:"discrepancy_count_threshold"`
	CheckFrequency            string   `yaml:"check_frequency"`
	EvaluationWindow          string   `yaml:"evaluation_window"`
	NotificationChannels      []string `yaml:"notification_channels"`
	AutoRemediate             bool     `yaml:"auto_remediate"`
}

func (s *ruleSpec) toRule(now time.Time) (*models.AlertRule, error) {
	checkFrequency, err := parseDuration(s.CheckFrequency)
	if err != nil {
		return nil, fmt.Errorf("check_frequency for rule %q: %w", s.Name, err)
	}
	evaluationWindow, err := parseDuration(s.EvaluationWindow)
	if err != nil {
		return nil, fmt.Errorf("evaluation_window for rule %q: %w", s.Name, err)
	}

	entityTypes := make([]models.EntityType, len(s.EntityTypes))
	for i, et := range s.EntityTypes {
		entityTypes[i] = models.EntityType(et)
	}

	rule := &models.AlertRule{
		ID:                        s.ID,
		OrganizationID:            s.OrganizationID,
		Name:                      s.Name,
		IsActive:                  s.IsActive == nil || *s.IsActive,
		EntityTypes:               entityTypes,
		SeverityThreshold:         models.Severity(s.SeverityThreshold),
		AccuracyThreshold:         s.AccuracyThreshold,
		DiscrepancyCountThreshold: s.DiscrepancyCountThreshold,
		CheckFrequency:            checkFrequency,
		EvaluationWindow:          evaluationWindow,
		NotificationChannels:      s.NotificationChannels,
		AutoRemediate:             s.AutoRemediate,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
	if rule.ID == "" {
		return nil, fmt.Errorf("rule %q needs an id for upsert", s.Name)
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// LoadRulesFromFile loads alert rules from a YAML file.
func LoadRulesFromFile(path string, now time.Time) ([]*models.AlertRule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules file: %w", err)
	}
	defer f.Close()

	return LoadRules(f, now)
}

// LoadRules loads alert rules from a reader. All rules are validated; one
// invalid rule rejects the whole file so a partial config is never applied.
func LoadRules(r io.Reader, now time.Time) ([]*models.AlertRule, error) {
	var config rulesConfig
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("parse rules YAML: %w", err)
	}

	rules := make([]*models.AlertRule, 0, len(config.Rules))
	for i, spec := range config.Rules {
		rule, err := spec.toRule(now)
		if err != nil {
			return nil, fmt.Errorf("invalid rule at index %d: %w", i, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// SyncRules upserts file-defined rules into the store by id.
func SyncRules(ctx context.Context, store storage.Store, rules []*models.AlertRule) error {
	for _, rule := range rules {
		existing, err := store.AlertRules().GetByID(ctx, rule.ID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			if err := store.AlertRules().Create(ctx, rule); err != nil {
				return fmt.Errorf("create rule %q: %w", rule.Name, err)
			}
		case err != nil:
			return fmt.Errorf("look up rule %q: %w", rule.Name, err)
		default:
			rule.CreatedAt = existing.CreatedAt
			if err := store.AlertRules().Update(ctx, rule); err != nil {
				return fmt.Errorf("update rule %q: %w", rule.Name, err)
			}
		}
	}
	return nil
}

// WatchRulesFile reloads and re-syncs the rules file on every write until
// the context is canceled. Parse or validation failures keep the previous
// rules in effect.
func WatchRulesFile(ctx context.Context, store storage.Store, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors typically replace the file, which
	// drops a watch set on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch rules directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != path || (!event.Has(fsnotify.Write) && !event.Has(fsnotify.Create)) {
				continue
			}
			rules, err := LoadRulesFromFile(path, time.Now().UTC())
			if err != nil {
				log.Printf("alerting: reload rules file %s: %v", path, err)
				continue
			}
			if err := SyncRules(ctx, store, rules); err != nil {
				log.Printf("alerting: sync reloaded rules: %v", err)
				continue
			}
			log.Printf("alerting: reloaded %d rules from %s", len(rules), path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("alerting: rules watcher: %v", err)
		}
	}
}
