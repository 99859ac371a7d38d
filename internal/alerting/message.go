package alerting

import (
	"fmt"
	"sort"
	"strings"

	"github.com/truthsource/syncwatch/internal/models"
)

// maxMessageSamples caps how many discrepancies the message lists.
const maxMessageSamples = 5

func buildTitle(rule *models.AlertRule, trigger string) string {
	switch trigger {
	case models.TriggerAccuracyThreshold:
		return fmt.Sprintf("%s: accuracy below threshold", rule.Name)
	case models.TriggerDiscrepancyCount:
		return fmt.Sprintf("%s: discrepancy count exceeded", rule.Name)
	case models.TriggerEntityCount:
		return fmt.Sprintf("%s: entity discrepancy count exceeded", rule.Name)
	case models.TriggerSeverityThreshold:
		return fmt.Sprintf("%s: high-severity discrepancy detected", rule.Name)
	default:
		return rule.Name
	}
}

// buildMessage renders a Markdown summary of the trigger and the worst
// discrepancies behind it.
func buildMessage(rule *models.AlertRule, check *models.AccuracyCheck, score float64, trigger string, triggerValue float64, discrepancies []*models.Discrepancy) string {
	var sb strings.Builder

	switch trigger {
	case models.TriggerAccuracyThreshold:
		fmt.Fprintf(&sb, "Accuracy score **%.1f** fell below the configured threshold of %.1f.\n",
			score, rule.AccuracyThreshold)
	case models.TriggerDiscrepancyCount:
		fmt.Fprintf(&sb, "**%d** discrepancies found, above the configured limit of %d.\n",
			int(triggerValue), rule.DiscrepancyCountThreshold)
	case models.TriggerEntityCount:
		fmt.Fprintf(&sb, "**%d** discrepancies across %s, above the configured limit of %d.\n",
			int(triggerValue), entityList(rule.EntityTypes), rule.DiscrepancyCountThreshold)
	case models.TriggerSeverityThreshold:
		fmt.Fprintf(&sb, "At least one discrepancy at or above **%s** severity.\n", rule.SeverityThreshold)
	}

	fmt.Fprintf(&sb, "\nCheck `%s` (scope %s): %d records checked, %d discrepancies, score %.1f.\n",
		check.ID, check.Scope, check.RecordsChecked, len(discrepancies), score)
	sb.WriteString(severitySummary(discrepancies))

	worst := worstDiscrepancies(discrepancies, maxMessageSamples)
	if len(worst) > 0 {
		sb.WriteString("\nWorst offenders:\n")
		for _, d := range worst {
			field := d.FieldName
			if field == "" {
				field = "-"
			}
			fmt.Fprintf(&sb, "- [%s] %s %s/%s (%s, confidence %.2f)\n",
				d.Severity, d.Type, d.EntityID, field, d.EntityType, d.ConfidenceScore)
		}
	}
	return sb.String()
}

func severitySummary(discrepancies []*models.Discrepancy) string {
	if len(discrepancies) == 0 {
		return ""
	}
	counts := make(map[models.Severity]int)
	for _, d := range discrepancies {
		counts[d.Severity]++
	}
	order := []models.Severity{models.SeverityCritical, models.SeverityHigh, models.SeverityMedium, models.SeverityLow}
	var parts []string
	for _, s := range order {
		if counts[s] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[s], s))
		}
	}
	return "By severity: " + strings.Join(parts, ", ") + ".\n"
}

func worstDiscrepancies(discrepancies []*models.Discrepancy, limit int) []*models.Discrepancy {
	sorted := make([]*models.Discrepancy, len(discrepancies))
	copy(sorted, discrepancies)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Severity.Rank() != sorted[j].Severity.Rank() {
			return sorted[i].Severity.Rank() > sorted[j].Severity.Rank()
		}
		return sorted[i].ConfidenceScore > sorted[j].ConfidenceScore
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

func entityList(types []models.EntityType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, "/")
}
