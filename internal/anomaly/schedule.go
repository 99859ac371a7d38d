package anomaly

import (
	"time"

	"github.com/truthsource/syncwatch/internal/models"
)

// Recommended re-check intervals based on what the last detection found.
const (
	recheckCritical = 15 * time.Minute
	recheckElevated = time.Hour
	recheckQuiet    = 4 * time.Hour
)

// criticalConfidence marks a result as requiring urgent follow-up.
const criticalConfidence = 0.95

// NextCheckAfter recommends how long to wait before the next scan:
// 15 minutes when a high-urgency anomaly was found, 1 hour when any
// anomaly was found, 4 hours otherwise.
func NextCheckAfter(results []*models.AnomalyResult) time.Duration {
	if len(results) == 0 {
		return recheckQuiet
	}
	for _, r := range results {
		if r.Confidence >= criticalConfidence {
			return recheckCritical
		}
	}
	return recheckElevated
}
