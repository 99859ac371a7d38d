package models

// AnomalyType classifies how an anomaly was detected.
type AnomalyType string

const (
	AnomalyStatistical AnomalyType = "statistical"
	AnomalyPattern     AnomalyType = "pattern"
	AnomalyThreshold   AnomalyType = "threshold"
)

// AnomalyResult is one detected anomaly. Results are ephemeral: they feed
// alert evaluation and are not persisted.
type AnomalyResult struct {
	EntityID          string      `json:"entity_id"`
	AnomalyType       AnomalyType `json:"anomaly_type"`
	Confidence        float64     `json:"confidence"`
	DeviationScore    float64     `json:"deviation_score"`
	HistoricalAverage *float64    `json:"historical_average,omitempty"`
	CurrentValue      float64     `json:"current_value"`
	Explanation       string      `json:"explanation"`
}
