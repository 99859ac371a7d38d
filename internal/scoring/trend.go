package scoring

import (
	"math"
)

// Trend direction classifications.
const (
	TrendImproving = "improving"
	TrendDeclining = "declining"
	TrendStable    = "stable"
)

// slopeThreshold separates a stable series from a moving one.
const slopeThreshold = 0.1

// forecastWindow is the moving-average window for the one-step forecast.
const forecastWindow = 5

// maxTrendSamples caps how much history trend analysis considers.
const maxTrendSamples = 30

// TrendAnalysis summarizes the direction and stability of an accuracy
// score series.
type TrendAnalysis struct {
	Trend      string  `json:"trend"`
	Slope      float64 `json:"slope"`
	ChangeRate float64 `json:"change_rate"`
	Volatility float64 `json:"volatility"`
	Forecast   float64 `json:"forecast"`
	Samples    int     `json:"samples"`
}

// AnalyzeTrend computes trend direction, change rate, volatility, and a
// one-step-ahead forecast from historical scores ordered oldest to newest.
// The regression runs over the index sequence, not calendar time: metric
// rows are appended at roughly uniform cadence and index-based slopes stay
// meaningful when individual scans are delayed.
// With fewer than 2 points there is no evidence of drift: the trend is
// stable with change rate 0 and forecast 100.
func AnalyzeTrend(scores []float64) TrendAnalysis {
	if len(scores) > maxTrendSamples {
		scores = scores[len(scores)-maxTrendSamples:]
	}
	if len(scores) < 2 {
		return TrendAnalysis{Trend: TrendStable, Forecast: 100, Samples: len(scores)}
	}

	slope := linearSlope(scores)

	trend := TrendStable
	switch {
	case slope > slopeThreshold:
		trend = TrendImproving
	case slope < -slopeThreshold:
		trend = TrendDeclining
	}

	first, last := scores[0], scores[len(scores)-1]
	var changeRate float64
	if first != 0 {
		changeRate = (last - first) / first * 100
	}

	forecast := movingAverage(scores, forecastWindow) + slope
	if forecast > 100 {
		forecast = 100
	}
	if forecast < 0 {
		forecast = 0
	}

	return TrendAnalysis{
		Trend:      trend,
		Slope:      slope,
		ChangeRate: changeRate,
		Volatility: stdDev(scores),
		Forecast:   forecast,
		Samples:    len(scores),
	}
}

// linearSlope is the least-squares slope of values over their indexes.
func linearSlope(values []float64) float64 {
	n := float64(len(values))
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// movingAverage averages the last window values.
func movingAverage(values []float64, window int) float64 {
	if window > len(values) {
		window = len(values)
	}
	var sum float64
	for _, v := range values[len(values)-window:] {
		sum += v
	}
	return sum / float64(window)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

// Baseline is an industry benchmark distribution.
type Baseline struct {
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"std_dev" yaml:"std_dev"`
}

// BenchmarkComparison positions a score against an industry baseline.
// Advisory only.
type BenchmarkComparison struct {
	Score      float64 `json:"score"`
	Percentile float64 `json:"percentile"`
	Mean       float64 `json:"baseline_mean,omitempty"`
	StdDev     float64 `json:"baseline_std_dev,omitempty"`
	Configured bool    `json:"configured"`
}

// CompareBenchmark computes the percentile of a score within the baseline
// distribution using a normal-CDF approximation. With no baseline
// configured the comparison degrades gracefully: the organization's own
// score is returned verbatim as the percentile.
func CompareBenchmark(score float64, baseline *Baseline) BenchmarkComparison {
	if baseline == nil || baseline.StdDev <= 0 {
		return BenchmarkComparison{Score: score, Percentile: score}
	}
	z := (score - baseline.Mean) / baseline.StdDev
	return BenchmarkComparison{
		Score:      score,
		Percentile: normalCDF(z) * 100,
		Mean:       baseline.Mean,
		StdDev:     baseline.StdDev,
		Configured: true,
	}
}

// normalCDF approximates the standard normal CDF via the error function.
func normalCDF(z float64) float64 {
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}
