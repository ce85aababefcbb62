package environment

import (
	"math"

	"greenhouse/internal/models"
)

// trendThreshold is the slope (°C per day) a series must exceed to count as
// rising or falling; smaller slopes are noise.
const trendThreshold = 0.1

// AnalyzeTemperature computes mean/min/max and a linear trend over the
// temperature column. An empty series yields nil statistics and TrendUnknown.
func AnalyzeTemperature(obs []models.Observation) models.TemperatureMetrics {
	values := make([]float64, len(obs))
	for i, o := range obs {
		values[i] = o.Temperature
	}
	return analyzeValues(values)
}

func analyzeValues(values []float64) models.TemperatureMetrics {
	metrics := models.TemperatureMetrics{Trend: models.TrendUnknown}
	if len(values) == 0 {
		return metrics
	}

	mean := calculateMean(values)
	min, max := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		min = math.Min(min, v)
		max = math.Max(max, v)
	}
	metrics.Mean = &mean
	metrics.Min = &min
	metrics.Max = &max
	metrics.Trend = classifyTrend(values)
	return metrics
}

func classifyTrend(values []float64) models.Trend {
	if len(values) <= 1 {
		return models.TrendUnknown
	}
	slope := calculateSlope(values)
	switch {
	case slope > trendThreshold:
		return models.TrendRising
	case slope < -trendThreshold:
		return models.TrendFalling
	default:
		return models.TrendStable
	}
}

// calculateSlope fits values against their index 0..n-1 by ordinary least squares
func calculateSlope(values []float64) float64 {
	n := float64(len(values))
	xMean := (n - 1) / 2
	yMean := calculateMean(values)

	var num, den float64
	for i, y := range values {
		dx := float64(i) - xMean
		num += dx * (y - yMean)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}

func calculateMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
