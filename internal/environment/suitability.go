package environment

import (
	"math"

	"greenhouse/internal/models"
)

// penaltyPerDegree is the score lost per °C outside the ideal range
const penaltyPerDegree = 10.0

// ScoreSuitability rates every crop against the mean temperature.
// A nil mean yields an empty map.
func ScoreSuitability(ranges CropRanges, metrics models.TemperatureMetrics) map[string]models.SuitabilityResult {
	results := make(map[string]models.SuitabilityResult, len(ranges))
	if metrics.Mean == nil {
		return results
	}
	for crop, r := range ranges {
		results[crop] = scoreCrop(r, *metrics.Mean)
	}
	return results
}

func scoreCrop(r models.Range, mean float64) models.SuitabilityResult {
	status, deviation := deviationFrom(r, mean)
	score := 100.0
	if status != models.StatusIdeal {
		score = math.Max(0, 100-penaltyPerDegree*deviation)
	}
	return models.SuitabilityResult{
		Status:     status,
		Deviation:  deviation,
		Score:      score,
		IdealRange: r,
	}
}

func deviationFrom(r models.Range, v float64) (models.SuitabilityStatus, float64) {
	switch {
	case v < r.Min:
		return models.StatusBelowIdeal, r.Min - v
	case v > r.Max:
		return models.StatusAboveIdeal, v - r.Max
	default:
		return models.StatusIdeal, 0
	}
}
