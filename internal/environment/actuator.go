package environment

import (
	"fmt"
	"strings"

	"greenhouse/internal/models"
)

const (
	// hysteresisBand keeps the fan and heater from chattering at the range edges
	hysteresisBand = 1.0
	// moistureThreshold is the soil moisture (%) below which the pump runs
	moistureThreshold = 30.0
)

const (
	reasonInsufficientData = "Insufficient data"
	reasonAllOptimal       = "All conditions within optimal range"
)

// ActuatorRules maps temperature and moisture readings to fan, heater and pump states
type ActuatorRules struct {
	ranges CropRanges
}

func NewActuatorRules(ranges CropRanges) *ActuatorRules {
	return &ActuatorRules{ranges: ranges}
}

// Recommend never fails: an unknown crop or a nil mean gives all-OFF with
// "Insufficient data" as the reasoning
func (ar *ActuatorRules) Recommend(crop string, metrics models.TemperatureMetrics, soilMoisture *float64) models.ActuatorRecommendation {
	rec := models.ActuatorRecommendation{
		Fan:       models.Off,
		Heater:    models.Off,
		WaterPump: models.Off,
	}

	r, err := ar.ranges.Lookup(crop)
	if err != nil || metrics.Mean == nil {
		rec.Reasoning = reasonInsufficientData
		return rec
	}

	mean := *metrics.Mean
	rec.Temperature = &mean
	if soilMoisture != nil {
		m := *soilMoisture
		rec.SoilMoisture = &m
	}

	var reasons []string
	if mean > r.Max+hysteresisBand {
		rec.Fan = models.On
		reasons = append(reasons, fmt.Sprintf("Fan ON because temperature exceeds optimal range by %.2f°C", mean-r.Max))
	} else if mean < r.Min-hysteresisBand {
		rec.Heater = models.On
		reasons = append(reasons, fmt.Sprintf("Heater ON because temperature is below optimal range by %.2f°C", r.Min-mean))
	}

	if soilMoisture != nil && *soilMoisture < moistureThreshold {
		rec.WaterPump = models.On
		reasons = append(reasons, fmt.Sprintf("Water pump ON because soil moisture (%.1f%%) is below threshold", *soilMoisture))
	}

	if len(reasons) == 0 {
		rec.Reasoning = reasonAllOptimal
	} else {
		rec.Reasoning = strings.Join(reasons, ". ")
	}
	return rec
}
