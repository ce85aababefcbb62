package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the calendar-date key used by the history ledger
const DateLayout = "2006-01-02"

// Location is a named point that weather data is collected for
type Location struct {
	Name      string  `yaml:"name" json:"name"`
	Latitude  float64 `yaml:"latitude" json:"latitude"`
	Longitude float64 `yaml:"longitude" json:"longitude"`
}

// Range is an inclusive [Min, Max] interval
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

func (r Range) Contains(v float64) bool {
	return r.Min <= v && v <= r.Max
}

// Celsius renders the range the way it is shown to growers, e.g. "21°C – 27°C"
func (r Range) Celsius() string {
	return fmt.Sprintf("%s°C – %s°C", formatNumber(r.Min), formatNumber(r.Max))
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}

// RawPoint is one unprocessed value returned by a weather data source
type RawPoint struct {
	Date  string      `json:"date"`
	Value interface{} `json:"value"`
}

// Observation is one cleaned daily record
type Observation struct {
	Date         time.Time `json:"date"`
	Temperature  float64   `json:"temperature"`
	SoilMoisture *float64  `json:"soil_moisture,omitempty"`
}

type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendStable  Trend = "stable"
	TrendUnknown Trend = "unknown"
)

// TemperatureMetrics holds descriptive statistics over a temperature series.
// Mean, Min and Max are nil when the series is empty.
type TemperatureMetrics struct {
	Mean  *float64 `json:"mean"`
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
	Trend Trend    `json:"trend"`
}

type SuitabilityStatus string

const (
	StatusIdeal      SuitabilityStatus = "Ideal"
	StatusBelowIdeal SuitabilityStatus = "Below Ideal"
	StatusAboveIdeal SuitabilityStatus = "Above Ideal"
)

type SuitabilityResult struct {
	Status     SuitabilityStatus `json:"status"`
	Deviation  float64           `json:"deviation"`
	Score      float64           `json:"score"`
	IdealRange Range             `json:"ideal_range"`
}

// MarshalJSON renders IdealRange as "min°C – max°C"
func (s SuitabilityResult) MarshalJSON() ([]byte, error) {
	type plain SuitabilityResult
	return json.Marshal(struct {
		plain
		IdealRange string `json:"ideal_range"`
	}{plain(s), s.IdealRange.Celsius()})
}

type SwitchState string

const (
	On  SwitchState = "ON"
	Off SwitchState = "OFF"
)

// ActuatorRecommendation is recomputed on every request and never mutated
type ActuatorRecommendation struct {
	Fan          SwitchState `json:"fan"`
	Heater       SwitchState `json:"heater"`
	WaterPump    SwitchState `json:"water_pump"`
	Reasoning    string      `json:"reasoning"`
	Temperature  *float64    `json:"temperature"`
	SoilMoisture *float64    `json:"soil_moisture"`
}

// CropAdvice lists crops suited to a temperature/moisture pair
type CropAdvice struct {
	RecommendedCrops []string `json:"recommended_crops"`
	Explanation      string   `json:"explanation"`
	Temperature      float64  `json:"temperature"`
	Moisture         float64  `json:"moisture"`
}

// Recommendation is the payload stored with every recommendation record
type Recommendation struct {
	ActuatorRecommendation
	IdealRange       string   `json:"ideal_range"`
	RecommendedCrops []string `json:"recommended_crops,omitempty"`
	Explanation      string   `json:"explanation,omitempty"`
}

// PredictionRecord is keyed by Date alone across the whole ledger
type PredictionRecord struct {
	Date          string    `json:"date"`
	Crop          string    `json:"crop"`
	PredictedTemp float64   `json:"predicted_temp"`
	ActualTemp    *float64  `json:"actual_temp"`
	RecordedAt    time.Time `json:"recorded_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type CropHistoryEntry struct {
	Date  time.Time `json:"date"`
	Score float64   `json:"score"`
}

type RecommendationRecord struct {
	Date            string         `json:"date"`
	Crop            string         `json:"crop"`
	Recommendations Recommendation `json:"recommendations"`
	RecordedAt      time.Time      `json:"recorded_at"`
}

// Accuracy is nil-valued when no resolved predictions match
type Accuracy struct {
	MAE        *float64 `json:"mae"`
	RMSE       *float64 `json:"rmse"`
	SampleSize int      `json:"sample_size"`
}

type PerformanceHistory struct {
	Crop                  string                 `json:"crop"`
	History               []CropHistoryEntry     `json:"history"`
	PredictionAccuracy    Accuracy               `json:"prediction_accuracy"`
	RecentRecommendations []RecommendationRecord `json:"recent_recommendations"`
}

// PowerResponse is the subset of the NASA POWER daily point response we read.
// Parameter maps a parameter name to date (YYYYMMDD) -> value.
type PowerResponse struct {
	Properties struct {
		Parameter map[string]map[string]interface{} `json:"parameter"`
	} `json:"properties"`
	Messages []string `json:"messages"`
}
