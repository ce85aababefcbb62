package series

import (
	"encoding/json"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"greenhouse/internal/models"
)

// MissingValue is the weather source's missing-data sentinel
const MissingValue = -999.0

// kelvinThreshold is the mean above which a temperature series is assumed to be in Kelvin
const kelvinThreshold = 100.0

var dateLayouts = []string{"20060102", models.DateLayout, time.RFC3339}

// Point is a single dated numeric value
type Point struct {
	Date  time.Time
	Value float64
}

// Coerce converts a raw value to float64. NaN and ±Inf are rejected.
func Coerce(v interface{}) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseDate accepts YYYYMMDD, YYYY-MM-DD and RFC3339 and truncates to the day
func ParseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// clean drops unparseable dates, non-numeric values and sentinels, sorts by
// date and keeps the last value seen for a repeated date
func clean(raw []models.RawPoint) []Point {
	byDate := make(map[time.Time]float64, len(raw))
	for _, rp := range raw {
		date, ok := ParseDate(rp.Date)
		if !ok {
			continue
		}
		value, ok := Coerce(rp.Value)
		if !ok || value == MissingValue {
			continue
		}
		byDate[date] = value
	}

	points := make([]Point, 0, len(byDate))
	for date, value := range byDate {
		points = append(points, Point{Date: date, Value: value})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points
}

// CleanTemperatures returns the temperature series in °C
func CleanTemperatures(raw []models.RawPoint) []Point {
	points := clean(raw)
	if len(points) == 0 {
		return points
	}

	if mean := meanOf(points); mean > kelvinThreshold {
		log.Printf("Temperature mean %.2f looks like Kelvin, converting to Celsius", mean)
		for i := range points {
			points[i].Value -= 273.15
		}
	}
	return points
}

// CleanMoisture returns soil moisture as a percentage. Sources report a
// fraction in [0,1]; a series with any value above 1 is taken as already in percent.
func CleanMoisture(raw []models.RawPoint) []Point {
	points := clean(raw)

	fraction := true
	for _, p := range points {
		if p.Value > 1 {
			fraction = false
			break
		}
	}
	if !fraction {
		log.Printf("Warning: soil moisture values exceed 1, treating them as percentages")
	}

	for i := range points {
		if fraction {
			points[i].Value *= 100
		}
		points[i].Value = math.Max(0, math.Min(100, points[i].Value))
	}
	return points
}

func meanOf(points []Point) float64 {
	sum := 0.0
	for _, p := range points {
		sum += p.Value
	}
	return sum / float64(len(points))
}
