package environment

import (
	"fmt"
	"math"
	"strings"

	"greenhouse/internal/models"
)

// fullMoistureRange applies to crops without a configured moisture range
var fullMoistureRange = models.Range{Min: 0, Max: 100}

var cropNotes = map[string]string{
	"Lettuce":     "Lettuce likes it cool and evenly moist. It bolts in heat and rots when waterlogged.",
	"Tomato":      "Tomatoes want warmth and steady watering. Keep air moving around the foliage to limit disease.",
	"Bell Pepper": "Peppers do best in moderate warmth with consistent moisture. Stake them once fruit sets.",
	"Cucumber":    "Cucumbers need warmth, plenty of water and good drainage. Feed them regularly.",
	"Spinach":     "Spinach is a cool-season leaf that regrows when the outer leaves are cut.",
	"Basil":       "Basil enjoys warmth and sun. Pinch the tips to keep it bushy.",
	"Carrot":      "Carrots need loose, stone-free soil and even moisture for straight roots.",
}

// CropAdvisor suggests crops for a temperature/moisture pair
type CropAdvisor struct {
	temperature CropRanges
	moisture    CropRanges
}

func NewCropAdvisor(temperature, moisture CropRanges) *CropAdvisor {
	return &CropAdvisor{temperature: temperature, moisture: moisture}
}

// RecommendCrops returns the crops whose temperature and moisture ranges both
// contain the readings. When none match, the crops closest by temperature are
// returned instead, ties included.
func (ca *CropAdvisor) RecommendCrops(temperature, moisture float64) models.CropAdvice {
	var matched []string
	for _, crop := range ca.temperature.Names() {
		m, ok := ca.moisture[crop]
		if !ok {
			m = fullMoistureRange
		}
		if ca.temperature[crop].Contains(temperature) && m.Contains(moisture) {
			matched = append(matched, crop)
		}
	}

	if len(matched) == 0 {
		matched = ca.closestByTemperature(temperature)
	}

	return models.CropAdvice{
		RecommendedCrops: matched,
		Explanation:      explain(temperature, moisture, matched),
		Temperature:      temperature,
		Moisture:         moisture,
	}
}

func (ca *CropAdvisor) closestByTemperature(temperature float64) []string {
	var closest []string
	best := math.Inf(1)
	for _, crop := range ca.temperature.Names() {
		_, d := deviationFrom(ca.temperature[crop], temperature)
		switch {
		case d < best:
			best = d
			closest = []string{crop}
		case d == best:
			closest = append(closest, crop)
		}
	}
	return closest
}

func explain(temperature, moisture float64, crops []string) string {
	if len(crops) == 0 {
		return fmt.Sprintf("No crop in the table suits %.1f°C and %.1f%% soil moisture. "+
			"Adjust the greenhouse towards the range of the crop you want to grow.", temperature, moisture)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "At %.1f°C and %.1f%% soil moisture the recommended crops are: %s.\n\n",
		temperature, moisture, strings.Join(crops, ", "))
	for _, crop := range crops {
		note, ok := cropNotes[crop]
		if !ok {
			note = "No specific notes for this crop."
		}
		fmt.Fprintf(&b, "• %s: %s\n\n", crop, note)
	}
	fmt.Fprintf(&b, "Hold the greenhouse near %.1f°C and %.1f%% soil moisture for these crops.", temperature, moisture)
	return b.String()
}
