package environment

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"greenhouse/internal/models"
)

var ErrUnknownCrop = errors.New("unknown crop")

// CropRanges maps a crop name to a range (temperature in °C or moisture in %)
type CropRanges map[string]models.Range

// Names returns the crop names in sorted order
func (c CropRanges) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the range for crop, or an error wrapping ErrUnknownCrop that
// lists the available crops
func (c CropRanges) Lookup(crop string) (models.Range, error) {
	r, ok := c[crop]
	if !ok {
		return models.Range{}, fmt.Errorf("%w: %s. Available crops: %s", ErrUnknownCrop, crop, strings.Join(c.Names(), ", "))
	}
	return r, nil
}
