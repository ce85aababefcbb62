package predictor

import (
	"fmt"
	"math"
)

// MinMaxScaler maps values to [0,1] with scaled = (x - DataMin) * Scale + Min.
// Fields are one-element arrays, one entry per feature.
type MinMaxScaler struct {
	Min     []float64 `json:"min"`
	Scale   []float64 `json:"scale"`
	DataMin []float64 `json:"data_min"`
	DataMax []float64 `json:"data_max"`
}

// FitMinMax fits a single-feature scaler. A constant series gets Scale 1.
func FitMinMax(values []float64) (*MinMaxScaler, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: cannot fit scaler on an empty series", ErrInsufficientData)
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}
	return &MinMaxScaler{
		Min:     []float64{0},
		Scale:   []float64{1 / span},
		DataMin: []float64{lo},
		DataMax: []float64{hi},
	}, nil
}

func (s *MinMaxScaler) Transform(x float64) float64 {
	return (x-s.DataMin[0])*s.Scale[0] + s.Min[0]
}

func (s *MinMaxScaler) InverseTransform(y float64) float64 {
	return (y-s.Min[0])/s.Scale[0] + s.DataMin[0]
}

func (s *MinMaxScaler) TransformAll(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = s.Transform(v)
	}
	return out
}

func (s *MinMaxScaler) validate() error {
	if len(s.Min) != 1 || len(s.Scale) != 1 || len(s.DataMin) != 1 || len(s.DataMax) != 1 {
		return fmt.Errorf("scaler must hold exactly one feature")
	}
	if s.Scale[0] == 0 || math.IsNaN(s.Scale[0]) || math.IsInf(s.Scale[0], 0) {
		return fmt.Errorf("scaler has invalid scale %v", s.Scale[0])
	}
	return nil
}
