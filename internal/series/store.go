package series

import (
	"math"
	"sort"
	"time"

	"greenhouse/internal/models"
)

// Store holds a cleaned daily observation table: unique dates in ascending order,
// no sentinel or non-finite temperatures. It is read-only after construction.
type Store struct {
	obs []models.Observation
}

// NewStore copies obs, drops invalid temperatures, sorts by date and keeps the
// last observation for a repeated date
func NewStore(obs []models.Observation) *Store {
	byDate := make(map[int64]models.Observation, len(obs))
	for _, o := range obs {
		if o.Temperature == MissingValue || math.IsNaN(o.Temperature) || math.IsInf(o.Temperature, 0) {
			continue
		}
		if o.SoilMoisture != nil {
			m := *o.SoilMoisture
			if m == MissingValue || math.IsNaN(m) || math.IsInf(m, 0) {
				o.SoilMoisture = nil
			} else {
				o.SoilMoisture = &m
			}
		}
		o.Date = o.Date.UTC().Truncate(24 * time.Hour)
		byDate[o.Date.Unix()] = o
	}

	cleaned := make([]models.Observation, 0, len(byDate))
	for _, o := range byDate {
		cleaned = append(cleaned, o)
	}
	sort.Slice(cleaned, func(i, j int) bool { return cleaned[i].Date.Before(cleaned[j].Date) })

	return &Store{obs: cleaned}
}

func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.obs)
}

// Observations returns a copy of the table
func (s *Store) Observations() []models.Observation {
	if s == nil {
		return nil
	}
	out := make([]models.Observation, len(s.obs))
	copy(out, s.obs)
	return out
}

func (s *Store) Temperatures() []float64 {
	if s == nil {
		return nil
	}
	out := make([]float64, len(s.obs))
	for i, o := range s.obs {
		out[i] = o.Temperature
	}
	return out
}

// LatestMoisture returns the soil moisture of the most recent row, if any
func (s *Store) LatestMoisture() *float64 {
	if s.Len() == 0 {
		return nil
	}
	m := s.obs[len(s.obs)-1].SoilMoisture
	if m == nil {
		return nil
	}
	v := *m
	return &v
}

// Last returns the most recent observation
func (s *Store) Last() (models.Observation, bool) {
	if s.Len() == 0 {
		return models.Observation{}, false
	}
	return s.obs[len(s.obs)-1], true
}

// Tail returns a copy of the last n observations
func (s *Store) Tail(n int) []models.Observation {
	obs := s.Observations()
	if n < 0 {
		n = 0
	}
	if len(obs) > n {
		obs = obs[len(obs)-n:]
	}
	return obs
}
