package api

import (
	"context"

	"greenhouse/internal/models"
)

// StaticSource serves fixed tables, for tests and offline runs
type StaticSource struct {
	Temperature     []models.RawPoint
	SoilMoisture    []models.RawPoint
	TemperatureErr  error
	SoilMoistureErr error
}

func (s *StaticSource) GetTemperature(ctx context.Context, lat, lon float64, days int) ([]models.RawPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.TemperatureErr != nil {
		return nil, s.TemperatureErr
	}
	return append([]models.RawPoint(nil), s.Temperature...), nil
}

func (s *StaticSource) GetSoilMoisture(ctx context.Context, lat, lon float64, days int) ([]models.RawPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.SoilMoistureErr != nil {
		return nil, s.SoilMoistureErr
	}
	return append([]models.RawPoint(nil), s.SoilMoisture...), nil
}
