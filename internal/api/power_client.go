package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"greenhouse/internal/models"
)

const (
	DefaultBaseURL = "https://power.larc.nasa.gov/api/temporal/daily/point"

	// POWER request dates are compact YYYYMMDD
	powerDateLayout = "20060102"

	ParamTemperature = "T2M"
)

// Soil moisture parameters in order of preference: root zone, profile, top layer
var moistureParams = []string{"GWETROOT", "GWETPROF", "GWETTOP"}

// DataSource provides raw daily weather tables for a point
type DataSource interface {
	GetTemperature(ctx context.Context, lat, lon float64, days int) ([]models.RawPoint, error)
	GetSoilMoisture(ctx context.Context, lat, lon float64, days int) ([]models.RawPoint, error)
}

// PowerClient is a client for the NASA POWER daily point API
type PowerClient struct {
	client  *http.Client
	baseURL string
	now     func() time.Time
}

type PowerParams struct {
	Latitude   float64
	Longitude  float64
	Start      time.Time
	End        time.Time
	Parameters []string
	Community  string
}

// NewPowerClient creates a POWER client; an empty baseURL uses the public endpoint
func NewPowerClient(baseURL string) *PowerClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &PowerClient{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
		now:     time.Now,
	}
}

// BuildURL builds the request URL for a POWER daily point query
func (c *PowerClient) BuildURL(params PowerParams) string {
	if params.Community == "" {
		params.Community = "AG"
	}

	return fmt.Sprintf("%s?start=%s&end=%s&latitude=%.4f&longitude=%.4f&community=%s&parameters=%s&format=JSON",
		c.baseURL,
		params.Start.Format(powerDateLayout),
		params.End.Format(powerDateLayout),
		params.Latitude, params.Longitude,
		params.Community,
		strings.Join(params.Parameters, ","))
}

func (c *PowerClient) params(lat, lon float64, days int, parameters []string) PowerParams {
	end := c.now().UTC()
	return PowerParams{
		Latitude:   lat,
		Longitude:  lon,
		Start:      end.AddDate(0, 0, -days),
		End:        end,
		Parameters: parameters,
	}
}

// Fetch performs one POWER request and decodes the parameter tables
func (c *PowerClient) Fetch(ctx context.Context, params PowerParams) (*models.PowerResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BuildURL(params), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch POWER data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var data models.PowerResponse
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &data, nil
}

// GetTemperature returns the daily mean air temperature (T2M) for the last days
func (c *PowerClient) GetTemperature(ctx context.Context, lat, lon float64, days int) ([]models.RawPoint, error) {
	data, err := c.Fetch(ctx, c.params(lat, lon, days, []string{ParamTemperature, "T2M_MAX", "T2M_MIN"}))
	if err != nil {
		return nil, err
	}

	table, ok := data.Properties.Parameter[ParamTemperature]
	if !ok || len(table) == 0 {
		return nil, fmt.Errorf("no %s data in POWER response", ParamTemperature)
	}
	return toRawPoints(table), nil
}

// GetSoilMoisture returns soil wetness fractions, preferring the root zone table
func (c *PowerClient) GetSoilMoisture(ctx context.Context, lat, lon float64, days int) ([]models.RawPoint, error) {
	data, err := c.Fetch(ctx, c.params(lat, lon, days, moistureParams))
	if err != nil {
		return nil, err
	}

	for _, param := range moistureParams {
		if table := data.Properties.Parameter[param]; len(table) > 0 {
			return toRawPoints(table), nil
		}
	}
	return nil, fmt.Errorf("no soil moisture data in POWER response (tried %s)", strings.Join(moistureParams, ", "))
}

func toRawPoints(table map[string]interface{}) []models.RawPoint {
	dates := make([]string, 0, len(table))
	for date := range table {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	points := make([]models.RawPoint, 0, len(dates))
	for _, date := range dates {
		points = append(points, models.RawPoint{Date: date, Value: table[date]})
	}
	return points
}
