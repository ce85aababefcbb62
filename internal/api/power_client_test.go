package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewPowerClient(t *testing.T) {
	client := NewPowerClient("")
	if client == nil {
		t.Fatal("NewPowerClient() returned nil")
	}
	if client.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %v, want %v", client.baseURL, DefaultBaseURL)
	}
}

func TestBuildURL(t *testing.T) {
	client := NewPowerClient("")
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		params PowerParams
		want   string
	}{
		{
			name: "temperature",
			params: PowerParams{
				Latitude:   12.97,
				Longitude:  77.59,
				Start:      start,
				End:        end,
				Parameters: []string{"T2M"},
			},
			want: "https://power.larc.nasa.gov/api/temporal/daily/point?start=20240301&end=20240311&latitude=12.9700&longitude=77.5900&community=AG&parameters=T2M&format=JSON",
		},
		{
			name: "soil moisture with custom community",
			params: PowerParams{
				Latitude:   -33.8688,
				Longitude:  151.2093,
				Start:      start,
				End:        end,
				Parameters: []string{"GWETROOT", "GWETPROF"},
				Community:  "RE",
			},
			want: "https://power.larc.nasa.gov/api/temporal/daily/point?start=20240301&end=20240311&latitude=-33.8688&longitude=151.2093&community=RE&parameters=GWETROOT,GWETPROF&format=JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := client.BuildURL(tt.params); got != tt.want {
				t.Errorf("BuildURL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func powerServer(t *testing.T, parameter map[string]map[string]interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("community") != "AG" {
			t.Errorf("community = %q, want AG", r.URL.Query().Get("community"))
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"properties": map[string]interface{}{"parameter": parameter},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetTemperature(t *testing.T) {
	srv := powerServer(t, map[string]map[string]interface{}{
		"T2M": {"20240302": 24.5, "20240301": -999},
	})
	client := NewPowerClient(srv.URL)

	points, err := client.GetTemperature(context.Background(), 12.97, 77.59, 10)
	if err != nil {
		t.Fatalf("GetTemperature() error = %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("GetTemperature() returned %d points, want 2", len(points))
	}
	// sorted by date, sentinel kept for the cleaning stage
	if points[0].Date != "20240301" || points[1].Date != "20240302" {
		t.Errorf("dates = %v, %v, want 20240301, 20240302", points[0].Date, points[1].Date)
	}
	if n, ok := points[1].Value.(json.Number); !ok || n.String() != "24.5" {
		t.Errorf("value = %#v, want json.Number 24.5", points[1].Value)
	}
}

func TestGetTemperature_Missing(t *testing.T) {
	srv := powerServer(t, map[string]map[string]interface{}{})
	client := NewPowerClient(srv.URL)

	if _, err := client.GetTemperature(context.Background(), 0, 0, 10); err == nil {
		t.Error("GetTemperature() expected error for missing T2M, got nil")
	}
}

func TestGetSoilMoisture_Fallback(t *testing.T) {
	tests := []struct {
		name      string
		parameter map[string]map[string]interface{}
		wantValue string
		wantErr   bool
	}{
		{
			name: "root zone preferred",
			parameter: map[string]map[string]interface{}{
				"GWETROOT": {"20240301": 0.4},
				"GWETTOP":  {"20240301": 0.9},
			},
			wantValue: "0.4",
		},
		{
			name: "profile when root zone is empty",
			parameter: map[string]map[string]interface{}{
				"GWETROOT": {},
				"GWETPROF": {"20240301": 0.5},
			},
			wantValue: "0.5",
		},
		{
			name: "top layer as last resort",
			parameter: map[string]map[string]interface{}{
				"GWETTOP": {"20240301": 0.6},
			},
			wantValue: "0.6",
		},
		{
			name:      "none available",
			parameter: map[string]map[string]interface{}{},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewPowerClient(powerServer(t, tt.parameter).URL)
			points, err := client.GetSoilMoisture(context.Background(), 0, 0, 10)
			if tt.wantErr {
				if err == nil {
					t.Error("GetSoilMoisture() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("GetSoilMoisture() error = %v", err)
			}
			if len(points) != 1 {
				t.Fatalf("GetSoilMoisture() returned %d points, want 1", len(points))
			}
			if n, _ := points[0].Value.(json.Number); n.String() != tt.wantValue {
				t.Errorf("value = %v, want %v", points[0].Value, tt.wantValue)
			}
		})
	}
}

func TestFetch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad parameters", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := NewPowerClient(srv.URL)
	_, err := client.GetTemperature(context.Background(), 0, 0, 10)
	if err == nil {
		t.Fatal("GetTemperature() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "status 422") {
		t.Errorf("error = %v, want status 422", err)
	}
}

func TestStaticSource(t *testing.T) {
	src := &StaticSource{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.GetTemperature(ctx, 0, 0, 1); err == nil {
		t.Error("GetTemperature() with cancelled context expected error, got nil")
	}
}

var _ DataSource = (*PowerClient)(nil)
var _ DataSource = (*StaticSource)(nil)
