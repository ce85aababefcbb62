package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"greenhouse/internal/api"
	"greenhouse/internal/coordinator"
	"greenhouse/internal/environment"
	"greenhouse/internal/ledger"
	"greenhouse/internal/models"
	"greenhouse/internal/predictor"
)

func rawSeries(values ...float64) []models.RawPoint {
	points := make([]models.RawPoint, len(values))
	for i, v := range values {
		points[i] = models.RawPoint{Date: fmt.Sprintf("202403%02d", i+1), Value: v}
	}
	return points
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	source := &api.StaticSource{
		Temperature:  rawSeries(29, 30, 31),
		SoilMoisture: rawSeries(0.2, 0.25, 0.25),
	}
	coord := coordinator.New(coordinator.Config{
		Crops:             environment.CropRanges{"Tomato": {Min: 21, Max: 27}, "Lettuce": {Min: 16, Max: 20}},
		Moisture:          environment.CropRanges{"Tomato": {Min: 50, Max: 80}},
		MinTrainingPoints: 10,
	}, source, predictor.New(predictor.DefaultConfig(), ""), ledger.Open(&ledger.MemoryStore{}))

	return NewServer(coord, FetchDefaults{
		Location: models.Location{Name: "Bengaluru", Latitude: 12.97, Longitude: 77.59},
		Days:     10,
	})
}

func do(t *testing.T, s *Server, method, target, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	resp := w.Result()
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]interface{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
	}
	return resp, decoded
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)

	resp, body := do(t, s, http.MethodGet, "/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("handleHealth() status = %v, want %v", resp.StatusCode, http.StatusOK)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("handleHealth() content-type = %v, want application/json", contentType)
	}

	if body["status"] != "healthy" {
		t.Errorf("handleHealth() status in body = %v, want healthy", body["status"])
	}

	if body["time"] == "" {
		t.Error("handleHealth() time should not be empty")
	}

	if body["model_state"] != "untrained" {
		t.Errorf("handleHealth() model_state = %v, want untrained", body["model_state"])
	}

	history, ok := body["history"].(map[string]interface{})
	if !ok || history["created_at"] == nil || history["last_updated"] == nil {
		t.Errorf("handleHealth() history = %v, want created_at and last_updated", body["history"])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		method string
		target string
	}{
		{http.MethodGet, "/fetch"},
		{http.MethodGet, "/crop"},
		{http.MethodPost, "/analysis"},
		{http.MethodGet, "/train"},
		{http.MethodGet, "/retrain"},
		{http.MethodGet, "/model/reset"},
		{http.MethodGet, "/recommendations"},
		{http.MethodPost, "/performance"},
		{http.MethodGet, "/assistant"},
		{http.MethodPost, "/crop-recommendations"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			resp, _ := do(t, s, tt.method, tt.target, "")
			if resp.StatusCode != http.StatusMethodNotAllowed {
				t.Errorf("status = %v, want %v", resp.StatusCode, http.StatusMethodNotAllowed)
			}
		})
	}
}

func TestHandleFetch_InvalidRequest(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "invalid json"},
		{"latitude too high", `{"latitude": 91, "longitude": 0}`},
		{"latitude too low", `{"latitude": -91, "longitude": 0}`},
		{"longitude too high", `{"latitude": 0, "longitude": 181}`},
		{"longitude too low", `{"latitude": 0, "longitude": -181}`},
		{"negative days", `{"days": -1}`},
		{"too many days", `{"days": 400}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := do(t, s, http.MethodPost, "/fetch", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("handleFetch() status = %v, want %v", resp.StatusCode, http.StatusBadRequest)
			}
		})
	}
}

func TestPipeline(t *testing.T) {
	s := newTestServer(t)

	// before any data
	resp, body := do(t, s, http.MethodPost, "/recommendations", "")
	if resp.StatusCode != http.StatusBadRequest || body["status"] != "error" {
		t.Errorf("recommendations without data = %v %v, want 400 error", resp.StatusCode, body["status"])
	}

	// defaults fill in the location
	resp, body = do(t, s, http.MethodPost, "/fetch", "")
	if resp.StatusCode != http.StatusOK || body["status"] != "success" {
		t.Fatalf("fetch = %v %v", resp.StatusCode, body)
	}
	if body["message"] != "Successfully fetched data for location (12.97, 77.59)" {
		t.Errorf("fetch message = %v", body["message"])
	}

	resp, body = do(t, s, http.MethodPost, "/crop", `{"crop": "Rice"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("crop Rice status = %v, want 400 (%v)", resp.StatusCode, body["message"])
	}
	resp, _ = do(t, s, http.MethodPost, "/crop", `{"crop": "Tomato"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("crop Tomato status = %v, want 200", resp.StatusCode)
	}

	resp, body = do(t, s, http.MethodGet, "/analysis", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("analysis status = %v", resp.StatusCode)
	}
	tomato, ok := body["crop_suitability"].(map[string]interface{})["Tomato"].(map[string]interface{})
	if !ok {
		t.Errorf("analysis crop_suitability = %v, want Tomato entry", body["crop_suitability"])
	} else if tomato["ideal_range"] != "21°C – 27°C" {
		t.Errorf("analysis Tomato ideal_range = %v, want 21°C – 27°C", tomato["ideal_range"])
	}

	resp, body = do(t, s, http.MethodPost, "/train", "")
	if resp.StatusCode != http.StatusBadRequest || body["message"] != "Not enough data for training" {
		t.Errorf("train = %v %v, want not enough data", resp.StatusCode, body["message"])
	}

	resp, body = do(t, s, http.MethodPost, "/recommendations", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("recommendations status = %v (%v)", resp.StatusCode, body["message"])
	}
	recs := body["recommendations"].(map[string]interface{})
	if recs["fan"] != "ON" || recs["water_pump"] != "ON" {
		t.Errorf("recommendations = %v, want fan and water pump ON", recs)
	}
	if body["ideal_range"] != "21°C – 27°C" {
		t.Errorf("ideal_range = %v", body["ideal_range"])
	}
	prediction := body["prediction"].(map[string]interface{})
	if prediction["source"] != "mean" || prediction["predicted_temperature"] != 30.0 {
		t.Errorf("prediction = %v, want mean 30", prediction)
	}

	resp, body = do(t, s, http.MethodGet, "/performance", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("performance status = %v", resp.StatusCode)
	}
	perf := body["performance"].(map[string]interface{})
	if got := len(perf["recent_recommendations"].([]interface{})); got != 1 {
		t.Errorf("recent_recommendations len = %d, want 1", got)
	}
}

func TestHandleAssistant(t *testing.T) {
	s := newTestServer(t)

	resp, body := do(t, s, http.MethodPost, "/assistant", `{"question": "Any tips on pests?"}`)
	if resp.StatusCode != http.StatusOK || body["response"] == "" {
		t.Errorf("assistant = %v %v", resp.StatusCode, body)
	}

	resp, _ = do(t, s, http.MethodPost, "/assistant", `{"question": ""}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty question status = %v, want 400", resp.StatusCode)
	}
}

func TestHandleCropRecommendations(t *testing.T) {
	s := newTestServer(t)

	resp, body := do(t, s, http.MethodGet, "/crop-recommendations?temperature=24&moisture=60", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %v", resp.StatusCode)
	}
	advice := body["crop_recommendations"].(map[string]interface{})
	crops := advice["recommended_crops"].([]interface{})
	if len(crops) != 1 || crops[0] != "Tomato" {
		t.Errorf("recommended_crops = %v, want [Tomato]", crops)
	}

	resp, _ = do(t, s, http.MethodGet, "/crop-recommendations?temperature=warm&moisture=60", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("non-numeric temperature status = %v, want 400", resp.StatusCode)
	}
}

func TestPrometheusEndpoint(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics/prometheus", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %v, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "greenhouse_app_info") {
		t.Error("prometheus output missing greenhouse_app_info")
	}
}
