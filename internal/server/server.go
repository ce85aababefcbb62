package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"greenhouse/internal/coordinator"
	"greenhouse/internal/models"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxDays = 366

type FetchRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Days      int      `json:"days"`
}

type CropRequest struct {
	Crop string `json:"crop"`
}

type RetrainRequest struct {
	RefitScaler bool `json:"refit_scaler"`
}

type AssistantRequest struct {
	Question string `json:"question"`
}

// FetchDefaults fill in a fetch request that omits location or days
type FetchDefaults struct {
	Location models.Location
	Days     int
}

// Server represents the HTTP server
type Server struct {
	coord    *coordinator.Coordinator
	defaults FetchDefaults
	mux      *http.ServeMux
}

// NewServer creates a new HTTP server
func NewServer(coord *coordinator.Coordinator, defaults FetchDefaults) *Server {
	s := &Server{
		coord:    coord,
		defaults: defaults,
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/fetch", s.handleFetch)
	s.mux.HandleFunc("/crop", s.handleCrop)
	s.mux.HandleFunc("/analysis", s.handleAnalysis)
	s.mux.HandleFunc("/train", s.handleTrain)
	s.mux.HandleFunc("/retrain", s.handleRetrain)
	s.mux.HandleFunc("/model/reset", s.handleResetModel)
	s.mux.HandleFunc("/recommendations", s.handleRecommendations)
	s.mux.HandleFunc("/performance", s.handlePerformance)
	s.mux.HandleFunc("/assistant", s.handleAssistant)
	s.mux.HandleFunc("/crop-recommendations", s.handleCropRecommendations)
	s.mux.Handle("/metrics/prometheus", promhttp.Handler())

	return s
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	return http.ListenAndServe(addr, s.mux)
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeResponse maps a coordinator status onto an HTTP status
func writeResponse(w http.ResponseWriter, resp coordinator.Response) {
	status := http.StatusOK
	if !resp.OK() {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resp)
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// decodeBody decodes an optional JSON body; an empty body leaves v untouched
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// handleHealth returns the server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	summary := s.coord.Summary()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"time":        time.Now().UTC().String(),
		"crop":        summary.Crop,
		"data_points": summary.DataPoints,
		"model_state": summary.ModelState,
		"history":     summary.History,
	})
}

// handleFetch fetches and cleans weather data for a point
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var req FetchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	lat, lon := s.defaults.Location.Latitude, s.defaults.Location.Longitude
	if req.Latitude != nil {
		lat = *req.Latitude
	}
	if req.Longitude != nil {
		lon = *req.Longitude
	}
	days := req.Days
	if days == 0 {
		days = s.defaults.Days
	}

	if lat < -90 || lat > 90 {
		http.Error(w, "Latitude must be between -90 and 90", http.StatusBadRequest)
		return
	}

	if lon < -180 || lon > 180 {
		http.Error(w, "Longitude must be between -180 and 180", http.StatusBadRequest)
		return
	}

	if days < 1 || days > maxDays {
		http.Error(w, "Days must be between 1 and 366", http.StatusBadRequest)
		return
	}

	writeResponse(w, s.coord.FetchData(r.Context(), lat, lon, days))
}

func (s *Server) handleCrop(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var req CropRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeResponse(w, s.coord.SetCrop(req.Crop))
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeResponse(w, s.coord.AnalyzeConditions())
}

// handleTrain trains the model unless one is already trained
func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	writeResponse(w, s.coord.TrainModel(r.Context()))
}

func (s *Server) handleRetrain(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var req RetrainRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeResponse(w, s.coord.RetrainModel(r.Context(), req.RefitScaler))
}

func (s *Server) handleResetModel(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	writeResponse(w, s.coord.ResetModel())
}

// handleRecommendations generates recommendations for the selected crop and
// logs the prediction, recommendation and crop score to history
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	writeResponse(w, s.coord.GetRecommendations(r.Context()))
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeResponse(w, s.coord.HistoricalPerformance())
}

func (s *Server) handleAssistant(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var req AssistantRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeResponse(w, s.coord.AskAssistant(req.Question))
}

// handleCropRecommendations suggests crops for ?temperature=&moisture=
func (s *Server) handleCropRecommendations(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}

	temperature, err := strconv.ParseFloat(r.URL.Query().Get("temperature"), 64)
	if err != nil {
		http.Error(w, "temperature must be a number", http.StatusBadRequest)
		return
	}
	moisture, err := strconv.ParseFloat(r.URL.Query().Get("moisture"), 64)
	if err != nil {
		http.Error(w, "moisture must be a number", http.StatusBadRequest)
		return
	}

	writeResponse(w, s.coord.CropRecommendations(temperature, moisture))
}
