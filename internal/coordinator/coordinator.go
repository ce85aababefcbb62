package coordinator

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"greenhouse/internal/api"
	"greenhouse/internal/environment"
	"greenhouse/internal/ledger"
	"greenhouse/internal/metrics"
	"greenhouse/internal/models"
	"greenhouse/internal/predictor"
	"greenhouse/internal/series"
	"greenhouse/internal/stream"
)

const (
	msgNoData       = "No data available. Please fetch data first."
	msgNoDataOrCrop = "Data or crop not set. Please fetch data and set crop first."
	msgNoCrop       = "Crop not set. Please set crop first."
	msgFewPoints    = "Not enough data for training"
)

// Publisher receives every logged recommendation
type Publisher interface {
	PublishRecommendation(ctx context.Context, event stream.RecommendationEvent) error
}

type Config struct {
	// Location names the series in published events; optional
	Location          string
	Crops             environment.CropRanges
	Moisture          environment.CropRanges
	MinTrainingPoints int
}

// Coordinator runs the fetch, analyze, predict, recommend and log pipeline
// for one series and one selected crop.
type Coordinator struct {
	mu        sync.Mutex
	cfg       Config
	source    api.DataSource
	predictor *predictor.Predictor
	ledger    *ledger.Ledger
	rules     *environment.ActuatorRules
	advisor   *environment.CropAdvisor
	assistant *environment.Assistant
	publisher Publisher

	store *series.Store
	crop  string
	now   func() time.Time
}

// New wires a coordinator. source may be nil when observations arrive through Ingest.
func New(cfg Config, source api.DataSource, pred *predictor.Predictor, hist *ledger.Ledger) *Coordinator {
	if cause := hist.ResetCause(); cause != nil {
		log.Printf("Warning: history could not be read, starting with an empty ledger: %v", cause)
	}
	return &Coordinator{
		cfg:       cfg,
		source:    source,
		predictor: pred,
		ledger:    hist,
		rules:     environment.NewActuatorRules(cfg.Crops),
		advisor:   environment.NewCropAdvisor(cfg.Crops, cfg.Moisture),
		assistant: environment.NewAssistant(),
		now:       time.Now,
	}
}

// SetPublisher attaches an optional recommendation event sink
func (c *Coordinator) SetPublisher(p Publisher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publisher = p
}

// FetchData pulls both datasets for a point, cleans and merges them. Missing
// soil moisture is tolerated and reported as a partial result.
func (c *Coordinator) FetchData(ctx context.Context, lat, lon float64, days int) Response {
	if c.source == nil {
		return failure("Error fetching data: no weather data source configured")
	}

	rawTemp, err := c.source.GetTemperature(ctx, lat, lon, days)
	if err != nil {
		metrics.RecordFetchError("temperature")
		return failure(fmt.Sprintf("Error fetching data: %v", err))
	}

	var moisture []series.Point
	rawMoisture, moistureErr := c.source.GetSoilMoisture(ctx, lat, lon, days)
	if moistureErr != nil {
		metrics.RecordFetchError("soil_moisture")
		log.Printf("Warning: soil moisture unavailable for (%v, %v): %v", lat, lon, moistureErr)
	} else {
		moisture = series.CleanMoisture(rawMoisture)
	}

	merged := series.Merge(series.CleanTemperatures(rawTemp), moisture)
	if len(merged) == 0 {
		return failure("Error fetching data: no valid temperature data returned")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.setObservationsLocked(merged)

	resp := success(fmt.Sprintf("Successfully fetched data for location (%v, %v)", lat, lon))
	resp.DataPoints = c.store.Len()
	if moistureErr != nil {
		resp.Status = StatusPartial
		resp.Message += fmt.Sprintf("; soil moisture unavailable: %v", moistureErr)
	}
	return resp
}

// Ingest replaces the current series with already cleaned observations
func (c *Coordinator) Ingest(observations []models.Observation) Response {
	store := series.NewStore(observations)
	if store.Len() == 0 {
		return failure("No valid observations to ingest")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.setObservationsLocked(store.Observations())

	resp := success(fmt.Sprintf("Ingested %d observations", c.store.Len()))
	resp.DataPoints = c.store.Len()
	return resp
}

func (c *Coordinator) setObservationsLocked(observations []models.Observation) {
	c.store = series.NewStore(observations)
	if c.crop != "" {
		c.updateActualTemperaturesLocked()
	}
}

// updateActualTemperaturesLocked resolves earlier predictions with observed temperatures
func (c *Coordinator) updateActualTemperaturesLocked() {
	updated := 0
	for _, obs := range c.store.Observations() {
		ok, err := c.ledger.UpdateActualTemperature(obs.Date, obs.Temperature)
		if err != nil {
			log.Printf("Warning: failed to record actual temperature for %s: %v", obs.Date.Format(models.DateLayout), err)
			continue
		}
		if ok {
			updated++
		}
	}
	if updated > 0 {
		log.Printf("✓ Resolved %d predictions with observed temperatures", updated)
	}
}

func (c *Coordinator) SetCrop(crop string) Response {
	if _, err := c.cfg.Crops.Lookup(crop); err != nil {
		return failure(fmt.Sprintf("Unknown crop: %s. Available crops: %s", crop, strings.Join(c.cfg.Crops.Names(), ", ")))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.crop = crop
	return success(fmt.Sprintf("Crop set to %s", crop))
}

func (c *Coordinator) Crop() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.crop
}

// AnalyzeConditions reports temperature metrics, every crop's suitability and the latest soil moisture
func (c *Coordinator) AnalyzeConditions() Response {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store.Len() == 0 {
		return failure(msgNoData)
	}

	tm := environment.AnalyzeTemperature(c.store.Observations())
	resp := success("")
	resp.Temperature = &tm
	resp.CropSuitability = environment.ScoreSuitability(c.cfg.Crops, tm)
	resp.SoilMoisture = c.store.LatestMoisture()
	resp.DataPoints = c.store.Len()
	return resp
}

// TrainModel trains the predictor unless it is already trained
func (c *Coordinator) TrainModel(ctx context.Context) Response {
	return c.train(func(temps []float64) (predictor.TrainingSummary, error) {
		return c.predictor.Train(ctx, temps)
	})
}

// RetrainModel trains even when a model exists; refit also refits the scaler
func (c *Coordinator) RetrainModel(ctx context.Context, refit bool) Response {
	return c.train(func(temps []float64) (predictor.TrainingSummary, error) {
		return c.predictor.Retrain(ctx, temps, predictor.RetrainOptions{RefitScaler: refit})
	})
}

func (c *Coordinator) train(run func([]float64) (predictor.TrainingSummary, error)) Response {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store.Len() == 0 {
		return failure(msgNoData)
	}
	if c.store.Len() < c.cfg.MinTrainingPoints {
		return failure(msgFewPoints)
	}

	summary, err := run(c.store.Temperatures())
	if err != nil {
		resp := failure(fmt.Sprintf("Training failed: %v", err))
		resp.ModelState = c.predictor.State().String()
		return resp
	}

	resp := success("")
	if summary.Skipped {
		resp.Message = "Model already trained; use retrain to train again"
	} else {
		metrics.RecordTraining(summary.Duration, summary.FinalLoss)
		resp.Message = fmt.Sprintf("Model trained on %d windows for %d epochs", summary.Windows, summary.Epochs)
		if !summary.Persisted && c.predictor.Dir() != "" {
			resp.Status = StatusPartial
			resp.Message += "; model artifacts were not saved"
		}
	}
	resp.Training = &summary
	resp.ModelState = summary.State.String()
	return resp
}

// ResetModel discards the trained model and its persisted artifacts
func (c *Coordinator) ResetModel() Response {
	if err := c.predictor.Reset(); err != nil {
		resp := failure(fmt.Sprintf("Error resetting model: %v", err))
		resp.ModelState = c.predictor.State().String()
		return resp
	}
	resp := success("Model reset")
	resp.ModelState = c.predictor.State().String()
	return resp
}

// GetRecommendations produces actuator states, tomorrow's temperature and
// crop advice for the selected crop, then logs them to the history ledger.
func (c *Coordinator) GetRecommendations(ctx context.Context) Response {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store.Len() == 0 || c.crop == "" {
		return failure(msgNoDataOrCrop)
	}

	tm := environment.AnalyzeTemperature(c.store.Observations())
	moisture := c.store.LatestMoisture()

	rec := models.Recommendation{ActuatorRecommendation: c.rules.Recommend(c.crop, tm, moisture)}
	if r, err := c.cfg.Crops.Lookup(c.crop); err == nil {
		rec.IdealRange = r.Celsius()
	}

	prediction := c.predictor.PredictNextDay(c.store.Temperatures())
	metrics.RecordPrediction(string(prediction.Source))

	if moisture != nil {
		advice := c.advisor.RecommendCrops(prediction.Temperature, *moisture)
		rec.RecommendedCrops = advice.RecommendedCrops
		rec.Explanation = advice.Explanation
	}

	metrics.SetActuatorState("fan", rec.Fan == models.On)
	metrics.SetActuatorState("heater", rec.Heater == models.On)
	metrics.SetActuatorState("water_pump", rec.WaterPump == models.On)

	resp := success("")
	resp.Crop = c.crop
	resp.IdealRange = rec.IdealRange
	resp.Recommendations = &rec
	resp.Prediction = &prediction

	if errs := c.logLocked(ctx, tm, rec, prediction); len(errs) > 0 {
		resp.Status = StatusPartial
		resp.Message = "Recommendations generated but history was not fully saved: " + strings.Join(errs, "; ")
	}
	return resp
}

// logLocked records tomorrow's prediction, today's recommendation and the
// crop's suitability score, returning the failures
func (c *Coordinator) logLocked(ctx context.Context, tm models.TemperatureMetrics, rec models.Recommendation, prediction predictor.Prediction) []string {
	var errs []string
	now := c.now()

	last, _ := c.store.Last()
	tomorrow := last.Date.AddDate(0, 0, 1)
	if err := c.ledger.UpsertPrediction(tomorrow, c.crop, prediction.Temperature, nil); err != nil {
		errs = append(errs, err.Error())
	}

	today := now.UTC().Truncate(24 * time.Hour)
	record := models.RecommendationRecord{Date: today.Format(models.DateLayout), Crop: c.crop, Recommendations: rec, RecordedAt: now}
	if err := c.ledger.AppendRecommendation(today, c.crop, rec); err != nil {
		errs = append(errs, err.Error())
	}

	if result, ok := environment.ScoreSuitability(c.cfg.Crops, tm)[c.crop]; ok {
		if err := c.ledger.UpdateCropPerformance(c.crop, result.Score); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if c.publisher != nil {
		predicted := prediction.Temperature
		event := stream.RecommendationEvent{Location: c.cfg.Location, Record: record, Predicted: &predicted}
		if err := c.publisher.PublishRecommendation(ctx, event); err != nil {
			log.Printf("Warning: failed to publish recommendation: %v", err)
		}
	}
	return errs
}

// HistoricalPerformance returns the selected crop's scores, prediction accuracy and recent recommendations
func (c *Coordinator) HistoricalPerformance() Response {
	crop := c.Crop()
	if crop == "" {
		return failure(msgNoCrop)
	}

	perf := c.ledger.PerformanceHistory(crop)
	resp := success("")
	resp.Crop = crop
	resp.Performance = &perf
	return resp
}

func (c *Coordinator) AskAssistant(question string) Response {
	if strings.TrimSpace(question) == "" {
		return failure("Error querying assistant: question is empty")
	}
	resp := success("")
	resp.Answer = c.assistant.Ask(question)
	return resp
}

// CropRecommendations suggests crops for a temperature (°C) and soil moisture (%)
func (c *Coordinator) CropRecommendations(temperature, moisture float64) Response {
	if !finite(temperature) || !finite(moisture) {
		return failure("Error getting crop recommendations: temperature and moisture must be finite numbers")
	}
	advice := c.advisor.RecommendCrops(temperature, moisture)
	resp := success("")
	resp.CropAdvice = &advice
	return resp
}

// Summary describes the coordinator and history state for health reporting
func (c *Coordinator) Summary() Response {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp := success("")
	resp.Crop = c.crop
	resp.DataPoints = c.store.Len()
	resp.ModelState = c.predictor.State().String()
	meta := c.ledger.Metadata()
	resp.History = &meta
	return resp
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
