package main

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"greenhouse/internal/config"
	"greenhouse/internal/coordinator"
	"greenhouse/internal/database"
	"greenhouse/internal/ledger"
	"greenhouse/internal/models"
	"greenhouse/internal/predictor"
	"greenhouse/internal/stream"

	"github.com/go-redis/redis/v8"
)

const (
	maxWorkers = 50
	// lookback is how much archived history each location is analyzed over
	lookback = 60 * 24 * time.Hour
)

func main() {
	cfg, err := config.Load(config.ResolvePath(getConfigPath()))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Crop == "" {
		log.Fatalf("No crop configured. Set crop in config.yaml or GREENHOUSE_CROP")
	}

	db, err := database.NewDB(config.GetDatabaseDSN())
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	locations, err := db.GetAllLocations()
	if err != nil {
		log.Fatalf("Failed to get locations from database: %v", err)
	}
	if len(locations) == 0 {
		log.Printf("No locations found in database, using configured locations")
		locations = cfg.Locations
	}
	log.Printf("Found %d locations", len(locations))

	var publisher coordinator.Publisher
	if cfg.Redis.PublishRecommendations {
		redisCfg := cfg.RedisConfig()
		redisClient := redis.NewClient(&redis.Options{
			Addr:     redisCfg.Addr,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		})
		defer redisClient.Close()
		publisher = stream.NewPublisher(redisClient, redisCfg)
	}

	pred := predictor.New(cfg.Model.Config, cfg.Model.Dir)
	if predictor.HasArtifacts(cfg.Model.Dir) {
		if err := pred.Load(cfg.Model.Dir); err != nil {
			log.Printf("Warning: saved model could not be loaded: %v", err)
		}
	}

	since := time.Now().Add(-lookback)
	if !pred.State().Trained() {
		trainOnFirstLocation(db, pred, locations[0], since)
	}

	a := &adviser{
		db:        db,
		cfg:       cfg,
		predictor: pred,
		publisher: publisher,
		since:     since,
	}

	log.Println("Running recommendations for all locations...")
	a.runForAllLocations(locations)
	log.Println("Advice run completed successfully")
}

func getConfigPath() string {
	if path := os.Getenv("GREENHOUSE_CONFIG"); path != "" {
		return path
	}
	return "./config.yaml"
}

// trainOnFirstLocation gives an untrained predictor a model before the run;
// without one every location falls back to its mean temperature
func trainOnFirstLocation(db *database.DB, pred *predictor.Predictor, loc models.Location, since time.Time) {
	observations, err := db.GetObservations(loc.Name, since)
	if err != nil {
		log.Printf("Warning: no training data for %s: %v", loc.Name, err)
		return
	}

	temps := make([]float64, len(observations))
	for i, o := range observations {
		temps[i] = o.Temperature
	}

	summary, err := pred.Train(context.Background(), temps)
	if err != nil {
		log.Printf("Warning: model training on %s failed, predictions will use the mean: %v", loc.Name, err)
		return
	}
	log.Printf("✓ Trained model on %s: %d windows, final loss %.6f", loc.Name, summary.Windows, summary.FinalLoss)
}

// AdviceResult holds the results for a single location
type AdviceResult struct {
	Location       string
	Response       coordinator.Response
	Error          string
	ProcessingTime time.Duration
}

type adviser struct {
	db        *database.DB
	cfg       *config.Config
	predictor *predictor.Predictor
	publisher coordinator.Publisher
	since     time.Time
}

func (a *adviser) runForAllLocations(locations []models.Location) {
	startTime := time.Now()

	numWorkers := maxWorkers
	if len(locations) < maxWorkers {
		numWorkers = len(locations)
	}
	log.Printf("Running recommendations for %d locations with %d workers...", len(locations), numWorkers)

	jobs := make(chan models.Location, len(locations))
	results := make(chan AdviceResult, len(locations))

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go a.worker(jobs, results, &wg)
	}

	for _, location := range locations {
		jobs <- location
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	counts := map[string]int{}
	totalErrors := 0
	locationCount := 0

	for result := range results {
		locationCount++

		if result.Error != "" {
			log.Printf("[%d/%d] ❌ %s: %s (%.1fs)",
				locationCount, len(locations), result.Location, result.Error, result.ProcessingTime.Seconds())
			totalErrors++
			continue
		}

		rec := result.Response.Recommendations
		log.Printf("[%d/%d] ✓ %s: fan %s, heater %s, pump %s, tomorrow %.1f°C (%s) (%.1fs)",
			locationCount, len(locations), result.Location,
			rec.Fan, rec.Heater, rec.WaterPump,
			result.Response.Prediction.Temperature, result.Response.Prediction.Source,
			result.ProcessingTime.Seconds())
		if result.Response.Status == coordinator.StatusPartial {
			log.Printf("    Warning: %s", result.Response.Message)
		}

		for name, state := range map[string]models.SwitchState{"fan": rec.Fan, "heater": rec.Heater, "water_pump": rec.WaterPump} {
			if state == models.On {
				counts[name]++
			}
		}
	}

	totalDuration := time.Since(startTime)
	log.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Printf("Advice complete in %.1f minutes (%.1f seconds)", totalDuration.Minutes(), totalDuration.Seconds())
	log.Printf("  Locations: %d processed, %d errors", locationCount-totalErrors, totalErrors)
	log.Printf("  Fans ON: %d, heaters ON: %d, pumps ON: %d", counts["fan"], counts["heater"], counts["water_pump"])
	if locationCount > 0 {
		log.Printf("  Avg time/location: %.1fs", totalDuration.Seconds()/float64(locationCount))
	}
	log.Printf("  Workers: %d", numWorkers)
	log.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
}

// worker advises locations from the jobs channel. Each location gets its own
// coordinator and history document; the predictor is shared.
func (a *adviser) worker(jobs <-chan models.Location, results chan<- AdviceResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for location := range jobs {
		startTime := time.Now()
		result := AdviceResult{Location: location.Name}

		observations, err := a.db.GetObservations(location.Name, a.since)
		if err != nil {
			result.Error = err.Error()
			result.ProcessingTime = time.Since(startTime)
			results <- result
			continue
		}

		result.Response = a.advise(location, observations)
		if !result.Response.OK() {
			result.Error = result.Response.Message
		}
		result.ProcessingTime = time.Since(startTime)
		results <- result
	}
}

func (a *adviser) advise(location models.Location, observations []models.Observation) coordinator.Response {
	hist := ledger.Open(a.db.DocumentStore(a.cfg.History.Key + ":" + location.Name))
	coord := coordinator.New(coordinator.Config{
		Location:          location.Name,
		Crops:             a.cfg.TemperatureRanges(),
		Moisture:          a.cfg.MoistureRanges(),
		MinTrainingPoints: a.cfg.Model.MinTrainingPoints,
	}, nil, a.predictor, hist)
	if a.publisher != nil {
		coord.SetPublisher(a.publisher)
	}

	if resp := coord.SetCrop(a.cfg.Crop); !resp.OK() {
		return resp
	}
	if resp := coord.Ingest(observations); !resp.OK() {
		return resp
	}
	return coord.GetRecommendations(context.Background())
}
