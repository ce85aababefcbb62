package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"greenhouse/internal/api"
	"greenhouse/internal/config"
	"greenhouse/internal/database"
	"greenhouse/internal/metrics"
	"greenhouse/internal/models"
	"greenhouse/internal/series"
	"greenhouse/internal/stream"

	"github.com/go-redis/redis/v8"
)

func main() {
	cfg, err := config.Load(config.ResolvePath(getConfigPath()))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	redisCfg := cfg.RedisConfig()
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	defer redisClient.Close()

	db, err := database.NewDB(config.GetDatabaseDSN())
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	client := api.NewPowerClient(cfg.Weather.BaseURL)
	publisher := stream.NewPublisher(redisClient, redisCfg)

	// Get all locations that already have data in the database
	locationsWithData, err := db.GetLocationsWithData()
	if err != nil {
		log.Fatalf("Failed to get locations with data: %v", err)
	}

	ctx := context.Background()
	var wg sync.WaitGroup

	for _, location := range cfg.Locations {
		wg.Add(1)
		go func(loc models.Location) {
			defer wg.Done()

			days, batchType := window(cfg, locationsWithData[loc.Name])
			if batchType == stream.TypeHistorical {
				log.Printf("New location detected: %s - Fetching %d days of history", loc.Name, days)
			} else {
				log.Printf("Fetching last %d days for: %s", days, loc.Name)
			}

			observations, err := collect(ctx, client, loc, days)
			if err != nil {
				log.Printf("Failed to collect data for %s: %v", loc.Name, err)
				return
			}

			if err := publisher.PublishObservations(ctx, loc, observations, batchType); err != nil {
				log.Printf("%v", err)
			}
		}(location)
	}

	wg.Wait()
	log.Printf("Data collection completed. Exiting")
}

func getConfigPath() string {
	if path := os.Getenv("GREENHOUSE_CONFIG"); path != "" {
		return path
	}
	return "./config.yaml"
}

// window picks a full history fetch for new locations and a short incremental one otherwise
func window(cfg *config.Config, hasData bool) (int, string) {
	if !hasData || cfg.Weather.IncrementalDays <= 0 {
		return cfg.Weather.Days, stream.TypeHistorical
	}
	return cfg.Weather.IncrementalDays, stream.TypeIncremental
}

// collect fetches, cleans and merges both datasets for one location. Missing
// soil moisture is logged and the temperature series is published alone.
func collect(ctx context.Context, source api.DataSource, loc models.Location, days int) ([]models.Observation, error) {
	rawTemp, err := source.GetTemperature(ctx, loc.Latitude, loc.Longitude, days)
	if err != nil {
		metrics.RecordFetchError("temperature")
		return nil, fmt.Errorf("failed to fetch temperature: %w", err)
	}

	var moisture []series.Point
	rawMoisture, err := source.GetSoilMoisture(ctx, loc.Latitude, loc.Longitude, days)
	if err != nil {
		metrics.RecordFetchError("soil_moisture")
		log.Printf("Warning: soil moisture unavailable for %s: %v", loc.Name, err)
	} else {
		moisture = series.CleanMoisture(rawMoisture)
	}

	observations := series.Merge(series.CleanTemperatures(rawTemp), moisture)
	if len(observations) == 0 {
		return nil, fmt.Errorf("no valid temperature data for %s", loc.Name)
	}
	return observations, nil
}
