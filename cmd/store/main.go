package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"greenhouse/internal/config"
	"greenhouse/internal/database"
	"greenhouse/internal/stream"

	"github.com/go-redis/redis/v8"
)

const (
	consumerGroup       = "observation_consumers"
	recommendationGroup = "recommendation_consumers"
	consumerName        = "consumer-1"
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

	observations := stream.NewConsumer(redisClient, redisCfg.Stream, consumerGroup, consumerName)
	recommendations := stream.NewConsumer(redisClient, redisCfg.RecommendationStream(), recommendationGroup, consumerName)
	for _, c := range []*stream.Consumer{observations, recommendations} {
		if err := c.EnsureGroup(context.Background()); err != nil {
			log.Fatalf("%v", err)
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-quit
		log.Println("Shutting down store service...")
		cancel()
	}()

	log.Printf("Store into db started, reading from Redis streams %s and %s. Press Ctrl+C to stop...",
		redisCfg.Stream, redisCfg.RecommendationStream())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		observations.Run(ctx, func(ctx context.Context, batch stream.ObservationBatch) error {
			if err := db.StoreObservations(batch.Location.Name, batch.Observations); err != nil {
				return err
			}
			log.Printf("Stored %s data for %s (%.2f, %.2f)",
				batch.Type, batch.Location.Name,
				batch.Location.Latitude, batch.Location.Longitude)
			return nil
		})
	}()
	go func() {
		defer wg.Done()
		recommendations.RunRecommendations(ctx, func(ctx context.Context, event stream.RecommendationEvent) error {
			if err := db.StoreRecommendation(event.Location, event.Record, event.Predicted); err != nil {
				return err
			}
			log.Printf("Stored recommendation for %s (%s) on %s", event.Location, event.Record.Crop, event.Record.Date)
			return nil
		})
	}()
	wg.Wait()

	log.Println("Store service stopped")
}

func getConfigPath() string {
	if path := os.Getenv("GREENHOUSE_CONFIG"); path != "" {
		return path
	}
	return "./config.yaml"
}
