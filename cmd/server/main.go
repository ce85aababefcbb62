package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"greenhouse/internal/api"
	"greenhouse/internal/config"
	"greenhouse/internal/coordinator"
	"greenhouse/internal/database"
	"greenhouse/internal/ledger"
	"greenhouse/internal/predictor"
	"greenhouse/internal/server"
	"greenhouse/internal/stream"

	"github.com/go-redis/redis/v8"
)

// progressEvery is how often (in epochs) training progress is logged
const progressEvery = 10

func main() {
	cfg, err := config.Load(config.ResolvePath(getConfigPath()))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var redisClient *redis.Client
	if cfg.History.Backend == config.BackendRedis || cfg.Redis.PublishRecommendations {
		redisCfg := cfg.RedisConfig()
		redisClient = redis.NewClient(&redis.Options{
			Addr:     redisCfg.Addr,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis at %s: %v", redisCfg.Addr, err)
		}
	}

	store, closeStore, err := openHistoryStore(cfg, redisClient)
	if err != nil {
		log.Fatalf("Failed to open history: %v", err)
	}
	defer closeStore()
	hist := ledger.Open(store)

	pred := predictor.New(cfg.Model.Config, cfg.Model.Dir)
	pred.OnProgress(func(s predictor.EpochStats) {
		if s.Epoch%progressEvery == 0 || s.Epoch == s.Epochs {
			log.Printf("Training epoch %d/%d: loss %.6f", s.Epoch, s.Epochs, s.Loss)
		}
	})
	if predictor.HasArtifacts(cfg.Model.Dir) {
		if err := pred.Load(cfg.Model.Dir); err != nil {
			log.Printf("Warning: saved model in %s could not be loaded, starting untrained: %v", cfg.Model.Dir, err)
		} else {
			log.Printf("✓ Loaded trained model from %s", cfg.Model.Dir)
		}
	}

	location := cfg.Locations[0]
	coord := coordinator.New(coordinator.Config{
		Location:          location.Name,
		Crops:             cfg.TemperatureRanges(),
		Moisture:          cfg.MoistureRanges(),
		MinTrainingPoints: cfg.Model.MinTrainingPoints,
	}, api.NewPowerClient(cfg.Weather.BaseURL), pred, hist)

	if cfg.Redis.PublishRecommendations {
		coord.SetPublisher(stream.NewPublisher(redisClient, cfg.RedisConfig()))
	}
	if cfg.Crop != "" {
		log.Println(coord.SetCrop(cfg.Crop).Message)
	}

	httpServer := server.NewServer(coord, server.FetchDefaults{Location: location, Days: cfg.Weather.Days})

	log.Printf("Starting server on %s (history: %s, model: %s)", cfg.Server.Addr, cfg.History.Backend, pred.State())
	if err := httpServer.Start(cfg.Server.Addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func getConfigPath() string {
	if path := os.Getenv("GREENHOUSE_CONFIG"); path != "" {
		return path
	}
	return "./config.yaml"
}

// openHistoryStore returns the configured history backend and its cleanup func
func openHistoryStore(cfg *config.Config, redisClient *redis.Client) (ledger.DocumentStore, func(), error) {
	switch cfg.History.Backend {
	case config.BackendMySQL:
		db, err := database.NewDB(config.GetDatabaseDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return db.DocumentStore(cfg.History.Key), func() { db.Close() }, nil
	case config.BackendRedis:
		return ledger.NewRedisDocumentStore(redisClient, cfg.History.Key), func() {}, nil
	default:
		return ledger.NewFileStore(cfg.History.Path), func() {}, nil
	}
}
