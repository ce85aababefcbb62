package config

import (
	"fmt"
	"os"
	"strconv"

	"greenhouse/internal/models"
	"greenhouse/internal/predictor"

	"gopkg.in/yaml.v3"
)

// History backends
const (
	BackendFile  = "file"
	BackendMySQL = "mysql"
	BackendRedis = "redis"
)

// Crop is a crop's ideal temperature range and, optionally, its soil moisture range
type Crop struct {
	Temperature models.Range  `yaml:"temperature"`
	Moisture    *models.Range `yaml:"moisture"`
}

// Config is loaded once at startup and passed explicitly to whoever needs it
type Config struct {
	Weather struct {
		BaseURL         string `yaml:"base_url"`
		Days            int    `yaml:"days"`
		IncrementalDays int    `yaml:"incremental_days"`
	} `yaml:"weather"`
	Locations []models.Location `yaml:"locations"`
	Crop      string            `yaml:"crop"`
	Crops     map[string]Crop   `yaml:"crops"`
	Model     struct {
		predictor.Config  `yaml:",inline"`
		Dir               string `yaml:"dir"`
		MinTrainingPoints int    `yaml:"min_training_points"`
	} `yaml:"model"`
	History struct {
		Backend string `yaml:"backend"`
		Path    string `yaml:"path"`
		Key     string `yaml:"key"`
	} `yaml:"history"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Stream   string `yaml:"stream"`
		// PublishRecommendations sends every logged recommendation to <stream>_recommendations
		PublishRecommendations bool `yaml:"publish_recommendations"`
	} `yaml:"redis"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
}

// Load reads the YAML file at configPath, applies environment overrides and validates.
// An empty path yields the defaults plus environment overrides.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}

		cfg.Crops = nil
		cfg.Locations = nil
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		if cfg.Crops == nil {
			cfg.Crops = DefaultCrops()
		}
		if cfg.Locations == nil {
			cfg.Locations = Default().Locations
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ResolvePath returns path when the file exists, otherwise "" so Load falls back to defaults
func ResolvePath(path string) string {
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// Default returns the built-in configuration
func Default() *Config {
	cfg := &Config{}
	cfg.Weather.BaseURL = "https://power.larc.nasa.gov/api/temporal/daily/point"
	cfg.Weather.Days = 10
	cfg.Weather.IncrementalDays = 2
	cfg.Locations = []models.Location{
		{Name: "Bengaluru", Latitude: 12.97, Longitude: 77.59},
	}
	cfg.Crop = "Tomato"
	cfg.Crops = DefaultCrops()
	cfg.Model.Config = predictor.DefaultConfig()
	cfg.Model.Dir = "models"
	cfg.Model.MinTrainingPoints = 10
	cfg.History.Backend = BackendFile
	cfg.History.Path = "data/memory.json"
	cfg.History.Key = "greenhouse:history"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.Stream = "greenhouse_observations"
	cfg.Server.Addr = ":8080"
	return cfg
}

// DefaultCrops returns the stock crop table
func DefaultCrops() map[string]Crop {
	moisture := func(min, max float64) *models.Range {
		return &models.Range{Min: min, Max: max}
	}
	return map[string]Crop{
		"Lettuce":     {Temperature: models.Range{Min: 16, Max: 20}, Moisture: moisture(40, 70)},
		"Tomato":      {Temperature: models.Range{Min: 21, Max: 27}, Moisture: moisture(50, 80)},
		"Bell Pepper": {Temperature: models.Range{Min: 18, Max: 24}, Moisture: moisture(50, 75)},
		"Cucumber":    {Temperature: models.Range{Min: 18, Max: 25}, Moisture: moisture(60, 90)},
		"Spinach":     {Temperature: models.Range{Min: 10, Max: 20}, Moisture: moisture(45, 75)},
		"Basil":       {Temperature: models.Range{Min: 18, Max: 25}},
		"Carrot":      {Temperature: models.Range{Min: 35, Max: 70}},
	}
}

// TemperatureRanges returns crop name -> ideal temperature range
func (c *Config) TemperatureRanges() map[string]models.Range {
	ranges := make(map[string]models.Range, len(c.Crops))
	for name, crop := range c.Crops {
		ranges[name] = crop.Temperature
	}
	return ranges
}

// MoistureRanges returns crop name -> soil moisture range for crops that define one
func (c *Config) MoistureRanges() map[string]models.Range {
	ranges := make(map[string]models.Range)
	for name, crop := range c.Crops {
		if crop.Moisture != nil {
			ranges[name] = *crop.Moisture
		}
	}
	return ranges
}

func (c *Config) applyEnvOverrides() {
	c.History.Backend = getEnv("HISTORY_BACKEND", c.History.Backend)
	c.History.Path = getEnv("HISTORY_PATH", c.History.Path)
	c.Model.Dir = getEnv("MODEL_DIR", c.Model.Dir)
	c.Server.Addr = getEnv("SERVER_ADDR", c.Server.Addr)
	c.Weather.BaseURL = getEnv("POWER_BASE_URL", c.Weather.BaseURL)
	c.Crop = getEnv("GREENHOUSE_CROP", c.Crop)

	if v := os.Getenv("WEATHER_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil {
			c.Weather.Days = days
		}
	}
}

func (c *Config) validate() error {
	if c.Weather.Days < 1 {
		return fmt.Errorf("weather.days must be positive, got %d", c.Weather.Days)
	}
	if len(c.Locations) == 0 {
		return fmt.Errorf("locations cannot be empty")
	}
	for _, loc := range c.Locations {
		if loc.Name == "" {
			return fmt.Errorf("location names cannot be empty")
		}
	}
	if len(c.Crops) == 0 {
		return fmt.Errorf("crops cannot be empty")
	}
	for name, crop := range c.Crops {
		if crop.Temperature.Min > crop.Temperature.Max {
			return fmt.Errorf("crop %s: temperature min %v exceeds max %v", name, crop.Temperature.Min, crop.Temperature.Max)
		}
		if crop.Moisture != nil && crop.Moisture.Min > crop.Moisture.Max {
			return fmt.Errorf("crop %s: moisture min %v exceeds max %v", name, crop.Moisture.Min, crop.Moisture.Max)
		}
	}
	if c.Crop != "" {
		if _, ok := c.Crops[c.Crop]; !ok {
			return fmt.Errorf("crop %q is not in the crop table", c.Crop)
		}
	}
	if err := c.Model.Config.Validate(); err != nil {
		return err
	}
	switch c.History.Backend {
	case BackendFile, BackendMySQL, BackendRedis:
	default:
		return fmt.Errorf("history.backend must be one of file, mysql, redis, got %q", c.History.Backend)
	}
	return nil
}
