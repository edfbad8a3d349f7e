package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"imprint/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Engine   EngineConfig
	Database DatabaseConfig
	Server   ServerConfig
}

// EngineConfig holds defaults for validation and calibration runs
type EngineConfig struct {
	DefaultK         int
	TileBatchSize    int
	Delta            float64
	Alpha            float64
	ModelSeed        int64
	SweepParallelism int
	MaxTiles         int
	MaxK             int
}

// DatabaseConfig holds result store connection settings
type DatabaseConfig struct {
	Driver string
	URL    string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port      string
	GinMode   string
	RateLimit float64
	RateBurst int
}

var supportedDrivers = map[string]bool{
	"sqlite3":  true,
	"postgres": true,
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Engine:   *loadEngineConfig(),
		Database: *loadDatabaseConfig(),
		Server:   *loadServerConfig(),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadEngineConfig() *EngineConfig {
	return &EngineConfig{
		DefaultK:         getEnvIntOrDefault("IMPRINT_DEFAULT_K", 1<<14),
		TileBatchSize:    getEnvIntOrDefault("IMPRINT_TILE_BATCH_SIZE", 64),
		Delta:            getEnvFloatOrDefault("IMPRINT_DELTA", 0.01),
		Alpha:            getEnvFloatOrDefault("IMPRINT_ALPHA", 0.025),
		ModelSeed:        int64(getEnvIntOrDefault("IMPRINT_MODEL_SEED", 0)),
		SweepParallelism: getEnvIntOrDefault("IMPRINT_SWEEP_PARALLELISM", 4),
		MaxTiles:         getEnvIntOrDefault("IMPRINT_MAX_TILES", 1<<20),
		MaxK:             getEnvIntOrDefault("IMPRINT_MAX_K", 1<<20),
	}
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Driver: strings.ToLower(getEnvOrDefault("DB_DRIVER", "sqlite3")),
		URL:    getEnvOrDefault("DATABASE_URL", "file:imprint.db"),
	}
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:      getEnvOrDefault("PORT", "8080"),
		GinMode:   getEnvOrDefault("GIN_MODE", "release"),
		RateLimit: getEnvFloatOrDefault("RATE_LIMIT_RPS", 20),
		RateBurst: getEnvIntOrDefault("RATE_LIMIT_BURST", 40),
	}
}

func validateConfig(config *Config) error {
	e := config.Engine
	if e.DefaultK <= 0 {
		return errors.ConfigInvalid(fmt.Sprintf("IMPRINT_DEFAULT_K must be positive, got %d", e.DefaultK))
	}
	if e.TileBatchSize <= 0 {
		return errors.ConfigInvalid(fmt.Sprintf("IMPRINT_TILE_BATCH_SIZE must be positive, got %d", e.TileBatchSize))
	}
	if !(e.Delta > 0 && e.Delta < 1) {
		return errors.ConfigInvalid(fmt.Sprintf("IMPRINT_DELTA must be in (0, 1), got %v", e.Delta))
	}
	if !(e.Alpha > 0 && e.Alpha < 1) {
		return errors.ConfigInvalid(fmt.Sprintf("IMPRINT_ALPHA must be in (0, 1), got %v", e.Alpha))
	}
	if e.SweepParallelism <= 0 {
		return errors.ConfigInvalid("IMPRINT_SWEEP_PARALLELISM must be positive")
	}
	if e.MaxTiles <= 0 || e.MaxK <= 0 {
		return errors.ConfigInvalid("IMPRINT_MAX_TILES and IMPRINT_MAX_K must be positive")
	}
	if e.DefaultK > e.MaxK {
		return errors.ConfigInvalid(fmt.Sprintf("IMPRINT_DEFAULT_K %d exceeds IMPRINT_MAX_K %d", e.DefaultK, e.MaxK))
	}
	if !supportedDrivers[config.Database.Driver] {
		return errors.ConfigInvalid(fmt.Sprintf("unsupported DB_DRIVER %q", config.Database.Driver))
	}
	if config.Database.URL == "" {
		return errors.ConfigInvalid("database URL is required")
	}
	if config.Server.RateLimit <= 0 || config.Server.RateBurst <= 0 {
		return errors.ConfigInvalid("rate limit and burst must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
