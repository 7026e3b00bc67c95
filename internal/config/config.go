// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir   string // Directory holding finboard.db (always absolute)
	Port      int
	LogLevel  string
	LogPretty bool
	DevMode   bool

	FetchTimeout          time.Duration
	FetchRateLimitPerMin  int // 0 disables outbound rate limiting
	FetchRateBurst        int
	CachePersistLimit     int
	CacheSweepSchedule    string
	WidgetPollSchedule    string
	WALCheckpointSchedule string
}

// DatabasePath returns the SQLite file inside DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "finboard.db")
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("FINBOARD_DATA_DIR", "./data")

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:               absDataDir,
		Port:                  getEnvAsInt("PORT", 8080),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogPretty:             getEnvAsBool("LOG_PRETTY", true),
		DevMode:               getEnvAsBool("DEV_MODE", false),
		FetchTimeout:          time.Duration(getEnvAsInt("FETCH_TIMEOUT_SEC", 10)) * time.Second,
		FetchRateLimitPerMin:  getEnvAsInt("FETCH_RATE_LIMIT_PER_MINUTE", 0),
		FetchRateBurst:        getEnvAsInt("FETCH_RATE_BURST", 1),
		CachePersistLimit:     getEnvAsInt("CACHE_PERSIST_LIMIT", 50),
		CacheSweepSchedule:    getEnv("CACHE_SWEEP_SCHEDULE", "@every 60s"),
		WidgetPollSchedule:    getEnv("WIDGET_POLL_SCHEDULE", "@every 1s"),
		WALCheckpointSchedule: getEnv("WAL_CHECKPOINT_SCHEDULE", "@every 10m"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d", c.Port)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT_SEC must be positive")
	}
	if c.FetchRateLimitPerMin < 0 {
		return fmt.Errorf("FETCH_RATE_LIMIT_PER_MINUTE must not be negative")
	}
	if c.FetchRateBurst < 1 {
		return fmt.Errorf("FETCH_RATE_BURST must be at least 1")
	}
	if c.CachePersistLimit < 0 {
		return fmt.Errorf("CACHE_PERSIST_LIMIT must not be negative")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
