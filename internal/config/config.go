package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Database
	DatabaseURL string

	// External ledger
	Ledger LedgerConfig

	// Classification
	AutoAssignThreshold float64

	// Sync
	SyncBatchSize int
	SyncMaxPages  int

	// Aggregate cache
	CacheTTL time.Duration

	// Server
	Port string
	Env  string
}

// LedgerConfig holds the external accounting ledger connection settings
type LedgerConfig struct {
	BaseURL   string
	Token     string
	RateLimit float64 // requests per second against the ledger API
	Timeout   time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	threshold, err := getEnvFloat("AUTO_ASSIGN_THRESHOLD", 0.9)
	if err != nil {
		return nil, err
	}
	batchSize, err := getEnvInt("SYNC_BATCH_SIZE", 100)
	if err != nil {
		return nil, err
	}
	maxPages, err := getEnvInt("SYNC_MAX_PAGES", 1000)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := getEnvDuration("CACHE_TTL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	ledgerRate, err := getEnvFloat("LEDGER_RATE_LIMIT", 5)
	if err != nil {
		return nil, err
	}
	ledgerTimeout, err := getEnvDuration("LEDGER_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		Ledger: LedgerConfig{
			BaseURL:   getEnv("LEDGER_BASE_URL", ""),
			Token:     getEnv("LEDGER_TOKEN", ""),
			RateLimit: ledgerRate,
			Timeout:   ledgerTimeout,
		},
		AutoAssignThreshold: threshold,
		SyncBatchSize:       batchSize,
		SyncMaxPages:        maxPages,
		CacheTTL:            cacheTTL,
		Port:                getEnv("PORT", "8080"),
		Env:                 getEnv("ENV", "development"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Ledger.BaseURL == "" {
		return fmt.Errorf("LEDGER_BASE_URL is required")
	}
	if c.AutoAssignThreshold < 0 || c.AutoAssignThreshold > 1 {
		return fmt.Errorf("AUTO_ASSIGN_THRESHOLD must be between 0 and 1")
	}
	if c.SyncBatchSize <= 0 {
		return fmt.Errorf("SYNC_BATCH_SIZE must be positive")
	}
	if c.SyncMaxPages <= 0 {
		return fmt.Errorf("SYNC_MAX_PAGES must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return parsed, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return parsed, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return parsed, nil
}
