// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	LogLevel string
	Port     int
	DevMode  bool
	Engine   EngineConfig
}

// EngineConfig holds tuning knobs for the funding intelligence engine
type EngineConfig struct {
	SpendingWindowMonths int // Spending analysis window (default 6)
	IncomeWindowMonths   int // Income analysis window (default 12)
	MaxAnalysisAgeHours  int // Staleness horizon for cached analyses (default 24)
	RefreshCron          string
}

// Load reads configuration from the environment, with .env support
func Load() (*Config, error) {
	// .env is optional; real deployments use environment variables
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:  getEnv("PODFUND_DATA_DIR", "./data"),
		LogLevel: getEnv("PODFUND_LOG_LEVEL", "info"),
		Port:     8090,
		DevMode:  getEnv("PODFUND_DEV_MODE", "") == "true",
		Engine: EngineConfig{
			SpendingWindowMonths: 6,
			IncomeWindowMonths:   12,
			MaxAnalysisAgeHours:  24,
			RefreshCron:          getEnv("PODFUND_REFRESH_CRON", "@hourly"),
		},
	}

	if port := os.Getenv("PODFUND_PORT"); port != "" {
		parsed, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PODFUND_PORT %q: %w", port, err)
		}
		cfg.Port = parsed
	}
	if err := overrideInt(&cfg.Engine.SpendingWindowMonths, "PODFUND_SPENDING_WINDOW_MONTHS"); err != nil {
		return nil, err
	}
	if err := overrideInt(&cfg.Engine.IncomeWindowMonths, "PODFUND_INCOME_WINDOW_MONTHS"); err != nil {
		return nil, err
	}
	if err := overrideInt(&cfg.Engine.MaxAnalysisAgeHours, "PODFUND_MAX_ANALYSIS_AGE_HOURS"); err != nil {
		return nil, err
	}

	absDataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data dir: %w", err)
	}
	cfg.DataDir = absDataDir

	return cfg, nil
}

// DatabasePath returns the absolute path of one named database file
func (c *Config) DatabasePath(name string) string {
	return filepath.Join(c.DataDir, name+".db")
}

func overrideInt(target *int, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*target = parsed
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
