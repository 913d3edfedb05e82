// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aristath/rebalancer/internal/modules/harvesting"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidThreshold is returned for negative harvest thresholds
	ErrInvalidThreshold = errors.New("harvest thresholds must not be negative")
	// ErrInvalidSchedule is returned for cron specs that do not parse
	ErrInvalidSchedule = errors.New("invalid cron schedule")
)

// Config holds application configuration
type Config struct {
	DataDir          string // Base directory for both databases, always absolute
	Port             int
	LogLevel         string
	DevMode          bool
	MinLossPercent   decimal.Decimal
	MinLossDollars   decimal.Decimal
	CacheTTL         time.Duration
	HarvestSchedule  string // Standard 5-field cron spec
	PurgeSchedule    string
	DriftToleranceBP int
	PaperWarnValue   decimal.Decimal // Paper broker warns above this notional; zero disables
}

// Load reads configuration from a .env file, if present, and environment variables
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("REBALANCER_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		Port:             getEnvAsInt("PORT", 8080),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		MinLossPercent:   getEnvAsDecimal("HARVEST_MIN_LOSS_PERCENT", decimal.NewFromInt(5)),
		MinLossDollars:   getEnvAsDecimal("HARVEST_MIN_LOSS_DOLLARS", decimal.NewFromInt(2500)),
		CacheTTL:         getEnvAsDuration("CACHE_TTL", 5*time.Minute),
		HarvestSchedule:  getEnv("HARVEST_SCAN_SCHEDULE", "30 15 * * 1-5"),
		PurgeSchedule:    getEnv("CACHE_PURGE_SCHEDULE", "0 3 * * *"),
		DriftToleranceBP: getEnvAsInt("DRIFT_TOLERANCE_BP", 250),
		PaperWarnValue:   getEnvAsDecimal("PAPER_BROKER_WARN_VALUE", decimal.NewFromInt(50000)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks thresholds and schedules
func (c *Config) Validate() error {
	if c.MinLossPercent.IsNegative() || c.MinLossDollars.IsNegative() {
		return ErrInvalidThreshold
	}
	if c.DriftToleranceBP < 0 {
		return fmt.Errorf("drift tolerance must not be negative: %d", c.DriftToleranceBP)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache ttl must be positive: %s", c.CacheTTL)
	}
	for _, spec := range []string{c.HarvestSchedule, c.PurgeSchedule} {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("%w %q: %v", ErrInvalidSchedule, spec, err)
		}
	}
	return nil
}

// Thresholds returns the harvest loss thresholds
func (c *Config) Thresholds() harvesting.Thresholds {
	return harvesting.Thresholds{
		MinLossPercent: c.MinLossPercent,
		MinLossDollars: c.MinLossDollars,
	}
}

// PortfolioDBPath returns the path of the portfolio database
func (c *Config) PortfolioDBPath() string {
	return filepath.Join(c.DataDir, "portfolio.db")
}

// LedgerDBPath returns the path of the order and restriction ledger
func (c *Config) LedgerDBPath() string {
	return filepath.Join(c.DataDir, "ledger.db")
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

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
