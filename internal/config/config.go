// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AdapterMode selects which adapter set the aggregator runs with.
type AdapterMode string

const (
	// ModeScrape - retail scrapers (Newegg, Amazon, Best Buy, B&H Photo)
	ModeScrape AdapterMode = "scrape"
	// ModeDemo - deterministic mock adapter only
	ModeDemo AdapterMode = "demo"
	// ModeAPI - marketplace API adapters, filtered by credential availability
	ModeAPI AdapterMode = "api"
)

// Config holds application configuration
type Config struct {
	DataDir              string // Base directory for state files and the sqlite history store
	Port                 int
	UpdateInterval       time.Duration // Hardware price update cadence
	PriceChangeThreshold float64       // Relative change that counts as a price move
	TWAPWindow           time.Duration // Rolling TWAP window
	DemoMode             bool
	ScrapeMode           bool
	UseProxy             bool
	ProxyURLs            []string // Comma-separated proxy pool
	ScraperAPIKey        string   // Enables the third-party fetch proxy for scrapers
	PricingStrategy      string   // median (default), multi-component, ema, hybrid
	MockVolatility       float64  // Random-walk volatility for the mock adapter

	// Marketplace API credentials
	EbayAppID        string
	EbayCertID       string
	AmazonAccessKey  string
	AmazonSecretKey  string
	AmazonPartnerTag string
	BestBuyAPIKey    string

	// Rental marketplace. With no URL the adapter serves simulated offers.
	RentalAPIURL string
	RentalAPIKey string

	// History store. HistoryDBPath selects the local sqlite store; HistoryStoreURL
	// selects the remote REST store. Both empty means history is disabled.
	HistoryDBPath        string
	HistoryStoreURL      string
	HistoryStoreKey      string
	HistoryRetentionDays int

	LogLevel string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:              absDataDir,
		Port:                 getEnvAsInt("PORT", 8080),
		UpdateInterval:       time.Duration(getEnvAsInt("UPDATE_INTERVAL_MS", 30000)) * time.Millisecond,
		PriceChangeThreshold: getEnvAsFloat("PRICE_CHANGE_THRESHOLD", 0.005),
		TWAPWindow:           time.Duration(getEnvAsInt("TWAP_WINDOW_MS", 300000)) * time.Millisecond,
		DemoMode:             getEnvAsBool("DEMO_MODE", false),
		ScrapeMode:           getEnvAsBool("SCRAPE_MODE", false),
		UseProxy:             getEnvAsBool("USE_PROXY", false),
		ProxyURLs:            getEnvAsList("PROXY_URLS"),
		ScraperAPIKey:        getEnv("SCRAPER_API_KEY", ""),
		PricingStrategy:      getEnv("PRICING_STRATEGY", "median"),
		MockVolatility:       getEnvAsFloat("MOCK_VOLATILITY", 0.02),
		EbayAppID:            getEnv("EBAY_APP_ID", ""),
		EbayCertID:           getEnv("EBAY_CERT_ID", ""),
		AmazonAccessKey:      getEnv("AMAZON_ACCESS_KEY", ""),
		AmazonSecretKey:      getEnv("AMAZON_SECRET_KEY", ""),
		AmazonPartnerTag:     getEnv("AMAZON_PARTNER_TAG", ""),
		BestBuyAPIKey:        getEnv("BESTBUY_API_KEY", ""),
		RentalAPIURL:         getEnv("RENTAL_API_URL", ""),
		RentalAPIKey:         getEnv("RENTAL_API_KEY", ""),
		HistoryDBPath:        getEnv("HISTORY_DB_PATH", ""),
		HistoryStoreURL:      getEnv("HISTORY_STORE_URL", ""),
		HistoryStoreKey:      getEnv("HISTORY_STORE_KEY", ""),
		HistoryRetentionDays: getEnvAsInt("HISTORY_RETENTION_DAYS", 90),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Mode resolves the adapter mode from the configured flags.
// SCRAPE_MODE wins over DEMO_MODE; with neither set, API adapters are used
// and the aggregator falls back to the mock when none are available.
func (c *Config) Mode() AdapterMode {
	if c.ScrapeMode {
		return ModeScrape
	}
	if c.DemoMode {
		return ModeDemo
	}
	return ModeAPI
}

// HistoryConfigured reports whether any history store backend is configured.
func (c *Config) HistoryConfigured() bool {
	return c.HistoryDBPath != "" || c.HistoryStoreURL != ""
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.UpdateInterval <= 0 {
		return fmt.Errorf("UPDATE_INTERVAL_MS must be positive")
	}
	if c.TWAPWindow <= 0 {
		return fmt.Errorf("TWAP_WINDOW_MS must be positive")
	}
	if c.PriceChangeThreshold < 0 {
		return fmt.Errorf("PRICE_CHANGE_THRESHOLD must not be negative")
	}
	switch c.PricingStrategy {
	case "median", "multi-component", "ema", "hybrid":
	default:
		return fmt.Errorf("unknown PRICING_STRATEGY: %s", c.PricingStrategy)
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvAsBool accepts the usual truthy spellings ("true", "1", "TRUE").
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
