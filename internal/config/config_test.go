package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port:                 8080,
		UpdateInterval:       30 * time.Second,
		TWAPWindow:           5 * time.Minute,
		PriceChangeThreshold: 0.005,
		PricingStrategy:      "median",
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	bad := validConfig()
	bad.Port = 0
	assert.Error(t, bad.Validate())

	bad = validConfig()
	bad.UpdateInterval = 0
	assert.Error(t, bad.Validate())

	bad = validConfig()
	bad.TWAPWindow = -time.Second
	assert.Error(t, bad.Validate())

	bad = validConfig()
	bad.PricingStrategy = "vibes"
	assert.Error(t, bad.Validate())

	ok := validConfig()
	ok.PricingStrategy = "hybrid"
	assert.NoError(t, ok.Validate())
}

func TestModeResolution(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, ModeAPI, cfg.Mode())

	cfg.DemoMode = true
	assert.Equal(t, ModeDemo, cfg.Mode())

	// Scrape mode wins over demo mode.
	cfg.ScrapeMode = true
	assert.Equal(t, ModeScrape, cfg.Mode())
}

func TestHistoryConfigured(t *testing.T) {
	cfg := validConfig()
	assert.False(t, cfg.HistoryConfigured())

	cfg.HistoryDBPath = "/tmp/history.db"
	assert.True(t, cfg.HistoryConfigured())

	cfg.HistoryDBPath = ""
	cfg.HistoryStoreURL = "https://example.supabase.co"
	assert.True(t, cfg.HistoryConfigured())
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.UpdateInterval)
	assert.Equal(t, 5*time.Minute, cfg.TWAPWindow)
	assert.Equal(t, 0.005, cfg.PriceChangeThreshold)
	assert.Equal(t, "median", cfg.PricingStrategy)
	assert.Equal(t, 90, cfg.HistoryRetentionDays)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("PORT", "9191")
	t.Setenv("UPDATE_INTERVAL_MS", "60000")
	t.Setenv("PRICING_STRATEGY", "multi-component")
	t.Setenv("PROXY_URLS", "http://p1:8080, http://p2:8080 ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Port)
	assert.Equal(t, time.Minute, cfg.UpdateInterval)
	assert.Equal(t, "multi-component", cfg.PricingStrategy)
	assert.Equal(t, []string{"http://p1:8080", "http://p2:8080"}, cfg.ProxyURLs)
}
