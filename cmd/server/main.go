// Package main is the entry point for the hardware price oracle. The service
// periodically fetches GPU and DDR5 listings from the configured sources,
// fuses them into per-asset prices and serves them over HTTP, including the
// external-adapter envelope consumed by on-chain feeds.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/voltmark/hwpricer/internal/adapters"
	"github.com/voltmark/hwpricer/internal/aggregator"
	"github.com/voltmark/hwpricer/internal/config"
	"github.com/voltmark/hwpricer/internal/domain"
	"github.com/voltmark/hwpricer/internal/events"
	"github.com/voltmark/hwpricer/internal/fetch"
	"github.com/voltmark/hwpricer/internal/history"
	"github.com/voltmark/hwpricer/internal/rental"
	"github.com/voltmark/hwpricer/internal/scheduler"
	"github.com/voltmark/hwpricer/internal/server"
	"github.com/voltmark/hwpricer/internal/strategies"
	"github.com/voltmark/hwpricer/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("mode", string(cfg.Mode())).Msg("Starting hardware price oracle")

	store := buildHistoryStore(cfg, log)
	if store != nil {
		defer store.Close()
	}

	sourceAdapters := buildAdapters(cfg, log)
	for _, a := range sourceAdapters {
		log.Info().Str("adapter", a.Name()).Msg("Adapter enabled")
	}

	bus := events.NewBus(log)

	aggOpts := aggregator.Options{
		TWAPWindow:      cfg.TWAPWindow,
		ChangeThreshold: cfg.PriceChangeThreshold,
		Strategy:        strategies.ForName(cfg.PricingStrategy),
		Bus:             bus,
	}
	if store != nil {
		aggOpts.History = store
	}
	agg := aggregator.New(sourceAdapters, aggOpts, log)

	// The rolling TWAP window survives restarts via a snapshot file.
	twapSnapshot := filepath.Join(cfg.DataDir, "twap_state.bin")
	if err := agg.TWAPCalculator().Load(twapSnapshot); err != nil {
		log.Warn().Err(err).Msg("Failed to load TWAP snapshot, starting empty")
	}

	marketplace := rental.NewMarketplace(cfg.RentalAPIURL, cfg.RentalAPIKey, log)
	var rentalHistory rental.HistoryAppender
	if store != nil {
		rentalHistory = store
	}
	rentalSvc := rental.NewService(marketplace, rentalHistory, rental.DefaultCacheTTL, log)

	srv := server.New(server.Config{
		Log:        log,
		Config:     cfg,
		Aggregator: agg,
		Rental:     rentalSvc,
		History:    store,
		Bus:        bus,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	sched := scheduler.New(agg, rentalSvc, store, scheduler.Options{
		HardwareInterval: cfg.UpdateInterval,
		RetentionDays:    cfg.HistoryRetentionDays,
		Bus:              bus,
	}, log)
	if err := sched.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")
	sched.Stop()

	if err := agg.TWAPCalculator().Save(twapSnapshot); err != nil {
		log.Error().Err(err).Msg("Failed to save TWAP snapshot")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Stopped")
}

// buildHistoryStore selects the history backend: local sqlite, remote REST,
// or none.
func buildHistoryStore(cfg *config.Config, log zerolog.Logger) history.Store {
	switch {
	case cfg.HistoryDBPath != "":
		store, err := history.NewSQLiteStore(cfg.HistoryDBPath, log)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.HistoryDBPath).Msg("Failed to open history database")
		}
		log.Info().Str("path", cfg.HistoryDBPath).Msg("History store: sqlite")
		return store
	case cfg.HistoryStoreURL != "":
		log.Info().Str("url", cfg.HistoryStoreURL).Msg("History store: REST")
		return history.NewRESTStore(cfg.HistoryStoreURL, cfg.HistoryStoreKey, log)
	default:
		log.Info().Msg("History store not configured, time series disabled")
		return nil
	}
}

// buildAdapters assembles the adapter set for the configured mode. API mode
// enables only adapters whose credentials are present and falls back to the
// mock when that leaves none.
func buildAdapters(cfg *config.Config, log zerolog.Logger) []domain.SourceAdapter {
	switch cfg.Mode() {
	case config.ModeScrape:
		return buildScrapers(cfg, log)
	case config.ModeDemo:
		return []domain.SourceAdapter{
			adapters.NewMockAdapter(cfg.MockVolatility, time.Now().UnixNano(), log),
		}
	default:
		var out []domain.SourceAdapter
		if cfg.EbayAppID != "" && cfg.EbayCertID != "" {
			out = append(out, adapters.NewEbayAdapter(cfg.EbayAppID, cfg.EbayCertID, log))
		}
		if cfg.AmazonAccessKey != "" && cfg.AmazonSecretKey != "" {
			out = append(out, adapters.NewAmazonAPIAdapter(cfg.AmazonAccessKey, cfg.AmazonSecretKey, cfg.AmazonPartnerTag, log))
		}
		if cfg.BestBuyAPIKey != "" {
			out = append(out, adapters.NewBestBuyAPIAdapter(cfg.BestBuyAPIKey, log))
		}
		if len(out) == 0 {
			log.Warn().Msg("No marketplace API credentials configured, falling back to mock adapter")
			out = append(out, adapters.NewMockAdapter(cfg.MockVolatility, time.Now().UnixNano(), log))
		}
		return out
	}
}

func buildScrapers(cfg *config.Config, log zerolog.Logger) []domain.SourceAdapter {
	var pool *fetch.ProxyPool
	if cfg.UseProxy && len(cfg.ProxyURLs) > 0 {
		var err error
		pool, err = fetch.NewProxyPool(cfg.ProxyURLs)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to build proxy pool")
		}
		log.Info().Int("proxies", pool.Size()).Msg("Proxy pool enabled")
	}

	var scraperAPI *fetch.ScraperAPIClient
	if cfg.ScraperAPIKey != "" {
		scraperAPI = fetch.NewScraperAPIClient(cfg.ScraperAPIKey, log)
		log.Info().Msg("Scraper API proxy enabled")
	}

	deps := adapters.ScraperDeps{
		Options:    fetch.Options{UseProxy: cfg.UseProxy},
		Pool:       pool,
		ScraperAPI: scraperAPI,
		Limiter:    fetch.NewHostLimiter(0.5, 1),
		Breakers:   fetch.NewBreakerSet(log),
	}

	return []domain.SourceAdapter{
		adapters.NewNeweggScraper(deps, log),
		adapters.NewAmazonScraper(deps, log),
		adapters.NewBestBuyScraper(deps, log),
		adapters.NewBHPhotoScraper(deps, log),
	}
}
