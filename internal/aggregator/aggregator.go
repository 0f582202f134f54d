// Package aggregator fuses per-adapter price observations into the canonical
// per-asset price records served by the HTTP layer.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voltmark/hwpricer/internal/catalog"
	"github.com/voltmark/hwpricer/internal/domain"
	"github.com/voltmark/hwpricer/internal/events"
	"github.com/voltmark/hwpricer/internal/outlier"
	"github.com/voltmark/hwpricer/internal/strategies"
	"github.com/voltmark/hwpricer/internal/twap"
)

// DefaultChangeThreshold is the relative move that counts as a price change.
const DefaultChangeThreshold = 0.005

// displayNames maps adapter names to their presentation form.
var displayNames = map[string]string{
	"mock":            "Simulated",
	"newegg-scraper":  "Newegg",
	"bestbuy-scraper": "Best Buy",
	"amazon-scraper":  "Amazon",
	"bhphoto-scraper": "B&H Photo",
	"ebay":            "eBay",
	"amazon":          "Amazon API",
	"bestbuy":         "Best Buy API",
}

// DisplayName returns the presentation form of an adapter name.
func DisplayName(source string) string {
	if name, ok := displayNames[source]; ok {
		return name
	}
	return source
}

// HistoryAppender receives one hardware history row per completed round.
type HistoryAppender interface {
	InsertHardware(ctx context.Context, rec domain.HardwareHistoryRecord) error
}

// Update is the outcome of one pricing round for one asset.
type Update struct {
	Asset   *domain.AggregatedPrice
	Changed bool
}

// Aggregator runs pricing rounds: fan out to adapters, filter, fuse, install.
type Aggregator struct {
	adapters  []domain.SourceAdapter
	twap      *twap.Calculator
	strategy  strategies.PricingStrategy // nil selects the plain median
	history   HistoryAppender            // nil disables history appends
	bus       *events.Bus                // nil disables change notifications
	threshold float64
	log       zerolog.Logger
	now       func() time.Time

	mu         sync.RWMutex
	lastPrices map[string]*domain.AggregatedPrice
}

// Options configures an Aggregator beyond its adapter set.
type Options struct {
	TWAPWindow      time.Duration
	ChangeThreshold float64
	Strategy        strategies.PricingStrategy
	History         HistoryAppender
	Bus             *events.Bus
}

// New creates an aggregator over the given adapters.
func New(adapters []domain.SourceAdapter, opts Options, log zerolog.Logger) *Aggregator {
	threshold := opts.ChangeThreshold
	if threshold <= 0 {
		threshold = DefaultChangeThreshold
	}
	return &Aggregator{
		adapters:   adapters,
		twap:       twap.NewCalculator(opts.TWAPWindow),
		strategy:   opts.Strategy,
		history:    opts.History,
		bus:        opts.Bus,
		threshold:  threshold,
		log:        log.With().Str("component", "aggregator").Logger(),
		now:        time.Now,
		lastPrices: make(map[string]*domain.AggregatedPrice),
	}
}

// TWAPCalculator exposes the calculator for snapshot persistence.
func (a *Aggregator) TWAPCalculator() *twap.Calculator { return a.twap }

// Adapters returns the enabled adapter set.
func (a *Aggregator) Adapters() []domain.SourceAdapter { return a.adapters }

// UpdatePrice runs one pricing round for assetID.
func (a *Aggregator) UpdatePrice(ctx context.Context, assetID string) (*Update, error) {
	if !catalog.IsHardwareAsset(assetID) {
		return nil, fmt.Errorf("unknown asset: %s", assetID)
	}
	roundID := uuid.NewString()
	log := a.log.With().Str("asset", assetID).Str("round", roundID).Logger()

	observations := a.collect(ctx, assetID, log)
	log.Debug().Int("observations", len(observations)).Msg("Round observations collected")

	filtered := outlier.FilterMAD(observations, outlier.DefaultMADThreshold)
	if removed := len(observations) - len(filtered); removed > 0 {
		log.Debug().Int("rejected", removed).Msg("Outliers rejected")
	}

	now := a.now()
	price := outlier.Median(outlier.Prices(filtered))
	if a.strategy != nil && len(filtered) > 0 {
		if result, ok := a.strategy.Compute(strategies.Input{
			AssetID:      assetID,
			Observations: filtered,
			Now:          now,
		}); ok {
			log.Debug().Str("strategy", a.strategy.Name()).
				Float64("median", price).Float64("strategy_price", result.Price).
				Float64("confidence", result.Confidence).Msg("Strategy price computed")
			price = result.Price
		}
	}

	if price > 0 {
		a.twap.Add(assetID, price, now.UnixMilli())
	}
	twapValue := price
	if v, ok := a.twap.TWAP(assetID); ok {
		twapValue = v
	}

	sources := collapseSources(filtered)
	record := &domain.AggregatedPrice{
		AssetID:     assetID,
		Price:       price,
		TWAP:        twapValue,
		PriceInt:    domain.ScaledPrice(price),
		SourceCount: len(sources),
		Timestamp:   now.UnixMilli(),
		UpdatedAt:   now.UnixMilli(),
		Currency:    "USD",
		Sources:     sources,
	}

	changed := a.install(record)
	if changed {
		log.Info().Float64("price", price).Float64("twap", twapValue).
			Int("sources", record.SourceCount).Msg("Price changed")
		if a.bus != nil {
			a.bus.Publish(events.Event{
				Type:      events.PriceChanged,
				AssetID:   record.AssetID,
				Price:     record.Price,
				PriceInt:  record.PriceInt,
				Timestamp: record.Timestamp,
			})
		}
	}

	a.appendHistory(record)
	return &Update{Asset: record, Changed: changed}, nil
}

// collect fans out to every adapter concurrently. Failures are logged and
// contribute nothing; the round continues with whatever succeeded.
func (a *Aggregator) collect(ctx context.Context, assetID string, log zerolog.Logger) []domain.Observation {
	var (
		mu  sync.Mutex
		all []domain.Observation
		wg  sync.WaitGroup
	)
	for _, adapter := range a.adapters {
		wg.Add(1)
		go func(adapter domain.SourceAdapter) {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					log.Error().Interface("panic", p).Str("adapter", adapter.Name()).Msg("Adapter panicked")
				}
			}()

			obs, err := adapter.FetchPrices(ctx, assetID)
			if err != nil {
				var aerr *domain.AdapterError
				if errors.As(err, &aerr) {
					log.Warn().Str("adapter", aerr.Adapter).Str("code", string(aerr.Code)).
						Int("status", aerr.Status).Msg("Adapter failed")
				} else {
					log.Warn().Err(err).Str("adapter", adapter.Name()).Msg("Adapter failed")
				}
				return
			}

			mu.Lock()
			all = append(all, obs...)
			mu.Unlock()
		}(adapter)
	}
	wg.Wait()
	return all
}

// collapseSources folds observations into one SourceDetail per source.
func collapseSources(obs []domain.Observation) []domain.SourceDetail {
	bySource := make(map[string][]float64)
	var order []string
	for _, o := range obs {
		if _, seen := bySource[o.Source]; !seen {
			order = append(order, o.Source)
		}
		bySource[o.Source] = append(bySource[o.Source], o.Price)
	}

	details := make([]domain.SourceDetail, 0, len(order))
	for _, source := range order {
		prices := bySource[source]
		details = append(details, domain.SourceDetail{
			Name:        DisplayName(source),
			Price:       outlier.Median(prices),
			Count:       len(prices),
			IsSimulated: source == "mock",
		})
	}
	return details
}

// install stores the record and reports whether the price moved by at least
// the change threshold. UpdatedAt never goes backwards for an asset.
func (a *Aggregator) install(record *domain.AggregatedPrice) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	previous := a.lastPrices[record.AssetID]
	if previous != nil && record.UpdatedAt < previous.UpdatedAt {
		record.UpdatedAt = previous.UpdatedAt
	}
	a.lastPrices[record.AssetID] = record

	if previous == nil || previous.Price == 0 {
		return true
	}
	return math.Abs(record.Price-previous.Price)/previous.Price >= a.threshold
}

// appendHistory persists the round result in the background.
func (a *Aggregator) appendHistory(record *domain.AggregatedPrice) {
	if a.history == nil || record.Price <= 0 {
		return
	}
	rec := domain.HardwareHistoryRecord{
		AssetID:     record.AssetID,
		Timestamp:   record.Timestamp,
		Price:       record.Price,
		TWAP:        record.TWAP,
		SourceCount: record.SourceCount,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.history.InsertHardware(ctx, rec); err != nil {
			a.log.Warn().Err(err).Str("asset", rec.AssetID).Msg("Failed to append hardware history")
		}
	}()
}

// UpdateAllPrices runs a round for every catalog asset. Per-asset failures
// are logged; the round never aborts.
func (a *Aggregator) UpdateAllPrices(ctx context.Context) []*Update {
	assets := catalog.HardwareAssetIDs()
	updates := make([]*Update, 0, len(assets))
	for _, assetID := range assets {
		update, err := a.UpdatePrice(ctx, assetID)
		if err != nil {
			a.log.Error().Err(err).Str("asset", assetID).Msg("Price update failed")
			continue
		}
		updates = append(updates, update)
	}
	return updates
}

// GetPrice returns the current record for assetID, or nil before the first
// successful round.
func (a *Aggregator) GetPrice(assetID string) *domain.AggregatedPrice {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastPrices[assetID]
}

// GetAllPrices returns a snapshot copy of the current records.
func (a *Aggregator) GetAllPrices() map[string]*domain.AggregatedPrice {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]*domain.AggregatedPrice, len(a.lastPrices))
	for k, v := range a.lastPrices {
		out[k] = v
	}
	return out
}

// SetClock overrides the time source in tests.
func (a *Aggregator) SetClock(now func() time.Time) {
	a.now = now
	a.twap.SetClock(now)
}
