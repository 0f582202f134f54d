package adapters

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/voltmark/hwpricer/internal/catalog"
	"github.com/voltmark/hwpricer/internal/domain"
)

// MockAdapter emits simulated listings from a per-asset random walk around
// the catalog base price. Deterministic when constructed with a fixed seed,
// which the round-idempotence tests rely on.
type MockAdapter struct {
	mu         sync.Mutex
	rng        *rand.Rand
	current    map[string]float64
	volatility float64
	log        zerolog.Logger
}

// NewMockAdapter creates a mock with the given walk volatility (fraction of
// the base price per round, e.g. 0.02).
func NewMockAdapter(volatility float64, seed int64, log zerolog.Logger) *MockAdapter {
	if volatility <= 0 {
		volatility = 0.02
	}
	return &MockAdapter{
		rng:        rand.New(rand.NewSource(seed)),
		current:    make(map[string]float64),
		volatility: volatility,
		log:        log.With().Str("adapter", "mock").Logger(),
	}
}

// Name implements domain.SourceAdapter.
func (m *MockAdapter) Name() string { return "mock" }

// Available implements domain.SourceAdapter. The mock needs nothing.
func (m *MockAdapter) Available() bool { return true }

// FetchPrices walks the asset's price and emits 3-7 listings with small
// inter-listing variance.
func (m *MockAdapter) FetchPrices(_ context.Context, assetID string) ([]domain.Observation, error) {
	asset, ok := catalog.LookupHardware(assetID)
	if !ok {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	price, ok := m.current[assetID]
	if !ok {
		price = asset.BasePrice
	}

	// Bounded walk: one step of +/- volatility, mean-reverting toward the
	// base so a long demo run does not drift into nonsense.
	step := (m.rng.Float64()*2 - 1) * m.volatility * asset.BasePrice
	reversion := 0.05 * (asset.BasePrice - price)
	price += step + reversion
	if price < asset.BasePrice*0.5 {
		price = asset.BasePrice * 0.5
	}
	if price > asset.BasePrice*2 {
		price = asset.BasePrice * 2
	}
	m.current[assetID] = price

	count := 3 + m.rng.Intn(5) // 3..7 listings
	now := time.Now().UnixMilli()
	obs := make([]domain.Observation, 0, count)
	for i := 0; i < count; i++ {
		listing := price * (1 + (m.rng.Float64()*2-1)*0.01)
		obs = append(obs, domain.Observation{
			AssetID:   assetID,
			Price:     listing,
			Source:    m.Name(),
			Timestamp: now,
			Metadata: &domain.ObservationMetadata{
				ProductName: asset.DisplayName,
				Seller:      "simulated",
				Condition:   domain.ConditionNew,
			},
		})
	}

	m.log.Debug().Str("asset", assetID).Int("listings", count).Float64("walk", price).Msg("Simulated listings")
	return obs, nil
}
