package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltmark/hwpricer/internal/domain"
	"github.com/voltmark/hwpricer/internal/events"
)

type stubAdapter struct {
	name string
	obs  []float64
	err  error
}

func (s *stubAdapter) Name() string    { return s.name }
func (s *stubAdapter) Available() bool { return true }

func (s *stubAdapter) FetchPrices(_ context.Context, assetID string) ([]domain.Observation, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.Observation, 0, len(s.obs))
	for _, p := range s.obs {
		out = append(out, domain.Observation{
			AssetID:   assetID,
			Price:     p,
			Source:    s.name,
			Timestamp: time.Now().UnixMilli(),
		})
	}
	return out, nil
}

func newTestAggregator(adapters ...domain.SourceAdapter) *Aggregator {
	return New(adapters, Options{TWAPWindow: 5 * time.Minute}, zerolog.Nop())
}

func TestUpdatePriceThreeSourceFusion(t *testing.T) {
	agg := newTestAggregator(
		&stubAdapter{name: "ebay", obs: []float64{1599.99}},
		&stubAdapter{name: "amazon", obs: []float64{1605.00, 1610.00}},
		&stubAdapter{name: "bestbuy", obs: []float64{1598.00}},
	)

	update, err := agg.UpdatePrice(context.Background(), "GPU_RTX4090")
	require.NoError(t, err)
	require.NotNil(t, update.Asset)

	assert.InDelta(t, 1602.495, update.Asset.Price, 1e-9)
	assert.Equal(t, int64(160249500000), update.Asset.PriceInt)
	assert.Equal(t, 3, update.Asset.SourceCount)
	assert.True(t, update.Changed)

	byName := make(map[string]domain.SourceDetail)
	for _, s := range update.Asset.Sources {
		byName[s.Name] = s
	}
	require.Len(t, byName, 3)
	assert.InDelta(t, 1599.99, byName["eBay"].Price, 1e-9)
	assert.InDelta(t, 1607.50, byName["Amazon API"].Price, 1e-9)
	assert.InDelta(t, 1598.00, byName["Best Buy API"].Price, 1e-9)
	assert.Equal(t, 2, byName["Amazon API"].Count)
}

func TestUpdatePriceRejectsOutlier(t *testing.T) {
	agg := newTestAggregator(
		&stubAdapter{name: "a", obs: []float64{1199, 1201, 1200, 1198, 1202, 9999}},
	)

	update, err := agg.UpdatePrice(context.Background(), "GPU_RTX4080")
	require.NoError(t, err)
	assert.InDelta(t, 1200, update.Asset.Price, 1e-9)
	require.Len(t, update.Asset.Sources, 1)
	assert.Equal(t, 5, update.Asset.Sources[0].Count)
}

func TestUpdatePriceSurvivesAdapterFailure(t *testing.T) {
	agg := newTestAggregator(
		&stubAdapter{name: "a", err: domain.NewAdapterError("a", domain.ErrBlocked, "blocked")},
		&stubAdapter{name: "b", err: errors.New("connection refused")},
		&stubAdapter{name: "c", obs: []float64{800, 802}},
	)

	update, err := agg.UpdatePrice(context.Background(), "GPU_RTX4070")
	require.NoError(t, err)
	assert.InDelta(t, 801, update.Asset.Price, 1e-9)
	assert.Equal(t, 1, update.Asset.SourceCount)
}

func TestUpdatePriceEmptyRound(t *testing.T) {
	agg := newTestAggregator(&stubAdapter{name: "a"})

	update, err := agg.UpdatePrice(context.Background(), "RAM_DDR5_32")
	require.NoError(t, err)
	assert.Zero(t, update.Asset.Price)
	assert.Zero(t, update.Asset.PriceInt)
	assert.Zero(t, update.Asset.SourceCount)
	assert.Empty(t, update.Asset.Sources)
}

func TestUpdatePriceUnknownAsset(t *testing.T) {
	agg := newTestAggregator(&stubAdapter{name: "a", obs: []float64{100}})
	_, err := agg.UpdatePrice(context.Background(), "CPU_9800X3D")
	assert.Error(t, err)
}

func TestUpdatePriceIdempotentForStableInputs(t *testing.T) {
	agg := newTestAggregator(
		&stubAdapter{name: "a", obs: []float64{1600, 1604}},
		&stubAdapter{name: "b", obs: []float64{1602}},
	)

	first, err := agg.UpdatePrice(context.Background(), "GPU_RTX4090")
	require.NoError(t, err)
	second, err := agg.UpdatePrice(context.Background(), "GPU_RTX4090")
	require.NoError(t, err)

	assert.Equal(t, first.Asset.Price, second.Asset.Price)
	assert.Equal(t, first.Asset.Sources, second.Asset.Sources)
	// A repeat at the same price is not a change.
	assert.False(t, second.Changed)
}

func TestChangeDetectionThreshold(t *testing.T) {
	adapter := &stubAdapter{name: "a", obs: []float64{1000}}
	agg := newTestAggregator(adapter)

	first, err := agg.UpdatePrice(context.Background(), "GPU_RTX4090")
	require.NoError(t, err)
	assert.True(t, first.Changed)

	// 0.4% move: below the 0.5% default threshold.
	adapter.obs = []float64{1004}
	second, err := agg.UpdatePrice(context.Background(), "GPU_RTX4090")
	require.NoError(t, err)
	assert.False(t, second.Changed)

	// 0.6% move from the last installed price (1004).
	adapter.obs = []float64{1010.1}
	third, err := agg.UpdatePrice(context.Background(), "GPU_RTX4090")
	require.NoError(t, err)
	assert.True(t, third.Changed)
}

func TestIdenticalPricesPassThrough(t *testing.T) {
	agg := newTestAggregator(
		&stubAdapter{name: "a", obs: []float64{750, 750}},
		&stubAdapter{name: "b", obs: []float64{750, 750}},
	)

	update, err := agg.UpdatePrice(context.Background(), "GPU_RTX4070")
	require.NoError(t, err)
	assert.Equal(t, 750.0, update.Asset.Price)
	assert.Equal(t, 750.0, update.Asset.TWAP)
}

func TestUpdatedAtMonotonic(t *testing.T) {
	agg := newTestAggregator(&stubAdapter{name: "a", obs: []float64{100}})

	clock := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	agg.SetClock(func() time.Time { return clock })

	first, err := agg.UpdatePrice(context.Background(), "RAM_DDR5_64")
	require.NoError(t, err)

	// Clock regression must not move updatedAt backwards.
	clock = clock.Add(-10 * time.Second)
	second, err := agg.UpdatePrice(context.Background(), "RAM_DDR5_64")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, second.Asset.UpdatedAt, first.Asset.UpdatedAt)
}

func TestUpdateAllPricesCoversCatalog(t *testing.T) {
	agg := newTestAggregator(&stubAdapter{name: "a", obs: []float64{500}})

	updates := agg.UpdateAllPrices(context.Background())
	assert.Len(t, updates, 5)

	all := agg.GetAllPrices()
	assert.Len(t, all, 5)
	assert.NotNil(t, agg.GetPrice("GPU_RTX4090"))
	assert.Nil(t, agg.GetPrice("GPU_RTX5090"))
}

func TestGetPriceBeforeFirstRound(t *testing.T) {
	agg := newTestAggregator(&stubAdapter{name: "a", obs: []float64{500}})
	assert.Nil(t, agg.GetPrice("GPU_RTX4090"))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Simulated", DisplayName("mock"))
	assert.Equal(t, "Newegg", DisplayName("newegg-scraper"))
	assert.Equal(t, "B&H Photo", DisplayName("bhphoto-scraper"))
	assert.Equal(t, "eBay", DisplayName("ebay"))
	assert.Equal(t, "custom-source", DisplayName("custom-source"))
}

type captureHistory struct {
	records chan domain.HardwareHistoryRecord
}

func (c *captureHistory) InsertHardware(_ context.Context, rec domain.HardwareHistoryRecord) error {
	c.records <- rec
	return nil
}

func TestHistoryAppendedPerRound(t *testing.T) {
	history := &captureHistory{records: make(chan domain.HardwareHistoryRecord, 1)}
	agg := New(
		[]domain.SourceAdapter{&stubAdapter{name: "a", obs: []float64{321}}},
		Options{TWAPWindow: 5 * time.Minute, History: history},
		zerolog.Nop(),
	)

	_, err := agg.UpdatePrice(context.Background(), "GPU_RTX4090")
	require.NoError(t, err)

	select {
	case rec := <-history.records:
		assert.Equal(t, "GPU_RTX4090", rec.AssetID)
		assert.Equal(t, 321.0, rec.Price)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for history append")
	}
}

func TestChangeEventPublished(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	ch, cancel := bus.Subscribe(4)
	defer cancel()

	agg := New(
		[]domain.SourceAdapter{&stubAdapter{name: "a", obs: []float64{1000}}},
		Options{TWAPWindow: 5 * time.Minute, Bus: bus},
		zerolog.Nop(),
	)

	// First round always counts as a change and must hit the bus.
	_, err := agg.UpdatePrice(context.Background(), "GPU_RTX4090")
	require.NoError(t, err)

	select {
	case e := <-ch:
		assert.Equal(t, events.PriceChanged, e.Type)
		assert.Equal(t, "GPU_RTX4090", e.AssetID)
		assert.Equal(t, 1000.0, e.Price)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change event")
	}

	// A sub-threshold move publishes nothing.
	_, err = agg.UpdatePrice(context.Background(), "GPU_RTX4090")
	require.NoError(t, err)
	select {
	case e := <-ch:
		t.Fatalf("unexpected event: %+v", e)
	default:
	}
}
