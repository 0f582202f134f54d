package rental

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltmark/hwpricer/internal/domain"
)

func offer(perGPU float64, count int, interruptible bool) domain.RentalOffer {
	return domain.RentalOffer{
		GPUType:       "RTX_4090",
		GPUCount:      count,
		PricePerHour:  perGPU * float64(count),
		PricePerGPUHr: perGPU,
		Interruptible: interruptible,
	}
}

func TestComputeStats(t *testing.T) {
	offers := []domain.RentalOffer{
		offer(0.40, 1, false),
		offer(0.50, 2, false),
		offer(0.60, 4, false),
		offer(0.25, 1, true),
		offer(0.35, 1, true),
	}

	stats := ComputeStats("RTX_4090", offers, 1000)

	assert.Equal(t, "RTX_4090", stats.GPUType)
	assert.Equal(t, 5, stats.OfferCount)
	assert.Equal(t, 0.25, stats.MinPrice)
	assert.Equal(t, 0.60, stats.MaxPrice)
	assert.Equal(t, 0.40, stats.MedianPrice)
	assert.InDelta(t, 0.42, stats.AvgPrice, 1e-9)
	assert.InDelta(t, 0.30, stats.InterruptibleAvg, 1e-9)
	assert.InDelta(t, 0.50, stats.OnDemandAvg, 1e-9)
	assert.Equal(t, int64(1000), stats.Timestamp)
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats("H100_SXM", nil, 42)
	assert.Equal(t, 0, stats.OfferCount)
	assert.Zero(t, stats.MedianPrice)
	assert.Zero(t, stats.AvgPrice)
}

func TestMarketplaceSimulatedFallbackWithoutEndpoint(t *testing.T) {
	m := NewMarketplace("", "", zerolog.Nop())
	require.False(t, m.Available())

	offers, simulated, err := m.FetchOffers(context.Background(), "RTX_4090")
	require.NoError(t, err)
	assert.True(t, simulated)
	require.GreaterOrEqual(t, len(offers), 8)
	require.LessOrEqual(t, len(offers), 14)

	for _, o := range offers {
		assert.True(t, o.Simulated)
		assert.Equal(t, "RTX_4090", o.GPUType)
		assert.Greater(t, o.PricePerGPUHr, 0.0)
		assert.InDelta(t, o.PricePerGPUHr*float64(o.GPUCount), o.PricePerHour, 1e-9)
	}
}

func TestMarketplaceUnknownType(t *testing.T) {
	m := NewMarketplace("", "", zerolog.Nop())
	_, _, err := m.FetchOffers(context.Background(), "TPU_V5")
	assert.Error(t, err)
}

func TestMarketplaceNormalizesOffers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bundles", r.URL.Path)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"offers": [
			{"num_gpus": 2, "dph_total": 0.90, "reliability2": 0.99, "hosting_type": "datacenter"},
			{"num_gpus": 1, "dph_total": 0.30, "reliability2": 0.97, "min_bid": 0.18},
			{"num_gpus": 0, "dph_total": 1.00}
		]}`))
	}))
	t.Cleanup(srv.Close)

	m := NewMarketplace(srv.URL, "key-1", zerolog.Nop())
	offers, simulated, err := m.FetchOffers(context.Background(), "RTX_4090")
	require.NoError(t, err)
	assert.False(t, simulated)
	require.Len(t, offers, 2)

	assert.Equal(t, 0.45, offers[0].PricePerGPUHr)
	assert.Equal(t, "datacenter", offers[0].ProviderClass)
	assert.False(t, offers[0].Interruptible)

	assert.Equal(t, 0.30, offers[1].PricePerGPUHr)
	assert.True(t, offers[1].Interruptible)
	assert.Equal(t, "community", offers[1].ProviderClass)
}

func TestMarketplaceFallsBackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	m := NewMarketplace(srv.URL, "", zerolog.Nop())
	offers, simulated, err := m.FetchOffers(context.Background(), "H100_SXM")
	require.NoError(t, err)
	assert.True(t, simulated)
	assert.NotEmpty(t, offers)
}

type captureAppender struct {
	records chan domain.RentalHistoryRecord
}

func (c *captureAppender) InsertRental(_ context.Context, rec domain.RentalHistoryRecord) error {
	c.records <- rec
	return nil
}

func TestServiceCacheHit(t *testing.T) {
	svc := NewService(NewMarketplace("", "", zerolog.Nop()), nil, DefaultCacheTTL, zerolog.Nop())

	clock := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return clock })

	first, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, SourceSimulated, first.Source)
	assert.Len(t, first.Prices, 6)

	clock = clock.Add(30 * time.Second)
	second, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Timestamp, second.Timestamp)

	clock = clock.Add(31 * time.Second)
	third, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Greater(t, third.Timestamp, first.Timestamp)
}

func TestServiceAppendsHistory(t *testing.T) {
	appender := &captureAppender{records: make(chan domain.RentalHistoryRecord, 16)}
	svc := NewService(NewMarketplace("", "", zerolog.Nop()), appender, DefaultCacheTTL, zerolog.Nop())

	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	seen := make(map[string]domain.RentalHistoryRecord)
	for i := 0; i < 6; i++ {
		select {
		case rec := <-appender.records:
			seen[rec.GPUType] = rec
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for history appends")
		}
	}
	require.Len(t, seen, 6)
	rec := seen["RTX_4090"]
	assert.Greater(t, rec.AvgPrice, 0.0)
	assert.Greater(t, rec.OfferCount, 0)
}

func TestServiceOffersFreshEachCall(t *testing.T) {
	svc := NewService(NewMarketplace("", "", zerolog.Nop()), nil, DefaultCacheTTL, zerolog.Nop())

	offers, simulated, err := svc.Offers(context.Background(), "RTX_3090")
	require.NoError(t, err)
	assert.True(t, simulated)
	assert.NotEmpty(t, offers)
}

// Offers bypasses the service cache and hits the marketplace directly, so
// several HTTP readers can be generating simulated offers while a scheduled
// Refresh is doing the same. Run with -race.
func TestServiceOffersConcurrentWithRefresh(t *testing.T) {
	svc := NewService(NewMarketplace("", "", zerolog.Nop()), nil, DefaultCacheTTL, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				offers, simulated, err := svc.Offers(context.Background(), "RTX_4090")
				assert.NoError(t, err)
				assert.True(t, simulated)
				assert.NotEmpty(t, offers)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := svc.Refresh(context.Background())
		assert.NoError(t, err)
	}()
	wg.Wait()
}
