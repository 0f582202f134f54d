package history

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltmark/hwpricer/internal/domain"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func hwRec(assetID string, ts int64, price float64) domain.HardwareHistoryRecord {
	return domain.HardwareHistoryRecord{
		AssetID:     assetID,
		Timestamp:   ts,
		Price:       price,
		TWAP:        price,
		SourceCount: 2,
	}
}

func TestSQLiteStoreHardwareRoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertHardware(ctx, hwRec("GPU_RTX4090", 1000, 1600)))
	require.NoError(t, store.InsertHardware(ctx, hwRec("GPU_RTX4090", 2000, 1610)))
	require.NoError(t, store.InsertHardware(ctx, hwRec("RAM_DDR5_32", 1500, 110)))

	rows, err := store.QueryHardware(ctx, Query{SeriesKey: "GPU_RTX4090"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	// Newest first
	assert.Equal(t, int64(2000), rows[0].Timestamp)
	assert.Equal(t, 1610.0, rows[0].Price)

	rows, err = store.QueryHardware(ctx, Query{StartTime: 1200, EndTime: 1800})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "RAM_DDR5_32", rows[0].AssetID)

	rows, err = store.QueryHardware(ctx, Query{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSQLiteStoreRentalRoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := domain.RentalHistoryRecord{
		GPUType:          "RTX_4090",
		Timestamp:        5000,
		AvgPrice:         0.45,
		MinPrice:         0.30,
		MaxPrice:         0.60,
		OfferCount:       12,
		InterruptibleAvg: 0.28,
		OnDemandAvg:      0.52,
	}
	require.NoError(t, store.InsertRental(ctx, rec))

	rows, err := store.QueryRental(ctx, Query{SeriesKey: "RTX_4090"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, rec, rows[0])
}

func TestSQLiteStoreStats(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertHardware(ctx, hwRec("GPU_RTX4090", 1000, 1600)))
	require.NoError(t, store.InsertHardware(ctx, hwRec("GPU_RTX4090", 3000, 1620)))
	require.NoError(t, store.InsertHardware(ctx, hwRec("RAM_DDR5_64", 2000, 200)))

	stats, err := store.HardwareStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalRecords)
	assert.Equal(t, int64(1000), stats.OldestTimestamp)
	assert.Equal(t, int64(3000), stats.NewestTimestamp)
	assert.Equal(t, int64(2), stats.PerKey["GPU_RTX4090"])
	assert.Equal(t, int64(1), stats.PerKey["RAM_DDR5_64"])
}

func TestSQLiteStoreStatsEmpty(t *testing.T) {
	store := newTestSQLiteStore(t)

	stats, err := store.RentalStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalRecords)
	assert.Zero(t, stats.OldestTimestamp)
	assert.Empty(t, stats.PerKey)
}

func TestSQLiteStoreCleanup(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertHardware(ctx, hwRec("GPU_RTX4090", 1000, 1600)))
	require.NoError(t, store.InsertHardware(ctx, hwRec("GPU_RTX4090", 9000, 1620)))
	require.NoError(t, store.InsertRental(ctx, domain.RentalHistoryRecord{GPUType: "RTX_3090", Timestamp: 500}))

	removed, err := store.Cleanup(ctx, 5000)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	rows, err := store.QueryHardware(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestRESTStoreInsertAndQuery(t *testing.T) {
	var insertedPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "svc-key", r.Header.Get("apikey"))
		switch r.Method {
		case http.MethodPost:
			insertedPath = r.URL.Path
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			assert.Equal(t, "/rest/v1/hardware_prices", r.URL.Path)
			assert.Equal(t, "eq.GPU_RTX4090", r.URL.Query().Get("asset_id"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[{"asset_id":"GPU_RTX4090","timestamp":2000,"price":1610,"twap":1605,"source_count":3}]`))
		}
	}))
	t.Cleanup(srv.Close)

	store := NewRESTStore(srv.URL, "svc-key", zerolog.Nop())

	err := store.InsertHardware(context.Background(), hwRec("GPU_RTX4090", 1000, 1600))
	require.NoError(t, err)
	assert.Equal(t, "/rest/v1/hardware_prices", insertedPath)

	rows, err := store.QueryHardware(context.Background(), Query{SeriesKey: "GPU_RTX4090"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1610.0, rows[0].Price)
	assert.Equal(t, 1605.0, rows[0].TWAP)
}

func TestRESTStoreCleanupCountsRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		assert.Contains(t, r.URL.Query().Get("timestamp"), "lt.")
		w.Header().Set("Content-Range", "0-41/42")
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	store := NewRESTStore(srv.URL, "svc-key", zerolog.Nop())
	removed, err := store.Cleanup(context.Background(), 123456)
	require.NoError(t, err)
	// Both tables report 42 deletions.
	assert.Equal(t, int64(84), removed)
}

func TestParseContentRangeTotal(t *testing.T) {
	total, err := parseContentRangeTotal("0-0/17")
	require.NoError(t, err)
	assert.Equal(t, int64(17), total)

	total, err = parseContentRangeTotal("*/*")
	require.NoError(t, err)
	assert.Zero(t, total)

	_, err = parseContentRangeTotal("")
	assert.Error(t, err)
}

func TestComputeIndicators(t *testing.T) {
	// Newest-first input, constant price: both averages converge to it.
	var records []domain.HardwareHistoryRecord
	for i := 30; i > 0; i-- {
		records = append(records, hwRec("GPU_RTX4090", int64(i*1000), 1600))
	}

	series, err := ComputeIndicators("GPU_RTX4090", records, 20)
	require.NoError(t, err)
	require.Len(t, series.Prices, 30)

	// Reordered oldest-first
	assert.Equal(t, int64(1000), series.Timestamps[0])
	assert.Equal(t, int64(30000), series.Timestamps[29])

	assert.Zero(t, series.SMA[18])
	assert.InDelta(t, 1600, series.SMA[19], 1e-9)
	assert.InDelta(t, 1600, series.SMA[29], 1e-9)
	assert.InDelta(t, 1600, series.EMA[29], 1e-9)
}

func TestComputeIndicatorsTooFewSamples(t *testing.T) {
	records := []domain.HardwareHistoryRecord{hwRec("GPU_RTX4090", 1000, 1600)}
	_, err := ComputeIndicators("GPU_RTX4090", records, 20)
	assert.Error(t, err)
}
