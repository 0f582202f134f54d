package strategies

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltmark/hwpricer/internal/domain"
)

func obsAt(price float64, source string, ts time.Time) domain.Observation {
	return domain.Observation{
		AssetID:   "GPU_RTX4090",
		Price:     price,
		Source:    source,
		Timestamp: ts.UnixMilli(),
	}
}

func TestMultiComponentTradeWeightedAndFloor(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	in := Input{
		AssetID: "GPU_RTX4090",
		Observations: []domain.Observation{
			obsAt(1600, "ebay", now),
			obsAt(1620, "ebay", now),
			obsAt(1610, "amazon", now),
		},
		Now: now,
	}

	result, ok := NewMultiComponent().Compute(in)
	require.True(t, ok)
	// Fresh same-timestamp observations: trade-weighted and sales-floor
	// agree at the plain mean.
	assert.InDelta(t, 1610, result.Price, 1e-9)
	// Two agreeing components: 0.5*(2/3) + 0.5*1
	assert.InDelta(t, 0.8333, result.Confidence, 1e-3)
}

func TestMultiComponentSourceWeights(t *testing.T) {
	now := time.Now()
	in := Input{
		Observations: []domain.Observation{
			obsAt(1000, "a", now),
			obsAt(2000, "b", now),
		},
		Weights: map[string]float64{"a": 3, "b": 1},
		Now:     now,
	}

	result, ok := NewMultiComponent().Compute(in)
	require.True(t, ok)
	// (3*1000 + 1*2000) / 4
	assert.InDelta(t, 1250, result.Price, 1e-9)
}

func TestMultiComponentSalesFloorDecay(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	m := NewMultiComponent()

	in := Input{
		Observations: []domain.Observation{
			// One half-life old: weight 0.5
			obsAt(1000, "a", now.Add(-30*time.Minute)),
			obsAt(1600, "a", now),
		},
		Now: now,
	}
	floor, ok := m.salesFloor(in)
	require.True(t, ok)
	// (0.5*1000 + 1*1600) / 1.5
	assert.InDelta(t, 1400, floor, 1e-6)
}

func TestMultiComponentWinsorizesBidAskMid(t *testing.T) {
	now := time.Now()
	in := Input{
		Observations: []domain.Observation{
			obsAt(1000, "a", now),
			obsAt(1000, "b", now),
		},
		// Mid = 1300, more than 5% above the 1000 component median.
		BestBid: 1200,
		BestAsk: 1400,
		Now:     now,
	}

	result, ok := NewMultiComponent().Compute(in)
	require.True(t, ok)
	// Components [1000, 1000, 1300] -> median 1000; 1300 clamps to 1050;
	// re-median stays 1000.
	assert.InDelta(t, 1000, result.Price, 1e-9)
}

func TestMultiComponentSkipsCrossedBook(t *testing.T) {
	m := NewMultiComponent()
	_, ok := m.bidAskMid(Input{BestBid: 1500, BestAsk: 1400})
	assert.False(t, ok)

	mid, ok := m.bidAskMid(Input{BestBid: 1400, BestAsk: 1500})
	require.True(t, ok)
	assert.Equal(t, 1450.0, mid)
}

func TestMultiComponentNoData(t *testing.T) {
	_, ok := NewMultiComponent().Compute(Input{Now: time.Now()})
	assert.False(t, ok)
}

func TestEMASmoothedConverges(t *testing.T) {
	e := NewEMASmoothed()
	start := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	first, ok := e.Compute(Input{
		AssetID:      "GPU_RTX4090",
		Observations: []domain.Observation{obsAt(1000, "a", start)},
		Now:          start,
	})
	require.True(t, ok)
	assert.Equal(t, 1000.0, first.Price)
	assert.Equal(t, 1.0, first.Confidence)

	// 40 minutes later with a 2h window: alpha = 1 - e^-1.
	later := start.Add(40 * time.Minute)
	second, ok := e.Compute(Input{
		AssetID:      "GPU_RTX4090",
		Observations: []domain.Observation{obsAt(1100, "a", later)},
		Now:          later,
	})
	require.True(t, ok)
	alpha := 1 - math.Exp(-1)
	assert.InDelta(t, alpha*1100+(1-alpha)*1000, second.Price, 1e-9)
}

func TestEMASmoothedBlendsExternal(t *testing.T) {
	e := NewEMASmoothed()
	now := time.Now()

	result, ok := e.Compute(Input{
		AssetID:      "RAM_DDR5_32",
		Observations: []domain.Observation{obsAt(120, "a", now)},
		External:     90,
		Now:          now,
	})
	require.True(t, ok)
	// 1/3 external + 2/3 EMA
	assert.InDelta(t, 90.0/3+120.0*2/3, result.Price, 1e-9)
}

func TestEMASmoothedStatePerAsset(t *testing.T) {
	e := NewEMASmoothed()
	now := time.Now()

	_, _ = e.Compute(Input{AssetID: "A", Observations: []domain.Observation{obsAt(100, "s", now)}, Now: now})
	result, ok := e.Compute(Input{AssetID: "B", Observations: []domain.Observation{obsAt(500, "s", now)}, Now: now})
	require.True(t, ok)
	assert.Equal(t, 500.0, result.Price)
}

func TestHybridFirstRoundMatchesMultiComponent(t *testing.T) {
	now := time.Now()
	in := Input{
		AssetID: "GPU_RTX4090",
		Observations: []domain.Observation{
			obsAt(1600, "a", now),
			obsAt(1620, "b", now),
		},
		Now: now,
	}

	h := NewHybrid()
	hybridResult, ok := h.Compute(in)
	require.True(t, ok)

	multiResult, ok := NewMultiComponent().Compute(in)
	require.True(t, ok)

	// The EMA initializes to its first mark, so round one passes through.
	assert.InDelta(t, multiResult.Price, hybridResult.Price, 1e-9)
	assert.InDelta(t, 0.6*multiResult.Confidence+0.4*1.0, hybridResult.Confidence, 1e-9)
}

func TestForName(t *testing.T) {
	assert.Nil(t, ForName("median"))
	assert.Equal(t, "multi-component", ForName("multi-component").Name())
	assert.Equal(t, "ema", ForName("ema").Name())
	assert.Equal(t, "hybrid", ForName("hybrid").Name())
}
