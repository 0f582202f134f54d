package adapters

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltmark/hwpricer/internal/catalog"
)

func TestMockAdapterEmitsListings(t *testing.T) {
	m := NewMockAdapter(0.02, 1, zerolog.Nop())

	obs, err := m.FetchPrices(context.Background(), "GPU_RTX4090")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(obs), 3)
	require.LessOrEqual(t, len(obs), 7)

	asset, _ := catalog.LookupHardware("GPU_RTX4090")
	for _, o := range obs {
		assert.Equal(t, "GPU_RTX4090", o.AssetID)
		assert.Equal(t, "mock", o.Source)
		assert.Greater(t, o.Price, 0.0)
		// Walk is clamped to [0.5, 2] x base, listing variance is +/- 1%.
		assert.GreaterOrEqual(t, o.Price, asset.BasePrice*0.5*0.99)
		assert.LessOrEqual(t, o.Price, asset.BasePrice*2*1.01)
		require.NotNil(t, o.Metadata)
		assert.Equal(t, "simulated", o.Metadata.Seller)
	}
}

func TestMockAdapterDeterministicWithSeed(t *testing.T) {
	a := NewMockAdapter(0.02, 42, zerolog.Nop())
	b := NewMockAdapter(0.02, 42, zerolog.Nop())

	for round := 0; round < 5; round++ {
		oa, err := a.FetchPrices(context.Background(), "RAM_DDR5_64")
		require.NoError(t, err)
		ob, err := b.FetchPrices(context.Background(), "RAM_DDR5_64")
		require.NoError(t, err)

		require.Equal(t, len(oa), len(ob))
		for i := range oa {
			assert.Equal(t, oa[i].Price, ob[i].Price)
		}
	}
}

func TestMockAdapterUnknownAsset(t *testing.T) {
	m := NewMockAdapter(0.02, 1, zerolog.Nop())
	obs, err := m.FetchPrices(context.Background(), "GPU_NOPE")
	require.NoError(t, err)
	assert.Empty(t, obs)
}
