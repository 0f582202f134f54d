package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltmark/hwpricer/internal/domain"
)

const bestBuyFixture = `{
  "products": [
    {"name": "NVIDIA GeForce RTX 4080 16GB Graphics Card",
     "salePrice": 1049.99, "regularPrice": 1199.99, "onlineAvailability": true,
     "url": "https://www.bestbuy.com/site/1"},
    {"name": "MSI GeForce RTX 4080 SUPRIM GPU",
     "salePrice": 0, "regularPrice": 1149.99, "onlineAvailability": true},
    {"name": "GeForce RTX 4080 Graphics Card",
     "salePrice": 1099.99, "regularPrice": 1099.99, "onlineAvailability": false},
    {"name": "Insignia 8K HDMI Cable for RTX 4080 GPU setups",
     "salePrice": 59.99, "regularPrice": 59.99, "onlineAvailability": true}
  ]
}`

func TestBestBuyAPIFetchPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.RawQuery, "apiKey=test-key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(bestBuyFixture))
	}))
	t.Cleanup(srv.Close)

	b := NewBestBuyAPIAdapter("test-key", zerolog.Nop())
	b.baseURL = srv.URL

	obs, err := b.FetchPrices(context.Background(), "GPU_RTX4080")
	require.NoError(t, err)
	require.Len(t, obs, 2)

	// Sale price wins when present, regular price otherwise.
	assert.Equal(t, 1049.99, obs[0].Price)
	assert.Equal(t, 1149.99, obs[1].Price)
	for _, o := range obs {
		assert.Equal(t, "bestbuy", o.Source)
	}
}

func TestBestBuyAPIRejectedKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	b := NewBestBuyAPIAdapter("bad-key", zerolog.Nop())
	b.baseURL = srv.URL

	_, err := b.FetchPrices(context.Background(), "GPU_RTX4080")
	var aerr *domain.AdapterError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, domain.ErrAuthFailed, aerr.Code)
}

func TestBestBuyAPIUnavailableWithoutKey(t *testing.T) {
	b := NewBestBuyAPIAdapter("", zerolog.Nop())
	assert.False(t, b.Available())

	_, err := b.FetchPrices(context.Background(), "GPU_RTX4080")
	var aerr *domain.AdapterError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, domain.ErrAuthMissing, aerr.Code)
}
