package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/voltmark/hwpricer/internal/domain"
)

const bestBuyProductsURL = "https://api.bestbuy.com/v1/products"

// BestBuyAPIAdapter reads listings from the official Best Buy Products API.
type BestBuyAPIAdapter struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewBestBuyAPIAdapter creates the adapter; unavailable without a key.
func NewBestBuyAPIAdapter(apiKey string, log zerolog.Logger) *BestBuyAPIAdapter {
	return &BestBuyAPIAdapter{
		apiKey:     apiKey,
		baseURL:    bestBuyProductsURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log.With().Str("adapter", "bestbuy").Logger(),
	}
}

// Name implements domain.SourceAdapter.
func (b *BestBuyAPIAdapter) Name() string { return "bestbuy" }

// Available implements domain.SourceAdapter.
func (b *BestBuyAPIAdapter) Available() bool { return b.apiKey != "" }

type bestBuyProductsResponse struct {
	Products []struct {
		Name               string  `json:"name"`
		SalePrice          float64 `json:"salePrice"`
		RegularPrice       float64 `json:"regularPrice"`
		OnlineAvailability bool    `json:"onlineAvailability"`
		URL                string  `json:"url"`
	} `json:"products"`
}

// FetchPrices implements domain.SourceAdapter.
func (b *BestBuyAPIAdapter) FetchPrices(ctx context.Context, assetID string) ([]domain.Observation, error) {
	if !b.Available() {
		return nil, domain.NewAdapterError(b.Name(), domain.ErrAuthMissing, "Best Buy API key not configured")
	}
	term := primarySearchTerm(assetID)
	if term == "" {
		return nil, nil
	}

	// The products endpoint takes the query inside the path segment:
	// /v1/products(search=rtx 4090)?...
	query := fmt.Sprintf("(search=%s)", strings.ReplaceAll(term, " ", "&search="))
	params := url.Values{}
	params.Set("apiKey", b.apiKey)
	params.Set("format", "json")
	params.Set("show", "name,salePrice,regularPrice,onlineAvailability,url")
	params.Set("pageSize", "50")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+query+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build products request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapAdapterError(b.Name(), domain.ErrFetchFailed, "products request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
		return nil, &domain.AdapterError{
			Adapter: b.Name(),
			Code:    domain.ErrAuthFailed,
			Status:  resp.StatusCode,
			Message: "Best Buy API rejected the key",
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.AdapterError{
			Adapter: b.Name(),
			Code:    domain.ErrHTTPError,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("products API returned status %d", resp.StatusCode),
		}
	}

	var products bestBuyProductsResponse
	if err := json.NewDecoder(resp.Body).Decode(&products); err != nil {
		return nil, domain.WrapAdapterError(b.Name(), domain.ErrFetchFailed, "failed to decode products response", err)
	}

	now := time.Now().UnixMilli()
	var obs []domain.Observation
	for _, p := range products.Products {
		price := p.SalePrice
		if price <= 0 {
			price = p.RegularPrice
		}
		if !p.OnlineAvailability || !AcceptablePrice(price) || !RelevantListing(assetID, p.Name) {
			continue
		}
		obs = append(obs, domain.Observation{
			AssetID:   assetID,
			Price:     price,
			Source:    b.Name(),
			Timestamp: now,
			Metadata: &domain.ObservationMetadata{
				ProductName: p.Name,
				Seller:      "Best Buy",
				Condition:   domain.ConditionNew,
				URL:         p.URL,
			},
		})
	}

	b.log.Debug().Str("asset", assetID).Int("listings", len(obs)).Msg("Fetched Best Buy listings")
	return obs, nil
}
