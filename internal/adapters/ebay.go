package adapters

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/voltmark/hwpricer/internal/domain"
)

const (
	ebayTokenURL  = "https://api.ebay.com/identity/v1/oauth2/token"
	ebayBrowseURL = "https://api.ebay.com/buy/browse/v1/item_summary/search"
	ebayScope     = "https://api.ebay.com/oauth/api_scope"

	// Refresh tokens a bit before eBay expires them so in-flight requests
	// never race the deadline.
	ebayTokenSafetyMargin = 5 * time.Minute
)

// EbayAdapter reads fixed-price new-condition listings from the eBay Browse
// API using an application (client-credentials) token.
type EbayAdapter struct {
	clientID     string
	clientSecret string
	tokenURL     string
	browseURL    string
	httpClient   *http.Client
	log          zerolog.Logger

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewEbayAdapter creates the adapter. It is unavailable until both
// credentials are configured.
func NewEbayAdapter(clientID, clientSecret string, log zerolog.Logger) *EbayAdapter {
	return &EbayAdapter{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     ebayTokenURL,
		browseURL:    ebayBrowseURL,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		log:          log.With().Str("adapter", "ebay").Logger(),
	}
}

// Name implements domain.SourceAdapter.
func (e *EbayAdapter) Name() string { return "ebay" }

// Available implements domain.SourceAdapter.
func (e *EbayAdapter) Available() bool {
	return e.clientID != "" && e.clientSecret != ""
}

type ebayTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// accessToken returns a cached application token, minting a new one when the
// cached token is missing or inside the safety margin.
func (e *EbayAdapter) accessToken(ctx context.Context) (string, error) {
	e.tokenMu.Lock()
	defer e.tokenMu.Unlock()

	if e.token != "" && time.Now().Before(e.tokenExpiry.Add(-ebayTokenSafetyMargin)) {
		return e.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", ebayScope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	basic := base64.StdEncoding.EncodeToString([]byte(e.clientID + ":" + e.clientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", domain.WrapAdapterError(e.Name(), domain.ErrAuthFailed, "token request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &domain.AdapterError{
			Adapter: e.Name(),
			Code:    domain.ErrAuthFailed,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("token endpoint returned status %d", resp.StatusCode),
		}
	}

	var tok ebayTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", domain.WrapAdapterError(e.Name(), domain.ErrAuthFailed, "failed to decode token response", err)
	}
	if tok.AccessToken == "" {
		return "", domain.NewAdapterError(e.Name(), domain.ErrAuthFailed, "token response carried no access token")
	}

	e.token = tok.AccessToken
	e.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	e.log.Debug().Time("expiry", e.tokenExpiry).Msg("Minted eBay application token")
	return e.token, nil
}

type ebaySearchResponse struct {
	ItemSummaries []struct {
		Title string `json:"title"`
		Price struct {
			Value    string `json:"value"`
			Currency string `json:"currency"`
		} `json:"price"`
		Seller struct {
			Username string `json:"username"`
		} `json:"seller"`
		ItemWebURL string `json:"itemWebUrl"`
	} `json:"itemSummaries"`
}

// FetchPrices implements domain.SourceAdapter.
func (e *EbayAdapter) FetchPrices(ctx context.Context, assetID string) ([]domain.Observation, error) {
	if !e.Available() {
		return nil, domain.NewAdapterError(e.Name(), domain.ErrAuthMissing, "eBay credentials not configured")
	}
	term := primarySearchTerm(assetID)
	if term == "" {
		return nil, nil
	}

	token, err := e.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", term)
	params.Set("filter", "conditions:{NEW},buyingOptions:{FIXED_PRICE},priceCurrency:USD")
	params.Set("limit", "50")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.browseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-EBAY-C-MARKETPLACE-ID", "EBAY_US")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapAdapterError(e.Name(), domain.ErrFetchFailed, "search request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// Force a fresh token on the next round.
		e.tokenMu.Lock()
		e.token = ""
		e.tokenMu.Unlock()
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		e.log.Warn().Int("status", resp.StatusCode).Str("body", string(body)).Msg("Browse API returned non-200")
		return nil, &domain.AdapterError{
			Adapter: e.Name(),
			Code:    domain.ErrHTTPError,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("browse API returned status %d", resp.StatusCode),
		}
	}

	var search ebaySearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&search); err != nil {
		return nil, domain.WrapAdapterError(e.Name(), domain.ErrFetchFailed, "failed to decode search response", err)
	}

	now := time.Now().UnixMilli()
	var obs []domain.Observation
	for _, item := range search.ItemSummaries {
		if item.Price.Currency != "" && item.Price.Currency != "USD" {
			continue
		}
		price, err := strconv.ParseFloat(item.Price.Value, 64)
		if err != nil || !AcceptablePrice(price) || !RelevantListing(assetID, item.Title) {
			continue
		}
		obs = append(obs, domain.Observation{
			AssetID:   assetID,
			Price:     price,
			Source:    e.Name(),
			Timestamp: now,
			Metadata: &domain.ObservationMetadata{
				ProductName: item.Title,
				Seller:      item.Seller.Username,
				Condition:   domain.ConditionNew,
				URL:         item.ItemWebURL,
			},
		})
	}

	e.log.Debug().Str("asset", assetID).Int("listings", len(obs)).Msg("Fetched eBay listings")
	return obs, nil
}
