package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/voltmark/hwpricer/internal/domain"
)

// ScraperAPIClient routes scraper fetches through a third-party fetch proxy
// that handles the anti-bot arms race upstream. Configured by SCRAPER_API_KEY.
type ScraperAPIClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewScraperAPIClient creates a fetch-proxy client.
func NewScraperAPIClient(apiKey string, log zerolog.Logger) *ScraperAPIClient {
	return &ScraperAPIClient{
		apiKey:  apiKey,
		baseURL: "https://api.scraperapi.com",
		// Rendering pages takes a while upstream.
		httpClient: &http.Client{Timeout: 70 * time.Second},
		log:        log.With().Str("component", "scraperapi").Logger(),
	}
}

// Available reports whether a key is configured.
func (c *ScraperAPIClient) Available() bool {
	return c.apiKey != ""
}

// Fetch retrieves targetURL through the proxy. renderJs asks the service to
// run the page's JavaScript before returning HTML; country pins the exit
// geography (empty means provider default).
func (c *ScraperAPIClient) Fetch(ctx context.Context, targetURL string, renderJs bool, country string) (*Response, error) {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("url", targetURL)
	if renderJs {
		params.Set("render", "true")
	}
	if country != "" {
		params.Set("country_code", country)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build scraperapi request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapAdapterError("scraperapi", domain.ErrFetchFailed, "fetch proxy request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.WrapAdapterError("scraperapi", domain.ErrFetchFailed, "failed to read fetch proxy response", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.log.Warn().Int("status", resp.StatusCode).Str("url", targetURL).Msg("Fetch proxy returned non-200")
		return nil, &domain.AdapterError{
			Adapter: "scraperapi",
			Code:    domain.ErrScraperAPIError,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("fetch proxy returned status %d", resp.StatusCode),
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       string(body),
		FinalURL:   targetURL,
	}, nil
}
