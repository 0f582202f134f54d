package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/voltmark/hwpricer/internal/domain"
	"github.com/voltmark/hwpricer/internal/fetch"
)

// SelectorFamily is one way a vendor lays out search results. Scrapers fall
// through the families in order to survive layout experiments.
type SelectorFamily struct {
	Item  string // Listing container
	Title string // Title node within the container
	Price string // Price node within the container
}

// ScraperConfig describes one retail site.
type ScraperConfig struct {
	Name         string // Adapter name, e.g. "newegg-scraper"
	Vendor       string // Cookie vendor key
	Homepage     string // Warm-up target and referer
	SearchURL    func(term string) string
	Selectors    []SelectorFamily
	BlockMarkers []string // Challenge text fragments, lowercase
	Landmark     string   // Structural selector expected on any healthy result page
	RenderJs     bool     // Ask the fetch proxy to render JavaScript
	Country      string   // Fetch proxy exit geography
}

// Scraper is the shared scraping engine; vendor files supply the config.
type Scraper struct {
	cfg        ScraperConfig
	opts       fetch.Options
	pool       *fetch.ProxyPool
	scraperAPI *fetch.ScraperAPIClient
	limiter    *fetch.HostLimiter
	breakers   *fetch.BreakerSet
	log        zerolog.Logger
}

// ScraperDeps bundles the fetch substrate shared by all scrapers.
type ScraperDeps struct {
	Options    fetch.Options
	Pool       *fetch.ProxyPool
	ScraperAPI *fetch.ScraperAPIClient
	Limiter    *fetch.HostLimiter
	Breakers   *fetch.BreakerSet
}

// NewScraper builds a scraper for one vendor.
func NewScraper(cfg ScraperConfig, deps ScraperDeps, log zerolog.Logger) *Scraper {
	return &Scraper{
		cfg:        cfg,
		opts:       deps.Options,
		pool:       deps.Pool,
		scraperAPI: deps.ScraperAPI,
		limiter:    deps.Limiter,
		breakers:   deps.Breakers,
		log:        log.With().Str("adapter", cfg.Name).Logger(),
	}
}

// Name implements domain.SourceAdapter.
func (s *Scraper) Name() string { return s.cfg.Name }

// Available implements domain.SourceAdapter. Scrapers need no credentials.
func (s *Scraper) Available() bool { return true }

// FetchPrices runs one search burst against the vendor.
func (s *Scraper) FetchPrices(ctx context.Context, assetID string) ([]domain.Observation, error) {
	term := primarySearchTerm(assetID)
	if term == "" {
		return nil, nil
	}
	searchURL := s.cfg.SearchURL(term)

	host := s.cfg.Name
	if u, err := url.Parse(s.cfg.Homepage); err == nil {
		host = u.Host
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, host); err != nil {
			return nil, domain.WrapAdapterError(s.cfg.Name, domain.ErrFetchFailed, "rate limiter wait aborted", err)
		}
	}

	fetchBody := func() (*fetch.Response, error) { return s.fetchSearch(ctx, searchURL) }
	var resp *fetch.Response
	var err error
	if s.breakers != nil {
		var result interface{}
		result, err = s.breakers.Execute(host, func() (interface{}, error) { return fetchBody() })
		if err == nil {
			resp = result.(*fetch.Response)
		}
	} else {
		resp, err = fetchBody()
	}
	if err != nil {
		var aerr *domain.AdapterError
		if errors.As(err, &aerr) {
			return nil, aerr
		}
		return nil, domain.WrapAdapterError(s.cfg.Name, domain.ErrFetchFailed, "search fetch failed", err)
	}

	if blockErr := s.detectBlock(resp); blockErr != nil {
		return nil, blockErr
	}

	return s.parse(assetID, resp.Body)
}

// fetchSearch retrieves the search page, either through the third-party
// fetch proxy (single proxied GET) or with a fresh stealth session: homepage
// warm-up, randomized pause, then the search request with retry.
func (s *Scraper) fetchSearch(ctx context.Context, searchURL string) (*fetch.Response, error) {
	if s.scraperAPI != nil && s.scraperAPI.Available() {
		return s.scraperAPI.Fetch(ctx, searchURL, s.cfg.RenderJs, s.cfg.Country)
	}

	client, err := fetch.NewStealthClient(s.opts, s.pool, s.log)
	if err != nil {
		return nil, err
	}
	client.SeedCookies(s.cfg.Vendor)

	// Landing on the search URL cold is a classic bot tell.
	if _, err := client.Get(ctx, s.cfg.Homepage, ""); err != nil {
		s.log.Debug().Err(err).Msg("Homepage warm-up failed, continuing")
	}
	client.RandomSleep(ctx, 1500*time.Millisecond, 4000*time.Millisecond)

	return fetch.FetchWithRetry(ctx, fetch.DefaultMaxAttempts, s.log, func() (*fetch.Response, error) {
		return client.Get(ctx, searchURL, s.cfg.Homepage)
	})
}

// detectBlock classifies anti-bot responses. On a block no partial data is
// returned.
func (s *Scraper) detectBlock(resp *fetch.Response) *domain.AdapterError {
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return &domain.AdapterError{
			Adapter: s.cfg.Name,
			Code:    domain.ErrBlocked,
			Status:  resp.StatusCode,
			Message: "upstream rejected the request",
		}
	}
	if resp.StatusCode >= 400 {
		return &domain.AdapterError{
			Adapter: s.cfg.Name,
			Code:    domain.ErrHTTPError,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("upstream returned status %d", resp.StatusCode),
		}
	}

	lower := strings.ToLower(resp.Body)
	for _, marker := range s.cfg.BlockMarkers {
		if strings.Contains(lower, marker) {
			code := domain.ErrBlocked
			if strings.Contains(marker, "captcha") || strings.Contains(marker, "robot") {
				code = domain.ErrCaptcha
			}
			return domain.NewAdapterError(s.cfg.Name, code, "challenge page detected: "+marker)
		}
	}
	return nil
}

// parse extracts observations from the result page HTML.
func (s *Scraper) parse(assetID, body string) ([]domain.Observation, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, domain.WrapAdapterError(s.cfg.Name, domain.ErrScrapeFailed, "failed to parse HTML", err)
	}

	now := time.Now().UnixMilli()
	var obs []domain.Observation
	matchedItems := 0

	for _, family := range s.cfg.Selectors {
		doc.Find(family.Item).Each(func(_ int, item *goquery.Selection) {
			matchedItems++
			title := strings.TrimSpace(item.Find(family.Title).First().Text())
			price := ParsePrice(item.Find(family.Price).First().Text())
			if o, ok := s.buildObservation(assetID, title, price, itemURL(item), now); ok {
				obs = append(obs, o)
			}
		})
		if len(obs) > 0 {
			break
		}
	}

	// Structured-data product blocks survive most layout changes.
	for _, o := range s.parseStructuredData(assetID, doc, now) {
		obs = append(obs, o)
	}

	if len(obs) == 0 {
		if s.cfg.Landmark != "" && doc.Find(s.cfg.Landmark).Length() == 0 && matchedItems == 0 {
			return nil, domain.NewAdapterError(s.cfg.Name, domain.ErrBlocked, "expected page structure missing")
		}
		if matchedItems == 0 {
			return nil, domain.NewAdapterError(s.cfg.Name, domain.ErrScrapeFailed, "no listings matched any selector family")
		}
		// Items existed but none were relevant: genuinely no data.
		return nil, nil
	}

	s.log.Debug().Str("asset", assetID).Int("listings", len(obs)).Msg("Scraped listings")
	return obs, nil
}

// ldProduct is the subset of a JSON-LD Product block the scrapers read.
type ldProduct struct {
	Type   string `json:"@type"`
	Name   string `json:"name"`
	Offers struct {
		Price         json.Number `json:"price"`
		PriceCurrency string      `json:"priceCurrency"`
	} `json:"offers"`
}

// parseStructuredData reads embedded application/ld+json product blocks.
func (s *Scraper) parseStructuredData(assetID string, doc *goquery.Document, now int64) []domain.Observation {
	var obs []domain.Observation
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		var product ldProduct
		if err := json.Unmarshal([]byte(sel.Text()), &product); err != nil {
			return
		}
		if !strings.EqualFold(product.Type, "Product") {
			return
		}
		if product.Offers.PriceCurrency != "" && product.Offers.PriceCurrency != "USD" {
			return
		}
		price, _ := product.Offers.Price.Float64()
		if o, ok := s.buildObservation(assetID, product.Name, price, "", now); ok {
			obs = append(obs, o)
		}
	})
	return obs
}

// buildObservation applies the relevance predicate and price floor.
func (s *Scraper) buildObservation(assetID, title string, price float64, listingURL string, now int64) (domain.Observation, bool) {
	if price <= 0 || !AcceptablePrice(price) || !RelevantListing(assetID, title) {
		return domain.Observation{}, false
	}
	return domain.Observation{
		AssetID:   assetID,
		Price:     price,
		Source:    s.cfg.Name,
		Timestamp: now,
		Metadata: &domain.ObservationMetadata{
			ProductName: title,
			Condition:   domain.ConditionNew,
			URL:         listingURL,
		},
	}, true
}

// itemURL pulls the first anchor href out of a listing container.
func itemURL(item *goquery.Selection) string {
	href, _ := item.Find("a").First().Attr("href")
	return href
}
