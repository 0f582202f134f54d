package adapters

import (
	"net/url"

	"github.com/rs/zerolog"
)

// NewBestBuyScraper scrapes Best Buy search results.
func NewBestBuyScraper(deps ScraperDeps, log zerolog.Logger) *Scraper {
	return NewScraper(ScraperConfig{
		Name:     "bestbuy-scraper",
		Vendor:   "bestbuy",
		Homepage: "https://www.bestbuy.com/",
		SearchURL: func(term string) string {
			return "https://www.bestbuy.com/site/searchpage.jsp?st=" + url.QueryEscape(term)
		},
		Selectors: []SelectorFamily{
			{
				Item:  "li.sku-item",
				Title: "h4.sku-title a, h4.sku-header a",
				Price: `div[data-testid="customer-price"] span, div.priceView-customer-price > span`,
			},
			{
				Item:  "div.sku-item",
				Title: "h4.sku-title a",
				Price: "div.priceView-customer-price span",
			},
		},
		BlockMarkers: []string{
			"your request has been blocked",
			"access denied",
			"uh-oh! something went wrong on our end",
		},
		Landmark: "main#main-results, ol.sku-item-list",
		RenderJs: true,
		Country:  "us",
	}, deps, log)
}
