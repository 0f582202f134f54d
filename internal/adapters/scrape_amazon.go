package adapters

import (
	"net/url"

	"github.com/rs/zerolog"
)

// NewAmazonScraper scrapes Amazon search results. Amazon rotates layouts and
// challenges aggressively, so this source benefits most from the fetch proxy.
func NewAmazonScraper(deps ScraperDeps, log zerolog.Logger) *Scraper {
	return NewScraper(ScraperConfig{
		Name:     "amazon-scraper",
		Vendor:   "amazon",
		Homepage: "https://www.amazon.com/",
		SearchURL: func(term string) string {
			return "https://www.amazon.com/s?k=" + url.QueryEscape(term)
		},
		Selectors: []SelectorFamily{
			{
				Item:  `div[data-component-type="s-search-result"]`,
				Title: "h2 a span, span.a-text-normal",
				Price: "span.a-price > span.a-offscreen",
			},
			{
				Item:  "div.s-result-item",
				Title: "h2 span",
				Price: "span.a-price-whole",
			},
		},
		BlockMarkers: []string{
			"type the characters you see in this image",
			"enter the characters you see below",
			"sorry, we just need to make sure you're not a robot",
		},
		Landmark: "div.s-main-slot",
		RenderJs: true,
		Country:  "us",
	}, deps, log)
}
