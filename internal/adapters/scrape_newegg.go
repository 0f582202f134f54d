package adapters

import (
	"net/url"

	"github.com/rs/zerolog"
)

// NewNeweggScraper scrapes Newegg search results.
func NewNeweggScraper(deps ScraperDeps, log zerolog.Logger) *Scraper {
	return NewScraper(ScraperConfig{
		Name:     "newegg-scraper",
		Vendor:   "newegg",
		Homepage: "https://www.newegg.com/",
		SearchURL: func(term string) string {
			return "https://www.newegg.com/p/pl?d=" + url.QueryEscape(term)
		},
		Selectors: []SelectorFamily{
			{Item: "div.item-cell", Title: "a.item-title", Price: "li.price-current"},
			{Item: "div.item-container", Title: "a.item-title", Price: "li.price-current"},
		},
		BlockMarkers: []string{
			"are you a human",
			"access to this page has been denied",
			"please verify you are a human",
		},
		Landmark: "div.list-tools-bar, div.item-cells-wrap",
		RenderJs: false,
		Country:  "us",
	}, deps, log)
}
