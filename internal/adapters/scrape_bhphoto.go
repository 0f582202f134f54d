package adapters

import (
	"net/url"

	"github.com/rs/zerolog"
)

// NewBHPhotoScraper scrapes B&H Photo search results.
func NewBHPhotoScraper(deps ScraperDeps, log zerolog.Logger) *Scraper {
	return NewScraper(ScraperConfig{
		Name:     "bhphoto-scraper",
		Vendor:   "bhphoto",
		Homepage: "https://www.bhphotovideo.com/",
		SearchURL: func(term string) string {
			return "https://www.bhphotovideo.com/c/search?q=" + url.QueryEscape(term)
		},
		Selectors: []SelectorFamily{
			{
				Item:  `div[data-selenium="miniProductPage"]`,
				Title: `span[data-selenium="miniProductPageProductName"]`,
				Price: `span[data-selenium="uppedDecimalPriceFirst"]`,
			},
			{
				Item:  "div.product",
				Title: "span.productTitle, h3 a",
				Price: "span.price_1DPoToKrLP8uWvruGqgtaY, span.price",
			},
		},
		BlockMarkers: []string{
			"pardon our interruption",
			"please verify you are a human",
		},
		Landmark: `div[data-selenium="listingProductList"], div.productList`,
		RenderJs: false,
		Country:  "us",
	}, deps, log)
}
