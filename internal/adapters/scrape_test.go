package adapters

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltmark/hwpricer/internal/domain"
	"github.com/voltmark/hwpricer/internal/fetch"
)

const neweggResultsPage = `<!DOCTYPE html>
<html><body>
<div class="list-tools-bar">96 results</div>
<div class="item-cells-wrap">
  <div class="item-cell">
    <a class="item-title" href="/p/N82E1">MSI Gaming GeForce RTX 4090 24GB GDDR6X Graphics Card</a>
    <ul><li class="price-current">$1,649.99</li></ul>
  </div>
  <div class="item-cell">
    <a class="item-title" href="/p/N82E2">ASUS TUF GeForce RTX 4090 OC Edition GPU</a>
    <ul><li class="price-current">$1,719.00</li></ul>
  </div>
  <div class="item-cell">
    <a class="item-title" href="/p/N82E3">upHere GPU Support Bracket for RTX 4090</a>
    <ul><li class="price-current">$12.99</li></ul>
  </div>
  <div class="item-cell">
    <a class="item-title" href="/p/N82E4">EVGA GeForce RTX 3060 Graphics Card</a>
    <ul><li class="price-current">$289.99</li></ul>
  </div>
</div>
</body></html>`

func newTestScraper(t *testing.T) *Scraper {
	t.Helper()
	return NewNeweggScraper(ScraperDeps{Options: fetch.Options{}}, zerolog.Nop())
}

func TestScraperParseFiltersListings(t *testing.T) {
	s := newTestScraper(t)

	obs, err := s.parse("GPU_RTX4090", neweggResultsPage)
	require.NoError(t, err)
	require.Len(t, obs, 2)

	assert.Equal(t, 1649.99, obs[0].Price)
	assert.Equal(t, 1719.00, obs[1].Price)
	for _, o := range obs {
		assert.Equal(t, "newegg-scraper", o.Source)
		assert.Equal(t, "GPU_RTX4090", o.AssetID)
		require.NotNil(t, o.Metadata)
		assert.Equal(t, domain.ConditionNew, o.Metadata.Condition)
		assert.NotEmpty(t, o.Metadata.URL)
	}
}

func TestScraperParseStructuredData(t *testing.T) {
	page := `<html><body>
<div class="list-tools-bar"></div>
<script type="application/ld+json">
{"@type":"Product","name":"GIGABYTE GeForce RTX 4090 WINDFORCE Graphics Card",
 "offers":{"price":"1599.99","priceCurrency":"USD"}}
</script>
</body></html>`

	s := newTestScraper(t)
	obs, err := s.parse("GPU_RTX4090", page)
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, 1599.99, obs[0].Price)
}

func TestScraperParseSkipsForeignCurrencyStructuredData(t *testing.T) {
	page := `<html><body>
<div class="list-tools-bar"></div>
<div class="item-cell"><a class="item-title">filler</a></div>
<script type="application/ld+json">
{"@type":"Product","name":"GeForce RTX 4090 Graphics Card",
 "offers":{"price":"1899.00","priceCurrency":"EUR"}}
</script>
</body></html>`

	s := newTestScraper(t)
	obs, err := s.parse("GPU_RTX4090", page)
	require.NoError(t, err)
	assert.Empty(t, obs)
}

func TestScraperParseMissingStructureIsBlock(t *testing.T) {
	s := newTestScraper(t)

	_, err := s.parse("GPU_RTX4090", "<html><body><h1>Welcome</h1></body></html>")
	var aerr *domain.AdapterError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, domain.ErrBlocked, aerr.Code)
}

func TestScraperParseNoSelectorMatchWithLandmark(t *testing.T) {
	s := newTestScraper(t)

	_, err := s.parse("GPU_RTX4090", `<html><body><div class="list-tools-bar">0 results</div></body></html>`)
	var aerr *domain.AdapterError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, domain.ErrScrapeFailed, aerr.Code)
}

func TestScraperDetectBlockByStatus(t *testing.T) {
	s := newTestScraper(t)

	err := s.detectBlock(&fetch.Response{StatusCode: 403, Body: ""})
	require.NotNil(t, err)
	assert.Equal(t, domain.ErrBlocked, err.Code)
	assert.Equal(t, 403, err.Status)

	err = s.detectBlock(&fetch.Response{StatusCode: 429, Body: ""})
	require.NotNil(t, err)
	assert.Equal(t, domain.ErrBlocked, err.Code)
}

func TestScraperDetectBlockByMarker(t *testing.T) {
	s := NewAmazonScraper(ScraperDeps{}, zerolog.Nop())

	err := s.detectBlock(&fetch.Response{
		StatusCode: 200,
		Body:       "<html>Sorry, we just need to make sure you're not a robot.</html>",
	})
	require.NotNil(t, err)
	assert.Equal(t, domain.ErrCaptcha, err.Code)
}

func TestScraperDetectBlockCleanPage(t *testing.T) {
	s := newTestScraper(t)
	assert.Nil(t, s.detectBlock(&fetch.Response{StatusCode: 200, Body: neweggResultsPage}))
}

func TestScraperHTTPErrorStatus(t *testing.T) {
	s := newTestScraper(t)

	err := s.detectBlock(&fetch.Response{StatusCode: 500, Body: ""})
	require.NotNil(t, err)
	assert.Equal(t, domain.ErrHTTPError, err.Code)
	assert.Equal(t, 500, err.Status)
}
