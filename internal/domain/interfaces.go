package domain

import "context"

// SourceAdapter is the capability contract every price source implements.
// The aggregator iterates the enabled set uniformly; it never needs to know
// which concrete adapter it is talking to.
type SourceAdapter interface {
	// Name returns the stable lowercase identifier used in provenance and
	// as the collapse key (e.g. "ebay", "newegg-scraper", "mock").
	Name() string

	// Available reports whether the adapter has the configuration it needs
	// (credentials, reachable dependencies). Unavailable adapters are
	// excluded from rounds at startup.
	Available() bool

	// FetchPrices returns 0..N observations for one asset in this round.
	// "No data" is a nil slice and a nil error; authentication failures,
	// fetch failures, blocks and protocol anomalies surface as *AdapterError.
	FetchPrices(ctx context.Context, assetID string) ([]Observation, error)
}
