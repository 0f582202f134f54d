// Package rental fetches cloud GPU rental offers from the marketplace,
// fuses them into per-type stats and serves them through a short TTL cache.
package rental

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/voltmark/hwpricer/internal/catalog"
	"github.com/voltmark/hwpricer/internal/domain"
)

// Marketplace queries the rental marketplace's bundle-search endpoint, one
// request per GPU type. Without a configured endpoint, or when the endpoint
// fails, it fabricates plausible offers around the catalog's per-type anchor
// rates so the stats pipeline keeps producing output.
type Marketplace struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	rngMu      sync.Mutex
	rng        *rand.Rand
	log        zerolog.Logger
}

// NewMarketplace creates the marketplace client. baseURL may be empty.
func NewMarketplace(baseURL, apiKey string, log zerolog.Logger) *Marketplace {
	return &Marketplace{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		log:        log.With().Str("component", "rental_marketplace").Logger(),
	}
}

// Available reports whether a live endpoint is configured.
func (m *Marketplace) Available() bool { return m.baseURL != "" }

type bundleQuery struct {
	GPUName  map[string]string `json:"gpu_name"`
	NumGPUs  map[string]int    `json:"num_gpus"`
	Rentable map[string]bool   `json:"rentable"`
}

type bundleSearchRequest struct {
	Query bundleQuery `json:"q"`
	Limit int         `json:"limit"`
}

type bundleOffer struct {
	NumGPUs     int      `json:"num_gpus"`
	DPHTotal    float64  `json:"dph_total"` // Dollars per hour for the whole bundle
	Reliability float64  `json:"reliability2"`
	MinBid      *float64 `json:"min_bid"` // Present only on interruptible offers
	HostingType string   `json:"hosting_type"`
}

type bundleSearchResponse struct {
	Offers []bundleOffer `json:"offers"`
}

// FetchOffers returns the normalized offers for one GPU type. The second
// return reports whether the offers are simulated.
func (m *Marketplace) FetchOffers(ctx context.Context, gpuType string) ([]domain.RentalOffer, bool, error) {
	gpu, ok := catalog.LookupRental(gpuType)
	if !ok {
		return nil, false, fmt.Errorf("unknown rental GPU type: %s", gpuType)
	}

	if !m.Available() {
		return m.simulatedOffers(gpu), true, nil
	}

	offers, err := m.search(ctx, gpu)
	if err != nil {
		m.log.Warn().Err(err).Str("gpu_type", gpuType).Msg("Marketplace search failed, serving simulated offers")
		return m.simulatedOffers(gpu), true, nil
	}
	if len(offers) == 0 {
		m.log.Debug().Str("gpu_type", gpuType).Msg("Marketplace returned no offers, serving simulated offers")
		return m.simulatedOffers(gpu), true, nil
	}
	return offers, false, nil
}

func (m *Marketplace) search(ctx context.Context, gpu catalog.RentalGPUType) ([]domain.RentalOffer, error) {
	payload, err := json.Marshal(bundleSearchRequest{
		Query: bundleQuery{
			GPUName:  map[string]string{"eq": gpu.Query},
			NumGPUs:  map[string]int{"gte": 1},
			Rentable: map[string]bool{"eq": true},
		},
		Limit: 100,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bundle query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/bundles", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build bundle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bundle request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bundle endpoint returned status %d", resp.StatusCode)
	}

	var search bundleSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&search); err != nil {
		return nil, fmt.Errorf("failed to decode bundle response: %w", err)
	}

	offers := make([]domain.RentalOffer, 0, len(search.Offers))
	for _, o := range search.Offers {
		if o.NumGPUs <= 0 || o.DPHTotal <= 0 {
			continue
		}
		providerClass := o.HostingType
		if providerClass == "" {
			providerClass = "community"
		}
		offers = append(offers, domain.RentalOffer{
			GPUType:       gpu.ID,
			GPUCount:      o.NumGPUs,
			PricePerHour:  o.DPHTotal,
			PricePerGPUHr: o.DPHTotal / float64(o.NumGPUs),
			Reliability:   o.Reliability,
			ProviderClass: providerClass,
			Interruptible: o.MinBid != nil,
			Simulated:     false,
		})
	}
	return offers, nil
}

// simulatedOffers fabricates 8-14 offers spread around the catalog anchor
// rate: mixed bundle sizes, interruptible offers discounted 25-45%. Offers
// reads bypass the service cache, so HTTP readers land here concurrently;
// the rng needs its mutex.
func (m *Marketplace) simulatedOffers(gpu catalog.RentalGPUType) []domain.RentalOffer {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()

	count := 8 + m.rng.Intn(7)
	offers := make([]domain.RentalOffer, 0, count)
	for i := 0; i < count; i++ {
		gpuCount := 1 << m.rng.Intn(3) // 1, 2 or 4 GPUs
		perGPU := gpu.BaseHourly * (0.85 + m.rng.Float64()*0.3)
		interruptible := m.rng.Float64() < 0.4
		if interruptible {
			perGPU *= 0.55 + m.rng.Float64()*0.2
		}
		providerClass := "community"
		if m.rng.Float64() < 0.3 {
			providerClass = "datacenter"
		}
		offers = append(offers, domain.RentalOffer{
			GPUType:       gpu.ID,
			GPUCount:      gpuCount,
			PricePerHour:  perGPU * float64(gpuCount),
			PricePerGPUHr: perGPU,
			Reliability:   0.95 + m.rng.Float64()*0.05,
			ProviderClass: providerClass,
			Interruptible: interruptible,
			Simulated:     true,
		})
	}
	return offers
}
