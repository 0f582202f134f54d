package rental

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/voltmark/hwpricer/internal/catalog"
	"github.com/voltmark/hwpricer/internal/domain"
)

// DefaultCacheTTL bounds how often a burst of HTTP readers can hit the
// marketplace.
const DefaultCacheTTL = 60 * time.Second

// SourceClass labels where a snapshot's data came from.
const (
	SourceOracle    = "oracle-service"
	SourceSimulated = "simulated"
	SourceSupabase  = "supabase"
)

// HistoryAppender receives one rental history row per GPU type per refresh.
type HistoryAppender interface {
	InsertRental(ctx context.Context, rec domain.RentalHistoryRecord) error
}

// PriceSnapshot is one fused view over all rental GPU types.
type PriceSnapshot struct {
	Prices    map[string]domain.RentalStats `json:"prices"`
	Timestamp int64                         `json:"timestamp"`
	Cached    bool                          `json:"cached"`
	Source    string                        `json:"source"`
}

// Service serves rental price stats through a per-process TTL cache and
// appends a history row per type on every refresh.
type Service struct {
	marketplace *Marketplace
	history     HistoryAppender // nil disables history appends
	ttl         time.Duration
	log         zerolog.Logger
	now         func() time.Time

	mu        sync.Mutex
	cached    *PriceSnapshot
	fetchedAt time.Time
}

// NewService creates the rental service. history may be nil.
func NewService(marketplace *Marketplace, history HistoryAppender, ttl time.Duration, log zerolog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Service{
		marketplace: marketplace,
		history:     history,
		ttl:         ttl,
		log:         log.With().Str("component", "rental_service").Logger(),
		now:         time.Now,
	}
}

// Snapshot returns the cached snapshot when it is still inside the TTL,
// otherwise refreshes from the marketplace. Cache hits keep the original
// timestamp and report Cached=true.
func (s *Service) Snapshot(ctx context.Context) (*PriceSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && s.now().Sub(s.fetchedAt) < s.ttl {
		hit := *s.cached
		hit.Cached = true
		return &hit, nil
	}
	return s.refreshLocked(ctx)
}

// Refresh bypasses the TTL and refetches every GPU type. The scheduler's
// rental loop uses this to drive history appends on its own cadence.
func (s *Service) Refresh(ctx context.Context) (*PriceSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Service) refreshLocked(ctx context.Context) (*PriceSnapshot, error) {
	now := s.now()
	snapshot := &PriceSnapshot{
		Prices:    make(map[string]domain.RentalStats),
		Timestamp: now.UnixMilli(),
		Cached:    false,
		Source:    SourceOracle,
	}

	allSimulated := true
	for _, gpu := range catalog.RentalGPUTypes() {
		offers, simulated, err := s.marketplace.FetchOffers(ctx, gpu.ID)
		if err != nil {
			s.log.Error().Err(err).Str("gpu_type", gpu.ID).Msg("Rental fetch failed")
			continue
		}
		if !simulated {
			allSimulated = false
		}
		stats := ComputeStats(gpu.ID, offers, now.UnixMilli())
		snapshot.Prices[gpu.ID] = stats
		s.appendHistory(stats)
	}
	if allSimulated {
		snapshot.Source = SourceSimulated
	}

	s.cached = snapshot
	s.fetchedAt = now

	result := *snapshot
	return &result, nil
}

// appendHistory persists one stats row in the background. Persistence
// failures never fail the serving path.
func (s *Service) appendHistory(stats domain.RentalStats) {
	if s.history == nil {
		return
	}
	rec := domain.RentalHistoryRecord{
		GPUType:          stats.GPUType,
		Timestamp:        stats.Timestamp,
		AvgPrice:         stats.AvgPrice,
		MinPrice:         stats.MinPrice,
		MaxPrice:         stats.MaxPrice,
		OfferCount:       stats.OfferCount,
		InterruptibleAvg: stats.InterruptibleAvg,
		OnDemandAvg:      stats.OnDemandAvg,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.history.InsertRental(ctx, rec); err != nil {
			s.log.Warn().Err(err).Str("gpu_type", rec.GPUType).Msg("Failed to append rental history")
		}
	}()
}

// Offers returns the raw offer list for one GPU type, fetched fresh.
func (s *Service) Offers(ctx context.Context, gpuType string) ([]domain.RentalOffer, bool, error) {
	return s.marketplace.FetchOffers(ctx, gpuType)
}

// SetClock overrides the time source in tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }
