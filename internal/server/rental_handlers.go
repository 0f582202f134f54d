package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/voltmark/hwpricer/internal/catalog"
	"github.com/voltmark/hwpricer/internal/domain"
)

// handleRentalPrices serves the fused rental snapshot, through the TTL cache.
func (s *Server) handleRentalPrices(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.rental.Snapshot(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Rental snapshot failed")
		s.writeError(w, http.StatusInternalServerError, domain.ErrFetchFailed, "rental snapshot failed")
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}

// handleRentalPrice serves one GPU type's stats from the snapshot.
func (s *Server) handleRentalPrice(w http.ResponseWriter, r *http.Request) {
	gpuType := chi.URLParam(r, "gpuType")
	if !catalog.IsRentalGPUType(gpuType) {
		s.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":      "unknown GPU type: " + gpuType,
			"validTypes": catalog.RentalGPUTypeIDs(),
		})
		return
	}

	snapshot, err := s.rental.Snapshot(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Rental snapshot failed")
		s.writeError(w, http.StatusInternalServerError, domain.ErrFetchFailed, "rental snapshot failed")
		return
	}

	stats, ok := snapshot.Prices[gpuType]
	if !ok {
		s.writeError(w, http.StatusNotFound, domain.ErrNoPrice, "no rental data yet for "+gpuType)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":     stats,
		"timestamp": snapshot.Timestamp,
		"cached":    snapshot.Cached,
		"source":    snapshot.Source,
	})
}

// handleRentalOffers serves the raw offer list for one GPU type, fetched
// fresh past the cache.
func (s *Server) handleRentalOffers(w http.ResponseWriter, r *http.Request) {
	gpuType := chi.URLParam(r, "gpuType")
	if !catalog.IsRentalGPUType(gpuType) {
		s.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":      "unknown GPU type: " + gpuType,
			"validTypes": catalog.RentalGPUTypeIDs(),
		})
		return
	}

	offers, simulated, err := s.rental.Offers(r.Context(), gpuType)
	if err != nil {
		s.log.Error().Err(err).Str("gpu_type", gpuType).Msg("Rental offers fetch failed")
		s.writeError(w, http.StatusInternalServerError, domain.ErrFetchFailed, "rental offers fetch failed")
		return
	}
	if offers == nil {
		offers = []domain.RentalOffer{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"gpuType":   gpuType,
		"offers":    offers,
		"count":     len(offers),
		"simulated": simulated,
	})
}

// handleRentalHistory serves the rental time series.
func (s *Server) handleRentalHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"error":   "history store not configured",
			"history": []interface{}{},
		})
		return
	}

	q := historyQuery(r, "gpuType")
	if q.SeriesKey != "" && !catalog.IsRentalGPUType(q.SeriesKey) {
		s.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":      "unknown GPU type: " + q.SeriesKey,
			"validTypes": catalog.RentalGPUTypeIDs(),
		})
		return
	}

	rows, err := s.history.QueryRental(r.Context(), q)
	if err != nil {
		s.log.Error().Err(err).Msg("Rental history query failed")
		s.writeError(w, http.StatusInternalServerError, domain.ErrFetchFailed, "history query failed")
		return
	}
	if rows == nil {
		rows = []domain.RentalHistoryRecord{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"history": rows,
		"count":   len(rows),
	})
}

// handleRentalHistoryStats serves aggregate stats over the stored rental
// series.
func (s *Server) handleRentalHistoryStats(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"error": "history store not configured",
		})
		return
	}

	stats, err := s.history.RentalStats(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Rental stats query failed")
		s.writeError(w, http.StatusInternalServerError, domain.ErrFetchFailed, "stats query failed")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}
