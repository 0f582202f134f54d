package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/voltmark/hwpricer/internal/catalog"
	"github.com/voltmark/hwpricer/internal/domain"
	"github.com/voltmark/hwpricer/internal/history"
)

// handleHealth reports liveness plus the catalog and fetch-proxy state.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"timestamp":  time.Now().UnixMilli(),
		"assets":     catalog.HardwareAssetIDs(),
		"scraperApi": s.cfg.ScraperAPIKey != "",
	})
}

// handleRefresh triggers a full pricing round on demand.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	updates := s.aggregator.UpdateAllPrices(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"updated": len(updates),
		"assets":  toRefreshAssets(updates),
	})
}

// handlePrices returns everything currently known. Assets with no completed
// round yet are simply absent.
func (s *Server) handlePrices(w http.ResponseWriter, _ *http.Request) {
	all := s.aggregator.GetAllPrices()
	prices := make(map[string]pricePayload, len(all))
	for assetID, record := range all {
		prices[assetID] = toPayload(record, false)
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"prices":    prices,
		"timestamp": time.Now().UnixMilli(),
	})
}

// handlePrice returns the full record for one asset.
func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetId")
	if !catalog.IsHardwareAsset(assetID) {
		s.writeError(w, http.StatusBadRequest, domain.ErrInvalidAsset, "unknown asset: "+assetID)
		return
	}
	record := s.aggregator.GetPrice(assetID)
	if record == nil {
		s.writeError(w, http.StatusNotFound, domain.ErrNoPrice, "no price available yet for "+assetID)
		return
	}
	s.writeJSON(w, http.StatusOK, toPayload(record, true))
}

// historyQuery extracts the shared range-query parameters.
func historyQuery(r *http.Request, keyParam string) history.Query {
	q := history.Query{SeriesKey: r.URL.Query().Get(keyParam)}
	if v, err := strconv.ParseInt(r.URL.Query().Get("startTime"), 10, 64); err == nil {
		q.StartTime = v
	}
	if v, err := strconv.ParseInt(r.URL.Query().Get("endTime"), 10, 64); err == nil {
		q.EndTime = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		q.Limit = v
	}
	return q
}

// handleHardwareHistory serves the hardware time series.
func (s *Server) handleHardwareHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"error":   "history store not configured",
			"history": []interface{}{},
		})
		return
	}

	rows, err := s.history.QueryHardware(r.Context(), historyQuery(r, "assetId"))
	if err != nil {
		s.log.Error().Err(err).Msg("Hardware history query failed")
		s.writeError(w, http.StatusInternalServerError, domain.ErrFetchFailed, "history query failed")
		return
	}
	if rows == nil {
		rows = []domain.HardwareHistoryRecord{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"history": rows,
		"count":   len(rows),
	})
}

// handleIndicators serves moving averages over one asset's stored series.
func (s *Server) handleIndicators(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"error":   "history store not configured",
			"history": []interface{}{},
		})
		return
	}

	assetID := r.URL.Query().Get("assetId")
	if !catalog.IsHardwareAsset(assetID) {
		s.writeError(w, http.StatusBadRequest, domain.ErrInvalidAsset, "unknown asset: "+assetID)
		return
	}
	period := history.DefaultIndicatorPeriod
	if v, err := strconv.Atoi(r.URL.Query().Get("period")); err == nil && v > 0 {
		period = v
	}

	q := historyQuery(r, "assetId")
	q.SeriesKey = assetID
	rows, err := s.history.QueryHardware(r.Context(), q)
	if err != nil {
		s.log.Error().Err(err).Msg("Indicator history query failed")
		s.writeError(w, http.StatusInternalServerError, domain.ErrFetchFailed, "history query failed")
		return
	}

	series, err := history.ComputeIndicators(assetID, rows, period)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, domain.ErrBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, series)
}
