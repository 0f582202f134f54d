package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/voltmark/hwpricer/internal/catalog"
	"github.com/voltmark/hwpricer/internal/domain"
)

// envelopeRequest is the external-adapter request shape. The id field is
// echoed back verbatim; adapters in the wild send it as either a string or
// a number.
type envelopeRequest struct {
	ID   json.RawMessage `json:"id"`
	Data struct {
		AssetID  string   `json:"assetId"`
		Asset    string   `json:"asset"`
		Assets   []string `json:"assets"`
		AssetIDs []string `json:"assetIds"`
	} `json:"data"`
}

// envelopeResponse is the external-adapter reply. Exactly one of Data and
// Error is set.
type envelopeResponse struct {
	JobRunID   string      `json:"jobRunID"`
	StatusCode int         `json:"statusCode"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// envelopeResult is the data block of a successful reply. Result duplicates
// PriceInt because adapter pipelines read data.result by convention.
type envelopeResult struct {
	Result      string  `json:"result"`
	Price       float64 `json:"price"`
	TWAP        float64 `json:"twap"`
	PriceInt    string  `json:"priceInt"`
	SourceCount int     `json:"sourceCount"`
	Timestamp   int64   `json:"timestamp"`
	AssetID     string  `json:"assetId"`
}

// jobRunID renders the raw id for echoing. Unparseable or absent ids
// collapse to "0".
func jobRunID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "0"
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	var asNumber json.Number
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return asNumber.String()
	}
	return "0"
}

func (s *Server) writeEnvelopeError(w http.ResponseWriter, id string, status int, message string) {
	s.writeJSON(w, status, envelopeResponse{
		JobRunID:   id,
		StatusCode: status,
		Error:      message,
	})
}

func toEnvelopeResult(record *domain.AggregatedPrice) envelopeResult {
	priceInt := strconv.FormatInt(record.PriceInt, 10)
	return envelopeResult{
		Result:      priceInt,
		Price:       record.Price,
		TWAP:        record.TWAP,
		PriceInt:    priceInt,
		SourceCount: record.SourceCount,
		Timestamp:   record.Timestamp,
		AssetID:     record.AssetID,
	}
}

// handleEnvelopePrice answers a single-asset adapter request.
func (s *Server) handleEnvelopePrice(w http.ResponseWriter, r *http.Request) {
	var req envelopeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeEnvelopeError(w, "0", http.StatusBadRequest, "Invalid request format")
		return
	}
	id := jobRunID(req.ID)

	assetID := req.Data.AssetID
	if assetID == "" {
		assetID = req.Data.Asset
	}
	if assetID == "" {
		s.writeEnvelopeError(w, id, http.StatusBadRequest, "Missing assetId")
		return
	}
	if !catalog.IsHardwareAsset(assetID) {
		s.writeEnvelopeError(w, id, http.StatusBadRequest, "Unknown asset: "+assetID)
		return
	}

	record := s.aggregator.GetPrice(assetID)
	if record == nil {
		s.writeEnvelopeError(w, id, http.StatusNotFound, "No price available for "+assetID)
		return
	}

	s.writeJSON(w, http.StatusOK, envelopeResponse{
		JobRunID:   id,
		StatusCode: http.StatusOK,
		Data:       toEnvelopeResult(record),
	})
}

// handleEnvelopePrices answers a multi-asset adapter request. With no asset
// list in the request it returns the whole catalog's current values.
func (s *Server) handleEnvelopePrices(w http.ResponseWriter, r *http.Request) {
	var req envelopeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeEnvelopeError(w, "0", http.StatusBadRequest, "Invalid request format")
		return
	}
	id := jobRunID(req.ID)

	requested := req.Data.Assets
	if len(requested) == 0 {
		requested = req.Data.AssetIDs
	}
	if len(requested) == 0 {
		requested = catalog.HardwareAssetIDs()
	}

	for _, assetID := range requested {
		if !catalog.IsHardwareAsset(assetID) {
			s.writeEnvelopeError(w, id, http.StatusBadRequest, "Unknown asset: "+assetID)
			return
		}
	}

	results := make(map[string]envelopeResult, len(requested))
	for _, assetID := range requested {
		if record := s.aggregator.GetPrice(assetID); record != nil {
			results[assetID] = toEnvelopeResult(record)
		}
	}

	s.writeJSON(w, http.StatusOK, envelopeResponse{
		JobRunID:   id,
		StatusCode: http.StatusOK,
		Data:       map[string]interface{}{"prices": results},
	})
}
