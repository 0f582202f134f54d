package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/voltmark/hwpricer/internal/aggregator"
	"github.com/voltmark/hwpricer/internal/domain"
)

// writeJSON serializes v with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}

// errorBody is the non-envelope error shape.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeError emits the standard error contract.
func (s *Server) writeError(w http.ResponseWriter, status int, code domain.ErrorCode, message string) {
	s.writeJSON(w, status, errorBody{Error: string(code), Message: message})
}

// pricePayload is the per-asset wire shape. priceInt travels as a string so
// consumers never lose precision to doubles.
type pricePayload struct {
	AssetID     string               `json:"assetId,omitempty"`
	Price       float64              `json:"price"`
	TWAP        float64              `json:"twap"`
	PriceInt    string               `json:"priceInt"`
	SourceCount int                  `json:"sourceCount"`
	Timestamp   int64                `json:"timestamp"`
	UpdatedAt   int64                `json:"updatedAt,omitempty"`
	Currency    string               `json:"currency"`
	Sources     []domain.SourceDetail `json:"sources"`
}

// toPayload converts a record for the wire. withID controls whether the
// asset ID is embedded (single-asset responses) or implied by the map key.
func toPayload(record *domain.AggregatedPrice, withID bool) pricePayload {
	p := pricePayload{
		Price:       record.Price,
		TWAP:        record.TWAP,
		PriceInt:    strconv.FormatInt(record.PriceInt, 10),
		SourceCount: record.SourceCount,
		Timestamp:   record.Timestamp,
		Currency:    record.Currency,
		Sources:     record.Sources,
	}
	if p.Sources == nil {
		p.Sources = []domain.SourceDetail{}
	}
	if withID {
		p.AssetID = record.AssetID
		p.UpdatedAt = record.UpdatedAt
	}
	return p
}

// refreshAsset summarizes one asset in the refresh response.
type refreshAsset struct {
	AssetID string                `json:"assetId"`
	Price   float64               `json:"price"`
	Sources []domain.SourceDetail `json:"sources"`
}

func toRefreshAssets(updates []*aggregator.Update) []refreshAsset {
	out := make([]refreshAsset, 0, len(updates))
	for _, u := range updates {
		sources := u.Asset.Sources
		if sources == nil {
			sources = []domain.SourceDetail{}
		}
		out = append(out, refreshAsset{
			AssetID: u.Asset.AssetID,
			Price:   u.Asset.Price,
			Sources: sources,
		})
	}
	return out
}
