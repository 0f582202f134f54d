// Package domain provides core domain models and types.
package domain

import "math"

// Condition represents a listing condition
type Condition string

const (
	ConditionNew         Condition = "new"
	ConditionUsed        Condition = "used"
	ConditionRefurbished Condition = "refurbished"
)

// PriceDecimals is the fixed-point scale of the integer price consumed by
// downstream feeds: USD multiplied by 10^8.
const PriceDecimals = 1e8

// Observation is a single timestamped price reading emitted by one adapter.
// Observations are immutable values; they exist only within a round.
type Observation struct {
	AssetID   string               `json:"assetId"`
	Price     float64              `json:"price"` // USD, always > 0
	Source    string               `json:"source"`
	Timestamp int64                `json:"timestamp"` // ms since epoch
	Metadata  *ObservationMetadata `json:"metadata,omitempty"`
}

// ObservationMetadata carries optional provenance for an observation.
type ObservationMetadata struct {
	ProductName string    `json:"productName,omitempty"`
	Seller      string    `json:"seller,omitempty"`
	Condition   Condition `json:"condition,omitempty"`
	URL         string    `json:"url,omitempty"`
}

// SourceDetail is the post-aggregation summary for one contributing source
// within a round.
type SourceDetail struct {
	Name        string  `json:"name"`  // Display form of the adapter name
	Price       float64 `json:"price"` // Median of this source's observations
	Count       int     `json:"count"`
	IsSimulated bool    `json:"isSimulated"`
}

// AggregatedPrice is the current fused price record for one hardware asset.
// Records are immutable once installed; a new round replaces the whole record.
type AggregatedPrice struct {
	AssetID     string         `json:"assetId"`
	Price       float64        `json:"price"`
	TWAP        float64        `json:"twap"`
	PriceInt    int64          `json:"priceInt"` // round(price * 1e8)
	SourceCount int            `json:"sourceCount"`
	Timestamp   int64          `json:"timestamp"` // ms, when the value was produced
	UpdatedAt   int64          `json:"updatedAt"` // ms, monotonic per asset
	Currency    string         `json:"currency"`  // always "USD"
	Sources     []SourceDetail `json:"sources"`
}

// ScaledPrice converts a USD price to the downstream 8-decimal integer.
func ScaledPrice(price float64) int64 {
	return int64(math.Round(price * PriceDecimals))
}

// RentalOffer is one normalized GPU rental offer from the marketplace.
type RentalOffer struct {
	GPUType        string  `json:"gpuType"`
	GPUCount       int     `json:"gpuCount"`
	PricePerHour   float64 `json:"pricePerHour"`
	PricePerGPUHr  float64 `json:"pricePerGpuHour"` // pricePerHour / gpuCount
	Reliability    float64 `json:"reliability"`
	ProviderClass  string  `json:"providerClass"`
	Interruptible  bool    `json:"interruptible"` // true iff a minimum-bid field is present
	Simulated      bool    `json:"simulated"`
}

// RentalStats is the current fused state per rental GPU type.
type RentalStats struct {
	GPUType          string  `json:"gpuType"`
	MinPrice         float64 `json:"minPrice"`
	MaxPrice         float64 `json:"maxPrice"`
	MedianPrice      float64 `json:"medianPrice"`
	AvgPrice         float64 `json:"avgPrice"`
	OfferCount       int     `json:"offerCount"`
	InterruptibleAvg float64 `json:"interruptibleAvg"`
	OnDemandAvg      float64 `json:"onDemandAvg"`
	Timestamp        int64   `json:"timestamp"` // ms
}

// HardwareHistoryRecord is one append-only hardware time-series row.
type HardwareHistoryRecord struct {
	AssetID     string  `json:"assetId"`
	Timestamp   int64   `json:"timestamp"` // ms
	Price       float64 `json:"price"`
	TWAP        float64 `json:"twap"`
	SourceCount int     `json:"sourceCount"`
}

// RentalHistoryRecord is one append-only rental time-series row.
type RentalHistoryRecord struct {
	GPUType          string  `json:"gpuType"`
	Timestamp        int64   `json:"timestamp"` // ms
	AvgPrice         float64 `json:"avgPrice"`
	MinPrice         float64 `json:"minPrice"`
	MaxPrice         float64 `json:"maxPrice"`
	OfferCount       int     `json:"offerCount"`
	InterruptibleAvg float64 `json:"interruptibleAvg"`
	OnDemandAvg      float64 `json:"onDemandAvg"`
}
