package history

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"github.com/voltmark/hwpricer/internal/domain"
)

// DefaultIndicatorPeriod is the moving-average window in samples.
const DefaultIndicatorPeriod = 20

// IndicatorSeries carries moving averages computed over one asset's stored
// price series, oldest sample first. SMA/EMA entries before the warm-up
// period are zero.
type IndicatorSeries struct {
	AssetID    string    `json:"assetId"`
	Period     int       `json:"period"`
	Timestamps []int64   `json:"timestamps"`
	Prices     []float64 `json:"prices"`
	SMA        []float64 `json:"sma"`
	EMA        []float64 `json:"ema"`
}

// ComputeIndicators derives SMA and EMA series from hardware history rows.
// Rows may arrive newest-first (the range-query order); they are reordered
// oldest-first before the computation.
func ComputeIndicators(assetID string, records []domain.HardwareHistoryRecord, period int) (*IndicatorSeries, error) {
	if period <= 0 {
		period = DefaultIndicatorPeriod
	}
	if len(records) < period {
		return nil, fmt.Errorf("need at least %d samples for a period-%d indicator, have %d",
			period, period, len(records))
	}

	ordered := make([]domain.HardwareHistoryRecord, len(records))
	copy(ordered, records)
	if len(ordered) > 1 && ordered[0].Timestamp > ordered[len(ordered)-1].Timestamp {
		for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		}
	}

	series := &IndicatorSeries{
		AssetID:    assetID,
		Period:     period,
		Timestamps: make([]int64, len(ordered)),
		Prices:     make([]float64, len(ordered)),
	}
	for i, rec := range ordered {
		series.Timestamps[i] = rec.Timestamp
		series.Prices[i] = rec.Price
	}

	series.SMA = talib.Sma(series.Prices, period)
	series.EMA = talib.Ema(series.Prices, period)
	return series, nil
}
