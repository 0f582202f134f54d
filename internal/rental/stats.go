package rental

import (
	"gonum.org/v1/gonum/stat"

	"github.com/voltmark/hwpricer/internal/domain"
	"github.com/voltmark/hwpricer/internal/outlier"
)

// ComputeStats fuses one round of offers into the per-type summary. Stats are
// computed over per-GPU-hour prices so bundle sizes do not skew the numbers.
func ComputeStats(gpuType string, offers []domain.RentalOffer, now int64) domain.RentalStats {
	stats := domain.RentalStats{
		GPUType:    gpuType,
		OfferCount: len(offers),
		Timestamp:  now,
	}
	if len(offers) == 0 {
		return stats
	}

	prices := make([]float64, 0, len(offers))
	var interruptible, onDemand []float64
	for _, o := range offers {
		prices = append(prices, o.PricePerGPUHr)
		if o.Interruptible {
			interruptible = append(interruptible, o.PricePerGPUHr)
		} else {
			onDemand = append(onDemand, o.PricePerGPUHr)
		}
	}

	stats.MinPrice = prices[0]
	stats.MaxPrice = prices[0]
	for _, p := range prices[1:] {
		if p < stats.MinPrice {
			stats.MinPrice = p
		}
		if p > stats.MaxPrice {
			stats.MaxPrice = p
		}
	}
	stats.MedianPrice = outlier.Median(prices)
	stats.AvgPrice = stat.Mean(prices, nil)
	if len(interruptible) > 0 {
		stats.InterruptibleAvg = stat.Mean(interruptible, nil)
	}
	if len(onDemand) > 0 {
		stats.OnDemandAvg = stat.Mean(onDemand, nil)
	}
	return stats
}
