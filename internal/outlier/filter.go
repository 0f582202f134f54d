// Package outlier provides robust filters for rejecting anomalous price
// observations before aggregation.
package outlier

import (
	"math"
	"sort"

	"github.com/voltmark/hwpricer/internal/domain"
)

const (
	// madConsistency scales MAD to the standard deviation of a normal
	// distribution (1/Phi^-1(0.75)).
	madConsistency = 1.4826

	// DefaultMADThreshold is the z-score cutoff used by the aggregator.
	DefaultMADThreshold = 3.0

	// DefaultIQRMultiplier is Tukey's fence multiplier.
	DefaultIQRMultiplier = 1.5
)

// Median returns the median of xs: the middle element for odd length, the
// mean of the two middle elements for even length. Returns 0 for empty input.
// The input slice is not modified.
func Median(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, xs)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Prices extracts the price column from a list of observations.
func Prices(obs []domain.Observation) []float64 {
	out := make([]float64, len(obs))
	for i, o := range obs {
		out[i] = o.Price
	}
	return out
}

// FilterMAD keeps observations whose modified z-score is within threshold.
// With fewer than 3 observations there is not enough data to call anything an
// outlier and the input is returned unchanged. When the MAD itself is zero
// (more than half the values identical), 1% of the median is used as the
// effective deviation so that genuinely wild values are still rejected.
func FilterMAD(obs []domain.Observation, threshold float64) []domain.Observation {
	if len(obs) < 3 {
		return obs
	}

	prices := Prices(obs)
	m := Median(prices)

	devs := make([]float64, len(prices))
	for i, p := range prices {
		devs[i] = math.Abs(p - m)
	}
	mad := Median(devs)
	if mad == 0 {
		mad = 0.01 * m
	}

	kept := make([]domain.Observation, 0, len(obs))
	for _, o := range obs {
		z := math.Abs(o.Price-m) / (madConsistency * mad)
		if z <= threshold {
			kept = append(kept, o)
		}
	}
	return kept
}

// FilterIQR keeps observations inside Tukey's fences [Q1-k*IQR, Q3+k*IQR].
// Quartiles are taken by index at 25% and 75% of the sorted values (floor).
// Requires at least 4 observations; smaller inputs are returned unchanged.
func FilterIQR(obs []domain.Observation, k float64) []domain.Observation {
	if len(obs) < 4 {
		return obs
	}

	prices := Prices(obs)
	sorted := make([]float64, len(prices))
	copy(sorted, prices)
	sort.Float64s(sorted)

	q1 := sorted[len(sorted)/4]
	q3 := sorted[len(sorted)*3/4]
	iqr := q3 - q1
	lo := q1 - k*iqr
	hi := q3 + k*iqr

	kept := make([]domain.Observation, 0, len(obs))
	for _, o := range obs {
		if o.Price >= lo && o.Price <= hi {
			kept = append(kept, o)
		}
	}
	return kept
}
