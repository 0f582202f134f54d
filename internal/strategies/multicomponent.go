package strategies

import (
	"math"
	"time"

	"github.com/voltmark/hwpricer/internal/outlier"
)

// DefaultFloorHalfLife is the decay half-life of the sales-floor component.
const DefaultFloorHalfLife = 30 * time.Minute

// DefaultWinsorFraction clamps components deviating more than this fraction
// from the component median.
const DefaultWinsorFraction = 0.05

// MultiComponent fuses up to three price components: a trade-weighted
// average, a time-decayed sales floor and a bid-ask mid.
type MultiComponent struct {
	FloorHalfLife  time.Duration
	WinsorFraction float64
}

// NewMultiComponent creates the policy with default tuning.
func NewMultiComponent() *MultiComponent {
	return &MultiComponent{
		FloorHalfLife:  DefaultFloorHalfLife,
		WinsorFraction: DefaultWinsorFraction,
	}
}

// Name implements PricingStrategy.
func (m *MultiComponent) Name() string { return "multi-component" }

func sourceWeight(weights map[string]float64, source string) float64 {
	if w, ok := weights[source]; ok && w > 0 {
		return w
	}
	return 1
}

// tradeWeighted computes the weight-scaled mean of all observations.
func (m *MultiComponent) tradeWeighted(in Input) (float64, bool) {
	var sum, weightSum float64
	for _, o := range in.Observations {
		w := sourceWeight(in.Weights, o.Source)
		sum += w * o.Price
		weightSum += w
	}
	if weightSum == 0 {
		return 0, false
	}
	return sum / weightSum, true
}

// salesFloor computes an exponentially time-decayed weighted average of the
// MAD-filtered observations. Older sales count for less; the half-life sets
// the decay rate.
func (m *MultiComponent) salesFloor(in Input) (float64, bool) {
	filtered := outlier.FilterMAD(in.Observations, outlier.DefaultMADThreshold)
	if len(filtered) == 0 {
		return 0, false
	}

	halfLife := m.FloorHalfLife
	if halfLife <= 0 {
		halfLife = DefaultFloorHalfLife
	}

	var sum, weightSum float64
	for _, o := range filtered {
		age := in.Now.Sub(time.UnixMilli(o.Timestamp))
		if age < 0 {
			age = 0
		}
		decay := math.Pow(0.5, age.Seconds()/halfLife.Seconds())
		w := decay * sourceWeight(in.Weights, o.Source)
		sum += w * o.Price
		weightSum += w
	}
	if weightSum == 0 {
		return 0, false
	}
	return sum / weightSum, true
}

// bidAskMid returns the market midpoint unless the book is crossed.
func (m *MultiComponent) bidAskMid(in Input) (float64, bool) {
	if in.BestBid <= 0 || in.BestAsk <= 0 || in.BestBid > in.BestAsk {
		return 0, false
	}
	return (in.BestBid + in.BestAsk) / 2, true
}

// Compute implements PricingStrategy.
func (m *MultiComponent) Compute(in Input) (Result, bool) {
	var components []float64
	if p, ok := m.tradeWeighted(in); ok {
		components = append(components, p)
	}
	if p, ok := m.salesFloor(in); ok {
		components = append(components, p)
	}
	if p, ok := m.bidAskMid(in); ok {
		components = append(components, p)
	}
	if len(components) == 0 {
		return Result{}, false
	}

	median := outlier.Median(components)

	// Winsorize components that stray too far, then re-median.
	frac := m.WinsorFraction
	if frac <= 0 {
		frac = DefaultWinsorFraction
	}
	winsorized := make([]float64, len(components))
	for i, c := range components {
		lo, hi := median*(1-frac), median*(1+frac)
		switch {
		case c < lo:
			winsorized[i] = lo
		case c > hi:
			winsorized[i] = hi
		default:
			winsorized[i] = c
		}
	}
	price := outlier.Median(winsorized)

	minC, maxC := components[0], components[0]
	for _, c := range components[1:] {
		minC = math.Min(minC, c)
		maxC = math.Max(maxC, c)
	}
	spreadTerm := 0.0
	if median > 0 {
		spreadTerm = math.Max(0, 1-(maxC-minC)/median*2)
	}
	confidence := 0.5*math.Min(float64(len(components))/3, 1) + 0.5*spreadTerm

	return Result{Price: price, Confidence: confidence}, true
}
