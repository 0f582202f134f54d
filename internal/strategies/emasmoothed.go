package strategies

import (
	"math"
	"sync"
	"time"

	"github.com/voltmark/hwpricer/internal/outlier"
)

// DefaultEMAWindow is the smoothing window of the EMA policy.
const DefaultEMAWindow = 2 * time.Hour

// Default blend weights between the external reference and the EMA.
const (
	DefaultExternalWeight = 1.0 / 3.0
	DefaultMarkWeight     = 2.0 / 3.0
)

type emaState struct {
	value    float64
	lastSeen time.Time
}

// EMASmoothed maintains a per-asset EMA of a mark price. The alpha adapts to
// the inter-sample gap so irregular rounds still smooth over the same
// wall-clock window.
type EMASmoothed struct {
	Window         time.Duration
	ExternalWeight float64
	MarkWeight     float64

	mu    sync.Mutex
	state map[string]*emaState
}

// NewEMASmoothed creates the policy with default tuning.
func NewEMASmoothed() *EMASmoothed {
	return &EMASmoothed{
		Window:         DefaultEMAWindow,
		ExternalWeight: DefaultExternalWeight,
		MarkWeight:     DefaultMarkWeight,
		state:          make(map[string]*emaState),
	}
}

// Name implements PricingStrategy.
func (e *EMASmoothed) Name() string { return "ema" }

// Compute implements PricingStrategy. The mark is the round's observation
// median unless the caller supplies one through UpdateMark.
func (e *EMASmoothed) Compute(in Input) (Result, bool) {
	prices := outlier.Prices(in.Observations)
	if len(prices) == 0 {
		return Result{}, false
	}
	mark := outlier.Median(prices)
	return e.smooth(in.AssetID, mark, in.External, in.Now), true
}

// UpdateMark feeds an externally computed mark price (the hybrid policy's
// multi-component output) into the EMA and returns the smoothed result.
func (e *EMASmoothed) UpdateMark(assetID string, mark, external float64, now time.Time) Result {
	return e.smooth(assetID, mark, external, now)
}

func (e *EMASmoothed) smooth(assetID string, mark, external float64, now time.Time) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	window := e.Window
	if window <= 0 {
		window = DefaultEMAWindow
	}

	st, ok := e.state[assetID]
	if !ok {
		st = &emaState{value: mark, lastSeen: now}
		e.state[assetID] = st
	} else {
		dt := now.Sub(st.lastSeen)
		if dt < 0 {
			dt = 0
		}
		alpha := 1 - math.Exp(-dt.Seconds()/(window.Seconds()/3))
		st.value = alpha*mark + (1-alpha)*st.value
		st.lastSeen = now
	}

	price := st.value
	if external > 0 {
		wExt, wMark := e.ExternalWeight, e.MarkWeight
		if wExt+wMark == 0 {
			wExt, wMark = DefaultExternalWeight, DefaultMarkWeight
		}
		price = wExt*external + wMark*st.value
	}

	// Confidence tracks how closely the fresh mark agrees with the
	// smoothed value.
	confidence := 1.0
	if st.value > 0 {
		confidence = math.Max(0, 1-math.Abs(mark-st.value)/st.value)
	}

	return Result{Price: price, Confidence: confidence}
}
