package strategies

// Hybrid runs the multi-component policy and feeds its output into the EMA
// smoother as the mark price.
type Hybrid struct {
	multi *MultiComponent
	ema   *EMASmoothed
}

// NewHybrid creates the policy with default tuning for both stages.
func NewHybrid() *Hybrid {
	return &Hybrid{
		multi: NewMultiComponent(),
		ema:   NewEMASmoothed(),
	}
}

// Name implements PricingStrategy.
func (h *Hybrid) Name() string { return "hybrid" }

// Compute implements PricingStrategy.
func (h *Hybrid) Compute(in Input) (Result, bool) {
	multiResult, ok := h.multi.Compute(in)
	if !ok {
		return Result{}, false
	}

	emaResult := h.ema.UpdateMark(in.AssetID, multiResult.Price, in.External, in.Now)
	return Result{
		Price:      emaResult.Price,
		Confidence: 0.6*multiResult.Confidence + 0.4*emaResult.Confidence,
	}, true
}

// ForName resolves a configured strategy name to a policy instance. The
// default "median" path returns nil: the aggregator then uses its built-in
// median.
func ForName(name string) PricingStrategy {
	switch name {
	case "multi-component":
		return NewMultiComponent()
	case "ema":
		return NewEMASmoothed()
	case "hybrid":
		return NewHybrid()
	default:
		return nil
	}
}
