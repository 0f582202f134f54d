// Package strategies implements optional pricing policies for illiquid
// assets. The aggregator's default path is a plain median; these policies are
// selected through PRICING_STRATEGY.
package strategies

import (
	"time"

	"github.com/voltmark/hwpricer/internal/domain"
)

// Input carries everything a policy may use for one pricing decision.
type Input struct {
	AssetID      string
	Observations []domain.Observation
	Weights      map[string]float64 // Per-source weight; sources absent default to 1
	BestBid      float64            // 0 when no bid market exists
	BestAsk      float64            // 0 when no ask market exists
	External     float64            // External reference price, 0 when absent
	Now          time.Time
}

// Result is a policy's canonical price plus its self-assessed confidence in
// [0, 1].
type Result struct {
	Price      float64
	Confidence float64
}

// PricingStrategy turns one round of observations into a canonical price.
type PricingStrategy interface {
	Name() string
	Compute(in Input) (Result, bool) // ok=false when no price can be produced
}
