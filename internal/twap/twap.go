// Package twap maintains per-asset rolling windows of fused prices and
// computes time-weighted averages over them.
package twap

import (
	"sort"
	"sync"
	"time"
)

// observation is one (price, timestamp) sample inside a window.
type observation struct {
	Price     float64 `msgpack:"price"`
	Timestamp int64   `msgpack:"timestamp"` // ms since epoch
}

// Calculator holds one rolling window per asset. Appends must carry
// non-decreasing timestamps per asset; pruning is lazy on read.
type Calculator struct {
	mu      sync.Mutex
	window  time.Duration
	windows map[string][]observation
	now     func() time.Time
}

// NewCalculator creates a calculator with the given rolling window.
func NewCalculator(window time.Duration) *Calculator {
	return &Calculator{
		window:  window,
		windows: make(map[string][]observation),
		now:     time.Now,
	}
}

// SetClock overrides the time source. Used by tests.
func (c *Calculator) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Add appends a sample for assetID and prunes samples that left the window.
func (c *Calculator) Add(assetID string, price float64, timestamp int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.windows[assetID] = append(c.windows[assetID], observation{Price: price, Timestamp: timestamp})
	c.pruneLocked(assetID)
}

// TWAP returns the time-weighted average over the current window.
// The second return is false when the window is empty.
func (c *Calculator) TWAP(assetID string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked(assetID)
	obs := c.windows[assetID]
	if len(obs) == 0 {
		return 0, false
	}
	if len(obs) == 1 {
		return obs[0].Price, true
	}

	sorted := make([]observation, len(obs))
	copy(sorted, obs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	// Each sample is weighted by the time until the next one; the last sample
	// extends forward to now.
	nowMs := c.now().UnixMilli()
	var weightedSum, totalWeight float64
	for i := 0; i < len(sorted)-1; i++ {
		w := float64(sorted[i+1].Timestamp - sorted[i].Timestamp)
		weightedSum += sorted[i].Price * w
		totalWeight += w
	}
	last := sorted[len(sorted)-1]
	w := float64(nowMs - last.Timestamp)
	weightedSum += last.Price * w
	totalWeight += w

	if totalWeight == 0 {
		// All samples share the current instant; the latest price stands.
		return last.Price, true
	}
	return weightedSum / totalWeight, true
}

// Spot returns the most recent in-window price for assetID.
func (c *Calculator) Spot(assetID string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked(assetID)
	obs := c.windows[assetID]
	if len(obs) == 0 {
		return 0, false
	}
	// Ties go to the later insertion.
	latest := obs[0]
	for _, o := range obs[1:] {
		if o.Timestamp >= latest.Timestamp {
			latest = o
		}
	}
	return latest.Price, true
}

// Size returns the number of in-window samples for assetID.
func (c *Calculator) Size(assetID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked(assetID)
	return len(c.windows[assetID])
}

// Clear drops the window for one asset.
func (c *Calculator) Clear(assetID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.windows, assetID)
}

// ClearAll drops every window.
func (c *Calculator) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.windows = make(map[string][]observation)
}

// pruneLocked removes samples older than the window. Caller holds c.mu.
func (c *Calculator) pruneLocked(assetID string) {
	cutoff := c.now().Add(-c.window).UnixMilli()
	obs := c.windows[assetID]
	kept := obs[:0]
	for _, o := range obs {
		if o.Timestamp >= cutoff {
			kept = append(kept, o)
		}
	}
	if len(kept) == 0 {
		delete(c.windows, assetID)
		return
	}
	c.windows[assetID] = kept
}
