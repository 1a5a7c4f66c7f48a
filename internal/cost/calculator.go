// Package cost prices Anthropic token usage for the reply classifier.
package cost

import "sync"

// Rates holds per-model pricing.
type Rates struct {
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input        float64 `yaml:"input" mapstructure:"input"`
	Output       float64 `yaml:"output" mapstructure:"output"`
	CacheReadMul float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost of one Claude call. Cache reads are billed at a
// fraction of the input rate. Unknown models cost zero.
func (c *Calculator) Claude(model string, input, output, cacheRead int64) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}
	inCost := (float64(input) / 1e6) * rate.Input
	outCost := (float64(output) / 1e6) * rate.Output
	crCost := (float64(cacheRead) / 1e6) * rate.Input * rate.CacheReadMul
	return inCost + outCost + crCost
}

// Tracker accumulates spend across calls. Safe for concurrent use.
type Tracker struct {
	calc *Calculator

	mu    sync.Mutex
	calls int
	total float64
}

// NewTracker creates a Tracker pricing calls with calc.
func NewTracker(calc *Calculator) *Tracker {
	return &Tracker{calc: calc}
}

// Add records one call and returns its cost.
func (t *Tracker) Add(model string, input, output, cacheRead int64) float64 {
	c := t.calc.Claude(model, input, output, cacheRead)
	t.mu.Lock()
	t.calls++
	t.total += c
	t.mu.Unlock()
	return c
}

// Total returns the call count and accumulated spend in USD.
func (t *Tracker) Total() (int, float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls, t.total
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 1.00, Output: 5.00, CacheReadMul: 0.1},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00, CacheReadMul: 0.1},
		},
	}
}
