package backoff

import "time"

// Calculator pairs a base-delay Strategy with a Jitter function, so callers
// hold one value instead of threading both through every call site.
type Calculator struct {
	strategy Strategy
	jitter   Jitter
}

// NewCalculator builds a Calculator from a strategy and jitter function.
func NewCalculator(strategy Strategy, jitter Jitter) *Calculator {
	if jitter == nil {
		jitter = NoJitter{}
	}
	return &Calculator{strategy: strategy, jitter: jitter}
}

// Calculate returns the jittered delay for the given attempt.
func (c *Calculator) Calculate(attempt int) time.Duration {
	return c.jitter.Apply(c.strategy.Delay(attempt))
}

// SetStrategy updates the base-delay strategy.
func (c *Calculator) SetStrategy(strategy Strategy) { c.strategy = strategy }

// SetJitter updates the jitter function.
func (c *Calculator) SetJitter(jitter Jitter) { c.jitter = jitter }
