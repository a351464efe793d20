// Package backoff provides exponential backoff utilities for retry logic.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Policy defines the parameters for exponential backoff calculation.
type Policy struct {
	// Base is the delay before the second attempt.
	Base time.Duration
	// Multiplier is the exponential factor applied per attempt.
	Multiplier float64
	// Max caps the computed delay.
	Max time.Duration
	// Jitter is the randomization factor (0.0 to 1.0) added on top of the
	// computed delay. Zero means fully deterministic delays.
	Jitter float64
}

// Delay returns the backoff duration before attempt+1, i.e. the sleep that
// follows a failed attempt. The formula is base * multiplier^(attempt-1),
// clamped to Max. Attempt numbers start at 1.
func (p Policy) Delay(attempt int) time.Duration {
	return p.delayWithRand(attempt, rand.Float64()) // #nosec G404 -- jitter does not require cryptographic randomness
}

func (p Policy) delayWithRand(attempt int, random float64) time.Duration {
	exp := math.Max(float64(attempt-1), 0)
	base := float64(p.Base) * math.Pow(p.Multiplier, exp)
	total := base + base*p.Jitter*random
	if p.Max > 0 {
		total = math.Min(total, float64(p.Max))
	}
	return time.Duration(total)
}

// DefaultPolicy returns the dispatcher's retry policy: deterministic doubling
// from one second, capped at a minute.
func DefaultPolicy() Policy {
	return Policy{
		Base:       time.Second,
		Multiplier: 2,
		Max:        time.Minute,
	}
}

// ProviderPolicy returns the policy used for transport-level LLM retries:
// quicker initial delay with mild jitter to avoid thundering retries.
func ProviderPolicy() Policy {
	return Policy{
		Base:       500 * time.Millisecond,
		Multiplier: 2,
		Max:        30 * time.Second,
		Jitter:     0.1,
	}
}
