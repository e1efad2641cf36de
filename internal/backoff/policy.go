// Package backoff provides the retry backoff strategies used by the tool
// adapter between failed attempts.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Strategy selects how the delay between retry attempts grows.
type Strategy string

const (
	// None retries immediately with no delay.
	None Strategy = "none"
	// Linear grows the delay linearly with the attempt number: base * n.
	Linear Strategy = "linear"
	// Exponential grows the delay geometrically: base * 2^(n-1).
	Exponential Strategy = "exponential"
	// ExponentialJitter is Exponential with symmetric jitter added.
	ExponentialJitter Strategy = "exponential_jitter"
)

// Policy configures backoff computation. Base is the backoff unit
// (attempt 1's delay, or the unit multiplier for Linear); Jitter is the
// fraction of the exponential delay used as the jitter amplitude, applied
// only when Strategy is ExponentialJitter.
type Policy struct {
	Strategy Strategy
	Base     time.Duration
	Jitter   float64
	// Max caps the computed delay, after jitter. Zero means uncapped.
	Max time.Duration
}

// DefaultPolicy mirrors the tool adapter's default retry behavior:
// exponential backoff with 10% symmetric jitter, base 100ms, capped at 5s.
func DefaultPolicy() Policy {
	return Policy{
		Strategy: ExponentialJitter,
		Base:     100 * time.Millisecond,
		Jitter:   0.1,
		Max:      5 * time.Second,
	}
}

// Compute returns the delay before the given retry attempt (attempts are
// 1-indexed: attempt 1 is the first retry after the initial failed call).
// The formula for each strategy is fixed:
//
//	None:              0
//	Linear:             base * n
//	Exponential:        base * 2^(n-1)
//	ExponentialJitter:  base * 2^(n-1) + uniform(-jitter*d, +jitter*d), d = base*2^(n-1)
//
// Compute uses the package's random source; ComputeWithRand takes an
// explicit value in [0,1) for deterministic tests.
func Compute(p Policy, attempt int) time.Duration {
	return ComputeWithRand(p, attempt, rand.Float64()) // #nosec G404 -- jitter does not require cryptographic randomness
}

// ComputeWithRand computes the backoff delay using an explicit random value
// in [0, 1) in place of the package's random source.
func ComputeWithRand(p Policy, attempt int, randomValue float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	var delay float64
	switch p.Strategy {
	case None:
		delay = 0
	case Linear:
		delay = float64(p.Base) * float64(attempt)
	case Exponential:
		delay = float64(p.Base) * math.Pow(2, float64(attempt-1))
	case ExponentialJitter:
		d := float64(p.Base) * math.Pow(2, float64(attempt-1))
		// Map randomValue in [0,1) onto a symmetric jitter in [-jitter*d, +jitter*d].
		jitter := (randomValue*2 - 1) * p.Jitter * d
		delay = d + jitter
	default:
		delay = float64(p.Base) * math.Pow(2, float64(attempt-1))
	}

	if delay < 0 {
		delay = 0
	}

	result := time.Duration(delay)
	if p.Max > 0 && result > p.Max {
		result = p.Max
	}
	return result
}
