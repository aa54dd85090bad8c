package retry

import (
	"math"
	"time"
)

const (
	DefaultInitialDelay  = 2 * time.Second
	DefaultBackoffFactor = 2.0
	DefaultMaxDelay      = 30 * time.Second
)

// Backoff computes exponential delays between attempts. It has no jitter, so
// two sessions failing at the same moment retry at the same moment.
type Backoff struct {
	Initial time.Duration
	Factor  float64
	Max     time.Duration
}

// DefaultBackoff returns a Backoff using the package defaults.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial: DefaultInitialDelay,
		Factor:  DefaultBackoffFactor,
		Max:     DefaultMaxDelay,
	}
}

// Delay returns the wait before retrying after the given attempt. Attempts are
// 1-based; anything lower is treated as the first attempt.
//
//	delay(n) = min(Initial * Factor^(n-1), Max)
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := b.Factor
	if factor < 1 {
		factor = 1
	}
	delay := float64(b.Initial) * math.Pow(factor, float64(attempt-1))
	if b.Max > 0 && delay > float64(b.Max) {
		return b.Max
	}
	// Guard against float overflow when no ceiling is configured
	if delay >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}
