package autocompact

import (
	"fmt"
	"time"

	"github.com/deepnoodle-ai/autocompact/retry"
)

// Defaults for RetryConfig and the Executor.
const (
	DefaultMaxAttempts    = 5
	DefaultInitialDelayMs = 2000
	DefaultBackoffFactor  = 2.0
	DefaultMaxDelayMs     = 30000
	DefaultResumeDelay    = 500 * time.Millisecond
	DefaultTriggerDelay   = 300 * time.Millisecond
)

// RetryConfig bounds compaction retries. It is read once when the Executor is
// built.
type RetryConfig struct {
	// MaxAttempts is the number of compaction attempts before giving up.
	MaxAttempts int `yaml:"maxAttempts" json:"maxAttempts"`

	// InitialDelayMs is the wait after the first failed attempt.
	InitialDelayMs int `yaml:"initialDelayMs" json:"initialDelayMs"`

	// BackoffFactor multiplies the delay after each further failure.
	BackoffFactor float64 `yaml:"backoffFactor" json:"backoffFactor"`

	// MaxDelayMs caps the delay between attempts.
	MaxDelayMs int `yaml:"maxDelayMs" json:"maxDelayMs"`
}

// DefaultRetryConfig returns the default retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    DefaultMaxAttempts,
		InitialDelayMs: DefaultInitialDelayMs,
		BackoffFactor:  DefaultBackoffFactor,
		MaxDelayMs:     DefaultMaxDelayMs,
	}
}

// Validate reports the first invalid field.
func (c RetryConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: maxAttempts must be at least 1, got %d", ErrInvalidConfig, c.MaxAttempts)
	}
	if c.InitialDelayMs < 0 {
		return fmt.Errorf("%w: initialDelayMs must not be negative, got %d", ErrInvalidConfig, c.InitialDelayMs)
	}
	if c.BackoffFactor < 1 {
		return fmt.Errorf("%w: backoffFactor must be at least 1, got %g", ErrInvalidConfig, c.BackoffFactor)
	}
	if c.MaxDelayMs < c.InitialDelayMs {
		return fmt.Errorf("%w: maxDelayMs (%d) is below initialDelayMs (%d)",
			ErrInvalidConfig, c.MaxDelayMs, c.InitialDelayMs)
	}
	return nil
}

// ShouldRetry reports whether another attempt is allowed after attempt
// attempts have been made.
func (c RetryConfig) ShouldRetry(attempt int) bool {
	return attempt < c.MaxAttempts
}

// Backoff returns the delay calculator for this policy.
func (c RetryConfig) Backoff() retry.Backoff {
	return retry.Backoff{
		Initial: time.Duration(c.InitialDelayMs) * time.Millisecond,
		Factor:  c.BackoffFactor,
		Max:     time.Duration(c.MaxDelayMs) * time.Millisecond,
	}
}

// Delay returns the wait after the given failed attempt.
func (c RetryConfig) Delay(attempt int) time.Duration {
	return c.Backoff().Delay(attempt)
}
