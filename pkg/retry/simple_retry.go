package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy configures retry attempts and exponential backoff.
// The delay after the n-th failed attempt is min(BaseDelay * 2^(n-1), MaxDelay).
type Policy struct {
	// MaxAttempts is the total number of attempts including the first one
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// IsRetryable decides whether a failure is worth another attempt.
	// Nil retries every error.
	IsRetryable func(err error) bool
	// OnRetry is called before sleeping, with the attempt that just failed
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultPolicy returns the per-keyword policy: 3 attempts, 1s base, 5s cap
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    5 * time.Second,
	}
}

// Delay returns the backoff after the given failed attempt (1-based)
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}

	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	return p
}

// ExhaustedError is returned when every attempt failed with a retryable error
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// policy's attempts run out. Context cancellation stops waiting immediately
// and returns the context error.
func Do[T any](ctx context.Context, policy Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	policy = policy.withDefaults()

	var zero T
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		value, err := fn(ctx)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if policy.IsRetryable != nil && !policy.IsRetryable(err) {
			return zero, err
		}

		// Don't sleep after the final attempt
		if attempt == policy.MaxAttempts {
			break
		}

		delay := policy.Delay(attempt)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, &ExhaustedError{Attempts: policy.MaxAttempts, Err: lastErr}
}

// SimpleRetry runs error-only operations under a fixed policy
type SimpleRetry struct {
	policy Policy
}

// NewSimpleRetry creates a retry runner for the given policy
func NewSimpleRetry(policy Policy) *SimpleRetry {
	return &SimpleRetry{policy: policy}
}

// Policy returns the runner's policy
func (sr *SimpleRetry) Policy() Policy {
	return sr.policy
}

// Execute runs fn with the runner's policy
func (sr *SimpleRetry) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, sr.policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
