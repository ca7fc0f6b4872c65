package evaluate

import (
	"time"

	"dialeval/internal/llm"
)

// RetryPolicy decides how a task's transient failures are retried.
// Kept separate from the runner so scheduling code stays free of retry
// arithmetic.
type RetryPolicy struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int
	// Backoff returns the delay before retry number attempt (1-based).
	Backoff func(attempt int) time.Duration
	// Retryable classifies errors; non-retryable failures abort the
	// task immediately without consuming the retry budget.
	Retryable func(error) bool
}

// DefaultRetryPolicy retries twice with exponential backoff (2s, 4s)
// on transient LLM failures.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		Backoff:    ExponentialBackoff(time.Second),
		Retryable:  llm.IsRetryable,
	}
}

// ExponentialBackoff returns base * 2^attempt: with a one-second base
// the delays are 2s, 4s, 8s, ...
func ExponentialBackoff(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return base * time.Duration(1<<uint(attempt))
	}
}
