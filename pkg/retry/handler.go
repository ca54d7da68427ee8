package retry

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/rohmanhakim/docsmith/pkg/failure"
	"github.com/rohmanhakim/docsmith/pkg/timeutil"
)

// Retry executes the provided function with retry logic.
// It will retry the function up to MaxAttempts times, applying exponential backoff
// with jitter between attempts. Only retryable errors will trigger a retry.
//
// Type parameter T represents the return type of the function being retried.
func Retry[T any](retryParam RetryParam, fn func() (T, failure.ClassifiedError)) (T, failure.ClassifiedError) {
	var lastErr failure.ClassifiedError
	var zero T

	if retryParam.MaxAttempts < 1 {
		return zero, &RetryError{
			Message:   "max attempt cannot be 0",
			Cause:     ErrZeroAttempt,
			Retryable: true,
		}
	}

	rng := rand.New(rand.NewSource(retryParam.RandomSeed))

	for attempt := 1; attempt <= retryParam.MaxAttempts; attempt++ {
		result, err := fn()

		if err == nil {
			return result, nil
		}

		lastErr = err

		if !ShouldRetry(err) {
			return zero, err
		}

		if attempt == retryParam.MaxAttempts {
			break
		}

		backoffDelay := timeutil.ExponentialBackoffDelay(
			attempt,
			retryParam.Jitter,
			*rng,
			retryParam.BackoffParam,
		)

		time.Sleep(backoffDelay)
	}

	return zero, &RetryError{
		Message:   fmt.Sprintf("exhausted %d attempts. Last error: %v", retryParam.MaxAttempts, lastErr),
		Cause:     ErrExhaustedAttempts,
		Retryable: true, // recoverable at engine level
	}
}

// ShouldRetry reports whether an error is worth another attempt.
// Errors advertise this through an IsRetryable method; errors that do not
// are assumed retryable so transient transport wrappers are not dropped.
func ShouldRetry(err failure.ClassifiedError) bool {
	type hasRetryable interface {
		IsRetryable() bool
	}

	if r, ok := err.(hasRetryable); ok {
		return r.IsRetryable()
	}

	return true
}

// ShouldRetryStatus reports whether an HTTP-style status code represents a
// transient failure: 5xx and 429 are retryable, every other 4xx is not.
func ShouldRetryStatus(status int) bool {
	if status >= 500 {
		return true
	}
	return status == 429
}
