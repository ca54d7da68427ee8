package timeutil

import (
	"math"
	"math/rand"
	"time"
)

// DurationPtr is a helper function to create a pointer to a time.Duration
func DurationPtr(d time.Duration) *time.Duration {
	return &d
}

// MaxDuration returns the largest duration in the slice, or zero for an
// empty slice.
func MaxDuration(durations []time.Duration) time.Duration {
	var max time.Duration
	for _, d := range durations {
		if d > max {
			max = d
		}
	}
	return max
}

// ExponentialBackoffDelay computes the delay before the next retry attempt.
// attempt is 1-based: the first backoff (attempt=1) returns the initial
// duration. The result is capped at the configured maximum before jitter
// is applied, so the delay never grows without bound.
func ExponentialBackoffDelay(
	attempt int,
	jitter time.Duration,
	rng rand.Rand,
	backoffParam BackoffParam,
) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	exponent := float64(attempt - 1)
	delay := float64(backoffParam.initialDuration) * math.Pow(backoffParam.multiplier, exponent)
	if delay > float64(backoffParam.maxDuration) {
		delay = float64(backoffParam.maxDuration)
	}

	if jitter > 0 {
		delay += float64(rng.Int63n(int64(jitter)))
	}

	if delay < 0 {
		return 0
	}
	return time.Duration(delay)
}
