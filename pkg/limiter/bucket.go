package limiter

import (
	"context"
	"sync"
	"time"
)

/*
TokenBucket paces outgoing requests.

Semantics:
- Capacity equals the configured requests-per-second.
- Tokens refill continuously at that rate.
- Acquire reserves one token and returns how long the caller must wait
  before acting on it (zero when a token is immediately available).

The bucket starts with a single token so the first request goes out
immediately and subsequent requests are spaced by the refill rate.
Safe under concurrent acquirers: the (tokens, lastRefill) pair is
guarded by a mutex.
*/
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	rate       float64 // tokens per second
	lastRefill time.Time
	now        func() time.Time
}

// NewTokenBucket creates a bucket refilling at requestsPerSecond.
// A non-positive rate disables pacing: Acquire always returns zero.
func NewTokenBucket(requestsPerSecond float64) *TokenBucket {
	capacity := requestsPerSecond
	if capacity < 1 {
		capacity = 1
	}
	return &TokenBucket{
		capacity:   capacity,
		tokens:     1,
		rate:       requestsPerSecond,
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// Acquire reserves one token and returns the delay the caller must honor
// before performing the paced action. The token count may go negative,
// which represents already-promised future tokens.
func (b *TokenBucket) Acquire() time.Duration {
	if b.rate <= 0 {
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	elapsed := now.Sub(b.lastRefill)
	b.lastRefill = now

	b.tokens += elapsed.Seconds() * b.rate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}

	b.tokens--
	if b.tokens >= 0 {
		return 0
	}

	// Wait until the deficit refills.
	wait := time.Duration(-b.tokens / b.rate * float64(time.Second))
	return wait
}

// Wait acquires a token and sleeps out the returned delay, honoring
// context cancellation.
func (b *TokenBucket) Wait(ctx context.Context) error {
	delay := b.Acquire()
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Rate returns the configured refill rate in tokens per second.
func (b *TokenBucket) Rate() float64 {
	return b.rate
}

// SetClock injects a clock for testing.
func (b *TokenBucket) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
	b.lastRefill = now()
}
