package ratelimit

import (
	"sync"
	"time"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow checks if a request is allowed under the current rate limit
	Allow() bool
	// Wait blocks until the rate limit allows another request
	Wait()
	// Reset resets the rate limiter state
	Reset()
}

// TokenBucket implements a token bucket rate limiter. One bucket is
// held per credential so that accounts with their own access token do
// not consume each other's request budget.
type TokenBucket struct {
	capacity     int
	tokens       int
	refillPeriod time.Duration
	lastRefill   time.Time
	mu           sync.Mutex
}

// NewTokenBucket creates a new token bucket rate limiter
func NewTokenBucket(capacity int, refillPeriod time.Duration) *TokenBucket {
	return &TokenBucket{
		capacity:     capacity,
		tokens:       capacity,
		refillPeriod: refillPeriod,
		lastRefill:   time.Now(),
	}
}

// Allow checks if a request can proceed
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}

	return false
}

// Wait blocks until a token is available
func (tb *TokenBucket) Wait() {
	for !tb.Allow() {
		tb.mu.Lock()
		timeUntilRefill := tb.refillPeriod - time.Since(tb.lastRefill)
		tb.mu.Unlock()

		if timeUntilRefill > 0 {
			time.Sleep(timeUntilRefill)
		} else {
			// Small sleep to prevent busy waiting
			time.Sleep(100 * time.Millisecond)
		}
	}
}

// Reset resets the token bucket to full capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = time.Now()
}

// refill adds tokens based on elapsed time
func (tb *TokenBucket) refill() {
	now := time.Now()
	if now.Sub(tb.lastRefill) >= tb.refillPeriod {
		tb.tokens = tb.capacity
		tb.lastRefill = now
	}
}

// Registry hands out one limiter per credential. Calls that share a
// token share a bucket; calls under distinct page tokens get their own.
type Registry struct {
	capacity     int
	refillPeriod time.Duration
	buckets      map[string]*TokenBucket
	mu           sync.Mutex
}

// NewRegistry creates a registry of per-credential token buckets
func NewRegistry(capacity int, refillPeriod time.Duration) *Registry {
	return &Registry{
		capacity:     capacity,
		refillPeriod: refillPeriod,
		buckets:      make(map[string]*TokenBucket),
	}
}

// For returns the limiter bound to the given credential, creating it on
// first use.
func (r *Registry) For(credential string) Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	tb, ok := r.buckets[credential]
	if !ok {
		tb = NewTokenBucket(r.capacity, r.refillPeriod)
		r.buckets[credential] = tb
	}
	return tb
}
