// Package ratelimit handles admission control for external generation services.
//
// This package contains:
//   - TokenBucket: step-wise refilled token bucket for a single resource
//   - Registry: one bucket per named resource, shared by all callers
//   - Clock: time source, replaceable in tests
//
// Buckets refill in whole refill intervals instead of continuously. The
// behavior is deterministic under a manual clock and the leftover sub-interval
// time is carried over, so no refill progress is lost.
package ratelimit

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// tokenEpsilon absorbs float drift from repeated fractional refills
// (six refills of 1/6 token must buy one request). A balance within
// tokenEpsilon below n is snapped up to n before consuming, so a successful
// TryConsume always removes exactly n from the balance it reports.
const tokenEpsilon = 1e-9

// BucketConfig holds the tunables of a single bucket.
type BucketConfig struct {
	Capacity       float64       `yaml:"capacity"`
	RefillRate     float64       `yaml:"refill_rate"` // tokens per second
	RefillInterval time.Duration `yaml:"refill_interval"`
}

// DefaultRefillInterval is used when a config leaves RefillInterval empty.
const DefaultRefillInterval = time.Second

// Validate checks that the config describes a usable bucket.
func (c BucketConfig) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive, got %v", c.Capacity)
	}
	if c.RefillRate <= 0 {
		return fmt.Errorf("refill rate must be positive, got %v", c.RefillRate)
	}
	if c.RefillInterval < 0 {
		return fmt.Errorf("refill interval must not be negative, got %v", c.RefillInterval)
	}
	return nil
}

// TokenBucket enforces a maximum request rate for one resource.
// It is safe for concurrent use.
type TokenBucket struct {
	mu sync.Mutex

	capacity       float64
	refillRate     float64
	refillInterval time.Duration
	tokens         float64
	lastRefill     time.Time

	clock Clock
}

// NewTokenBucket creates a full bucket.
func NewTokenBucket(cfg BucketConfig, clock Clock) (*TokenBucket, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.RefillInterval == 0 {
		cfg.RefillInterval = DefaultRefillInterval
	}
	if clock == nil {
		clock = SystemClock{}
	}

	return &TokenBucket{
		capacity:       cfg.Capacity,
		refillRate:     cfg.RefillRate,
		refillInterval: cfg.RefillInterval,
		tokens:         cfg.Capacity,
		lastRefill:     clock.Now(),
		clock:          clock,
	}, nil
}

// TryConsume takes n tokens if they are available. On false the balance is
// left untouched apart from the refill.
func (b *TokenBucket) TryConsume(n float64) bool {
	if n <= 0 {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	if b.tokens+tokenEpsilon < n {
		return false
	}
	if b.tokens < n {
		b.tokens = n
	}
	b.tokens -= n
	return true
}

// WaitTime returns how long until n tokens will be available, 0 if they
// already are. The result is aligned to refill steps, so once it has elapsed
// TryConsume(n) succeeds unless another caller got there first.
func (b *TokenBucket) WaitTime(n float64) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	return b.waitTimeLocked(n)
}

// TokenCount returns the current balance rounded down.
func (b *TokenBucket) TokenCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	return int(math.Floor(b.tokens + tokenEpsilon))
}

// Balance returns the exact current balance.
func (b *TokenBucket) Balance() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	return b.tokens
}

// Capacity returns the maximum balance.
func (b *TokenBucket) Capacity() float64 {
	return b.capacity
}

// Reset refills the bucket to capacity. Meant for manual recovery and tests.
func (b *TokenBucket) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens = b.capacity
	b.lastRefill = b.clock.Now()
}

// snapshot returns the rounded balance and the wait for one token under a
// single lock acquisition.
func (b *TokenBucket) snapshot() (available int, wait time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	return int(math.Floor(b.tokens + tokenEpsilon)), b.waitTimeLocked(1)
}

func (b *TokenBucket) refillLocked() {
	now := b.clock.Now()
	elapsed := now.Sub(b.lastRefill)
	if elapsed < b.refillInterval {
		return
	}

	intervals := elapsed / b.refillInterval
	b.tokens = math.Min(b.capacity, b.tokens+float64(intervals)*b.perInterval())
	// Advance by whole intervals only; the remainder counts toward the next step.
	b.lastRefill = b.lastRefill.Add(intervals * b.refillInterval)
}

func (b *TokenBucket) waitTimeLocked(n float64) time.Duration {
	shortfall := n - b.tokens
	if shortfall <= tokenEpsilon {
		return 0
	}

	steps := math.Ceil(shortfall/b.perInterval() - tokenEpsilon)
	sinceRefill := b.clock.Now().Sub(b.lastRefill)
	wait := time.Duration(steps)*b.refillInterval - sinceRefill
	if wait < 0 {
		return 0
	}
	return wait
}

func (b *TokenBucket) perInterval() float64 {
	return b.refillRate * b.refillInterval.Seconds()
}
