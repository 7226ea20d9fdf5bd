package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/landplan/internal/core/domain"
	"github.com/vietddude/landplan/internal/metrics"
)

// ErrUnknownResource is returned for resource names with no registered bucket.
var ErrUnknownResource = errors.New("unknown rate-limited resource")

// ExceededError is returned when an admission check finds the bucket empty.
type ExceededError struct {
	Resource domain.ResourceName
	WaitTime time.Duration
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry in %v", e.Resource, e.WaitTime)
}

// UserMessage is the text shown to the end user.
func (e *ExceededError) UserMessage() string {
	secs := int(math.Ceil(e.WaitTime.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("Rate limit exceeded. Please wait %d seconds before trying again.", secs)
}

// Status is a point-in-time view of one bucket.
type Status struct {
	Available int
	Capacity  int
	WaitTime  time.Duration
}

// MarshalJSON renders the wait time in milliseconds.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Available  int   `json:"available"`
		Capacity   int   `json:"capacity"`
		WaitTimeMs int64 `json:"wait_time_ms"`
	}{s.Available, s.Capacity, s.WaitTime.Milliseconds()})
}

// DefaultBuckets returns the predefined resources. Capacities sit below the
// generation services' free-tier quotas.
func DefaultBuckets() map[domain.ResourceName]BucketConfig {
	return map[domain.ResourceName]BucketConfig{
		domain.ResourceTextGeneration: {
			Capacity:       10,
			RefillRate:     10.0 / 60.0,
			RefillInterval: DefaultRefillInterval,
		},
		domain.ResourceImageGeneration: {
			Capacity:       5,
			RefillRate:     5.0 / 60.0,
			RefillInterval: DefaultRefillInterval,
		},
	}
}

// Registry owns one TokenBucket per named resource for the life of the
// process. It is constructed once and handed to every call site.
//
// Contention is best-effort: there is no FIFO ordering between callers of the
// same bucket, and a caller can lose every race under sustained load.
type Registry struct {
	mu      sync.RWMutex
	buckets map[domain.ResourceName]*TokenBucket

	clock  Clock
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(clock Clock, logger *slog.Logger) *Registry {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		buckets: make(map[domain.ResourceName]*TokenBucket),
		clock:   clock,
		logger:  logger,
	}
}

// NewDefaultRegistry creates a registry holding the predefined resources with
// overrides applied on top.
func NewDefaultRegistry(
	clock Clock,
	logger *slog.Logger,
	overrides map[domain.ResourceName]BucketConfig,
) (*Registry, error) {
	r := NewRegistry(clock, logger)

	configs := DefaultBuckets()
	for name, cfg := range overrides {
		configs[name] = cfg
	}

	for name, cfg := range configs {
		if err := r.Register(name, cfg); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register installs a fresh, full bucket for name, replacing any existing one.
func (r *Registry) Register(name domain.ResourceName, cfg BucketConfig) error {
	if name == "" {
		return errors.New("resource name is required")
	}
	b, err := NewTokenBucket(cfg, r.clock)
	if err != nil {
		return fmt.Errorf("bucket %s: %w", name, err)
	}

	r.mu.Lock()
	r.buckets[name] = b
	r.mu.Unlock()

	metrics.TokensAvailable.WithLabelValues(name.String()).Set(cfg.Capacity)
	r.logger.Debug("Rate limit registered",
		"resource", name,
		"capacity", cfg.Capacity,
		"refill_rate", cfg.RefillRate,
	)
	return nil
}

// Bucket returns the bucket for name.
func (r *Registry) Bucket(name domain.ResourceName) (*TokenBucket, error) {
	r.mu.RLock()
	b, ok := r.buckets[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, name)
	}
	return b, nil
}

// CheckAndConsume takes one token from the named bucket. It returns an
// *ExceededError when the bucket is empty and nil on success.
func (r *Registry) CheckAndConsume(name domain.ResourceName) error {
	b, err := r.Bucket(name)
	if err != nil {
		return err
	}

	if b.TryConsume(1) {
		metrics.TokensAvailable.WithLabelValues(name.String()).Set(b.Balance())
		return nil
	}

	wait := b.WaitTime(1)
	metrics.RateLimitRejectionsTotal.WithLabelValues(name.String()).Inc()
	metrics.TokensAvailable.WithLabelValues(name.String()).Set(b.Balance())
	r.logger.Debug("Rate limit exceeded", "resource", name, "wait", wait)

	return &ExceededError{Resource: name, WaitTime: wait}
}

// Wait blocks until a token is taken from the named bucket or ctx is done.
// The bucket lock is never held while sleeping.
func (r *Registry) Wait(ctx context.Context, name domain.ResourceName) error {
	b, err := r.Bucket(name)
	if err != nil {
		return err
	}

	for {
		if b.TryConsume(1) {
			return nil
		}

		wait := b.WaitTime(1)
		if wait <= 0 {
			// Lost the race for a token that was just refilled.
			wait = time.Millisecond
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Status reports the state of one bucket. It applies the lazy refill but
// never consumes.
func (r *Registry) Status(name domain.ResourceName) (Status, error) {
	b, err := r.Bucket(name)
	if err != nil {
		return Status{}, err
	}

	available, wait := b.snapshot()
	return Status{
		Available: available,
		Capacity:  int(b.Capacity()),
		WaitTime:  wait,
	}, nil
}

// Snapshot reports the state of every bucket, keyed by resource name.
func (r *Registry) Snapshot() map[domain.ResourceName]Status {
	names := r.Names()
	out := make(map[domain.ResourceName]Status, len(names))
	for _, name := range names {
		if st, err := r.Status(name); err == nil {
			out[name] = st
		}
	}
	return out
}

// Names returns the registered resource names in sorted order.
func (r *Registry) Names() []domain.ResourceName {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]domain.ResourceName, 0, len(r.buckets))
	for name := range r.buckets {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
