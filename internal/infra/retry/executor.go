// Package retry runs calls to external generation services under a retry
// policy.
//
// This package contains:
//   - Classifier: maps raw failures to ClassifiedErrors
//   - Policy: retry limits, delays and the retryable-code allow-list
//   - Executor: the attempt/classify/backoff loop
package retry

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/vietddude/landplan/internal/core/domain"
	"github.com/vietddude/landplan/internal/metrics"
)

// RandomSource supplies jitter. *rand.Rand satisfies it.
type RandomSource interface {
	Float64() float64
}

// SleepFunc suspends for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Admitter gates each attempt. *ratelimit.Registry satisfies it.
type Admitter interface {
	CheckAndConsume(name domain.ResourceName) error
}

// Attempt describes a failed attempt that is about to be retried.
type Attempt struct {
	Number int
	Err    *ClassifiedError
	Delay  time.Duration
}

// RetryFunc observes scheduled retries.
type RetryFunc func(Attempt)

// Executor runs operations to completion or exhaustion. It keeps no state
// between calls apart from the jitter source, so one Executor can serve any
// number of concurrent calls.
type Executor struct {
	classifier *Classifier
	policy     Policy
	sleep      SleepFunc
	logger     *slog.Logger

	rngMu sync.Mutex
	rng   RandomSource
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithClassifier replaces the standard classifier.
func WithClassifier(c *Classifier) ExecutorOption {
	return func(e *Executor) { e.classifier = c }
}

// WithDefaultPolicy sets the policy used by calls without WithPolicy.
func WithDefaultPolicy(p Policy) ExecutorOption {
	return func(e *Executor) { e.policy = p }
}

// WithRandom sets the jitter source. Pass a seeded source for reproducible
// delays.
func WithRandom(r RandomSource) ExecutorOption {
	return func(e *Executor) { e.rng = r }
}

// WithSleep replaces the backoff sleep.
func WithSleep(fn SleepFunc) ExecutorOption {
	return func(e *Executor) { e.sleep = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// NewExecutor creates an Executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		classifier: defaultClassifier,
		policy:     DefaultPolicy(),
		sleep:      sleepContext,
		logger:     slog.Default(),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CallOption configures a single call.
type CallOption func(*callOptions)

type callOptions struct {
	policy   Policy
	onRetry  RetryFunc
	admitter Admitter
	resource domain.ResourceName
	callID   string
}

// WithPolicy overrides the executor's policy for one call.
func WithPolicy(p Policy) CallOption {
	return func(o *callOptions) { o.policy = p }
}

// WithOnRetry registers an observer invoked before each backoff sleep.
func WithOnRetry(fn RetryFunc) CallOption {
	return func(o *callOptions) { o.onRetry = fn }
}

// WithAdmission checks the named rate limit before every attempt. A
// rejection ends the call immediately with the admitter's error.
func WithAdmission(a Admitter, resource domain.ResourceName) CallOption {
	return func(o *callOptions) {
		o.admitter = a
		o.resource = resource
	}
}

// WithResource labels the call for logs and metrics without admission.
func WithResource(resource domain.ResourceName) CallOption {
	return func(o *callOptions) { o.resource = resource }
}

// WithCallID tags log lines of this call.
func WithCallID(id string) CallOption {
	return func(o *callOptions) { o.callID = id }
}

var defaultExecutor = NewExecutor()

// RunWithRetry runs op on a shared default executor.
func RunWithRetry[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts ...CallOption) (T, error) {
	return Run(ctx, defaultExecutor, op, opts...)
}

// Run executes op until it succeeds, fails with an error the policy will not
// retry, or runs out of attempts. Outcomes:
//   - op's result and nil on success
//   - *ClassifiedError when the call fails; Error() is the user message
//   - the admitter's error (e.g. *ratelimit.ExceededError) when admission is refused
//   - an error matching ErrCanceled when ctx ends first
//
// Only the last failure is reported.
func Run[T any](
	ctx context.Context,
	e *Executor,
	op func(ctx context.Context) (T, error),
	opts ...CallOption,
) (T, error) {
	var zero T

	o := callOptions{policy: e.policy}
	for _, opt := range opts {
		opt(&o)
	}

	resource := string(o.resource)
	if resource == "" {
		resource = "unspecified"
	}
	logger := e.logger.With("resource", resource)
	if o.callID != "" {
		logger = logger.With("call_id", o.callID)
	}

	start := time.Now()
	observe := func(outcome string) {
		metrics.CallLatency.WithLabelValues(resource, outcome).Observe(time.Since(start).Seconds())
	}

	maxAttempts := o.policy.MaxAttempts()
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			observe("canceled")
			return zero, &canceledError{cause: err}
		}

		if o.admitter != nil {
			if err := o.admitter.CheckAndConsume(o.resource); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					observe("canceled")
					return zero, &canceledError{cause: ctxErr}
				}
				observe("rate_limited")
				logger.Warn("Call rejected by rate limit", "attempt", attempt, "error", err)
				return zero, err
			}
		}

		metrics.CallAttemptsTotal.WithLabelValues(resource).Inc()
		result, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("Call succeeded after retry", "attempts", attempt)
			}
			observe("success")
			return result, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			observe("canceled")
			return zero, &canceledError{cause: ctxErr}
		}

		classified := e.classifier.Classify(err)
		classified.Attempts = attempt

		if attempt >= maxAttempts || !classified.Retryable || !o.policy.Allows(classified.Code) {
			logger.Warn("Call failed",
				"attempt", attempt,
				"code", classified.Code,
				"retryable", classified.Retryable,
				"error", classified.RawMessage,
			)
			metrics.CallFailuresTotal.WithLabelValues(resource, classified.Code.String(), string(classified.Kind)).Inc()
			observe("failed")
			return zero, classified
		}

		delay := Backoff(o.policy, attempt, e.random())
		metrics.CallRetriesTotal.WithLabelValues(resource, classified.Code.String()).Inc()
		logger.Debug("Retrying call",
			"attempt", attempt,
			"code", classified.Code,
			"delay", delay,
			"error", classified.RawMessage,
		)

		if o.onRetry != nil {
			o.onRetry(Attempt{Number: attempt, Err: classified, Delay: delay})
		}

		if err := e.sleep(ctx, delay); err != nil {
			observe("canceled")
			return zero, &canceledError{cause: err}
		}
	}
}

func (e *Executor) random() float64 {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.Float64()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
