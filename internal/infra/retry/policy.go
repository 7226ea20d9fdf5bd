package retry

import (
	"math"
	"slices"
	"time"
)

// Policy defines retry behavior for one call site. Treat it as a value:
// copy it and change the copy to override.
type Policy struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries     int           `yaml:"max_retries"`
	BaseDelay      time.Duration `yaml:"base_delay"`
	MaxDelay       time.Duration `yaml:"max_delay"`
	RetryableCodes []Code        `yaml:"retryable_errors"`
}

// JitterFactor scales the symmetric jitter applied to every backoff delay.
const JitterFactor = 0.25

// DefaultPolicy returns the policy used when a call site does not override it.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   10 * time.Second,
		RetryableCodes: []Code{
			HTTPStatus(429),
			HTTPStatus(500),
			HTTPStatus(503),
			Symbol(CodeTimedOut),
			Symbol(CodeConnReset),
		},
	}
}

// WithCodes returns a copy of p that also retries the given codes.
func (p Policy) WithCodes(codes ...Code) Policy {
	out := p
	out.RetryableCodes = append(slices.Clone(p.RetryableCodes), codes...)
	return out
}

// Allows reports whether code is on the retry allow-list.
func (p Policy) Allows(code Code) bool {
	return slices.Contains(p.RetryableCodes, code)
}

// MaxAttempts returns the total number of attempts the policy permits.
func (p Policy) MaxAttempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// Backoff returns the delay after the given failed attempt (1-based), with u
// drawn uniformly from [0, 1):
//
//	exponential = min(BaseDelay * 2^(attempt-1), MaxDelay)
//	delay       = max(0, exponential + exponential*JitterFactor*(u-0.5))
func Backoff(p Policy, attempt int, u float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	exponential := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if exponential > float64(p.MaxDelay) {
		exponential = float64(p.MaxDelay)
	}

	delay := exponential + exponential*JitterFactor*(u-0.5)
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
