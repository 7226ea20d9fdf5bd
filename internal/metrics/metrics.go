package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CallAttemptsTotal tracks every attempt made against an external resource
	CallAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landplan_call_attempts_total",
			Help: "Total number of attempts made against external generation services",
		},
		[]string{"resource"},
	)

	// CallRetriesTotal tracks retries scheduled after a retryable failure
	CallRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landplan_call_retries_total",
			Help: "Total number of retries scheduled after a retryable failure",
		},
		[]string{"resource", "code"},
	)

	// CallFailuresTotal tracks terminal classified failures
	CallFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landplan_call_failures_total",
			Help: "Total number of calls that ended in a terminal classified error",
		},
		[]string{"resource", "code", "kind"},
	)

	// CallLatency tracks the wall time of a whole call including backoff
	CallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "landplan_call_latency_seconds",
			Help:    "Latency of a resilient call in seconds, including backoff",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource", "outcome"},
	)

	// RateLimitRejectionsTotal tracks admission checks that found an empty bucket
	RateLimitRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landplan_rate_limit_rejections_total",
			Help: "Total number of admission checks rejected by the token bucket",
		},
		[]string{"resource"},
	)

	// TokensAvailable tracks the last observed token balance per resource
	TokensAvailable = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "landplan_rate_limit_tokens_available",
			Help: "Tokens available in the resource bucket at the last check",
		},
		[]string{"resource"},
	)
)
