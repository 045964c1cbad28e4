// Package metrics exposes the engine's Prometheus surface: job
// throughput by provenance and outcome, UPSERT latency, rate-limiter
// wait time, webhook outcomes, and breaker state (SPEC_FULL.md
// Supplemental Features: "metrics surface"). No component in this
// repository updates these collectors; they are registered and exported
// with their zero values.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	JobsEnqueued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opms_erp_sync",
		Name:      "jobs_enqueued_total",
		Help:      "SyncJobs enqueued, labeled by provenance.",
	}, []string{"provenance"})

	JobsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opms_erp_sync",
		Name:      "jobs_completed_total",
		Help:      "SyncJobs resolved, labeled by outcome (success, skipped, failed).",
	}, []string{"outcome"})

	UpsertLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "opms_erp_sync",
		Name:      "upsert_latency_seconds",
		Help:      "UPSERT Client request latency.",
		Buckets:   prometheus.DefBuckets,
	})

	RateLimiterWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "opms_erp_sync",
		Name:      "rate_limiter_wait_seconds",
		Help:      "Time spent waiting on the Dispatcher's outbound rate limiter.",
		Buckets:   prometheus.DefBuckets,
	})

	WebhookOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opms_erp_sync",
		Name:      "webhook_outcomes_total",
		Help:      "Inbound pricing webhooks, labeled by outcome (applied, skipped, invalid, failed).",
	}, []string{"outcome"})

	BreakerState = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "opms_erp_sync",
		Name:      "upsert_breaker_state",
		Help:      "UPSERT circuit breaker state: 0=closed, 1=half-open, 2=open.",
	})
)

// Register adds every collector to the default registry. Called once
// at startup; a second call would panic on duplicate registration, so
// callers must only invoke it from cmd/syncd's wiring.
func Register() {
	prometheus.MustRegister(
		JobsEnqueued,
		JobsCompleted,
		UpsertLatency,
		RateLimiterWait,
		WebhookOutcomes,
		BreakerState,
	)
}
