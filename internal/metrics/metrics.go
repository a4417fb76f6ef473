package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "genroute"

// Routing core metrics.
var (
	GenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Generations served, by provider and outcome",
		},
		[]string{"provider", "status"}, // "success" / "error" / "cached"
	)

	GenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Provider generation latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider"},
	)

	GenerationTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_tokens_total",
			Help:      "Estimated tokens charged to budgets",
		},
		[]string{"provider", "type"}, // "input" / "output"
	)

	SlowGenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slow_generations_total",
			Help:      "Generations that exceeded the slow threshold",
		},
		[]string{"provider"},
	)

	CacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_total",
			Help:      "Response cache lookups and writes by result",
		},
		[]string{"op", "result"}, // get: hit/miss/error, put: ok/error/skipped
	)

	PolicyDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_decisions_total",
			Help:      "Hosted provider eligibility decisions",
		},
		[]string{"decision", "critical"},
	)

	BudgetAlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "budget_alerts_total",
			Help:      "Budget threshold crossings by level",
		},
		[]string{"level"},
	)

	ProviderThrottleSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_throttle_wait_seconds",
			Help:      "Time spent waiting on a provider rate limiter",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"provider"},
	)
)

var registerOnce sync.Once

// Register registers all collectors with the default registry. Safe to call
// more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			GenerationsTotal,
			GenerationDuration,
			GenerationTokensTotal,
			SlowGenerationsTotal,
			CacheTotal,
			PolicyDecisionsTotal,
			BudgetAlertsTotal,
			ProviderThrottleSeconds,
			httpRequestDuration,
			httpRequestsTotal,
		)
	})
}
