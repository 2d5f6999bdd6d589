// Package metrics holds the Prometheus collectors for the ranking engine.
//
// Collectors are registered on the default registry at init and exposed by
// the HTTP server under /metrics. Labels never carry user identifiers.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RankDuration tracks end-to-end Rank latency by personalization outcome.
	RankDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mealrank_rank_duration_seconds",
			Help:    "Duration of rank requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"personalized"},
	)

	// CandidatesScored counts candidates passed through the scoring phase.
	CandidatesScored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mealrank_candidates_scored_total",
			Help: "Total number of candidate recipes scored",
		},
	)

	// GateDecisions counts privacy gate outcomes: personalized, disabled, degraded.
	GateDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mealrank_gate_decisions_total",
			Help: "Privacy gate decisions by outcome",
		},
		[]string{"outcome"},
	)

	// MealPrepJobs counts batch meal-prep jobs by result.
	MealPrepJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mealrank_mealprep_jobs_total",
			Help: "Meal-prep rescoring jobs by result",
		},
		[]string{"result"},
	)

	// BreakerState reports the store circuit breaker state (0 closed, 1 half-open, 2 open).
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mealrank_store_breaker_state",
			Help: "Circuit breaker state for the personal data store",
		},
		[]string{"name"},
	)
)

// ObserveRank records one rank request.
func ObserveRank(personalized bool, candidates int, d time.Duration) {
	label := "false"
	if personalized {
		label = "true"
	}
	RankDuration.WithLabelValues(label).Observe(d.Seconds())
	CandidatesScored.Add(float64(candidates))
}
