package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics replaces the ad hoc pool counters of the original design with a
// prometheus registry. One instance is wired through the app; tests build
// their own registry so registration never collides.
type Metrics struct {
	APIRequests       *prometheus.CounterVec
	APILatency        *prometheus.HistogramVec
	AICalls           *prometheus.CounterVec
	GenerationJobs    *prometheus.CounterVec
	GenerationTiers   *prometheus.CounterVec
	GenerationQueue   prometheus.Gauge
	ClaimSelections   *prometheus.CounterVec
	AchievementGrants *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		APILatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		AICalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_calls_total",
			Help: "AI capability calls by capability and outcome.",
		}, []string{"capability", "outcome"}),
		GenerationJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "generation_jobs_total",
			Help: "Answer generation jobs by terminal state.",
		}, []string{"state"}),
		GenerationTiers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "generation_tiers_total",
			Help: "Per-tier generation attempts by outcome.",
		}, []string{"outcome"}),
		GenerationQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "generation_queue_depth",
			Help: "Jobs waiting in the generation queue.",
		}),
		ClaimSelections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "claim_selections_total",
			Help: "Claim selector calls by outcome.",
		}, []string{"outcome"}),
		AchievementGrants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "achievement_grants_total",
			Help: "Achievement grant attempts by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		m.APIRequests,
		m.APILatency,
		m.AICalls,
		m.GenerationJobs,
		m.GenerationTiers,
		m.GenerationQueue,
		m.ClaimSelections,
		m.AchievementGrants,
	)
	return m
}
