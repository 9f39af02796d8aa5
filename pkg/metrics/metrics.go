// Package metrics holds the prometheus collectors of the progress service
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Submission outcomes
const (
	OutcomeAccepted = "accepted"
	OutcomeInvalid  = "invalid"
	OutcomeConflict = "conflict"
	OutcomeFailed   = "failed"
)

// Metrics groups the service collectors registered on one registry
type Metrics struct {
	Registry *prometheus.Registry

	submissions         *prometheus.CounterVec
	submissionDuration  *prometheus.HistogramVec
	achievementsGranted *prometheus.CounterVec
	leaderboardBuilds   *prometheus.CounterVec
	leaderboardSize     *prometheus.GaugeVec
	websocketClients    prometheus.Gauge
}

// New registers the collectors on a fresh registry
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry registers the collectors on reg
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,

		// Counter for exercise submissions by outcome
		submissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "progress_submissions_total",
				Help: "Total number of exercise attempt submissions",
			},
			[]string{"outcome"},
		),

		submissionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "progress_submission_duration_seconds",
				Help:    "Time spent processing exercise attempt submissions",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),

		achievementsGranted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "progress_achievements_granted_total",
				Help: "Total number of achievements granted",
			},
			[]string{"achievement", "rarity"},
		),

		// result: fresh/cached/degraded
		leaderboardBuilds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "progress_leaderboard_builds_total",
				Help: "Total number of leaderboard computations",
			},
			[]string{"result"},
		),

		leaderboardSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "progress_leaderboard_entries",
				Help: "Entries in the most recent leaderboard of a cohort",
			},
			[]string{"cohort"},
		),

		websocketClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "progress_websocket_clients_current",
				Help: "Current number of connected leaderboard websocket clients",
			},
		),
	}
}

// ObserveSubmission records one submission outcome and its duration
func (m *Metrics) ObserveSubmission(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
	m.submissionDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// AchievementGranted counts a committed achievement grant
func (m *Metrics) AchievementGranted(id, rarity string) {
	if m == nil {
		return
	}
	m.achievementsGranted.WithLabelValues(id, rarity).Inc()
}

// LeaderboardBuilt records a leaderboard computation for a cohort
func (m *Metrics) LeaderboardBuilt(cohortID, result string, entries int) {
	if m == nil {
		return
	}
	m.leaderboardBuilds.WithLabelValues(result).Inc()
	m.leaderboardSize.WithLabelValues(cohortID).Set(float64(entries))
}

// WebsocketClients sets the connected websocket client count
func (m *Metrics) WebsocketClients(n int) {
	if m == nil {
		return
	}
	m.websocketClients.Set(float64(n))
}
