package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sample returns the value of the series of family name whose labels include want
func sample(t *testing.T, m *Metrics, name string, want map[string]string) float64 {
	t.Helper()
	families, err := m.Registry.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, metric := range mf.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue series
				}
			}
			switch {
			case metric.GetCounter() != nil:
				return metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				return metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				return float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	t.Fatalf("no series %s%v", name, want)
	return 0
}

func TestMetrics_Collectors(t *testing.T) {
	m := New()

	m.ObserveSubmission(OutcomeAccepted, 20*time.Millisecond)
	m.ObserveSubmission(OutcomeAccepted, 10*time.Millisecond)
	m.ObserveSubmission(OutcomeInvalid, time.Millisecond)
	m.AchievementGranted("first-game", "common")
	m.LeaderboardBuilt("cohort-a", "fresh", 3)
	m.WebsocketClients(2)

	assert.Equal(t, 2.0, sample(t, m, "progress_submissions_total", map[string]string{"outcome": OutcomeAccepted}))
	assert.Equal(t, 1.0, sample(t, m, "progress_submissions_total", map[string]string{"outcome": OutcomeInvalid}))
	assert.Equal(t, 2.0, sample(t, m, "progress_submission_duration_seconds", map[string]string{"outcome": OutcomeAccepted}))
	assert.Equal(t, 1.0, sample(t, m, "progress_achievements_granted_total", map[string]string{"achievement": "first-game"}))
	assert.Equal(t, 3.0, sample(t, m, "progress_leaderboard_entries", map[string]string{"cohort": "cohort-a"}))
	assert.Equal(t, 2.0, sample(t, m, "progress_websocket_clients_current", nil))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveSubmission(OutcomeFailed, time.Second)
		m.AchievementGranted("x", "rare")
		m.LeaderboardBuilt("c", "degraded", 0)
		m.WebsocketClients(1)
	})
}
