package calibration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Seed test 5: prod_ece=0.05, live ECE samples [0.12,0.13,0.12,0.14,0.13],
// ece_drift_abs=0.06, abs_delta_multiplier=1.0, abs_streak_trigger=3.
// Expected: recommend_retrain=true after 3rd sample; reasons include abs_drift.
func TestMonitor_SeedScenarioAbsDriftStreak(t *testing.T) {
	m := NewMonitor(DriftParams{
		ECEAbs:             0.06,
		AbsDeltaMultiplier: 1.0,
		AbsStreakTrigger:   3,
		RelStreakTrigger:   0,
		MinSamples:         1,
		RecommendCooldown:  time.Minute,
	})

	live := []float64{0.12, 0.13, 0.12, 0.14, 0.13}
	prodECE := 0.05

	var last DriftState
	for i, l := range live {
		last = m.Observe(l, prodECE, 100)
		if i < 2 {
			require.False(t, last.RecommendRetrain, "should not fire before 3rd sample")
		}
	}
	require.True(t, last.RecommendRetrain)
	require.Contains(t, last.Reasons, "abs_drift")
	require.Equal(t, 5, last.AbsStreak)
}

func TestMonitor_BelowMinSamplesIsGrayAndFreezesStreak(t *testing.T) {
	m := NewMonitor(DriftParams{ECEAbs: 0.01, AbsDeltaMultiplier: 1.0, AbsStreakTrigger: 1, MinSamples: 50})

	s := m.Observe(0.5, 0.05, 10)
	require.True(t, s.Gray)
	require.False(t, s.RecommendRetrain)
	require.Equal(t, 0, s.AbsStreak)
}

func TestMonitor_NonDriftingResetsStreak(t *testing.T) {
	m := NewMonitor(DriftParams{ECEAbs: 0.06, AbsDeltaMultiplier: 1.0, AbsStreakTrigger: 2, MinSamples: 1})

	m.Observe(0.12, 0.05, 100)
	s := m.Observe(0.051, 0.05, 100)
	require.Equal(t, 0, s.AbsStreak)
	require.False(t, s.RecommendRetrain)
}
