package calibration

import (
	"math"
	"sync"
	"time"
)

// DriftParams configures the per-generation drift state machine, sourced
// from settings namespace calibration.monitor.*.
type DriftParams struct {
	ECEAbs                 float64
	ECERel                 float64
	AbsStreakTrigger       int
	RelStreakTrigger       int
	AbsDeltaMultiplier     float64
	RecommendCooldown      time.Duration
	MinSamples             int
}

// DriftState is the externally observable snapshot exposed by
// POST /monitor/calibration/status.
type DriftState struct {
	Gray             bool
	AbsStreak        int
	RelStreak        int
	RecommendRetrain bool
	Reasons          []string
	LastSnapshot     time.Time
}

const driftEps = 1e-9

// Monitor tracks consecutive-sample drift streaks for one artifact
// generation. A new Monitor must be created whenever the production
// generation changes (per §4.8, state is scoped per artifact generation).
type Monitor struct {
	mu   sync.Mutex
	p    DriftParams
	now  func() time.Time

	absStreak int
	relStreak int
	lastEmit  time.Time
	recommend bool
	reasons   []string
}

func NewMonitor(p DriftParams) *Monitor {
	return &Monitor{p: p, now: time.Now}
}

// Snapshot returns the monitor's current state without feeding a new
// observation, for the read-only POST /monitor/calibration/status
// endpoint.
func (m *Monitor) Snapshot() DriftState {
	m.mu.Lock()
	defer m.mu.Unlock()

	return DriftState{
		AbsStreak:        m.absStreak,
		RelStreak:        m.relStreak,
		RecommendRetrain: m.recommend,
		Reasons:          m.reasons,
		LastSnapshot:     m.lastEmit,
	}
}

// Params returns the monitor's configured drift thresholds.
func (m *Monitor) Params() DriftParams { return m.p }

// Observe feeds one live-vs-production ECE comparison into the streak
// counters and returns the resulting state. sampleCount is the number of
// realized rows the live ECE was computed over; below min_samples the
// state is "gray": metrics are reported but recommend_retrain stays false
// and streaks are frozen (not advanced, not reset).
func (m *Monitor) Observe(liveECE, prodECE float64, sampleCount int) DriftState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sampleCount < m.p.MinSamples {
		return DriftState{
			Gray:             true,
			AbsStreak:        m.absStreak,
			RelStreak:        m.relStreak,
			RecommendRetrain: false,
			LastSnapshot:     m.now(),
		}
	}

	diff := math.Abs(liveECE - prodECE)
	absTrigger := diff >= m.p.ECEAbs*m.p.AbsDeltaMultiplier
	denom := prodECE
	if denom < driftEps {
		denom = driftEps
	}
	relTrigger := diff/denom >= m.p.ECERel

	if absTrigger {
		m.absStreak++
	} else {
		m.absStreak = 0
	}
	if relTrigger {
		m.relStreak++
	} else {
		m.relStreak = 0
	}

	var reasons []string
	fired := false
	if m.p.AbsStreakTrigger > 0 && m.absStreak >= m.p.AbsStreakTrigger {
		reasons = append(reasons, "abs_drift")
		fired = true
	}
	if m.p.RelStreakTrigger > 0 && m.relStreak >= m.p.RelStreakTrigger {
		reasons = append(reasons, "rel_drift")
		fired = true
	}

	now := m.now()
	if fired {
		if m.recommend && now.Sub(m.lastEmit) < m.p.RecommendCooldown {
			// already recommending within cooldown; do not re-emit but
			// keep the streak state visible.
		} else {
			m.recommend = true
			m.reasons = reasons
			m.lastEmit = now
		}
	} else {
		m.recommend = false
		m.reasons = nil
	}

	return DriftState{
		Gray:             false,
		AbsStreak:        m.absStreak,
		RelStreak:        m.relStreak,
		RecommendRetrain: m.recommend,
		Reasons:          m.reasons,
		LastSnapshot:     now,
	}
}
