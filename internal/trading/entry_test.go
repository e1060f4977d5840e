package trading

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEvaluateEntry_RequiresDecisionPositive(t *testing.T) {
	cand := EntryCandidate{Decision: 0, Price: 100, At: time.Now()}
	r := EvaluateEntry(cand, Position{Status: StatusFlat}, nil, EntryParams{Enabled: true})
	require.False(t, r.Allowed)
	require.Equal(t, "decision_not_positive", r.Reason)
}

func TestEvaluateEntry_RejectsWhenDisabled(t *testing.T) {
	cand := EntryCandidate{Decision: 1, Price: 100, At: time.Now()}
	r := EvaluateEntry(cand, Position{Status: StatusFlat}, nil, EntryParams{Enabled: false})
	require.False(t, r.Allowed)
	require.Equal(t, "live_trading_disabled", r.Reason)
}

func TestEvaluateEntry_RejectsDuringCooldown(t *testing.T) {
	now := time.Now()
	last := now.Add(-5 * time.Second)
	cand := EntryCandidate{Decision: 1, Price: 100, At: now}
	r := EvaluateEntry(cand, Position{Status: StatusFlat}, &last, EntryParams{Enabled: true, CooldownSec: 60})
	require.False(t, r.Allowed)
	require.Equal(t, "cooldown_active", r.Reason)
}

func TestEvaluateEntry_RejectsWithoutConfirmation(t *testing.T) {
	cand := EntryCandidate{Decision: 1, Price: 100, LocalMinPrice: 99.9, ShortMA: 105, At: time.Now()}
	r := EvaluateEntry(cand, Position{Status: StatusFlat}, nil, EntryParams{Enabled: true, ConfirmPct: 0.01})
	require.False(t, r.Allowed)
	require.Equal(t, "confirmation_not_met", r.Reason)
}

func TestEvaluateEntry_AllowsWithReboundConfirmation(t *testing.T) {
	cand := EntryCandidate{Decision: 1, Price: 101, LocalMinPrice: 100, At: time.Now()}
	r := EvaluateEntry(cand, Position{Status: StatusFlat}, nil, EntryParams{Enabled: true, ConfirmPct: 0.01})
	require.True(t, r.Allowed)
}

func TestEvaluateEntry_AllowsWithMAConfirmation(t *testing.T) {
	cand := EntryCandidate{Decision: 1, Price: 101, LocalMinPrice: 100.99, ShortMA: 100, At: time.Now()}
	r := EvaluateEntry(cand, Position{Status: StatusFlat}, nil, EntryParams{Enabled: true, ConfirmPct: 0.01})
	require.True(t, r.Allowed)
}

func TestEvaluateEntry_RejectsWhenNotFlat(t *testing.T) {
	cand := EntryCandidate{Decision: 1, Price: 100, At: time.Now()}
	r := EvaluateEntry(cand, Position{Status: StatusLong}, nil, EntryParams{Enabled: true})
	require.False(t, r.Allowed)
	require.Equal(t, "position_not_flat", r.Reason)
}
