package risk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Seed test 6: starting_equity=10_000, max_drawdown=0.1, current=9_000,
// peak=10_000. Next entry candidate must be rejected with reason max_drawdown.
func TestEvaluate_SeedScenarioMaxDrawdownHalt(t *testing.T) {
	e := NewEngine(Params{MaxDrawdown: 0.1})
	sess := Session{StartingEquity: 10000, PeakEquity: 10000, CurrentEquity: 9000}

	r := e.Evaluate(sess, EntryCandidate{Size: 1, EntryPrice: 100, StopPrice: 95})
	require.NotNil(t, r)
	require.Equal(t, "max_drawdown", r.Reason)
}

func TestEvaluate_PassesWhenWithinAllLimits(t *testing.T) {
	e := NewEngine(Params{MaxNotional: 10000, MaxDailyLoss: 500, MaxDrawdown: 0.2, ATRMultiple: 1.5})
	sess := Session{PeakEquity: 10000, CurrentEquity: 9800, CumulativePnL: -100}

	r := e.Evaluate(sess, EntryCandidate{Size: 1, EntryPrice: 100, StopPrice: 95, ATR: 2})
	require.Nil(t, r)
}

func TestEvaluate_MaxNotionalRejects(t *testing.T) {
	e := NewEngine(Params{MaxNotional: 1000})
	sess := Session{OpenNotional: 900}

	r := e.Evaluate(sess, EntryCandidate{Size: 2, EntryPrice: 100})
	require.NotNil(t, r)
	require.Equal(t, "max_notional", r.Reason)
}

func TestEvaluate_MaxDailyLossRejects(t *testing.T) {
	e := NewEngine(Params{MaxDailyLoss: 100})
	sess := Session{CumulativePnL: -150}

	r := e.Evaluate(sess, EntryCandidate{Size: 1, EntryPrice: 100})
	require.NotNil(t, r)
	require.Equal(t, "max_daily_loss", r.Reason)
}

func TestEvaluate_ATRMultipleRejectsWhenStopTooTight(t *testing.T) {
	e := NewEngine(Params{ATRMultiple: 2})
	sess := Session{}

	r := e.Evaluate(sess, EntryCandidate{Size: 1, EntryPrice: 100, StopPrice: 99, ATR: 1})
	require.NotNil(t, r)
	require.Equal(t, "atr_multiple", r.Reason)
}

func TestEvaluate_NoPartialOrderOnViolationGuardOrderIsMaxNotionalFirst(t *testing.T) {
	e := NewEngine(Params{MaxNotional: 10, MaxDailyLoss: 1, MaxDrawdown: 0.01, ATRMultiple: 5})
	sess := Session{OpenNotional: 100, CumulativePnL: -50, PeakEquity: 100, CurrentEquity: 50}

	r := e.Evaluate(sess, EntryCandidate{Size: 10, EntryPrice: 100, StopPrice: 99, ATR: 1})
	require.NotNil(t, r)
	require.Equal(t, "max_notional", r.Reason)
}
