package trading

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sawpanic/bottomrun/internal/risk"
)

func TestController_FlatToLongToFlatLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	re := risk.NewEngine(risk.Params{})
	c := NewController(store, re, EntryParams{Enabled: true, BaseSize: 1}, ExitParams{TrailMode: TrailPercent, TrailPercent: 0.05, TimeStopBars: 1000})

	cand := EntryCandidate{Symbol: "BTCUSD", Price: 100, Decision: 1, At: time.Now()}
	sig, err := c.OnCandidate(ctx, cand, risk.Session{}, risk.EntryCandidate{Size: 1, EntryPrice: 100})
	require.NoError(t, err)
	require.Equal(t, "pending", sig.Status)

	pos, ok, err := store.GetPosition(ctx, "BTCUSD")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, StatusPendingEntry, pos.Status)

	_, err = c.ApplyEntryFill(ctx, "BTCUSD", Fill{Price: 100, Size: 1, Timestamp: time.Now()}, 90)
	require.NoError(t, err)

	pos, _, err = store.GetPosition(ctx, "BTCUSD")
	require.NoError(t, err)
	require.Equal(t, StatusLong, pos.Status)
	require.Equal(t, 1.0, pos.Size)

	updated, exitSig, err := c.Tick(ctx, "BTCUSD", MarketState{Price: 50})
	require.NoError(t, err)
	require.NotNil(t, exitSig)
	require.Equal(t, StatusPendingExit, updated.Status)

	final, err := c.ApplyExitFill(ctx, "BTCUSD", Fill{Price: 50, Size: 1, Timestamp: time.Now()}, -4.4)
	require.NoError(t, err)
	require.Equal(t, StatusFlat, final.Status)
	require.Equal(t, 0.0, final.Size)
}

func TestController_RejectsEntryOnRiskViolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	re := risk.NewEngine(risk.Params{MaxDrawdown: 0.1})
	c := NewController(store, re, EntryParams{Enabled: true, BaseSize: 1}, ExitParams{})

	cand := EntryCandidate{Symbol: "BTCUSD", Price: 100, Decision: 1, At: time.Now()}
	sess := risk.Session{PeakEquity: 10000, CurrentEquity: 9000}
	sig, err := c.OnCandidate(ctx, cand, sess, risk.EntryCandidate{Size: 1, EntryPrice: 100})
	require.NoError(t, err)
	require.Equal(t, "rejected", sig.Status)
	require.Equal(t, "max_drawdown", sig.Error)
}

func TestController_HaltsForDayAfterLossCapBreached(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	re := risk.NewEngine(risk.Params{})
	c := NewController(store, re, EntryParams{Enabled: true, BaseSize: 1}, ExitParams{DailyLossCapR: 1.0})

	cand := EntryCandidate{Symbol: "BTCUSD", Price: 100, Decision: 1, At: time.Now()}
	_, err := c.OnCandidate(ctx, cand, risk.Session{}, risk.EntryCandidate{Size: 1, EntryPrice: 100})
	require.NoError(t, err)
	_, err = c.ApplyEntryFill(ctx, "BTCUSD", Fill{Price: 100, Size: 1, Timestamp: time.Now()}, 90)
	require.NoError(t, err)

	_, err = store.SavePosition(ctx, Position{Symbol: "BTCUSD", Status: StatusPendingExit, Size: 1, EntryPrice: 100})
	require.NoError(t, err)

	_, err = c.ApplyExitFill(ctx, "BTCUSD", Fill{Price: 90, Size: 1, Timestamp: time.Now()}, -1.5)
	require.NoError(t, err)

	cand2 := EntryCandidate{Symbol: "BTCUSD", Price: 100, Decision: 1, At: time.Now()}
	sig2, err := c.OnCandidate(ctx, cand2, risk.Session{}, risk.EntryCandidate{Size: 1, EntryPrice: 100})
	require.NoError(t, err)
	require.Equal(t, "rejected", sig2.Status)
	require.Equal(t, "daily_loss_cap", sig2.Error)
}
