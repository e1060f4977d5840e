package labeler

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sawpanic/bottomrun/internal/inferlog"
	"github.com/sawpanic/bottomrun/internal/label"
	"github.com/sawpanic/bottomrun/internal/ohlcv"
)

type fakeBars struct {
	bars []ohlcv.Bar
}

func (f *fakeBars) Upsert(ctx context.Context, bar ohlcv.Bar) (bool, error) {
	return true, nil
}

func (f *fakeBars) ListRecent(ctx context.Context, symbol, interval string, n int) ([]ohlcv.Bar, error) {
	return nil, nil
}

func (f *fakeBars) ListRange(ctx context.Context, symbol, interval string, from, to time.Time) ([]ohlcv.Bar, error) {
	var out []ohlcv.Bar
	for _, b := range f.bars {
		if b.Symbol == symbol && b.Interval == interval && !b.OpenTime.Before(from) && !b.OpenTime.After(to) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime.Before(out[j].OpenTime) })
	return out, nil
}

func (f *fakeBars) Earliest(ctx context.Context, symbol, interval string) (ohlcv.Bar, bool, error) {
	return ohlcv.Bar{}, false, nil
}

func seriesFrom(base time.Time, closes []float64) []ohlcv.Bar {
	bars := make([]ohlcv.Bar, len(closes))
	for i, c := range closes {
		ct := base.Add(time.Duration(i) * time.Minute)
		bars[i] = ohlcv.Bar{Symbol: "BTCUSD", Interval: "1m", OpenTime: ct.Add(-time.Minute + time.Millisecond), CloseTime: ct, Close: c, IsClosed: true}
	}
	return bars
}

func TestRunOnce_RealizesRowWithFullLookahead(t *testing.T) {
	ctx := context.Background()
	base := time.Now().Add(-time.Hour).Truncate(time.Minute)
	// drop then rebound: bottom event should resolve to label=1
	closes := []float64{100, 99, 98, 97, 98, 99, 101}
	bars := &fakeBars{bars: seriesFrom(base, closes)}

	logs := inferlog.NewMemory()
	entry, err := logs.Append(ctx, inferlog.Entry{Symbol: "BTCUSD", Interval: "1m", FeatureCloseTime: base, Probability: 0.8, Threshold: 0.5, Decision: 1})
	require.NoError(t, err)

	lp := label.Params{Lookahead: 6, Drawdown: 0.01, Rebound: 0.01}
	l := New(logs, bars)

	res, err := l.RunOnce(ctx, time.Minute, 10, lp)
	require.NoError(t, err)
	require.Equal(t, 1, res.Scanned)
	require.Equal(t, 1, res.Realized)

	got, err := logs.Get(ctx, entry.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Realized)
}

func TestRunOnce_LeavesRowPendingOnGapAtAnchor(t *testing.T) {
	ctx := context.Background()
	base := time.Now().Add(-time.Hour).Truncate(time.Minute)
	// Anchor bar itself missing from the store.
	closes := []float64{99, 98, 97, 98, 99, 101}
	bars := &fakeBars{bars: seriesFrom(base.Add(time.Minute), closes)}

	logs := inferlog.NewMemory()
	_, err := logs.Append(ctx, inferlog.Entry{Symbol: "BTCUSD", Interval: "1m", FeatureCloseTime: base, Probability: 0.8, Threshold: 0.5, Decision: 1})
	require.NoError(t, err)

	lp := label.Params{Lookahead: 6, Drawdown: 0.01, Rebound: 0.01}
	l := New(logs, bars)

	res, err := l.RunOnce(ctx, time.Minute, 10, lp)
	require.NoError(t, err)
	require.Equal(t, 1, res.StillPending)
	require.Equal(t, 0, res.Realized)
}

func TestRunOnce_RespectsLimit(t *testing.T) {
	ctx := context.Background()
	base := time.Now().Add(-time.Hour).Truncate(time.Minute)
	closes := []float64{100, 99, 98, 97, 98, 99, 101}
	bars := &fakeBars{bars: seriesFrom(base, closes)}

	logs := inferlog.NewMemory()
	for i := 0; i < 5; i++ {
		_, err := logs.Append(ctx, inferlog.Entry{Symbol: "BTCUSD", Interval: "1m", FeatureCloseTime: base, Probability: 0.8, Threshold: 0.5, Decision: 1})
		require.NoError(t, err)
	}

	lp := label.Params{Lookahead: 6, Drawdown: 0.01, Rebound: 0.01}
	l := New(logs, bars)

	res, err := l.RunOnce(ctx, time.Minute, 2, lp)
	require.NoError(t, err)
	require.Equal(t, 2, res.Scanned)
}

func TestRunEager_CapsAtEagerCapRegardlessOfRequestedLimit(t *testing.T) {
	ctx := context.Background()
	logs := inferlog.NewMemory()
	bars := &fakeBars{}
	l := New(logs, bars)

	lp := label.Params{Lookahead: 6, Drawdown: 0.01, Rebound: 0.01}
	res, err := l.RunEager(ctx, time.Minute, 10000, lp)
	require.NoError(t, err)
	require.Equal(t, 0, res.Scanned) // no entries queued, but limit clamp must not error
}

func TestRunOnce_AlreadyRealizedByConcurrentRunIsNotAnError(t *testing.T) {
	ctx := context.Background()
	base := time.Now().Add(-time.Hour).Truncate(time.Minute)
	closes := []float64{100, 99, 98, 97, 98, 99, 101}
	bars := &fakeBars{bars: seriesFrom(base, closes)}

	logs := inferlog.NewMemory()
	entry, err := logs.Append(ctx, inferlog.Entry{Symbol: "BTCUSD", Interval: "1m", FeatureCloseTime: base, Probability: 0.8, Threshold: 0.5, Decision: 1})
	require.NoError(t, err)
	require.NoError(t, logs.MarkRealized(ctx, entry.ID, 1, time.Now()))

	lp := label.Params{Lookahead: 6, Drawdown: 0.01, Rebound: 0.01}
	l := New(logs, bars)

	res, err := l.RunOnce(ctx, time.Minute, 10, lp)
	require.NoError(t, err)
	require.Equal(t, 0, res.Scanned) // Unrealized excludes already-realized rows
	require.Equal(t, 0, res.Errors)
}
