package inference

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sawpanic/bottomrun/internal/features"
	"github.com/sawpanic/bottomrun/internal/inferlog"
	"github.com/sawpanic/bottomrun/internal/model"
	"github.com/sawpanic/bottomrun/internal/ohlcv"
	"github.com/sawpanic/bottomrun/internal/registry"
	"github.com/sawpanic/bottomrun/internal/risk"
	"github.com/sawpanic/bottomrun/internal/trading"
)

type fakeSnapshotStore struct {
	snap features.Snapshot
	ok   bool
	err  error
}

func (f *fakeSnapshotStore) Upsert(ctx context.Context, s features.Snapshot) error { return nil }
func (f *fakeSnapshotStore) Exists(ctx context.Context, symbol, interval string, closeTime time.Time, schemaVersion int) (bool, error) {
	return false, nil
}
func (f *fakeSnapshotStore) GetLatest(ctx context.Context, symbol, interval string) (features.Snapshot, bool, error) {
	return f.snap, f.ok, f.err
}
func (f *fakeSnapshotStore) ListRange(ctx context.Context, symbol, interval string, from, to time.Time) ([]features.Snapshot, error) {
	return nil, nil
}

type fakeBarStore struct {
	bars []ohlcv.Bar
}

func (f *fakeBarStore) Upsert(ctx context.Context, bar ohlcv.Bar) (bool, error) {
	return true, nil
}

func (f *fakeBarStore) ListRecent(ctx context.Context, symbol, interval string, n int) ([]ohlcv.Bar, error) {
	return f.bars, nil
}
func (f *fakeBarStore) ListRange(ctx context.Context, symbol, interval string, from, to time.Time) ([]ohlcv.Bar, error) {
	return nil, nil
}
func (f *fakeBarStore) Earliest(ctx context.Context, symbol, interval string) (ohlcv.Bar, bool, error) {
	return ohlcv.Bar{}, false, nil
}

type fakeEmitter struct {
	calls int
	last  trading.EntryCandidate
}

func (f *fakeEmitter) OnCandidate(ctx context.Context, cand trading.EntryCandidate, sess risk.Session, riskCand risk.EntryCandidate) (trading.Signal, error) {
	f.calls++
	f.last = cand
	return trading.Signal{Status: "pending"}, nil
}

type fakeSessions struct{}

func (fakeSessions) Session(ctx context.Context, symbol string) (risk.Session, error) {
	return risk.Session{StartingEquity: 10000, CurrentEquity: 10000, PeakEquity: 10000}, nil
}

func fullSnapshot(closeTime time.Time) features.Snapshot {
	feats := make(map[string]float64, len(features.Names))
	for _, n := range features.Names {
		feats[n] = 0.1
	}
	return features.Snapshot{Symbol: "BTCUSD", Interval: "1m", CloseTime: closeTime, Features: feats, SchemaVersion: features.SchemaVersion}
}

func newLoopWithModel(t *testing.T, snapStore *fakeSnapshotStore, bars *fakeBarStore, emitter CandidateEmitter, weights []float64, bias float64) *Loop {
	t.Helper()
	reg := registry.NewMemory()
	ctx := context.Background()
	art, err := reg.Register(ctx, registry.Artifact{
		Family:  Family,
		Version: 1,
		Variant: model.VariantXGBLike,
		Blob:    model.Blob{Weights: weights, Bias: bias},
	})
	require.NoError(t, err)
	require.NoError(t, reg.SetProduction(ctx, Family, art.ID))

	cache := NewModelCache(reg)
	threshold := NewThresholdSource(nil, "inference.threshold.bottom", 0.5)
	queue := NewLogQueue(inferlog.NewMemory(), 64, time.Second, 16)

	cfg := DefaultConfig()
	cfg.Symbol = "BTCUSD"
	cfg.Interval = "1m"
	cfg.CooldownSec = 60

	return NewLoop(cfg, bars, snapStore, cache, threshold, queue, emitter, fakeSessions{})
}

func TestTick_NoDataWhenSnapshotMissing(t *testing.T) {
	snapStore := &fakeSnapshotStore{ok: false}
	loop := newLoopWithModel(t, snapStore, &fakeBarStore{}, nil, make([]float64, len(features.Names)), 0)

	result, err := loop.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusNoData, result.Status)
}

func TestTick_NoModelWhenRegistryEmpty(t *testing.T) {
	snap := fullSnapshot(time.Now().Add(-time.Minute))
	snapStore := &fakeSnapshotStore{snap: snap, ok: true}

	reg := registry.NewMemory()
	cache := NewModelCache(reg)
	threshold := NewThresholdSource(nil, "inference.threshold.bottom", 0.5)
	queue := NewLogQueue(inferlog.NewMemory(), 64, time.Second, 16)
	cfg := DefaultConfig()
	cfg.Symbol, cfg.Interval = "BTCUSD", "1m"

	loop := NewLoop(cfg, &fakeBarStore{}, snapStore, cache, threshold, queue, nil, fakeSessions{})
	result, err := loop.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusNoModel, result.Status)
}

func TestTick_ProbabilityEqualToThresholdDecidesOne(t *testing.T) {
	snap := fullSnapshot(time.Now().Add(-time.Minute))
	snapStore := &fakeSnapshotStore{snap: snap, ok: true}

	emitter := &fakeEmitter{}
	bars := &fakeBarStore{bars: []ohlcv.Bar{{Symbol: "BTCUSD", Interval: "1m", Close: 100}}}

	// All-zero weights and zero bias drive the logistic output to exactly
	// 0.5, matching the configured default threshold.
	weights := make([]float64, len(features.Names))
	loop := newLoopWithModel(t, snapStore, bars, emitter, weights, 0)

	result, err := loop.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusOK, result.Status)
	require.InDelta(t, 0.5, result.Probability, 1e-9)
	require.InDelta(t, 0.5, result.Threshold, 1e-9)
	require.Equal(t, 1, result.Decision)
	require.Equal(t, 1, emitter.calls)
	require.Equal(t, 100.0, emitter.last.Price)
}

func TestTick_InsufficientFeaturesWhenSnapshotIncomplete(t *testing.T) {
	snap := features.Snapshot{Symbol: "BTCUSD", Interval: "1m", CloseTime: time.Now(), Features: map[string]float64{"ret_1": 0.1}}
	snapStore := &fakeSnapshotStore{snap: snap, ok: true}
	loop := newLoopWithModel(t, snapStore, &fakeBarStore{}, nil, make([]float64, len(features.Names)), 0)

	result, err := loop.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusInsufficientFeatures, result.Status)
}

func TestMaybeEmitCandidate_CooldownSuppressesRepeatSignals(t *testing.T) {
	snap := fullSnapshot(time.Now().Add(-time.Minute))
	snapStore := &fakeSnapshotStore{snap: snap, ok: true}
	emitter := &fakeEmitter{}
	bars := &fakeBarStore{bars: []ohlcv.Bar{{Symbol: "BTCUSD", Interval: "1m", Close: 100}}}

	loop := newLoopWithModel(t, snapStore, bars, emitter, make([]float64, len(features.Names)), 1)

	ctx := context.Background()
	_, err := loop.Tick(ctx)
	require.NoError(t, err)
	_, err = loop.Tick(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, emitter.calls)
}
