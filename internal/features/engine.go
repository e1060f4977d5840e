package features

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/sawpanic/bottomrun/internal/ohlcv"
)

// BarSource is the read-only view of closed bars the engine needs.
type BarSource interface {
	ListRecent(ctx context.Context, symbol, interval string, n int) ([]ohlcv.Bar, error)
}

// Store persists and queries Feature Snapshots.
type Store interface {
	Upsert(ctx context.Context, snap Snapshot) error
	Exists(ctx context.Context, symbol, interval string, closeTime time.Time, schemaVersion int) (bool, error)
	GetLatest(ctx context.Context, symbol, interval string) (Snapshot, bool, error)
	// ListRange returns snapshots in [from, to] ordered oldest-to-newest,
	// the aligned-series source the Training Service builds a Dataset from.
	ListRange(ctx context.Context, symbol, interval string, from, to time.Time) ([]Snapshot, error)
}

// Engine computes feature snapshots from closed bars.
type Engine struct {
	bars  BarSource
	store Store

	nanSkipped atomic.Int64
}

func NewEngine(bars BarSource, store Store) *Engine {
	return &Engine{bars: bars, store: store}
}

// NaNSkipCount returns how many snapshot computations were skipped because a
// required upstream value was NaN.
func (e *Engine) NaNSkipCount() int64 { return e.nanSkipped.Load() }

// ComputeLatest returns the feature snapshot for the most recent closed bar.
func (e *Engine) ComputeLatest(ctx context.Context, symbol, interval string) (Snapshot, error) {
	bars, err := e.bars.ListRecent(ctx, symbol, interval, WarmupBars)
	if err != nil {
		return Snapshot{}, err
	}
	if len(bars) < WarmupBars {
		return Snapshot{}, ErrNoData
	}

	// ListRecent is newest-first; compute wants oldest-to-newest.
	chrono := make([]ohlcv.Bar, len(bars))
	for i, b := range bars {
		chrono[len(bars)-1-i] = b
	}

	snap, ok := e.computeAt(chrono, len(chrono)-1)
	if !ok {
		e.nanSkipped.Add(1)
		return Snapshot{}, ErrNoData
	}
	if err := e.store.Upsert(ctx, snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Backfill populates snapshots for the last targetBars closed bars, skipping
// close_times that already have a snapshot at the current schema version.
func (e *Engine) Backfill(ctx context.Context, symbol, interval string, targetBars int) (int, error) {
	need := targetBars + WarmupBars
	bars, err := e.bars.ListRecent(ctx, symbol, interval, need)
	if err != nil {
		return 0, err
	}
	if len(bars) < WarmupBars {
		return 0, ErrNoData
	}

	chrono := make([]ohlcv.Bar, len(bars))
	for i, b := range bars {
		chrono[len(bars)-1-i] = b
	}

	written := 0
	start := WarmupBars - 1
	if len(chrono)-targetBars > start {
		start = len(chrono) - targetBars
	}
	for t := start; t < len(chrono); t++ {
		exists, err := e.store.Exists(ctx, symbol, interval, chrono[t].CloseTime, SchemaVersion)
		if err != nil {
			return written, err
		}
		if exists {
			continue
		}
		snap, ok := e.computeAt(chrono, t)
		if !ok {
			e.nanSkipped.Add(1)
			continue
		}
		if err := e.store.Upsert(ctx, snap); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// computeAt derives every feature at index t using only bars[0..t],
// enforcing the leakage rule structurally.
func (e *Engine) computeAt(bars []ohlcv.Bar, t int) (Snapshot, bool) {
	if t < WarmupBars-1 || t >= len(bars) {
		return Snapshot{}, false
	}

	closes := make([]float64, t+1)
	highs := make([]float64, t+1)
	lows := make([]float64, t+1)
	for i := 0; i <= t; i++ {
		closes[i] = bars[i].Close
		highs[i] = bars[i].High
		lows[i] = bars[i].Low
	}

	values := map[string]float64{
		"ret_1":          ret(closes, t, 1),
		"ret_5":          ret(closes, t, 5),
		"ret_15":         ret(closes, t, 15),
		"rsi_14":         rsi(closes, t, 14),
		"vol_rolling_20": rollingVol(closes, t, 20),
		"sma_9":          sma(closes, t, 9),
		"sma_21":         sma(closes, t, 21),
		"ema_12":         ema(closes, t, 12),
		"atr_14":         atr(highs, lows, closes, t, 14),
		"bb_width_20":    bollingerWidth(closes, t, 20),
	}

	for _, name := range Names {
		if v, ok := values[name]; !ok || math.IsNaN(v) {
			return Snapshot{}, false
		}
	}

	return Snapshot{
		Symbol:        bars[t].Symbol,
		Interval:      bars[t].Interval,
		CloseTime:     bars[t].CloseTime,
		Features:      values,
		SchemaVersion: SchemaVersion,
	}, true
}
