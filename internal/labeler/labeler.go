// Package labeler resolves bottom-event outcomes for aged Inference Log
// rows, using the identical label rule and code path as the Training
// Service's dataset construction (internal/label), per the single
// source-of-truth contract between the two components.
package labeler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/bottomrun/internal/inferlog"
	"github.com/sawpanic/bottomrun/internal/label"
	"github.com/sawpanic/bottomrun/internal/ohlcv"
)

// EagerCap bounds a single eager (caller-triggered) pass.
const EagerCap = 500

// Result tallies one runOnce invocation.
type Result struct {
	Scanned      int
	Realized     int
	StillPending int
	Errors       int
}

// Labeler assigns realized outcomes to aged Inference Log rows.
type Labeler struct {
	logs inferlog.Store
	bars ohlcv.BarStore
}

func New(logs inferlog.Store, bars ohlcv.BarStore) *Labeler {
	return &Labeler{logs: logs, bars: bars}
}

// RunOnce selects unrealized rows older than max(minAge, H*interval) and
// attempts to resolve each against the bottom-event rule, processing at
// most limit rows. Rows whose lookahead window is not yet fully present
// in the bar table are left pending and counted, not errored.
func (l *Labeler) RunOnce(ctx context.Context, minAge time.Duration, limit int, lp label.Params) (Result, error) {
	if limit <= 0 {
		return Result{}, nil
	}

	effectiveAge := minAge
	if h := time.Duration(lp.Lookahead) * ohlcv.IntervalDuration("1m"); h > effectiveAge {
		effectiveAge = h
	}

	entries, err := l.logs.Unrealized(ctx, effectiveAge, limit)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, e := range entries {
		res.Scanned++
		resolved, err := l.resolveOne(ctx, e, lp)
		if err != nil {
			if errors.Is(err, inferlog.ErrAlreadyRealized) {
				// Another concurrent run already wrote it; not an error.
				continue
			}
			res.Errors++
			log.Warn().Err(err).Int64("entry_id", e.ID).Msg("labeler: resolve failed")
			continue
		}
		if resolved {
			res.Realized++
		} else {
			res.StillPending++
		}
	}
	return res, nil
}

// RunEager performs a synchronous, caller-bounded pass, safe-capped at
// EagerCap rows regardless of the caller-supplied limit.
func (l *Labeler) RunEager(ctx context.Context, minAge time.Duration, limit int, lp label.Params) (Result, error) {
	if limit <= 0 || limit > EagerCap {
		limit = EagerCap
	}
	return l.RunOnce(ctx, minAge, limit, lp)
}

// resolveOne fetches the lookahead window for one entry and applies the
// bottom-event rule. Returns resolved=true if realized was written.
func (l *Labeler) resolveOne(ctx context.Context, e inferlog.Entry, lp label.Params) (bool, error) {
	step := ohlcv.IntervalDuration(e.Interval)
	// ListRange selects on open_time: start at the anchor bar's open time
	// (see ohlcv.CloseTimeFor) and cover the H bars that follow it.
	from := e.FeatureCloseTime.Add(-step + time.Millisecond)
	to := from.Add(time.Duration(lp.Lookahead) * step)

	bars, err := l.bars.ListRange(ctx, e.Symbol, e.Interval, from, to)
	if err != nil {
		return false, err
	}
	if len(bars) == 0 || !bars[0].CloseTime.Equal(e.FeatureCloseTime) {
		return false, nil // gap at the anchor bar itself: leave pending
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	outcome := label.Assign(closes, 0, lp)
	if outcome.Pending {
		return false, nil
	}

	if err := l.logs.MarkRealized(ctx, e.ID, outcome.Label, time.Now()); err != nil {
		return false, err
	}
	return true, nil
}
