// Package postgres implements internal/ohlcv.BarStore and GapStore against
// Postgres, grounded on the teacher's internal/persistence/postgres repo
// style (see internal/inferlog/postgres for the sibling pattern).
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/bottomrun/internal/ohlcv"
)

type barRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewBarStore returns an ohlcv.BarStore backed by a bars table keyed on
// (symbol, interval, open_time).
func NewBarStore(db *sqlx.DB, timeout time.Duration) ohlcv.BarStore {
	return &barRepo{db: db, timeout: timeout}
}

func (r *barRepo) Upsert(ctx context.Context, bar ohlcv.Bar) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var changed bool
	query := `
		INSERT INTO bars (symbol, interval, open_time, close_time, o, h, l, c, v, trade_count, is_closed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (symbol, interval, open_time) DO UPDATE SET
			close_time = EXCLUDED.close_time, o = EXCLUDED.o, h = EXCLUDED.h,
			l = EXCLUDED.l, c = EXCLUDED.c, v = EXCLUDED.v,
			trade_count = EXCLUDED.trade_count, is_closed = EXCLUDED.is_closed
		WHERE bars.o IS DISTINCT FROM EXCLUDED.o OR bars.h IS DISTINCT FROM EXCLUDED.h OR
		      bars.l IS DISTINCT FROM EXCLUDED.l OR bars.c IS DISTINCT FROM EXCLUDED.c OR
		      bars.v IS DISTINCT FROM EXCLUDED.v OR bars.trade_count IS DISTINCT FROM EXCLUDED.trade_count
		RETURNING true`

	err := r.db.QueryRowxContext(ctx, query,
		bar.Symbol, bar.Interval, bar.OpenTime, bar.CloseTime, bar.Open, bar.High, bar.Low,
		bar.Close, bar.Volume, bar.TradeCount, bar.IsClosed).Scan(&changed)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ohlcv: upsert bar: %w", err)
	}
	return changed, nil
}

func (r *barRepo) ListRecent(ctx context.Context, symbol, interval string, n int) ([]ohlcv.Bar, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var bars []ohlcv.Bar
	query := `
		SELECT symbol, interval, open_time, close_time, o, h, l, c, v, trade_count, is_closed
		FROM bars WHERE symbol = $1 AND interval = $2
		ORDER BY open_time DESC LIMIT $3`
	if err := r.db.SelectContext(ctx, &bars, query, symbol, interval, n); err != nil {
		return nil, fmt.Errorf("ohlcv: list recent: %w", err)
	}
	return bars, nil
}

func (r *barRepo) ListRange(ctx context.Context, symbol, interval string, from, to time.Time) ([]ohlcv.Bar, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var bars []ohlcv.Bar
	query := `
		SELECT symbol, interval, open_time, close_time, o, h, l, c, v, trade_count, is_closed
		FROM bars WHERE symbol = $1 AND interval = $2 AND open_time BETWEEN $3 AND $4
		ORDER BY open_time ASC`
	if err := r.db.SelectContext(ctx, &bars, query, symbol, interval, from, to); err != nil {
		return nil, fmt.Errorf("ohlcv: list range: %w", err)
	}
	return bars, nil
}

func (r *barRepo) Earliest(ctx context.Context, symbol, interval string) (ohlcv.Bar, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var bar ohlcv.Bar
	query := `
		SELECT symbol, interval, open_time, close_time, o, h, l, c, v, trade_count, is_closed
		FROM bars WHERE symbol = $1 AND interval = $2
		ORDER BY open_time ASC LIMIT 1`
	err := r.db.GetContext(ctx, &bar, query, symbol, interval)
	if err == sql.ErrNoRows {
		return ohlcv.Bar{}, false, nil
	}
	if err != nil {
		return ohlcv.Bar{}, false, fmt.Errorf("ohlcv: earliest: %w", err)
	}
	return bar, true, nil
}

type gapRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewGapStore returns an ohlcv.GapStore backed by a gap_segments table.
func NewGapStore(db *sqlx.DB, timeout time.Duration) ohlcv.GapStore {
	return &gapRepo{db: db, timeout: timeout}
}

func (r *gapRepo) Upsert(ctx context.Context, seg ohlcv.GapSegment) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO gap_segments (symbol, interval, from_ts, to_ts, missing_count, state)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol, interval, from_ts, to_ts) DO UPDATE SET
			missing_count = EXCLUDED.missing_count, state = EXCLUDED.state`
	_, err := r.db.ExecContext(ctx, query,
		seg.Symbol, seg.Interval, seg.FromTS, seg.ToTS, seg.MissingCount, seg.State)
	if err != nil {
		return fmt.Errorf("ohlcv: upsert gap: %w", err)
	}
	return nil
}

func (r *gapRepo) ListOpen(ctx context.Context, symbol, interval string) ([]ohlcv.GapSegment, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var segs []ohlcv.GapSegment
	query := `
		SELECT symbol, interval, from_ts, to_ts, missing_count, state
		FROM gap_segments WHERE symbol = $1 AND interval = $2 AND state = $3`
	if err := r.db.SelectContext(ctx, &segs, query, symbol, interval, ohlcv.GapOpen); err != nil {
		return nil, fmt.Errorf("ohlcv: list open gaps: %w", err)
	}
	return segs, nil
}
