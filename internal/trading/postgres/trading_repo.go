// Package postgres implements internal/trading.Store against Postgres,
// grounded on the teacher's internal/persistence/postgres/trades_repo.go.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/bottomrun/internal/trading"
)

type tradingRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewStore(db *sqlx.DB, timeout time.Duration) trading.Store {
	return &tradingRepo{db: db, timeout: timeout}
}

type signalRow struct {
	ID         int64          `db:"id"`
	CreatedTS  time.Time      `db:"created_ts"`
	ExecutedTS sql.NullTime   `db:"executed_ts"`
	Type       string         `db:"signal_type"`
	Status     string         `db:"status"`
	Price      float64        `db:"price"`
	ExtraJSON  []byte         `db:"extra_json"`
	OrderSide  string         `db:"order_side"`
	OrderSize  float64        `db:"order_size"`
	OrderPrice float64        `db:"order_price"`
	Error      sql.NullString `db:"error"`
}

func (r *tradingRepo) SaveSignal(ctx context.Context, s trading.Signal) (trading.Signal, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	extraJSON, err := json.Marshal(s.Extra)
	if err != nil {
		return trading.Signal{}, fmt.Errorf("trading: marshal extra: %w", err)
	}

	query := `
		INSERT INTO trading_signals
			(created_ts, signal_type, status, price, extra_json, order_side, order_size, order_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	err = r.db.QueryRowxContext(ctx, query,
		s.CreatedTS, s.Type, s.Status, s.Price, extraJSON, s.OrderSide, s.OrderSize, s.OrderPrice).
		Scan(&s.ID)
	if err != nil {
		return trading.Signal{}, fmt.Errorf("trading: insert signal: %w", err)
	}
	return s, nil
}

func (r *tradingRepo) UpdateSignal(ctx context.Context, s trading.Signal) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var executedTS sql.NullTime
	if s.ExecutedTS != nil {
		executedTS = sql.NullTime{Time: *s.ExecutedTS, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE trading_signals
		SET executed_ts = $1, status = $2, order_price = $3, error = $4
		WHERE id = $5`,
		executedTS, s.Status, s.OrderPrice, nullString(s.Error), s.ID)
	if err != nil {
		return fmt.Errorf("trading: update signal: %w", err)
	}
	return nil
}

type positionRow struct {
	ID              int64        `db:"id"`
	Symbol          string       `db:"symbol"`
	Status          string       `db:"status"`
	Size            float64      `db:"size"`
	EntryPrice      float64      `db:"entry_price"`
	EntryTime       sql.NullTime `db:"entry_time"`
	HighWaterMark   float64      `db:"high_water_mark"`
	BarsSinceEntry  int          `db:"bars_since_entry"`
	RealizedPnL     float64      `db:"realized_pnl"`
	RealizedPnLR    float64      `db:"realized_pnl_r"`
	PeeledFraction  float64      `db:"peeled_fraction"`
	InitialStop     float64      `db:"initial_stop"`
	TrailingStop    float64      `db:"trailing_stop"`
	CrossedPartials int          `db:"crossed_partials"`
	LastExitTime    sql.NullTime `db:"last_exit_time"`
}

func (r *tradingRepo) GetPosition(ctx context.Context, symbol string) (trading.Position, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row positionRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, symbol, status, size, entry_price, entry_time, high_water_mark, bars_since_entry,
		       realized_pnl, realized_pnl_r, peeled_fraction, initial_stop, trailing_stop,
		       crossed_partials, last_exit_time
		FROM positions WHERE symbol = $1`, symbol)
	if err != nil {
		if err == sql.ErrNoRows {
			return trading.Position{Symbol: symbol, Status: trading.StatusFlat}, false, nil
		}
		return trading.Position{}, false, fmt.Errorf("trading: get position: %w", err)
	}
	return rowToPosition(row), true, nil
}

func (r *tradingRepo) SavePosition(ctx context.Context, p trading.Position) (trading.Position, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var entryTime, lastExitTime sql.NullTime
	if !p.EntryTime.IsZero() {
		entryTime = sql.NullTime{Time: p.EntryTime, Valid: true}
	}
	if p.LastExitTime != nil {
		lastExitTime = sql.NullTime{Time: *p.LastExitTime, Valid: true}
	}

	query := `
		INSERT INTO positions
			(symbol, status, size, entry_price, entry_time, high_water_mark, bars_since_entry,
			 realized_pnl, realized_pnl_r, peeled_fraction, initial_stop, trailing_stop,
			 crossed_partials, last_exit_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (symbol) DO UPDATE SET
			status = EXCLUDED.status, size = EXCLUDED.size, entry_price = EXCLUDED.entry_price,
			entry_time = EXCLUDED.entry_time, high_water_mark = EXCLUDED.high_water_mark,
			bars_since_entry = EXCLUDED.bars_since_entry, realized_pnl = EXCLUDED.realized_pnl,
			realized_pnl_r = EXCLUDED.realized_pnl_r, peeled_fraction = EXCLUDED.peeled_fraction,
			initial_stop = EXCLUDED.initial_stop, trailing_stop = EXCLUDED.trailing_stop,
			crossed_partials = EXCLUDED.crossed_partials, last_exit_time = EXCLUDED.last_exit_time
		RETURNING id`

	err := r.db.QueryRowxContext(ctx, query,
		p.Symbol, string(p.Status), p.Size, p.EntryPrice, entryTime, p.HighWaterMark, p.BarsSinceEntry,
		p.RealizedPnL, p.RealizedPnLR, p.PeeledFraction, p.InitialStop, p.TrailingStop,
		p.CrossedPartials, lastExitTime).
		Scan(&p.ID)
	if err != nil {
		return trading.Position{}, fmt.Errorf("trading: upsert position: %w", err)
	}
	return p, nil
}

func rowToPosition(row positionRow) trading.Position {
	p := trading.Position{
		ID:              row.ID,
		Symbol:          row.Symbol,
		Status:          trading.Status(row.Status),
		Size:            row.Size,
		EntryPrice:      row.EntryPrice,
		HighWaterMark:   row.HighWaterMark,
		BarsSinceEntry:  row.BarsSinceEntry,
		RealizedPnL:     row.RealizedPnL,
		RealizedPnLR:    row.RealizedPnLR,
		PeeledFraction:  row.PeeledFraction,
		InitialStop:     row.InitialStop,
		TrailingStop:    row.TrailingStop,
		CrossedPartials: row.CrossedPartials,
	}
	if row.EntryTime.Valid {
		p.EntryTime = row.EntryTime.Time
	}
	if row.LastExitTime.Valid {
		t := row.LastExitTime.Time
		p.LastExitTime = &t
	}
	return p
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
