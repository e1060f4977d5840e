// Package postgres implements internal/inferlog.Store against Postgres,
// grounded on the teacher's internal/persistence/postgres repo style.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/bottomrun/internal/inferlog"
)

type inferlogRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewStore(db *sqlx.DB, timeout time.Duration) inferlog.Store {
	return &inferlogRepo{db: db, timeout: timeout}
}

type entryRow struct {
	ID               int64        `db:"id"`
	CreatedAt        time.Time    `db:"created_at"`
	Symbol           string       `db:"symbol"`
	Interval         string       `db:"interval"`
	FeatureCloseTime time.Time    `db:"feature_close_time"`
	Probability      float64      `db:"probability"`
	Threshold        float64      `db:"threshold"`
	Decision         int          `db:"decision"`
	ModelID          int64        `db:"model_id"`
	ModelVersion     int          `db:"model_version"`
	UsedProduction   bool         `db:"used_production"`
	ExtraJSON        []byte       `db:"extra_json"`
	Realized         sql.NullInt64 `db:"realized"`
	RealizedAt       sql.NullTime `db:"realized_at"`
}

func (r *inferlogRepo) Append(ctx context.Context, e inferlog.Entry) (inferlog.Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	extraJSON, err := json.Marshal(e.Extra)
	if err != nil {
		return inferlog.Entry{}, fmt.Errorf("inferlog: marshal extra: %w", err)
	}

	query := `
		INSERT INTO inference_log
			(symbol, interval, feature_close_time, probability, threshold, decision,
			 model_id, model_version, used_production, extra_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	err = r.db.QueryRowxContext(ctx, query,
		e.Symbol, e.Interval, e.FeatureCloseTime, e.Probability, e.Threshold, e.Decision,
		e.ModelID, e.ModelVersion, e.UsedProduction, extraJSON).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return inferlog.Entry{}, fmt.Errorf("inferlog: insert: %w", err)
	}
	return e, nil
}

func (r *inferlogRepo) Unrealized(ctx context.Context, minAge time.Duration, limit int) ([]inferlog.Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, created_at, symbol, interval, feature_close_time, probability, threshold,
		       decision, model_id, model_version, used_production, extra_json, realized, realized_at
		FROM inference_log
		WHERE realized IS NULL AND feature_close_time <= $1
		ORDER BY feature_close_time ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED`

	cutoff := time.Now().Add(-minAge)

	var rows []entryRow
	if err := r.db.SelectContext(ctx, &rows, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("inferlog: select unrealized: %w", err)
	}

	out := make([]inferlog.Entry, 0, len(rows))
	for _, row := range rows {
		e, err := rowToEntry(row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *inferlogRepo) MarkRealized(ctx context.Context, id int64, realized int, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx,
		`UPDATE inference_log SET realized = $1, realized_at = $2 WHERE id = $3 AND realized IS NULL`,
		realized, at, id)
	if err != nil {
		return fmt.Errorf("inferlog: mark realized: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("inferlog: mark realized rows affected: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := r.db.GetContext(ctx, &exists, `SELECT true FROM inference_log WHERE id = $1`, id); err != nil {
			if err == sql.ErrNoRows {
				return inferlog.ErrNotFound
			}
			return fmt.Errorf("inferlog: check existence: %w", err)
		}
		return inferlog.ErrAlreadyRealized
	}
	return nil
}

func (r *inferlogRepo) Get(ctx context.Context, id int64) (inferlog.Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row entryRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, created_at, symbol, interval, feature_close_time, probability, threshold,
		       decision, model_id, model_version, used_production, extra_json, realized, realized_at
		FROM inference_log WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return inferlog.Entry{}, inferlog.ErrNotFound
		}
		return inferlog.Entry{}, fmt.Errorf("inferlog: get: %w", err)
	}
	return rowToEntry(row)
}

func (r *inferlogRepo) RealizedSince(ctx context.Context, since time.Time, limit int) ([]inferlog.Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, created_at, symbol, interval, feature_close_time, probability, threshold,
		       decision, model_id, model_version, used_production, extra_json, realized, realized_at
		FROM inference_log
		WHERE realized IS NOT NULL AND feature_close_time >= $1
		ORDER BY feature_close_time DESC
		LIMIT NULLIF($2, 0)`

	var rows []entryRow
	if err := r.db.SelectContext(ctx, &rows, query, since, limit); err != nil {
		return nil, fmt.Errorf("inferlog: select realized since: %w", err)
	}

	out := make([]inferlog.Entry, 0, len(rows))
	for _, row := range rows {
		e, err := rowToEntry(row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func rowToEntry(row entryRow) (inferlog.Entry, error) {
	e := inferlog.Entry{
		ID:               row.ID,
		CreatedAt:        row.CreatedAt,
		Symbol:           row.Symbol,
		Interval:         row.Interval,
		FeatureCloseTime: row.FeatureCloseTime,
		Probability:      row.Probability,
		Threshold:        row.Threshold,
		Decision:         row.Decision,
		ModelID:          row.ModelID,
		ModelVersion:     row.ModelVersion,
		UsedProduction:   row.UsedProduction,
	}
	if len(row.ExtraJSON) > 0 {
		if err := json.Unmarshal(row.ExtraJSON, &e.Extra); err != nil {
			return inferlog.Entry{}, fmt.Errorf("inferlog: unmarshal extra: %w", err)
		}
	}
	if row.Realized.Valid {
		v := int(row.Realized.Int64)
		e.Realized = &v
	}
	if row.RealizedAt.Valid {
		e.RealizedAt = &row.RealizedAt.Time
	}
	return e, nil
}
