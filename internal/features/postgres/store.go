// Package postgres implements internal/features.Store against Postgres,
// grounded on the teacher's internal/persistence/postgres repo style (also
// followed by internal/inferlog/postgres and internal/ohlcv/postgres in
// this tree).
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/bottomrun/internal/features"
)

type featureRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewStore(db *sqlx.DB, timeout time.Duration) features.Store {
	return &featureRepo{db: db, timeout: timeout}
}

type snapshotRow struct {
	Symbol        string    `db:"symbol"`
	Interval      string    `db:"interval"`
	CloseTime     time.Time `db:"close_time"`
	FeaturesJSON  []byte    `db:"features_json"`
	SchemaVersion int       `db:"schema_version"`
}

func (r *featureRepo) Upsert(ctx context.Context, snap features.Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	featuresJSON, err := json.Marshal(snap.Features)
	if err != nil {
		return fmt.Errorf("features: marshal: %w", err)
	}

	query := `
		INSERT INTO feature_snapshots (symbol, interval, close_time, features_json, schema_version)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (symbol, interval, close_time, schema_version)
		DO UPDATE SET features_json = EXCLUDED.features_json`

	_, err = r.db.ExecContext(ctx, query, snap.Symbol, snap.Interval, snap.CloseTime, featuresJSON, snap.SchemaVersion)
	if err != nil {
		return fmt.Errorf("features: upsert: %w", err)
	}
	return nil
}

func (r *featureRepo) Exists(ctx context.Context, symbol, interval string, closeTime time.Time, schemaVersion int) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var count int
	query := `SELECT count(*) FROM feature_snapshots WHERE symbol = $1 AND interval = $2 AND close_time = $3 AND schema_version = $4`
	if err := r.db.GetContext(ctx, &count, query, symbol, interval, closeTime, schemaVersion); err != nil {
		return false, fmt.Errorf("features: exists: %w", err)
	}
	return count > 0, nil
}

func (r *featureRepo) GetLatest(ctx context.Context, symbol, interval string) (features.Snapshot, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT symbol, interval, close_time, features_json, schema_version
		FROM feature_snapshots
		WHERE symbol = $1 AND interval = $2
		ORDER BY close_time DESC
		LIMIT 1`

	var row snapshotRow
	if err := r.db.GetContext(ctx, &row, query, symbol, interval); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return features.Snapshot{}, false, nil
		}
		return features.Snapshot{}, false, fmt.Errorf("features: get latest: %w", err)
	}
	snap, err := rowToSnapshot(row)
	return snap, true, err
}

func (r *featureRepo) ListRange(ctx context.Context, symbol, interval string, from, to time.Time) ([]features.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT symbol, interval, close_time, features_json, schema_version
		FROM feature_snapshots
		WHERE symbol = $1 AND interval = $2 AND close_time BETWEEN $3 AND $4
		ORDER BY close_time ASC`

	var rows []snapshotRow
	if err := r.db.SelectContext(ctx, &rows, query, symbol, interval, from, to); err != nil {
		return nil, fmt.Errorf("features: list range: %w", err)
	}

	out := make([]features.Snapshot, 0, len(rows))
	for _, row := range rows {
		snap, err := rowToSnapshot(row)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

func rowToSnapshot(row snapshotRow) (features.Snapshot, error) {
	var f map[string]float64
	if err := json.Unmarshal(row.FeaturesJSON, &f); err != nil {
		return features.Snapshot{}, fmt.Errorf("features: unmarshal: %w", err)
	}
	return features.Snapshot{
		Symbol:        row.Symbol,
		Interval:      row.Interval,
		CloseTime:     row.CloseTime,
		Features:      f,
		SchemaVersion: row.SchemaVersion,
	}, nil
}
