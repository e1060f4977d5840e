// Package postgres implements internal/settings.Store against Postgres,
// grounded on the teacher's internal/persistence/postgres repo style.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/bottomrun/internal/settings"
)

type settingsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewStore(db *sqlx.DB, timeout time.Duration) settings.Store {
	return &settingsRepo{db: db, timeout: timeout}
}

type settingRow struct {
	Key       string    `db:"key"`
	ValueJSON []byte    `db:"value_json"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r *settingsRepo) Get(ctx context.Context, key string) (settings.Setting, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row settingRow
	err := r.db.GetContext(ctx, &row, `SELECT key, value_json, updated_at FROM settings WHERE key = $1`, key)
	if err != nil {
		if err == sql.ErrNoRows {
			return settings.Setting{}, settings.ErrNotFound
		}
		return settings.Setting{}, fmt.Errorf("settings: get: %w", err)
	}
	return settings.Setting{Key: row.Key, Value: row.ValueJSON, UpdatedAt: row.UpdatedAt}, nil
}

// Put is an upsert keyed on the natural primary key, matching the
// teacher's upsert-by-natural-key idiom used for single-row-per-entity
// tables elsewhere in the persistence layer.
func (r *settingsRepo) Put(ctx context.Context, s settings.Setting) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value_json, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value_json = EXCLUDED.value_json, updated_at = now()`,
		s.Key, []byte(s.Value))
	if err != nil {
		return fmt.Errorf("settings: put: %w", err)
	}
	return nil
}

func (r *settingsRepo) List(ctx context.Context) ([]settings.Setting, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []settingRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT key, value_json, updated_at FROM settings`); err != nil {
		return nil, fmt.Errorf("settings: list: %w", err)
	}

	out := make([]settings.Setting, 0, len(rows))
	for _, row := range rows {
		out = append(out, settings.Setting{Key: row.Key, Value: row.ValueJSON, UpdatedAt: row.UpdatedAt})
	}
	return out, nil
}
