// Package postgres implements internal/registry.Registry against Postgres,
// grounded on the teacher's internal/persistence/postgres repo style:
// parameterized queries, pq error-code inspection, sqlx scanning.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sawpanic/bottomrun/internal/registry"
)

type registryRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewRegistry creates a Postgres-backed Model Registry.
func NewRegistry(db *sqlx.DB, timeout time.Duration) registry.Registry {
	return &registryRepo{db: db, timeout: timeout}
}

type artifactRow struct {
	ID         int64          `db:"id"`
	Family     string         `db:"family"`
	Version    int            `db:"version"`
	Variant    string         `db:"variant"`
	BlobJSON   []byte         `db:"blob_json"`
	MetricsJSON []byte        `db:"metrics_json"`
	CreatedAt  time.Time      `db:"created_at"`
	Status     string         `db:"status"`
	PromotedAt sql.NullTime   `db:"promoted_at"`
}

func (r *registryRepo) Register(ctx context.Context, artifact registry.Artifact) (registry.Artifact, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	blobJSON, err := json.Marshal(artifact.Blob)
	if err != nil {
		return registry.Artifact{}, fmt.Errorf("registry: marshal blob: %w", err)
	}
	metricsJSON, err := json.Marshal(artifact.Metrics)
	if err != nil {
		return registry.Artifact{}, fmt.Errorf("registry: marshal metrics: %w", err)
	}

	query := `
		INSERT INTO model_artifacts (family, version, variant, blob_json, metrics_json, status)
		VALUES ($1, $2, $3, $4, $5, 'staging')
		RETURNING id, created_at`

	err = r.db.QueryRowxContext(ctx, query,
		artifact.Family, artifact.Version, artifact.Variant, blobJSON, metricsJSON).
		Scan(&artifact.ID, &artifact.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return registry.Artifact{}, registry.ErrDuplicate
		}
		return registry.Artifact{}, fmt.Errorf("registry: insert artifact: %w", err)
	}

	artifact.Status = registry.StatusStaging
	return artifact, nil
}

func (r *registryRepo) GetProduction(ctx context.Context, family string) (registry.Artifact, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, family, version, variant, blob_json, metrics_json, created_at, status, promoted_at
		FROM model_artifacts
		WHERE family = $1 AND status = 'production'
		ORDER BY promoted_at DESC NULLS LAST
		LIMIT 1`

	var row artifactRow
	if err := r.db.GetContext(ctx, &row, query, family); err != nil {
		if err == sql.ErrNoRows {
			return registry.Artifact{}, registry.ErrNotFound
		}
		return registry.Artifact{}, fmt.Errorf("registry: get production: %w", err)
	}
	return rowToArtifact(row)
}

func (r *registryRepo) SetProduction(ctx context.Context, family string, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("registry: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE model_artifacts SET status = 'retired' WHERE family = $1 AND status = 'production'`,
		family); err != nil {
		return fmt.Errorf("registry: retire previous production: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE model_artifacts SET status = 'production', promoted_at = now() WHERE id = $1 AND family = $2`,
		id, family)
	if err != nil {
		return fmt.Errorf("registry: promote candidate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("registry: promote candidate rows affected: %w", err)
	}
	if affected == 0 {
		return registry.ErrNotFound
	}

	return tx.Commit()
}

func (r *registryRepo) ListRecent(ctx context.Context, family string, limit int) ([]registry.Artifact, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, family, version, variant, blob_json, metrics_json, created_at, status, promoted_at
		FROM model_artifacts
		WHERE family = $1
		ORDER BY created_at DESC
		LIMIT $2`

	var rows []artifactRow
	if err := r.db.SelectContext(ctx, &rows, query, family, limit); err != nil {
		return nil, fmt.Errorf("registry: list recent: %w", err)
	}

	out := make([]registry.Artifact, 0, len(rows))
	for _, row := range rows {
		a, err := rowToArtifact(row)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *registryRepo) Get(ctx context.Context, id int64) (registry.Artifact, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row artifactRow
	err := r.db.GetContext(ctx, &row,
		`SELECT id, family, version, variant, blob_json, metrics_json, created_at, status, promoted_at
		 FROM model_artifacts WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return registry.Artifact{}, registry.ErrNotFound
		}
		return registry.Artifact{}, fmt.Errorf("registry: get: %w", err)
	}
	return rowToArtifact(row)
}

// RepairProductionConsistency keeps at most one production artifact per
// family by retiring all but the most recently promoted. Invoked once on
// startup to repair multiplicity left by a crash mid-swap.
func (r *registryRepo) RepairProductionConsistency(ctx context.Context, family string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		UPDATE model_artifacts SET status = 'retired'
		WHERE family = $1 AND status = 'production' AND id NOT IN (
			SELECT id FROM model_artifacts
			WHERE family = $1 AND status = 'production'
			ORDER BY promoted_at DESC NULLS LAST, created_at DESC
			LIMIT 1
		)`, family)
	if err != nil {
		return fmt.Errorf("registry: repair production consistency: %w", err)
	}
	return nil
}

func rowToArtifact(row artifactRow) (registry.Artifact, error) {
	a := registry.Artifact{
		ID:        row.ID,
		Family:    row.Family,
		Version:   row.Version,
		Variant:   row.Variant,
		CreatedAt: row.CreatedAt,
		Status:    registry.Status(row.Status),
	}
	if row.PromotedAt.Valid {
		a.PromotedAt = &row.PromotedAt.Time
	}
	if err := json.Unmarshal(row.BlobJSON, &a.Blob); err != nil {
		return registry.Artifact{}, fmt.Errorf("registry: unmarshal blob: %w", err)
	}
	if err := json.Unmarshal(row.MetricsJSON, &a.Metrics); err != nil {
		return registry.Artifact{}, fmt.Errorf("registry: unmarshal metrics: %w", err)
	}
	return a, nil
}
