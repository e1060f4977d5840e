// Package postgres implements internal/promotion.Store against Postgres.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/bottomrun/internal/promotion"
)

type promotionRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewStore(db *sqlx.DB, timeout time.Duration) promotion.Store {
	return &promotionRepo{db: db, timeout: timeout}
}

type eventRow struct {
	ID                        int64         `db:"id"`
	CreatedAt                 time.Time     `db:"created_at"`
	ModelID                   int64         `db:"model_id"`
	PreviousProductionModelID sql.NullInt64 `db:"previous_production_model_id"`
	Decision                  string        `db:"decision"`
	Reason                    string        `db:"reason"`
	SamplesOld                int           `db:"samples_old"`
	SamplesNew                int           `db:"samples_new"`
	AUCImprove                float64       `db:"auc_improve"`
	ECEDelta                  float64       `db:"ece_delta"`
	ValSamples                int           `db:"val_samples"`
}

func (r *promotionRepo) Append(ctx context.Context, e promotion.Event) (promotion.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var prevID sql.NullInt64
	if e.PreviousProductionModelID != nil {
		prevID = sql.NullInt64{Int64: *e.PreviousProductionModelID, Valid: true}
	}

	query := `
		INSERT INTO promotion_events
			(model_id, previous_production_model_id, decision, reason, samples_old, samples_new,
			 auc_improve, ece_delta, val_samples)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	err := r.db.QueryRowxContext(ctx, query,
		e.ModelID, prevID, string(e.Decision), e.Reason, e.SamplesOld, e.SamplesNew,
		e.AUCImprove, e.ECEDelta, e.ValSamples).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return promotion.Event{}, fmt.Errorf("promotion: insert event: %w", err)
	}
	return e, nil
}

// LastPromotion returns the most recent promoted event joined against the
// artifact's family so cooldown is scoped per model family.
func (r *promotionRepo) LastPromotion(ctx context.Context, family string) (promotion.Event, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT pe.id, pe.created_at, pe.model_id, pe.previous_production_model_id, pe.decision,
		       pe.reason, pe.samples_old, pe.samples_new, pe.auc_improve, pe.ece_delta, pe.val_samples
		FROM promotion_events pe
		JOIN model_artifacts ma ON ma.id = pe.model_id
		WHERE ma.family = $1 AND pe.decision = 'promoted'
		ORDER BY pe.created_at DESC
		LIMIT 1`

	var row eventRow
	if err := r.db.GetContext(ctx, &row, query, family); err != nil {
		if err == sql.ErrNoRows {
			return promotion.Event{}, false, nil
		}
		return promotion.Event{}, false, fmt.Errorf("promotion: last promotion: %w", err)
	}

	e := promotion.Event{
		ID:         row.ID,
		CreatedAt:  row.CreatedAt,
		ModelID:    row.ModelID,
		Decision:   promotion.Decision(row.Decision),
		Reason:     row.Reason,
		SamplesOld: row.SamplesOld,
		SamplesNew: row.SamplesNew,
		AUCImprove: row.AUCImprove,
		ECEDelta:   row.ECEDelta,
		ValSamples: row.ValSamples,
	}
	if row.PreviousProductionModelID.Valid {
		v := row.PreviousProductionModelID.Int64
		e.PreviousProductionModelID = &v
	}
	return e, true, nil
}
