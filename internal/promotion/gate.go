package promotion

import (
	"context"
	"fmt"
	"time"

	"github.com/sawpanic/bottomrun/internal/apperr"
	"github.com/sawpanic/bottomrun/internal/registry"
)

// Gate is the single writer allowed to advance the production pointer.
type Gate struct {
	store    Store
	registry registry.Registry
	now      func() time.Time
}

func NewGate(store Store, reg registry.Registry) *Gate {
	return &Gate{store: store, registry: reg, now: time.Now}
}

// Evaluate runs the promotion algorithm for one family without touching
// the registry, useful for previewing a decision. Promote performs the
// same evaluation and, if promoted, writes the production pointer.
func Evaluate(cand Candidate, prod *Production, p Params) (Decision, string, float64, float64) {
	if cand.ValSamples < p.MinValSamples {
		return Skipped, "insufficient_val_samples", 0, 0
	}
	if prod == nil {
		return Promoted, "no_production", 0, 0
	}

	aucImprove := cand.AUC - prod.AUC
	eceDelta := cand.ECE - prod.ECE

	if aucImprove >= p.MinAUCDelta && eceDelta <= p.MaxECEDelta {
		return Promoted, "criteria_met", aucImprove, eceDelta
	}
	return Skipped, fmt.Sprintf("criteria_not_met_auc%.4f_ece%.4f", aucImprove, eceDelta), aucImprove, eceDelta
}

// Promote evaluates a candidate against the family's current production
// artifact (if any) and, when the algorithm promotes, swaps the
// production pointer transactionally. A Promotion Event is appended
// under every outcome, including skips.
func (g *Gate) Promote(ctx context.Context, family string, cand Candidate, p Params) (Event, error) {
	last, hasLast, err := g.store.LastPromotion(ctx, family)
	if err != nil {
		return Event{}, fmt.Errorf("promotion: last promotion lookup: %w", err)
	}
	if hasLast && last.Decision == Promoted {
		elapsed := g.now().Sub(last.CreatedAt)
		if elapsed < time.Duration(p.CooldownSeconds)*time.Second {
			ev := Event{
				ModelID:    cand.ModelID,
				Decision:   Skipped,
				Reason:     "cooldown_active",
				SamplesNew: cand.Samples,
				ValSamples: cand.ValSamples,
			}
			return g.store.Append(ctx, ev)
		}
	}

	var prod *Production
	var prevID *int64
	current, err := g.registry.GetProduction(ctx, family)
	switch {
	case err == nil:
		prod = &Production{ModelID: current.ID, AUC: current.Metrics.AUC, ECE: current.Metrics.ECE, Samples: current.Metrics.Samples}
		id := current.ID
		prevID = &id
	case err == registry.ErrNotFound:
		prod = nil
	default:
		return Event{}, apperr.New(apperr.Transient, "promotion_registry_lookup_failed", "retry later", err)
	}

	decision, reason, aucImprove, eceDelta := Evaluate(cand, prod, p)

	ev := Event{
		ModelID:                   cand.ModelID,
		PreviousProductionModelID: prevID,
		Decision:                  decision,
		Reason:                    reason,
		SamplesNew:                cand.Samples,
		AUCImprove:                aucImprove,
		ECEDelta:                  eceDelta,
		ValSamples:                cand.ValSamples,
	}
	if prod != nil {
		ev.SamplesOld = prod.Samples
	}

	if decision == Promoted {
		if err := g.registry.SetProduction(ctx, family, cand.ModelID); err != nil {
			return Event{}, fmt.Errorf("promotion: set production: %w", err)
		}
	}

	return g.store.Append(ctx, ev)
}
