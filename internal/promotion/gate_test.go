package promotion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sawpanic/bottomrun/internal/model"
	"github.com/sawpanic/bottomrun/internal/registry"
)

func TestPromote_NoProductionPromotesUnconditionally(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemory()
	cand, err := reg.Register(ctx, registry.Artifact{Family: "bottom_predictor", Version: 1, Metrics: model.Metrics{AUC: 0.6, ECE: 0.08, Samples: 500}})
	require.NoError(t, err)

	g := NewGate(NewMemory(), reg)
	ev, err := g.Promote(ctx, "bottom_predictor", Candidate{ModelID: cand.ID, AUC: 0.6, ECE: 0.08, ValSamples: 500, Samples: 500},
		Params{MinAUCDelta: 0.02, MaxECEDelta: 0.01, MinValSamples: 100, CooldownSeconds: 0})
	require.NoError(t, err)
	require.Equal(t, Promoted, ev.Decision)
	require.Equal(t, "no_production", ev.Reason)

	prod, err := reg.GetProduction(ctx, "bottom_predictor")
	require.NoError(t, err)
	require.Equal(t, cand.ID, prod.ID)
}

// Seed test 4: production auc=0.70 ece=0.05; candidate auc=0.73 ece=0.04;
// min_auc_delta=0.02, max_ece_delta=0.01. Expected promoted, auc_improve=0.03, ece_delta=-0.01.
func TestPromote_SeedScenarioPromotesOnImprovedAUCAndECE(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemory()
	prodArt, err := reg.Register(ctx, registry.Artifact{Family: "bottom_predictor", Version: 1, Metrics: model.Metrics{AUC: 0.70, ECE: 0.05, Samples: 1000}})
	require.NoError(t, err)
	require.NoError(t, reg.SetProduction(ctx, "bottom_predictor", prodArt.ID))

	candArt, err := reg.Register(ctx, registry.Artifact{Family: "bottom_predictor", Version: 2, Metrics: model.Metrics{AUC: 0.73, ECE: 0.04, Samples: 1000}})
	require.NoError(t, err)

	g := NewGate(NewMemory(), reg)
	ev, err := g.Promote(ctx, "bottom_predictor",
		Candidate{ModelID: candArt.ID, AUC: 0.73, ECE: 0.04, ValSamples: 500, Samples: 1000},
		Params{MinAUCDelta: 0.02, MaxECEDelta: 0.01, MinValSamples: 100, CooldownSeconds: 0})
	require.NoError(t, err)
	require.Equal(t, Promoted, ev.Decision)
	require.InDelta(t, 0.03, ev.AUCImprove, 1e-9)
	require.InDelta(t, -0.01, ev.ECEDelta, 1e-9)

	prod, err := reg.GetProduction(ctx, "bottom_predictor")
	require.NoError(t, err)
	require.Equal(t, candArt.ID, prod.ID)
}

func TestPromote_SkipsWhenCriteriaNotMet(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemory()
	prodArt, err := reg.Register(ctx, registry.Artifact{Family: "bottom_predictor", Version: 1, Metrics: model.Metrics{AUC: 0.70, ECE: 0.05, Samples: 1000}})
	require.NoError(t, err)
	require.NoError(t, reg.SetProduction(ctx, "bottom_predictor", prodArt.ID))

	candArt, err := reg.Register(ctx, registry.Artifact{Family: "bottom_predictor", Version: 2, Metrics: model.Metrics{AUC: 0.705, ECE: 0.06, Samples: 1000}})
	require.NoError(t, err)

	g := NewGate(NewMemory(), reg)
	ev, err := g.Promote(ctx, "bottom_predictor",
		Candidate{ModelID: candArt.ID, AUC: 0.705, ECE: 0.06, ValSamples: 500, Samples: 1000},
		Params{MinAUCDelta: 0.02, MaxECEDelta: 0.01, MinValSamples: 100, CooldownSeconds: 0})
	require.NoError(t, err)
	require.Equal(t, Skipped, ev.Decision)

	prod, err := reg.GetProduction(ctx, "bottom_predictor")
	require.NoError(t, err)
	require.Equal(t, prodArt.ID, prod.ID)
}

func TestPromote_InsufficientValSamplesSkips(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemory()
	candArt, err := reg.Register(ctx, registry.Artifact{Family: "bottom_predictor", Version: 1, Metrics: model.Metrics{AUC: 0.9, ECE: 0.01, Samples: 10}})
	require.NoError(t, err)

	g := NewGate(NewMemory(), reg)
	ev, err := g.Promote(ctx, "bottom_predictor",
		Candidate{ModelID: candArt.ID, AUC: 0.9, ECE: 0.01, ValSamples: 10, Samples: 10},
		Params{MinAUCDelta: 0.02, MaxECEDelta: 0.01, MinValSamples: 100, CooldownSeconds: 0})
	require.NoError(t, err)
	require.Equal(t, Skipped, ev.Decision)
	require.Equal(t, "insufficient_val_samples", ev.Reason)
}

func TestPromote_CooldownBlocksReEvaluation(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemory()
	a1, err := reg.Register(ctx, registry.Artifact{Family: "bottom_predictor", Version: 1, Metrics: model.Metrics{AUC: 0.6, ECE: 0.08, Samples: 500}})
	require.NoError(t, err)

	g := NewGate(NewMemory(), reg)
	_, err = g.Promote(ctx, "bottom_predictor", Candidate{ModelID: a1.ID, AUC: 0.6, ECE: 0.08, ValSamples: 500, Samples: 500},
		Params{MinAUCDelta: 0.02, MaxECEDelta: 0.01, MinValSamples: 100, CooldownSeconds: 3600})
	require.NoError(t, err)

	a2, err := reg.Register(ctx, registry.Artifact{Family: "bottom_predictor", Version: 2, Metrics: model.Metrics{AUC: 0.9, ECE: 0.01, Samples: 500}})
	require.NoError(t, err)

	ev, err := g.Promote(ctx, "bottom_predictor", Candidate{ModelID: a2.ID, AUC: 0.9, ECE: 0.01, ValSamples: 500, Samples: 500},
		Params{MinAUCDelta: 0.02, MaxECEDelta: 0.01, MinValSamples: 100, CooldownSeconds: 3600})
	require.NoError(t, err)
	require.Equal(t, Skipped, ev.Decision)
	require.Equal(t, "cooldown_active", ev.Reason)
}
