package training

import (
	"context"
	"fmt"

	"github.com/sawpanic/bottomrun/internal/model"
	"github.com/sawpanic/bottomrun/internal/promotion"
	"github.com/sawpanic/bottomrun/internal/registry"
)

// Result is the outcome of one training run: a staged artifact plus the
// evaluation metrics and the emitted promotion candidate.
type Result struct {
	Artifact  registry.Artifact
	Candidate promotion.Candidate
}

// Service builds a dataset, fits a classifier, evaluates it on a
// held-out tail, and writes the result to the Model Registry as
// staging.
type Service struct {
	reg registry.Registry
}

func NewService(reg registry.Registry) *Service {
	return &Service{reg: reg}
}

// Run trains one candidate artifact from closes/features aligned at the
// same index, gated by MinTrainLabels.
func (s *Service) Run(ctx context.Context, closes []float64, features [][]float64, p Params) (Result, error) {
	full := BuildDataset(closes, features, p.Label)
	if len(full.Examples) < p.MinLabels {
		return Result{}, ErrInsufficientData
	}

	valFraction := p.ValFraction
	if valFraction <= 0 {
		valFraction = DefaultValFraction
	}
	train, val := ChronologicalSplit(full, valFraction)

	if len(train.Examples) < p.MinTrainLabels {
		return Result{}, ErrInsufficientData
	}

	var pred model.Predictor
	var blob model.Blob
	var err error

	switch p.Variant {
	case model.VariantGBMLike:
		gbm, ferr := FitGBMLike(train, p.Seed)
		err = ferr
		if err == nil {
			pred = gbm
			blob = model.Blob{Stumps: gbm.Stumps, Bias: gbm.Bias}
		}
	default:
		xgb, ferr := FitXGBLike(train, p.Seed)
		err = ferr
		if err == nil {
			pred = xgb
			blob = model.Blob{Weights: xgb.Weights, Bias: xgb.Bias, L2: xgb.L2}
		}
	}
	if err != nil {
		return Result{}, fmt.Errorf("training: fit: %w", err)
	}

	metrics, err := Evaluate(val, pred, "bottom", p)
	if err != nil {
		return Result{}, fmt.Errorf("training: evaluate: %w", err)
	}

	variant := p.Variant
	if variant == "" {
		variant = model.VariantXGBLike
	}

	latest, err := s.reg.ListRecent(ctx, model.Family, 1)
	if err != nil {
		return Result{}, fmt.Errorf("training: list recent: %w", err)
	}
	nextVersion := 1
	if len(latest) > 0 {
		nextVersion = latest[0].Version + 1
	}

	artifact, err := s.reg.Register(ctx, registry.Artifact{
		Family:  model.Family,
		Version: nextVersion,
		Variant: variant,
		Blob:    blob,
		Metrics: metrics,
	})
	if err != nil {
		return Result{}, fmt.Errorf("training: register artifact: %w", err)
	}

	return Result{
		Artifact: artifact,
		Candidate: promotion.Candidate{
			ModelID:    artifact.ID,
			AUC:        metrics.AUC,
			ECE:        metrics.ECE,
			ValSamples: len(val.Examples),
			Samples:    len(full.Examples),
		},
	}, nil
}
