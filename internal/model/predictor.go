// Package model implements the Predictor capability: an opaque, versioned
// classifier blob that maps a feature vector to a bottom-event probability.
// Two concrete families are supported, matching the registry's family tag.
package model

import "fmt"

// Family is the single model family this spec covers.
const Family = "bottom_predictor"

// Predictor is the capability every trained artifact must satisfy.
type Predictor interface {
	Predict(featureVec []float64) (prob float64, err error)
	Variant() string
}

// Variant names stored alongside the artifact blob.
const (
	VariantGBMLike = "bottom_gbm_like"
	VariantXGBLike = "bottom_xgb_like"
)

// Load reconstructs a Predictor from a decoded blob for the given variant.
func Load(variant string, blob Blob) (Predictor, error) {
	switch variant {
	case VariantGBMLike:
		return &GBMLike{Stumps: blob.Stumps, Bias: blob.Bias}, nil
	case VariantXGBLike:
		return &XGBLike{Weights: blob.Weights, Bias: blob.Bias, L2: blob.L2}, nil
	default:
		return nil, fmt.Errorf("model: unknown variant %q", variant)
	}
}

// Blob is the serializable representation persisted by the Model Registry.
// Only the fields relevant to a variant are populated.
type Blob struct {
	Stumps  []Stump   `json:"stumps,omitempty"`
	Weights []float64 `json:"weights,omitempty"`
	Bias    float64   `json:"bias"`
	L2      float64   `json:"l2,omitempty"`
}
