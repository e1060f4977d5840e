package model

import "math"

// Stump is a single decision stump: predicts Pos if featureVec[Feature] >=
// Threshold, else Neg. An ensemble of stumps approximates a shallow gradient
// boosted tree without pulling in an external ML dependency — no such
// library appears anywhere in the retrieved example corpus, so this is
// grounded on stdlib math only (see DESIGN.md).
type Stump struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Pos       float64 `json:"pos"`
	Neg       float64 `json:"neg"`
	Weight    float64 `json:"weight"`
}

// GBMLike is an additive ensemble of weighted stumps passed through a
// sigmoid, standing in for a gradient-boosted classifier.
type GBMLike struct {
	Stumps []Stump
	Bias   float64
}

func (g *GBMLike) Variant() string { return VariantGBMLike }

func (g *GBMLike) Predict(x []float64) (float64, error) {
	if len(g.Stumps) == 0 {
		return 0, errNoStumps
	}
	logit := g.Bias
	for _, s := range g.Stumps {
		if s.Feature < 0 || s.Feature >= len(x) {
			continue
		}
		if x[s.Feature] >= s.Threshold {
			logit += s.Weight * s.Pos
		} else {
			logit += s.Weight * s.Neg
		}
	}
	return sigmoid(logit), nil
}

func sigmoid(z float64) float64 { return 1.0 / (1.0 + math.Exp(-z)) }
