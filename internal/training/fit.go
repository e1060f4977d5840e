package training

import (
	"math"
	"math/rand"

	"github.com/sawpanic/bottomrun/internal/model"
)

const (
	gdIterations  = 500
	gdLearnRate   = 0.1
	defaultL2     = 0.001
	gbmStumpCount = 25
	gbmLearnRate  = 0.3
)

// classWeights returns {negWeight, posWeight} so the minority class
// contributes equally to the loss, per spec.md §4.4's "class weighting".
func classWeights(ds Dataset) (negW, posW float64) {
	pos, neg := ds.ClassCounts()
	total := float64(pos + neg)
	if pos == 0 || neg == 0 || total == 0 {
		return 1, 1
	}
	negW = total / (2 * float64(neg))
	posW = total / (2 * float64(pos))
	return
}

func sigmoid(z float64) float64 { return 1.0 / (1.0 + math.Exp(-z)) }

// FitXGBLike fits a class-weighted, L2-regularized logistic blend via
// batch gradient descent. Seeded weight initialization makes the fit
// deterministic across runs with the same dataset and seed.
func FitXGBLike(ds Dataset, seed int64) (*model.XGBLike, error) {
	if len(ds.Examples) == 0 {
		return nil, ErrInsufficientData
	}
	dim := len(ds.Examples[0].Features)
	rng := rand.New(rand.NewSource(seed))

	weights := make([]float64, dim)
	for i := range weights {
		weights[i] = (rng.Float64() - 0.5) * 0.01
	}
	bias := 0.0

	negW, posW := classWeights(ds)
	n := float64(len(ds.Examples))

	for iter := 0; iter < gdIterations; iter++ {
		gradW := make([]float64, dim)
		gradB := 0.0

		for _, ex := range ds.Examples {
			logit := bias
			for i, f := range ex.Features {
				logit += weights[i] * f
			}
			pred := sigmoid(logit)
			w := negW
			if ex.Label == 1 {
				w = posW
			}
			err := w * (pred - float64(ex.Label))

			for i, f := range ex.Features {
				gradW[i] += err * f
			}
			gradB += err
		}

		for i := range weights {
			reg := defaultL2 * weights[i]
			weights[i] -= gdLearnRate * (gradW[i]/n + reg)
		}
		bias -= gdLearnRate * (gradB / n)
	}

	return &model.XGBLike{Weights: weights, Bias: bias, L2: defaultL2}, nil
}

// FitGBMLike greedily boosts single-feature decision stumps against the
// class-weighted residual, standing in for a shallow gradient-boosted
// tree ensemble. Greedy selection is deterministic; no randomness is
// used, so the seed parameter only exists for interface symmetry with
// FitXGBLike.
func FitGBMLike(ds Dataset, seed int64) (*model.GBMLike, error) {
	if len(ds.Examples) == 0 {
		return nil, ErrInsufficientData
	}
	dim := len(ds.Examples[0].Features)
	negW, posW := classWeights(ds)

	logits := make([]float64, len(ds.Examples))
	gbm := &model.GBMLike{}

	for round := 0; round < gbmStumpCount; round++ {
		bestStump := model.Stump{Feature: -1}
		bestLoss := math.Inf(1)

		for f := 0; f < dim; f++ {
			threshold := featureMedian(ds, f)

			var posSumResid, posWeight, negSumResid, negWeight float64
			for i, ex := range ds.Examples {
				pred := sigmoid(logits[i])
				w := negW
				if ex.Label == 1 {
					w = posW
				}
				resid := float64(ex.Label) - pred

				if ex.Features[f] >= threshold {
					posSumResid += w * resid
					posWeight += w
				} else {
					negSumResid += w * resid
					negWeight += w
				}
			}

			posVal := safeDiv(posSumResid, posWeight)
			negVal := safeDiv(negSumResid, negWeight)

			loss := 0.0
			for i, ex := range ds.Examples {
				w := negW
				if ex.Label == 1 {
					w = posW
				}
				var contrib float64
				if ex.Features[f] >= threshold {
					contrib = posVal
				} else {
					contrib = negVal
				}
				d := float64(ex.Label) - sigmoid(logits[i]+gbmLearnRate*contrib)
				loss += w * d * d
			}

			if loss < bestLoss {
				bestLoss = loss
				bestStump = model.Stump{Feature: f, Threshold: threshold, Pos: posVal, Neg: negVal, Weight: gbmLearnRate}
			}
		}

		if bestStump.Feature < 0 {
			break
		}
		gbm.Stumps = append(gbm.Stumps, bestStump)
		for i, ex := range ds.Examples {
			if ex.Features[bestStump.Feature] >= bestStump.Threshold {
				logits[i] += bestStump.Weight * bestStump.Pos
			} else {
				logits[i] += bestStump.Weight * bestStump.Neg
			}
		}
	}

	return gbm, nil
}

func featureMedian(ds Dataset, feature int) float64 {
	vals := make([]float64, len(ds.Examples))
	for i, ex := range ds.Examples {
		vals[i] = ex.Features[feature]
	}
	// simple insertion sort; dataset sizes here are training-batch scale.
	for i := 1; i < len(vals); i++ {
		v := vals[i]
		j := i - 1
		for j >= 0 && vals[j] > v {
			vals[j+1] = vals[j]
			j--
		}
		vals[j+1] = v
	}
	return vals[len(vals)/2]
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
