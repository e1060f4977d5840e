package model

import (
	"errors"
)

var errNoStumps = errors.New("model: gbm_like artifact has no stumps")
var errWeightMismatch = errors.New("model: xgb_like weight/feature length mismatch")

// XGBLike is a regularized logistic blend over the raw feature vector,
// standing in for a regularized gradient-boosted linear model.
type XGBLike struct {
	Weights []float64
	Bias    float64
	L2      float64
}

func (x *XGBLike) Variant() string { return VariantXGBLike }

func (x *XGBLike) Predict(featureVec []float64) (float64, error) {
	if len(x.Weights) != len(featureVec) {
		return 0, errWeightMismatch
	}
	logit := x.Bias
	for i, w := range x.Weights {
		logit += w * featureVec[i]
	}
	return sigmoid(logit), nil
}
