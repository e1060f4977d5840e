// Package training implements the Training Service: dataset construction
// from OHLCV history via the shared bottom-event label rule, classifier
// fitting, and held-out evaluation.
package training

import (
	"errors"

	"github.com/sawpanic/bottomrun/internal/label"
)

// ErrInsufficientData is returned when a dataset has fewer labeled rows
// than min_train_labels requires.
var ErrInsufficientData = errors.New("training: insufficient labeled data")

// Example is one training row: a feature vector paired with its
// bottom-event label.
type Example struct {
	Features []float64
	Label    int
	AsOf     int // index into the source closes series, for traceability
}

// Dataset is a full, chronologically-ordered set of labeled examples.
type Dataset struct {
	Examples []Example
}

// Params configure dataset construction and the train/val split,
// sourced from settings namespace training.bottom.*.
type Params struct {
	MinLabels      int
	MinTrainLabels int
	OHLCVFetchCap  int
	ValFraction    float64 // held-out tail fraction; 0 means DefaultValFraction (0.2)
	Label          label.Params
	Seed           int64
	Variant        string // model.VariantGBMLike | model.VariantXGBLike
}

// DefaultValFraction is the fixed held-out tail fraction spec.md §4.4
// mandates for evaluation.
const DefaultValFraction = 0.2
