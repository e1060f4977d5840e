// Package features derives the fixed, schema-versioned set of signals used
// downstream by training and inference, keyed by close_time and leakage-free:
// no feature may reference a close_time greater than its own key.
package features

import (
	"errors"
	"time"
)

// SchemaVersion identifies the current feature set. Bump whenever the set of
// computed names changes so snapshots remain comparable within a version.
const SchemaVersion = 1

// WarmupBars is the minimum closed-bar history required before the first
// snapshot can be computed.
const WarmupBars = 30

// ErrNoData is returned when fewer than WarmupBars closed bars are available.
var ErrNoData = errors.New("features: insufficient closed bars for warmup")

// Names lists the feature set in a fixed, stable order (also the order used
// for model input vectors).
var Names = []string{
	"ret_1", "ret_5", "ret_15",
	"rsi_14",
	"vol_rolling_20",
	"sma_9", "sma_21", "ema_12",
	"atr_14",
	"bb_width_20",
}

// Snapshot is a Feature Snapshot entity.
type Snapshot struct {
	Symbol        string             `json:"symbol" db:"symbol"`
	Interval      string             `json:"interval" db:"interval"`
	CloseTime     time.Time          `json:"close_time" db:"close_time"`
	Features      map[string]float64 `json:"features" db:"-"`
	SchemaVersion int                `json:"schema_version" db:"schema_version"`
}

// Vector returns the feature values in Names order, for model input.
func (s Snapshot) Vector() []float64 {
	v := make([]float64, len(Names))
	for i, name := range Names {
		v[i] = s.Features[name]
	}
	return v
}
