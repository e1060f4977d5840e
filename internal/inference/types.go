// Package inference implements the Inference Auto-Loop: on each tick it
// reads the latest feature snapshot, loads the effective model, scores
// it against the effective threshold, and emits a candidate to the
// Trading Controller when warranted.
package inference

import "time"

// Policy selects which artifact generation to serve.
type Policy string

const (
	UseProduction Policy = "production"
	UseLatest     Policy = "latest"
)

// Config configures one symbol/interval loop instance, sourced from
// settings namespace inference.auto.* plus spec.md §4.6 fixed budgets.
type Config struct {
	Symbol           string
	Interval         string
	Policy           Policy
	Version          *int // pinned version when Policy selects a specific one
	ThresholdDefault float64
	LoopInterval     time.Duration
	PredictTimeout   time.Duration // fixed 500ms per spec
	BatchSize        int           // fixed 64 per spec
	FlushInterval    time.Duration // fixed 1s per spec
	CooldownSec      int
	ShutdownGrace    time.Duration // fixed 2s per spec
}

// DefaultConfig returns the spec-mandated fixed budgets with the
// tunable fields left for the caller to fill in from settings.
func DefaultConfig() Config {
	return Config{
		Policy:         UseProduction,
		LoopInterval:   10 * time.Second,
		PredictTimeout: 500 * time.Millisecond,
		BatchSize:      64,
		FlushInterval:  time.Second,
		ShutdownGrace:  2 * time.Second,
	}
}

// Status kinds returned by the /predict contract (spec §6.2).
const (
	StatusOK                   = "ok"
	StatusNoData               = "no_data"
	StatusNoModel              = "no_model"
	StatusInsufficientFeatures = "insufficient_features"
)

// Result is the /predict response shape.
type Result struct {
	Status            string
	Probability       float64
	Decision          int
	Threshold         float64
	ModelVersion      int
	UsedProduction    bool
	FeatureAgeSeconds float64
	Hint              string
}
