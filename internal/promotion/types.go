// Package promotion implements the Promotion Gate: the sole writer
// allowed to advance a staging Model Artifact to production.
package promotion

import "time"

// Decision is the gate's outcome for one candidate.
type Decision string

const (
	Promoted Decision = "promoted"
	Skipped  Decision = "skipped"
)

// Event is a Promotion Event row, written under every outcome.
type Event struct {
	ID                       int64     `json:"id" db:"id"`
	CreatedAt                time.Time `json:"created_at" db:"created_at"`
	ModelID                  int64     `json:"model_id" db:"model_id"`
	PreviousProductionModelID *int64   `json:"previous_production_model_id,omitempty" db:"previous_production_model_id"`
	Decision                 Decision  `json:"decision" db:"decision"`
	Reason                   string    `json:"reason" db:"reason"`
	SamplesOld               int       `json:"samples_old" db:"samples_old"`
	SamplesNew               int       `json:"samples_new" db:"samples_new"`
	AUCImprove               float64   `json:"auc_improve" db:"auc_improve"`
	ECEDelta                 float64   `json:"ece_delta" db:"ece_delta"`
	ValSamples               int       `json:"val_samples" db:"val_samples"`
}

// Candidate is the staging artifact under evaluation.
type Candidate struct {
	ModelID    int64
	AUC        float64
	ECE        float64
	ValSamples int
	Samples    int
}

// Production describes the current production artifact, if any.
type Production struct {
	ModelID int64
	AUC     float64
	ECE     float64
	Samples int
}

// Params are the decision thresholds, sourced from settings namespace
// promotion.{min_auc_delta, max_ece_delta, min_val_samples, cooldown_seconds}.
type Params struct {
	MinAUCDelta    float64
	MaxECEDelta    float64
	MinValSamples  int
	CooldownSeconds int
}
