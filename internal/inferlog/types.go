// Package inferlog records every inference decision as an append-only
// audit row, later updated exactly once by the Labeler with a realized
// outcome.
package inferlog

import "time"

// Entry is an Inference Log row.
type Entry struct {
	ID               int64          `json:"id" db:"id"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	Symbol           string         `json:"symbol" db:"symbol"`
	Interval         string         `json:"interval" db:"interval"`
	FeatureCloseTime time.Time      `json:"feature_close_time" db:"feature_close_time"`
	Probability      float64        `json:"probability" db:"probability"`
	Threshold        float64        `json:"threshold" db:"threshold"`
	Decision         int            `json:"decision" db:"decision"`
	ModelID          int64          `json:"model_id" db:"model_id"`
	ModelVersion     int            `json:"model_version" db:"model_version"`
	UsedProduction   bool           `json:"used_production" db:"used_production"`
	Extra            map[string]any `json:"extra" db:"-"`
	Realized         *int           `json:"realized,omitempty" db:"realized"`
	RealizedAt       *time.Time     `json:"realized_at,omitempty" db:"realized_at"`
}

// Target is the fixed extra["target"] value every entry carries.
const Target = "bottom"
