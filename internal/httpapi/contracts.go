// Package httpapi exposes the HTTP/stream contracts of spec section 6.2:
// /predict, /labeler/run, /calibration/live, /delta, and
// /monitor/calibration/status. Grounded on the teacher's
// internal/interfaces/http server (gorilla/mux, request-ID middleware,
// JSON envelope helpers), generalized from a read-only candidate-scanner
// API to this platform's inference/labeler/calibration/delta surface.
package httpapi

import "time"

// ErrorResponse is the user-visible failure shape of spec section 7:
// {status, reason, hint, request_id}.
type ErrorResponse struct {
	Status    string `json:"status"`
	Reason    string `json:"reason"`
	Hint      string `json:"hint,omitempty"`
	RequestID string `json:"request_id"`
}

// PredictResponse is GET /predict's response shape.
type PredictResponse struct {
	Status            string  `json:"status"`
	Probability       float64 `json:"probability,omitempty"`
	Decision          int     `json:"decision,omitempty"`
	Threshold         float64 `json:"threshold,omitempty"`
	ModelVersion      int     `json:"model_version,omitempty"`
	UsedProduction    bool    `json:"used_production,omitempty"`
	FeatureAgeSeconds float64 `json:"feature_age_seconds,omitempty"`
	Hint              string  `json:"hint,omitempty"`
}

// LabelerRunResponse is POST /labeler/run's response shape.
type LabelerRunResponse struct {
	Status        string `json:"status"`
	LabeledCount  int    `json:"labeled_count"`
	PendingCount  int    `json:"pending_count"`
}

// CalibrationLiveResponse is GET /calibration/live's response shape.
type CalibrationLiveResponse struct {
	Status               string    `json:"status"`
	ECE                  *float64  `json:"ece,omitempty"`
	MCE                  *float64  `json:"mce,omitempty"`
	Brier                *float64  `json:"brier,omitempty"`
	ReliabilityBins      []BinView `json:"reliability_bins,omitempty"`
	AttemptedEagerLabel  bool      `json:"attempted_eager_label,omitempty"`
	SampleCount          *int      `json:"sample_count,omitempty"`
}

// BinView is the wire shape of one calibration.Bin.
type BinView struct {
	Index         int     `json:"index"`
	Count         int     `json:"count"`
	MeanPredProb  float64 `json:"mean_pred_prob"`
	EmpiricalProb float64 `json:"empirical_prob"`
}

// DeltaCandle is one bar in GET /delta's candles array.
type DeltaCandle struct {
	OpenTime  time.Time `json:"open_time"`
	CloseTime time.Time `json:"close_time"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    float64   `json:"v"`
}

// DeltaRepair describes an in-flight or completed gap repair overlapping
// the requested window.
type DeltaRepair struct {
	FromTS time.Time `json:"from_ts"`
	ToTS   time.Time `json:"to_ts"`
	State  string    `json:"state"`
}

// DeltaResponse is GET /delta's response shape.
type DeltaResponse struct {
	BaseFrom  time.Time     `json:"base_from"`
	BaseTo    time.Time     `json:"base_to"`
	Candles   []DeltaCandle `json:"candles"`
	Repairs   []DeltaRepair `json:"repairs"`
	Truncated bool          `json:"truncated"`
}

// MonitorStatusResponse is POST /monitor/calibration/status's response
// shape.
type MonitorStatusResponse struct {
	Enabled          bool      `json:"enabled"`
	AbsStreak        int       `json:"abs_streak"`
	RelStreak        int       `json:"rel_streak"`
	LastSnapshot      time.Time `json:"last_snapshot"`
	Thresholds       Thresholds `json:"thresholds"`
	RecommendRetrain bool      `json:"recommend_retrain"`
	Reasons          []string  `json:"reasons"`
	WindowSeconds    int       `json:"window_seconds"`
	MinSamples       int       `json:"min_samples"`
}

// Thresholds mirrors the monitor's configured drift thresholds.
type Thresholds struct {
	ECEAbs float64 `json:"ece_abs"`
	ECERel float64 `json:"ece_rel"`
}
