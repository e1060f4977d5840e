package httpapi

import (
	"context"
	"time"

	"github.com/sawpanic/bottomrun/internal/calibration"
	"github.com/sawpanic/bottomrun/internal/inference"
	"github.com/sawpanic/bottomrun/internal/inferlog"
	"github.com/sawpanic/bottomrun/internal/label"
	"github.com/sawpanic/bottomrun/internal/labeler"
	"github.com/sawpanic/bottomrun/internal/ohlcv"
	"github.com/sawpanic/bottomrun/internal/registry"
	"github.com/sawpanic/bottomrun/internal/settings"
)

// Predictor is the inference.Loop surface /predict drives.
type Predictor interface {
	Tick(ctx context.Context) (inference.Result, error)
	PredictWithOverride(ctx context.Context, policy inference.Policy, version *int) (inference.Result, error)
}

// LabelerRunner is the labeler.Labeler surface /labeler/run drives.
type LabelerRunner interface {
	RunEager(ctx context.Context, minAge time.Duration, limit int, lp label.Params) (labeler.Result, error)
}

// Deps wires every component the HTTP surface fronts. All fields are
// required except where noted.
type Deps struct {
	Predictor Predictor
	Labeler   LabelerRunner

	Logs     inferlog.Store
	Registry registry.Registry
	Monitor  *calibration.Monitor // nil disables /monitor/calibration/status

	Bars ohlcv.BarStore
	Gaps ohlcv.GapStore

	Cache *settings.Cache

	Symbol   string
	Interval string
}
