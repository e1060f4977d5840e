// Package trading implements the Trading Controller state machine:
// entry gate, exit policy, and the per-position lifecycle that bridges
// Inference decisions into orders.
package trading

import "time"

// Status is the position lifecycle state.
type Status string

const (
	StatusFlat         Status = "flat"
	StatusPendingEntry Status = "pending_entry"
	StatusLong         Status = "long"
	StatusPendingExit  Status = "pending_exit"
)

// Position tracks one symbol's open trade.
type Position struct {
	ID              int64
	Symbol          string
	Status          Status
	Size            float64
	EntryPrice      float64
	EntryTime       time.Time
	HighWaterMark   float64
	BarsSinceEntry  int
	RealizedPnL     float64
	RealizedPnLR    float64 // in R-multiples
	PeeledFraction  float64 // cumulative fraction already taken via partial TPs
	InitialStop     float64 // stop price fixed at entry, used as R-multiple denominator
	TrailingStop    float64
	CrossedPartials int // number of partial-TP rungs already peeled
	LastExitTime    *time.Time
}

// Signal is a Trading Signal row.
type Signal struct {
	ID         int64
	CreatedTS  time.Time
	ExecutedTS *time.Time
	Type       string // "entry" | "exit" | "partial_exit"
	Status     string // "pending" | "filled" | "rejected" | "error"
	Price      float64
	OrderSide  string
	OrderSize  float64
	OrderPrice float64
	Error      string
	Extra      map[string]any
}

// Fill records an exchange execution applied to a position. Supplemental
// entity not named directly by the persistent-schema list, needed to
// apply signals to positions atomically.
type Fill struct {
	SignalID  int64
	Price     float64
	Size      float64
	Side      string
	Timestamp time.Time
}

// ExitMode selects the trailing-stop calculation.
type ExitMode string

const (
	TrailPercent ExitMode = "percent"
	TrailATR     ExitMode = "atr"
)

// PartialLevel is one configured partial take-profit rung.
type PartialLevel struct {
	RMultiple float64
	Fraction  float64
}

// ExitParams are settings namespace exit.* values.
type ExitParams struct {
	EnableNewPolicy  bool
	TrailMode        ExitMode
	TrailMultiplier  float64 // ATR mode
	TrailPercent     float64 // percent mode
	TimeStopBars     int
	PartialEnabled   bool
	PartialLevels    []PartialLevel
	CooldownBars     int
	DailyLossCapR    float64
	FreezeOnExit     bool
	ATRWindow        int
}

// EntryParams are settings namespace live_trading.* values.
type EntryParams struct {
	Enabled                bool
	CooldownSec            int
	BaseSize               float64
	TrailingTakeProfitPct  float64
	MaxHoldingSeconds      int
	ConfirmPct             float64
	ScaleInEnabled         bool
}
