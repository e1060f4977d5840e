// Package risk implements the Risk Engine: continuously observed guards
// that hard-gate every entry the Trading Controller proposes.
package risk

import "time"

// Session tracks the running risk-relevant state for one trading day.
type Session struct {
	StartingEquity  float64
	PeakEquity      float64
	CurrentEquity   float64
	CumulativePnL   float64
	LastResetTS     time.Time
	OpenNotional    float64
}

// Params are the guard thresholds, sourced from settings namespace
// risk.{max_notional, max_daily_loss, max_drawdown, atr_multiple}.
type Params struct {
	MaxNotional   float64
	MaxDailyLoss  float64
	MaxDrawdown   float64
	ATRMultiple   float64
}

// EntryCandidate is what the Trading Controller proposes to the Risk
// Engine before placing an order.
type EntryCandidate struct {
	Size        float64
	EntryPrice  float64
	StopPrice   float64
	ATR         float64
}

// Reject is a structured rejection reason.
type Reject struct {
	Reason string
	Detail string
}

func (r Reject) Error() string { return r.Reason + ": " + r.Detail }
