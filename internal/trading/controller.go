package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/sawpanic/bottomrun/internal/risk"
)

// Controller is the Trading Controller: it owns the flat -> pending_entry
// -> long -> pending_exit -> flat state machine per symbol and applies
// the entry gate, risk engine, and exit policy around it. There is no
// short path: the states are long-only and every entry order is a buy.
type Controller struct {
	store       Store
	riskEngine  *risk.Engine
	entryParams EntryParams
	exitParams  ExitParams

	lastEntryTime  map[string]time.Time
	sessionLossR   float64 // session_realized_loss_R, reset daily by caller
	haltedForDay   bool
}

func NewController(store Store, riskEngine *risk.Engine, ep EntryParams, xp ExitParams) *Controller {
	return &Controller{
		store:         store,
		riskEngine:    riskEngine,
		entryParams:   ep,
		exitParams:    xp,
		lastEntryTime: make(map[string]time.Time),
	}
}

// ResetDailyLossCap clears the daily halt state; called by the scheduler
// at the configured session boundary.
func (c *Controller) ResetDailyLossCap() {
	c.sessionLossR = 0
	c.haltedForDay = false
}

// OnCandidate processes one Inference-originated entry candidate.
func (c *Controller) OnCandidate(ctx context.Context, cand EntryCandidate, sess risk.Session, riskCand risk.EntryCandidate) (Signal, error) {
	if c.haltedForDay {
		return Signal{Status: "rejected", Error: "daily_loss_cap"}, nil
	}

	pos, _, err := c.store.GetPosition(ctx, cand.Symbol)
	if err != nil {
		return Signal{}, fmt.Errorf("trading: get position: %w", err)
	}

	var lastEntry *time.Time
	if t, ok := c.lastEntryTime[cand.Symbol]; ok {
		lastEntry = &t
	}

	gate := EvaluateEntry(cand, pos, lastEntry, c.entryParams)
	if !gate.Allowed {
		return Signal{Status: "rejected", Error: gate.Reason}, nil
	}

	if reject := c.riskEngine.Evaluate(sess, riskCand); reject != nil {
		return Signal{Status: "rejected", Error: reject.Reason}, nil
	}

	sig := Signal{
		CreatedTS: cand.At,
		Type:      "entry",
		Status:    "pending",
		Price:     cand.Price,
		OrderSide: "buy",
		OrderSize: c.entryParams.BaseSize,
	}
	sig, err = c.store.SaveSignal(ctx, sig)
	if err != nil {
		return Signal{}, fmt.Errorf("trading: save entry signal: %w", err)
	}

	pos.Symbol = cand.Symbol
	pos.Status = StatusPendingEntry
	if _, err := c.store.SavePosition(ctx, pos); err != nil {
		return Signal{}, fmt.Errorf("trading: save pending_entry position: %w", err)
	}

	return sig, nil
}

// ApplyEntryFill transitions pending_entry -> long and stamps the
// position's initial risk geometry.
func (c *Controller) ApplyEntryFill(ctx context.Context, symbol string, fill Fill, initialStop float64) (Position, error) {
	pos, ok, err := c.store.GetPosition(ctx, symbol)
	if err != nil {
		return Position{}, fmt.Errorf("trading: get position: %w", err)
	}
	if !ok || pos.Status != StatusPendingEntry {
		return Position{}, fmt.Errorf("trading: no pending_entry position for %s", symbol)
	}

	pos.Status = StatusLong
	pos.Size = fill.Size
	pos.EntryPrice = fill.Price
	pos.EntryTime = fill.Timestamp
	pos.HighWaterMark = fill.Price
	pos.InitialStop = initialStop
	pos.TrailingStop = initialStop
	pos.BarsSinceEntry = 0
	pos.PeeledFraction = 0
	pos.CrossedPartials = 0

	saved, err := c.store.SavePosition(ctx, pos)
	if err != nil {
		return Position{}, fmt.Errorf("trading: save long position: %w", err)
	}
	c.lastEntryTime[symbol] = fill.Timestamp
	return saved, nil
}

// Tick evaluates the exit policy for an open long position on each new
// bar and returns the updated position plus an exit signal when one
// fires. Freezing scale-in on a configured exit-then-cooldown window is
// handled by the caller consulting FreezeOnExit and CooldownBars against
// pos.LastExitTime.
func (c *Controller) Tick(ctx context.Context, symbol string, mkt MarketState) (Position, *Signal, error) {
	pos, ok, err := c.store.GetPosition(ctx, symbol)
	if err != nil {
		return Position{}, nil, fmt.Errorf("trading: get position: %w", err)
	}
	if !ok || pos.Status != StatusLong {
		return pos, nil, nil
	}

	pos.BarsSinceEntry++
	if mkt.Price > pos.HighWaterMark {
		pos.HighWaterMark = mkt.Price
	}

	decision := EvaluateExit(pos, mkt, c.exitParams)
	pos.TrailingStop = decision.NewTrailingStop

	switch {
	case decision.ShouldExit:
		pos.Status = StatusPendingExit
		sig := Signal{
			CreatedTS: time.Now(),
			Type:      "exit",
			Status:    "pending",
			Price:     mkt.Price,
			OrderSide: "sell",
			OrderSize: pos.Size,
			Extra:     map[string]any{"reason": string(decision.Reason)},
		}
		saved, err := c.store.SaveSignal(ctx, sig)
		if err != nil {
			return pos, nil, fmt.Errorf("trading: save exit signal: %w", err)
		}
		if _, err := c.store.SavePosition(ctx, pos); err != nil {
			return pos, nil, fmt.Errorf("trading: save pending_exit position: %w", err)
		}
		return pos, &saved, nil

	case decision.Reason == PartialTP:
		pos.CrossedPartials = decision.NewCrossedPartials
		peelSize := pos.Size * decision.PartialFraction
		pos.PeeledFraction += decision.PartialFraction
		pos.Size -= peelSize
		sig := Signal{
			CreatedTS: time.Now(),
			Type:      "partial_exit",
			Status:    "pending",
			Price:     mkt.Price,
			OrderSide: "sell",
			OrderSize: peelSize,
		}
		saved, err := c.store.SaveSignal(ctx, sig)
		if err != nil {
			return pos, nil, fmt.Errorf("trading: save partial exit signal: %w", err)
		}
		if _, err := c.store.SavePosition(ctx, pos); err != nil {
			return pos, nil, fmt.Errorf("trading: save position after partial: %w", err)
		}
		return pos, &saved, nil

	default:
		if _, err := c.store.SavePosition(ctx, pos); err != nil {
			return pos, nil, fmt.Errorf("trading: save position: %w", err)
		}
		return pos, nil, nil
	}
}

// ApplyExitFill transitions pending_exit -> flat, updates realized PnL
// and the daily loss cap accumulator.
func (c *Controller) ApplyExitFill(ctx context.Context, symbol string, fill Fill, rMultiple float64) (Position, error) {
	pos, ok, err := c.store.GetPosition(ctx, symbol)
	if err != nil {
		return Position{}, fmt.Errorf("trading: get position: %w", err)
	}
	if !ok || pos.Status != StatusPendingExit {
		return Position{}, fmt.Errorf("trading: no pending_exit position for %s", symbol)
	}

	pnl := (fill.Price - pos.EntryPrice) * pos.Size
	pos.RealizedPnL += pnl
	pos.RealizedPnLR += rMultiple
	pos.Status = StatusFlat
	pos.Size = 0
	now := fill.Timestamp
	pos.LastExitTime = &now

	if rMultiple < 0 {
		c.sessionLossR += -rMultiple
	}
	if c.exitParams.DailyLossCapR > 0 && c.sessionLossR >= c.exitParams.DailyLossCapR {
		c.haltedForDay = true
	}

	saved, err := c.store.SavePosition(ctx, pos)
	if err != nil {
		return Position{}, fmt.Errorf("trading: save flat position: %w", err)
	}
	return saved, nil
}

// InCooldown reports whether re-entry is currently blocked by
// cooldown.bars expressed in elapsed bars since the last exit.
func InCooldown(pos Position, barsSinceExit int, p ExitParams) bool {
	return pos.LastExitTime != nil && barsSinceExit < p.CooldownBars
}
