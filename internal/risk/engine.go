package risk

import "math"

// Engine hard-gates entries against the four continuously observed
// guards. No partial orders are ever emitted: a violation rejects the
// whole candidate.
type Engine struct {
	params Params
}

func NewEngine(p Params) *Engine {
	return &Engine{params: p}
}

// Evaluate checks an entry candidate against the current session state
// and returns nil if it passes all four guards, or the first violated
// guard as a Reject.
func (e *Engine) Evaluate(sess Session, cand EntryCandidate) *Reject {
	if r := e.checkMaxNotional(sess, cand); r != nil {
		return r
	}
	if r := e.checkMaxDailyLoss(sess); r != nil {
		return r
	}
	if r := e.checkMaxDrawdown(sess); r != nil {
		return r
	}
	if r := e.checkATRMultiple(cand); r != nil {
		return r
	}
	return nil
}

func (e *Engine) checkMaxNotional(sess Session, cand EntryCandidate) *Reject {
	if e.params.MaxNotional <= 0 {
		return nil
	}
	projected := sess.OpenNotional + math.Abs(cand.Size*cand.EntryPrice)
	if projected > e.params.MaxNotional {
		return &Reject{Reason: "max_notional", Detail: "projected notional exceeds limit"}
	}
	return nil
}

func (e *Engine) checkMaxDailyLoss(sess Session) *Reject {
	if e.params.MaxDailyLoss <= 0 {
		return nil
	}
	if -sess.CumulativePnL > e.params.MaxDailyLoss {
		return &Reject{Reason: "max_daily_loss", Detail: "cumulative loss since last reset exceeds limit"}
	}
	return nil
}

func (e *Engine) checkMaxDrawdown(sess Session) *Reject {
	if e.params.MaxDrawdown <= 0 || sess.PeakEquity <= 0 {
		return nil
	}
	drawdown := (sess.PeakEquity - sess.CurrentEquity) / sess.PeakEquity
	if drawdown >= e.params.MaxDrawdown {
		return &Reject{Reason: "max_drawdown", Detail: "drawdown from peak equity exceeds limit"}
	}
	return nil
}

func (e *Engine) checkATRMultiple(cand EntryCandidate) *Reject {
	if e.params.ATRMultiple <= 0 || cand.ATR <= 0 {
		return nil
	}
	stopDist := math.Abs(cand.EntryPrice - cand.StopPrice)
	if stopDist < e.params.ATRMultiple*cand.ATR {
		return &Reject{Reason: "atr_multiple", Detail: "initial stop distance below k*ATR"}
	}
	return nil
}
