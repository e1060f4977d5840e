package trading

import "time"

// EntryCandidate is what the Inference Loop hands to the Trading
// Controller when decision==1.
type EntryCandidate struct {
	Symbol        string
	Price         float64
	Decision      int
	LocalMinPrice float64 // lowest close seen over the confirmation lookback
	ShortMA       float64
	At            time.Time
}

// EntryGateResult is the entry gate's verdict, with a structured reason
// when rejected.
type EntryGateResult struct {
	Allowed bool
	Reason  string
}

// EvaluateEntry checks the entry gate: decision==1, cooldown elapsed
// since lastEntryTime, and an optional confirmation clause (rebound from
// the local minimum at least confirm_pct, OR close above the short MA).
func EvaluateEntry(cand EntryCandidate, pos Position, lastEntryTime *time.Time, p EntryParams) EntryGateResult {
	if !p.Enabled {
		return EntryGateResult{Allowed: false, Reason: "live_trading_disabled"}
	}
	if cand.Decision != 1 {
		return EntryGateResult{Allowed: false, Reason: "decision_not_positive"}
	}
	if pos.Status != StatusFlat {
		return EntryGateResult{Allowed: false, Reason: "position_not_flat"}
	}
	if lastEntryTime != nil {
		elapsed := cand.At.Sub(*lastEntryTime)
		if elapsed < time.Duration(p.CooldownSec)*time.Second {
			return EntryGateResult{Allowed: false, Reason: "cooldown_active"}
		}
	}

	if p.ConfirmPct > 0 {
		reboundOK := cand.LocalMinPrice > 0 &&
			(cand.Price-cand.LocalMinPrice)/cand.LocalMinPrice >= p.ConfirmPct
		maOK := cand.ShortMA > 0 && cand.Price > cand.ShortMA
		if !reboundOK && !maOK {
			return EntryGateResult{Allowed: false, Reason: "confirmation_not_met"}
		}
	}

	return EntryGateResult{Allowed: true}
}
