package risk

import (
	"context"
	"sync"
	"time"
)

// SessionTracker is the in-process owner of the single-symbol risk
// Session state: starting/peak/current equity and open notional, reset
// at the configured daily boundary. It implements the Session accessor
// the Inference Loop needs before emitting a candidate to the Trading
// Controller.
type SessionTracker struct {
	mu      sync.Mutex
	symbol  string
	session Session
}

// NewSessionTracker starts a session with startingEquity as both the
// starting and current equity mark.
func NewSessionTracker(symbol string, startingEquity float64) *SessionTracker {
	return &SessionTracker{
		symbol: symbol,
		session: Session{
			StartingEquity: startingEquity,
			PeakEquity:     startingEquity,
			CurrentEquity:  startingEquity,
			LastResetTS:    time.Now(),
		},
	}
}

// Session returns the current session snapshot.
func (t *SessionTracker) Session(ctx context.Context, symbol string) (Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session, nil
}

// ApplyRealizedPnL folds a closed position's P&L into the running
// session, advancing peak equity when a new high is reached.
func (t *SessionTracker) ApplyRealizedPnL(pnl float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.session.CurrentEquity += pnl
	t.session.CumulativePnL += pnl
	if t.session.CurrentEquity > t.session.PeakEquity {
		t.session.PeakEquity = t.session.CurrentEquity
	}
}

// SetOpenNotional updates the notional currently at risk, read by the
// max-notional guard on the next candidate evaluation.
func (t *SessionTracker) SetOpenNotional(notional float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.session.OpenNotional = notional
}

// ResetDaily rebases starting/peak equity to the current mark and clears
// cumulative P&L, called by the scheduler at the configured session
// boundary.
func (t *SessionTracker) ResetDaily() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.session.StartingEquity = t.session.CurrentEquity
	t.session.PeakEquity = t.session.CurrentEquity
	t.session.CumulativePnL = 0
	t.session.LastResetTS = time.Now()
}
