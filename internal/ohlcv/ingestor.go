package ohlcv

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// HistoricalSource fetches closed bars for a gap repair, e.g. a REST klines
// endpoint.
type HistoricalSource interface {
	FetchRange(ctx context.Context, symbol, interval string, from, to time.Time) ([]Bar, error)
}

// Config controls partial-bar cadence and watchdog behavior.
type Config struct {
	PartialMinPeriod time.Duration // default 500ms
	WatchdogGrace    time.Duration // default 2s past close
}

func DefaultConfig() Config {
	return Config{
		PartialMinPeriod: 500 * time.Millisecond,
		WatchdogGrace:    2 * time.Second,
	}
}

type partialBucket struct {
	bar        Bar
	lastEmit   time.Time
	lastTickAt time.Time
}

// Ingestor maintains one in-memory partial bucket per (symbol, interval) and
// writes closed bars through BarStore. Events are delivered via Events().
type Ingestor struct {
	cfg      Config
	bars     BarStore
	gaps     GapStore
	hist     HistoricalSource
	interval string

	mu       sync.Mutex
	partials map[string]*partialBucket // key: symbol

	events chan Event
}

func New(cfg Config, bars BarStore, gaps GapStore, hist HistoricalSource, interval string) *Ingestor {
	return &Ingestor{
		cfg:      cfg,
		bars:     bars,
		gaps:     gaps,
		hist:     hist,
		interval: interval,
		partials: make(map[string]*partialBucket),
		events:   make(chan Event, 256),
	}
}

// Events returns the channel of emitted lifecycle events. Readers should
// drain it continuously; it is buffered but not infinite.
func (ig *Ingestor) Events() <-chan Event { return ig.events }

func (ig *Ingestor) emit(ev Event) {
	select {
	case ig.events <- ev:
	default:
		log.Warn().Str("kind", string(ev.Kind)).Msg("ohlcv event channel full, dropping event")
	}
}

// OnTick merges tick into the current partial bucket for its symbol,
// emitting partial_update no more often than cfg.PartialMinPeriod.
func (ig *Ingestor) OnTick(tick Tick) {
	ig.mu.Lock()
	defer ig.mu.Unlock()

	openTime := OpenTimeFor(tick.TS, ig.interval)
	b, ok := ig.partials[tick.Symbol]
	if !ok || !b.bar.OpenTime.Equal(openTime) {
		b = &partialBucket{bar: Bar{
			Symbol:    tick.Symbol,
			Interval:  ig.interval,
			OpenTime:  openTime,
			CloseTime: CloseTimeFor(openTime, ig.interval),
			Open:      tick.Price,
			High:      tick.Price,
			Low:       tick.Price,
			Close:     tick.Price,
		}}
		ig.partials[tick.Symbol] = b
	}

	if tick.Price > b.bar.High {
		b.bar.High = tick.Price
	}
	if tick.Price < b.bar.Low {
		b.bar.Low = tick.Price
	}
	b.bar.Close = tick.Price
	b.bar.Volume += tick.Qty
	b.bar.TradeCount++
	b.lastTickAt = tick.TS

	if time.Since(b.lastEmit) >= ig.cfg.PartialMinPeriod {
		b.lastEmit = time.Now()
		ig.emit(Event{Kind: EventPartialUpdate, Bar: b.bar, TS: time.Now()})
	}
}

// OnClose writes bar transactionally and emits partial_close then append.
// Idempotent: an identical replay of the same open_time produces no event.
func (ig *Ingestor) OnClose(ctx context.Context, bar Bar) error {
	bar.IsClosed = true

	changed, err := ig.bars.Upsert(ctx, bar)
	if err != nil {
		return err
	}

	ig.mu.Lock()
	delete(ig.partials, bar.Symbol)
	ig.mu.Unlock()

	if !changed {
		return nil
	}

	now := time.Now()
	latencyMs := now.Sub(bar.OpenTime.Add(IntervalDuration(bar.Interval))).Milliseconds()
	ig.emit(Event{Kind: EventPartialClose, Bar: bar, LatencyMs: latencyMs, TS: now})
	ig.emit(Event{Kind: EventAppend, Bar: bar, TS: now})
	return nil
}

// Repair applies a corrected bar for an already-closed open_time, emitting a
// repair event. Used by repairGap and by late-arriving exchange corrections.
func (ig *Ingestor) Repair(ctx context.Context, bar Bar) error {
	bar.IsClosed = true
	changed, err := ig.bars.Upsert(ctx, bar)
	if err != nil {
		return err
	}
	if changed {
		ig.emit(Event{Kind: EventRepair, Bar: bar, TS: time.Now()})
	}
	return nil
}

// Watchdog force-closes any partial that has outlived interval+grace without
// a natural close, using its last known values.
func (ig *Ingestor) Watchdog(ctx context.Context, now time.Time) error {
	ig.mu.Lock()
	stale := make([]partialBucket, 0)
	for symbol, b := range ig.partials {
		deadline := b.bar.OpenTime.Add(IntervalDuration(ig.interval)).Add(ig.cfg.WatchdogGrace)
		if now.After(deadline) {
			stale = append(stale, *b)
			delete(ig.partials, symbol)
		}
	}
	ig.mu.Unlock()

	for _, b := range stale {
		bar := b.bar
		bar.IsClosed = true
		if _, err := ig.bars.Upsert(ctx, bar); err != nil {
			return err
		}
		ig.emit(Event{Kind: EventForcedClose, Bar: bar, TS: now})
		ig.emit(Event{Kind: EventAppend, Bar: bar, TS: now})
		log.Warn().Str("symbol", bar.Symbol).Time("open_time", bar.OpenTime).
			Msg("partial bar force-closed by watchdog")
	}
	return nil
}

// PartialSnapshot returns a copy of the current in-flight bar for symbol, if
// any. Readers never see the Ingestor's live bucket.
func (ig *Ingestor) PartialSnapshot(symbol string) (Bar, bool) {
	ig.mu.Lock()
	defer ig.mu.Unlock()
	b, ok := ig.partials[symbol]
	if !ok {
		return Bar{}, false
	}
	cp := b.bar
	return cp, true
}

// DetectGaps scans the latest lookbackMinutes of bars for missing open_times
// and produces one Gap Segment per missing run, deduplicated against
// existing open segments.
func (ig *Ingestor) DetectGaps(ctx context.Context, symbol string, lookbackMinutes int) ([]GapSegment, error) {
	n := lookbackMinutes
	bars, err := ig.bars.ListRecent(ctx, symbol, ig.interval, n)
	if err != nil {
		return nil, err
	}
	if len(bars) < 2 {
		return nil, nil
	}

	// ListRecent is newest-first; walk oldest-to-newest to find runs.
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}

	existing, err := ig.gaps.ListOpen(ctx, symbol, ig.interval)
	if err != nil {
		return nil, err
	}
	seen := make(map[[2]time.Time]bool, len(existing))
	for _, s := range existing {
		from, to := s.Key()
		seen[[2]time.Time{from, to}] = true
	}

	step := IntervalDuration(ig.interval)
	var segments []GapSegment
	for i := 1; i < len(bars); i++ {
		expected := bars[i-1].OpenTime.Add(step)
		if bars[i].OpenTime.Equal(expected) {
			continue
		}
		if bars[i].OpenTime.Before(expected) {
			continue // defensive: out-of-order, not a gap
		}
		missing := int(bars[i].OpenTime.Sub(expected) / step)
		seg := GapSegment{
			Symbol:       symbol,
			Interval:     ig.interval,
			FromTS:       expected,
			ToTS:         bars[i].OpenTime.Add(-step),
			MissingCount: missing,
			State:        GapOpen,
		}
		key := [2]time.Time{seg.FromTS, seg.ToTS}
		if seen[key] {
			continue
		}
		if err := ig.gaps.Upsert(ctx, seg); err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// RepairGap fetches the missing bars for seg from the historical source and
// applies them as repair events, transitioning the segment to closed once
// fully filled.
func (ig *Ingestor) RepairGap(ctx context.Context, seg GapSegment) error {
	seg.State = GapRepairing
	if err := ig.gaps.Upsert(ctx, seg); err != nil {
		return err
	}

	bars, err := ig.hist.FetchRange(ctx, seg.Symbol, seg.Interval, seg.FromTS, seg.ToTS)
	if err != nil {
		return err
	}

	step := IntervalDuration(seg.Interval)
	expectedCount := int(seg.ToTS.Sub(seg.FromTS)/step) + 1
	for _, bar := range bars {
		if err := ig.Repair(ctx, bar); err != nil {
			return err
		}
	}

	if len(bars) >= expectedCount {
		seg.State = GapClosed
	}
	return ig.gaps.Upsert(ctx, seg)
}
