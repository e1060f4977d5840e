// Package ohlcv consumes a realtime kline stream and exposes closed bars to
// the rest of the pipeline: partial-bar lifecycle, gap detection and repair.
package ohlcv

import "time"

// Bar is a single closed (or in-flight partial) OHLCV candle.
type Bar struct {
	Symbol     string    `json:"symbol" db:"symbol"`
	Interval   string    `json:"interval" db:"interval"`
	OpenTime   time.Time `json:"open_time" db:"open_time"`
	CloseTime  time.Time `json:"close_time" db:"close_time"`
	Open       float64   `json:"o" db:"o"`
	High       float64   `json:"h" db:"h"`
	Low        float64   `json:"l" db:"l"`
	Close      float64   `json:"c" db:"c"`
	Volume     float64   `json:"v" db:"v"`
	TradeCount int64     `json:"trade_count" db:"trade_count"`
	IsClosed   bool      `json:"is_closed" db:"is_closed"`
}

// Equal reports whether two bars carry identical OHLCV content for the same
// key (symbol, interval, open_time) — used for the idempotent-replay rule.
func (b Bar) Equal(other Bar) bool {
	return b.Symbol == other.Symbol &&
		b.Interval == other.Interval &&
		b.OpenTime.Equal(other.OpenTime) &&
		b.Open == other.Open &&
		b.High == other.High &&
		b.Low == other.Low &&
		b.Close == other.Close &&
		b.Volume == other.Volume &&
		b.TradeCount == other.TradeCount
}

// GapState is the lifecycle state of a Gap Segment.
type GapState string

const (
	GapOpen      GapState = "open"
	GapRepairing GapState = "repairing"
	GapClosed    GapState = "closed"
)

// GapSegment is a run of missing open_times in the bar table.
type GapSegment struct {
	Symbol       string    `json:"symbol" db:"symbol"`
	Interval     string    `json:"interval" db:"interval"`
	FromTS       time.Time `json:"from_ts" db:"from_ts"`
	ToTS         time.Time `json:"to_ts" db:"to_ts"`
	MissingCount int       `json:"missing_count" db:"missing_count"`
	State        GapState  `json:"state" db:"state"`
}

// Key returns the dedupe key for a gap segment.
func (g GapSegment) Key() (time.Time, time.Time) { return g.FromTS, g.ToTS }

// Tick is a single trade/quote update from the exchange stream, merged into
// the in-flight partial bucket.
type Tick struct {
	Symbol string
	Price  float64
	Qty    float64
	TS     time.Time
}

// EventKind enumerates the ingestor's emitted event types.
type EventKind string

const (
	EventPartialUpdate EventKind = "partial_update"
	EventPartialClose  EventKind = "partial_close"
	EventAppend        EventKind = "append"
	EventRepair        EventKind = "repair"
	EventForcedClose   EventKind = "forced_close"
)

// Event is published by the Ingestor for every state transition.
type Event struct {
	Kind      EventKind
	Bar       Bar
	LatencyMs int64
	TS        time.Time
}

// IntervalDuration maps the small set of supported interval strings to a
// time.Duration. Only 1-minute bars are in scope for this spec but the
// ingestor is written generically.
func IntervalDuration(interval string) time.Duration {
	switch interval {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "1h":
		return time.Hour
	default:
		return time.Minute
	}
}

// OpenTimeFor truncates ts down to the bucket boundary for interval.
func OpenTimeFor(ts time.Time, interval string) time.Time {
	d := IntervalDuration(interval)
	return ts.Truncate(d)
}

// CloseTimeFor returns the invariant close_time = open_time + interval - 1ms.
func CloseTimeFor(openTime time.Time, interval string) time.Time {
	return openTime.Add(IntervalDuration(interval) - time.Millisecond)
}
