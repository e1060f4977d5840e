package ohlcv

import (
	"context"
	"time"
)

// BarStore persists closed bars transactionally. Only is_closed=true bars
// are durable; the in-flight partial never reaches the store.
type BarStore interface {
	// Upsert writes bar, replacing any existing row for the same
	// (symbol, interval, open_time) only if content differs. changed=false
	// means the existing row was byte-identical (no-op, no event fires).
	Upsert(ctx context.Context, bar Bar) (changed bool, err error)

	// ListRecent returns the last n closed bars for (symbol, interval),
	// newest-first.
	ListRecent(ctx context.Context, symbol, interval string, n int) ([]Bar, error)

	// ListRange returns closed bars with open_time in [from, to], ordered
	// ascending by open_time.
	ListRange(ctx context.Context, symbol, interval string, from, to time.Time) ([]Bar, error)

	// Earliest returns the oldest closed bar retained for (symbol,
	// interval), if any. Used by GET /delta to reject a since earlier
	// than what is actually available.
	Earliest(ctx context.Context, symbol, interval string) (Bar, bool, error)
}

// GapStore persists gap segments.
type GapStore interface {
	Upsert(ctx context.Context, seg GapSegment) error
	ListOpen(ctx context.Context, symbol, interval string) ([]GapSegment, error)
}
