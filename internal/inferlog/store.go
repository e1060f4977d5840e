package inferlog

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAlreadyRealized is returned when a Labeler tries to write a
	// realized outcome onto a row that already has one. The realized
	// column is single-write: once set it is never overwritten.
	ErrAlreadyRealized = errors.New("inferlog: entry already realized")
	ErrNotFound        = errors.New("inferlog: entry not found")
)

// Store persists Inference Log entries.
type Store interface {
	Append(ctx context.Context, e Entry) (Entry, error)

	// Unrealized returns entries with feature_close_time older than
	// minAge and realized IS NULL, oldest first, bounded by limit. The
	// Labeler uses this to find rows ready to be scored against the
	// bottom-event label rule.
	Unrealized(ctx context.Context, minAge time.Duration, limit int) ([]Entry, error)

	// MarkRealized writes the realized outcome exactly once. Returns
	// ErrAlreadyRealized if the row was already realized by a previous
	// run, making the operation safe to retry.
	MarkRealized(ctx context.Context, id int64, realized int, at time.Time) error

	Get(ctx context.Context, id int64) (Entry, error)

	// RealizedSince returns realized entries with feature_close_time at
	// or after since, newest first, bounded by limit (0 means no bound). Used by the live
	// calibration endpoint to build its sample window.
	RealizedSince(ctx context.Context, since time.Time, limit int) ([]Entry, error)
}
