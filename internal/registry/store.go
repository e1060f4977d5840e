package registry

import (
	"context"
	"errors"
)

// ErrDuplicate is returned by Register when (family, version) already
// exists.
var ErrDuplicate = errors.New("registry: duplicate (family, version)")

// ErrNotFound is returned when no artifact matches the request.
var ErrNotFound = errors.New("registry: artifact not found")

// Registry stores artifacts and the production pointer, one writer
// (Promotion Gate) for SetProduction.
type Registry interface {
	// Register atomically inserts artifact with a unique (family, version);
	// new rows default to staging.
	Register(ctx context.Context, artifact Artifact) (Artifact, error)

	// GetProduction returns the current production artifact for family, or
	// ErrNotFound.
	GetProduction(ctx context.Context, family string) (Artifact, error)

	// SetProduction performs the transactional swap: mark the previous
	// production artifact retired, the new one production. Must only be
	// called by the Promotion Gate.
	SetProduction(ctx context.Context, family string, id int64) error

	// ListRecent returns the newest `limit` artifacts for family.
	ListRecent(ctx context.Context, family string, limit int) ([]Artifact, error)

	// Get returns a single artifact by ID.
	Get(ctx context.Context, id int64) (Artifact, error)

	// RepairProductionConsistency keeps at most one production artifact per
	// family, retiring all but the most recently promoted. Run on startup.
	RepairProductionConsistency(ctx context.Context, family string) error
}
