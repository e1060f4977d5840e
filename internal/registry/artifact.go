// Package registry stores Model Artifacts and the single production pointer
// per family.
package registry

import (
	"time"

	"github.com/sawpanic/bottomrun/internal/model"
)

// Status is the artifact lifecycle state.
type Status string

const (
	StatusStaging    Status = "staging"
	StatusProduction Status = "production"
	StatusRetired    Status = "retired"
)

// Artifact is a Model Artifact entity.
type Artifact struct {
	ID        int64          `json:"id" db:"id"`
	Family    string         `json:"family" db:"family"`
	Version   int            `json:"version" db:"version"`
	Variant   string         `json:"variant" db:"variant"`
	Blob      model.Blob     `json:"-" db:"-"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	Status    Status         `json:"status" db:"status"`
	Metrics   model.Metrics  `json:"metrics" db:"-"`
	PromotedAt *time.Time    `json:"promoted_at,omitempty" db:"promoted_at"`
}
