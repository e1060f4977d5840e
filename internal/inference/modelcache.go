package inference

import (
	"context"
	"sync"

	"github.com/sawpanic/bottomrun/internal/apperr"
	"github.com/sawpanic/bottomrun/internal/model"
	"github.com/sawpanic/bottomrun/internal/registry"
)

// cachedModel is the immutable artifact reference readers hold for the
// duration of a tick, copy-on-generation-change per spec §5.
type cachedModel struct {
	artifactID int64
	version    int
	variant    string
	predictor  model.Predictor
	production bool
}

// ModelCache loads and caches the effective Predictor per policy,
// re-checking the registry's generation on every tick so a promotion
// is observed on the loop's very next tick.
type ModelCache struct {
	reg registry.Registry

	mu      sync.Mutex
	cached  map[string]cachedModel // family#artifact-id key -> cached
}

func NewModelCache(reg registry.Registry) *ModelCache {
	return &ModelCache{reg: reg, cached: make(map[string]cachedModel)}
}

// Effective returns the Predictor to use this tick per the configured
// policy, re-fetching from the registry every call (the registry itself
// is the generation-check source of truth; callers on an interval loop
// naturally get a fresh read each tick).
func (c *ModelCache) Effective(ctx context.Context, family string, policy Policy, pinnedVersion *int) (cachedModel, error) {
	var art registry.Artifact
	var err error
	usedProduction := false

	switch {
	case pinnedVersion != nil:
		art, err = c.findVersion(ctx, family, *pinnedVersion)
	case policy == UseLatest:
		recent, lerr := c.reg.ListRecent(ctx, family, 1)
		err = lerr
		if err == nil && len(recent) > 0 {
			art = recent[0]
		} else if err == nil {
			err = registry.ErrNotFound
		}
	default:
		art, err = c.reg.GetProduction(ctx, family)
		usedProduction = true
	}

	if err != nil {
		return cachedModel{}, apperr.New(apperr.DataAbsence, "no_model", "no model artifact available for family", err)
	}

	key := cacheKey(family, art.ID)
	c.mu.Lock()
	if cm, ok := c.cached[key]; ok {
		c.mu.Unlock()
		cm.production = usedProduction
		return cm, nil
	}
	c.mu.Unlock()

	pred, err := model.Load(art.Variant, art.Blob)
	if err != nil {
		return cachedModel{}, apperr.New(apperr.ContractViolation, "model_load_failed", "artifact blob did not decode for its variant", err)
	}

	cm := cachedModel{artifactID: art.ID, version: art.Version, variant: art.Variant, predictor: pred, production: usedProduction}
	c.mu.Lock()
	c.cached[key] = cm
	c.mu.Unlock()
	return cm, nil
}

func (c *ModelCache) findVersion(ctx context.Context, family string, version int) (registry.Artifact, error) {
	recent, err := c.reg.ListRecent(ctx, family, 1000)
	if err != nil {
		return registry.Artifact{}, err
	}
	for _, a := range recent {
		if a.Version == version {
			return a, nil
		}
	}
	return registry.Artifact{}, registry.ErrNotFound
}

func cacheKey(family string, id int64) string {
	return family + "#" + itoa64(id)
}

func itoa64(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
