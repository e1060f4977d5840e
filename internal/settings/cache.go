package settings

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ApplyFunc is invoked synchronously whenever Put writes a subscribed key,
// letting owning components react (e.g. reset a streak) without polling.
// Values loaded by Refresh do not invoke it.
type ApplyFunc func(key string, raw json.RawMessage)

// Cache is a write-through in-memory cache in front of a Store, filled by
// Refresh and Put. Getters read only the cache and return their fallback
// for keys it does not hold; they never query the Store. A failed Store
// read never clears an already-cached value: the
// last successfully read value is served, matching the fallback policy
// applied uniformly across every settings-reading component.
type Cache struct {
	store Store

	mu   sync.RWMutex
	vals map[string]json.RawMessage

	subMu sync.Mutex
	subs  map[string][]ApplyFunc
}

func NewCache(store Store) *Cache {
	return &Cache{
		store: store,
		vals:  make(map[string]json.RawMessage),
		subs:  make(map[string][]ApplyFunc),
	}
}

// Refresh reloads every row from the Store into the cache. Called once at
// boot; a Store failure leaves the existing cache untouched and is logged,
// not propagated.
func (c *Cache) Refresh(ctx context.Context) {
	rows, err := c.store.List(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("settings: refresh failed, serving last-known values")
		return
	}
	c.mu.Lock()
	for _, row := range rows {
		c.vals[row.Key] = row.Value
	}
	c.mu.Unlock()
}

// Subscribe registers fn to run whenever key's cached value changes via
// Put. The apply hook runs on the caller's goroutine, synchronously.
func (c *Cache) Subscribe(key string, fn ApplyFunc) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.subs[key] = append(c.subs[key], fn)
}

// Put writes through to the Store, updates the cache, then invokes any
// subscriber apply hooks for key.
func (c *Cache) Put(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.store.Put(ctx, Setting{Key: key, Value: raw}); err != nil {
		return err
	}

	c.mu.Lock()
	c.vals[key] = raw
	c.mu.Unlock()

	c.subMu.Lock()
	hooks := append([]ApplyFunc(nil), c.subs[key]...)
	c.subMu.Unlock()
	for _, fn := range hooks {
		fn(key, raw)
	}
	return nil
}

func (c *Cache) raw(key string) (json.RawMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vals[key]
	return v, ok
}

// GetFloat returns the cached float value for key, or fallback if unset
// or undecodable.
func (c *Cache) GetFloat(ctx context.Context, key string, fallback float64) (float64, error) {
	raw, ok := c.raw(key)
	if !ok {
		return fallback, nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return fallback, err
	}
	return v, nil
}

// GetInt returns the cached int value for key, or fallback if unset or
// undecodable.
func (c *Cache) GetInt(ctx context.Context, key string, fallback int) (int, error) {
	raw, ok := c.raw(key)
	if !ok {
		return fallback, nil
	}
	var v int
	if err := json.Unmarshal(raw, &v); err != nil {
		return fallback, err
	}
	return v, nil
}

// GetBool returns the cached bool value for key, or fallback if unset or
// undecodable.
func (c *Cache) GetBool(ctx context.Context, key string, fallback bool) (bool, error) {
	raw, ok := c.raw(key)
	if !ok {
		return fallback, nil
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return fallback, err
	}
	return v, nil
}

// GetString returns the cached string value for key, or fallback if
// unset or undecodable.
func (c *Cache) GetString(ctx context.Context, key string, fallback string) (string, error) {
	raw, ok := c.raw(key)
	if !ok {
		return fallback, nil
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return fallback, err
	}
	return v, nil
}

// GetDurationSeconds returns the cached value for key interpreted as seconds, or
// fallback if unset or undecodable.
func (c *Cache) GetDurationSeconds(ctx context.Context, key string, fallback time.Duration) (time.Duration, error) {
	secs, err := c.GetFloat(ctx, key, fallback.Seconds())
	if err != nil {
		return fallback, err
	}
	return time.Duration(secs * float64(time.Second)), nil
}
