package features

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store, used by tests and single-instance
// deployments without Postgres configured.
type Memory struct {
	mu   sync.Mutex
	snaps map[string]Snapshot // key: symbol|interval|close_time
}

func NewMemory() *Memory {
	return &Memory{snaps: make(map[string]Snapshot)}
}

func snapKey(symbol, interval string, closeTime time.Time) string {
	return symbol + "|" + interval + "|" + closeTime.UTC().Format(time.RFC3339Nano)
}

func (m *Memory) Upsert(ctx context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[snapKey(snap.Symbol, snap.Interval, snap.CloseTime)] = snap
	return nil
}

func (m *Memory) Exists(ctx context.Context, symbol, interval string, closeTime time.Time, schemaVersion int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[snapKey(symbol, interval, closeTime)]
	return ok && snap.SchemaVersion == schemaVersion, nil
}

func (m *Memory) GetLatest(ctx context.Context, symbol, interval string) (Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest Snapshot
	found := false
	for _, s := range m.snaps {
		if s.Symbol != symbol || s.Interval != interval {
			continue
		}
		if !found || s.CloseTime.After(latest.CloseTime) {
			latest = s
			found = true
		}
	}
	return latest, found, nil
}

func (m *Memory) ListRange(ctx context.Context, symbol, interval string, from, to time.Time) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Snapshot
	for _, s := range m.snaps {
		if s.Symbol == symbol && s.Interval == interval && !s.CloseTime.Before(from) && !s.CloseTime.After(to) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CloseTime.Before(out[j].CloseTime) })
	return out, nil
}
