package ohlcv

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process BarStore and GapStore, used by tests and
// single-instance deployments without Postgres configured.
type Memory struct {
	mu   sync.Mutex
	bars map[string]Bar          // key: symbol|interval|open_time
	gaps map[[2]time.Time]GapSegment
}

func NewMemory() *Memory {
	return &Memory{bars: make(map[string]Bar), gaps: make(map[[2]time.Time]GapSegment)}
}

func barKey(symbol, interval string, openTime time.Time) string {
	return symbol + "|" + interval + "|" + openTime.UTC().Format(time.RFC3339Nano)
}

func (m *Memory) Upsert(ctx context.Context, bar Bar) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := barKey(bar.Symbol, bar.Interval, bar.OpenTime)
	existing, ok := m.bars[k]
	if ok && existing.Equal(bar) {
		return false, nil
	}
	m.bars[k] = bar
	return true, nil
}

func (m *Memory) ListRecent(ctx context.Context, symbol, interval string, n int) ([]Bar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var all []Bar
	for _, b := range m.bars {
		if b.Symbol == symbol && b.Interval == interval {
			all = append(all, b)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].OpenTime.After(all[j].OpenTime) })
	if len(all) > n {
		all = all[:n]
	}
	return all, nil
}

func (m *Memory) ListRange(ctx context.Context, symbol, interval string, from, to time.Time) ([]Bar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var all []Bar
	for _, b := range m.bars {
		if b.Symbol == symbol && b.Interval == interval && !b.OpenTime.Before(from) && !b.OpenTime.After(to) {
			all = append(all, b)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].OpenTime.Before(all[j].OpenTime) })
	return all, nil
}

func (m *Memory) Earliest(ctx context.Context, symbol, interval string) (Bar, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var earliest Bar
	found := false
	for _, b := range m.bars {
		if b.Symbol != symbol || b.Interval != interval {
			continue
		}
		if !found || b.OpenTime.Before(earliest.OpenTime) {
			earliest = b
			found = true
		}
	}
	return earliest, found, nil
}

func (m *Memory) GapUpsert(ctx context.Context, seg GapSegment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gaps[seg.Key()] = seg
	return nil
}

func (m *Memory) GapListOpen(ctx context.Context, symbol, interval string) ([]GapSegment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []GapSegment
	for _, s := range m.gaps {
		if s.Symbol == symbol && s.Interval == interval && s.State == GapOpen {
			out = append(out, s)
		}
	}
	return out, nil
}

// GapView adapts Memory's gap methods to the GapStore interface without
// colliding Upsert/ListOpen method names with BarStore's.
type GapView struct{ m *Memory }

func (m *Memory) Gaps() GapStore { return GapView{m: m} }

func (g GapView) Upsert(ctx context.Context, seg GapSegment) error { return g.m.GapUpsert(ctx, seg) }
func (g GapView) ListOpen(ctx context.Context, symbol, interval string) ([]GapSegment, error) {
	return g.m.GapListOpen(ctx, symbol, interval)
}
