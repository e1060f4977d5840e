package settings

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store used by tests and single-instance
// deployments without Postgres configured.
type Memory struct {
	mu   sync.Mutex
	rows map[string]Setting
}

func NewMemory() *Memory {
	return &Memory{rows: make(map[string]Setting)}
}

func (m *Memory) Get(ctx context.Context, key string) (Setting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[key]
	if !ok {
		return Setting{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) Put(ctx context.Context, s Setting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.UpdatedAt = time.Now()
	m.rows[s.Key] = s
	return nil
}

func (m *Memory) List(ctx context.Context) ([]Setting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Setting, 0, len(m.rows))
	for _, s := range m.rows {
		out = append(out, s)
	}
	return out, nil
}
