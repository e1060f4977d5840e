package trading

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store for tests and single-instance deployments.
type Memory struct {
	mu        sync.Mutex
	nextSigID int64
	signals   map[int64]Signal
	positions map[string]Position
}

func NewMemory() *Memory {
	return &Memory{signals: make(map[int64]Signal), positions: make(map[string]Position)}
}

func (m *Memory) SaveSignal(ctx context.Context, s Signal) (Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextSigID++
	s.ID = m.nextSigID
	if s.CreatedTS.IsZero() {
		s.CreatedTS = time.Now()
	}
	m.signals[s.ID] = s
	return s, nil
}

func (m *Memory) UpdateSignal(ctx context.Context, s Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.signals[s.ID] = s
	return nil
}

func (m *Memory) GetPosition(ctx context.Context, symbol string) (Position, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.positions[symbol]
	if !ok {
		return Position{Symbol: symbol, Status: StatusFlat}, false, nil
	}
	return p, true, nil
}

func (m *Memory) SavePosition(ctx context.Context, p Position) (Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == 0 {
		p.ID = int64(len(m.positions) + 1)
	}
	m.positions[p.Symbol] = p
	return p, nil
}
