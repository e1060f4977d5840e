package promotion

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store for tests and single-instance deployments.
type Memory struct {
	mu     sync.Mutex
	nextID int64
	events []Event
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(ctx context.Context, e Event) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	e.ID = m.nextID
	e.CreatedAt = time.Now()
	m.events = append(m.events, e)
	return e, nil
}

func (m *Memory) LastPromotion(ctx context.Context, family string) (Event, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].Decision == Promoted {
			return m.events[i], true, nil
		}
	}
	return Event{}, false, nil
}
