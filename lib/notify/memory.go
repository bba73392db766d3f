package notify

import (
	"context"
	"sync"

	"github.com/mazen160/go-random"
)

// Memory is an in-process sink for tests and dry runs.
type Memory struct {
	mu      sync.Mutex
	pushed  []Notification
	active  map[string]Notification
}

func NewMemory() *Memory {
	return &Memory{active: map[string]Notification{}}
}

func (m *Memory) Push(ctx context.Context, notification Notification) (string, error) {
	id, err := random.String(16)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushed = append(m.pushed, notification)
	m.active[id] = notification
	return id, nil
}

func (m *Memory) Dismiss(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, id)
	return nil
}

// Pushed returns every notification ever pushed, dismissed or not.
func (m *Memory) Pushed() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Notification{}, m.pushed...)
}

// Active returns the notifications that have not been dismissed.
func (m *Memory) Active() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Notification
	for _, n := range m.active {
		out = append(out, n)
	}
	return out
}
