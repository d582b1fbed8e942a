package storage

import (
	"context"
	"sync"
)

// Memory keeps slots in process memory. Contents are lost on restart.
type Memory struct {
	mu    sync.RWMutex
	items map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string][]byte)}
}

func (m *Memory) Read(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.items[key]
	if !ok {
		return nil, ErrSlotEmpty
	}
	return append([]byte(nil), raw...), nil
}

func (m *Memory) Write(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	m.items[key] = append([]byte(nil), data...)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}
