package session

import (
	"context"
	"sync"
)

// MemoryTier is the session-scoped tier. It lives and dies with the process.
type MemoryTier struct {
	mu    sync.RWMutex
	items map[string]Snapshot
}

func NewMemoryTier() *MemoryTier {
	return &MemoryTier{items: make(map[string]Snapshot)}
}

func (m *MemoryTier) Load(_ context.Context, clientID string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.items[clientID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (m *MemoryTier) Save(_ context.Context, clientID string, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap.Remembered = false
	m.items[clientID] = snap
	return nil
}

func (m *MemoryTier) Clear(_ context.Context, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, clientID)
	return nil
}
