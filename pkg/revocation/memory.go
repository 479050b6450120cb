package revocation

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local registry. Entries are never evicted, so it grows
// with every logout for the lifetime of the process and is not shared
// between instances.
type Memory struct {
	mu      sync.RWMutex
	revoked map[string]struct{}
}

var _ Registry = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{revoked: make(map[string]struct{})}
}

func (m *Memory) Revoke(_ context.Context, token string, _ time.Time) error {
	m.mu.Lock()
	m.revoked[token] = struct{}{}
	m.mu.Unlock()
	return nil
}

func (m *Memory) IsRevoked(_ context.Context, token string) (bool, error) {
	m.mu.RLock()
	_, ok := m.revoked[token]
	m.mu.RUnlock()
	return ok, nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.revoked)
}
