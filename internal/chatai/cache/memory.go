package cache

import (
	"context"
	"slices"
	"sync"
	"time"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// memoryBackend keeps entries in a map for the lifetime of the process.
type memoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func newMemoryBackend(now func() time.Time) *memoryBackend {
	if now == nil {
		now = time.Now
	}
	return &memoryBackend{
		entries: make(map[string]memoryEntry),
		now:     now,
	}
}

func (m *memoryBackend) get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.entries[key]
	if !exists || !m.now().Before(entry.expiresAt) {
		return nil, false, nil
	}
	return slices.Clone(entry.data), true, nil
}

func (m *memoryBackend) set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry{
		data:      slices.Clone(val),
		expiresAt: m.now().Add(ttl),
	}
	return nil
}

func (m *memoryBackend) close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]memoryEntry)
	return nil
}
