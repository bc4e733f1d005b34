package cache

import (
	"context"
	"sync"
	"time"

	"poolwatch/internal/provider"
)

type entry struct {
	expiresAt time.Time
	payload   provider.SharePayload
}

// Memory is an in-process Store. MaxItems bounds its size; zero means no bound.
type Memory struct {
	MaxItems int

	mu    sync.RWMutex
	items map[string]entry
}

// NewMemory returns an empty Memory store.
func NewMemory(maxItems int) *Memory {
	return &Memory{MaxItems: maxItems, items: make(map[string]entry)}
}

func (m *Memory) Get(_ context.Context, key string) (provider.SharePayload, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.items[key]
	if !ok || !time.Now().Before(e.expiresAt) {
		return provider.SharePayload{}, false, nil
	}
	return e.payload, true, nil
}

func (m *Memory) Set(_ context.Context, key string, p provider.SharePayload, ttl time.Duration) error {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = make(map[string]entry)
	}
	m.items[key] = entry{expiresAt: now.Add(ttl), payload: p}

	if m.MaxItems > 0 && len(m.items) > m.MaxItems {
		// expired first, then arbitrary
		for k, v := range m.items {
			if len(m.items) <= m.MaxItems {
				break
			}
			if now.After(v.expiresAt) {
				delete(m.items, k)
			}
		}
		for k := range m.items {
			if len(m.items) <= m.MaxItems {
				break
			}
			if k != key {
				delete(m.items, k)
			}
		}
	}
	return nil
}

// Len returns the number of entries, including expired ones not yet evicted.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
