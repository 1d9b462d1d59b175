// Package store is the key-value persistence the annotator reads its
// vocabulary and toggles from and writes site selections to. Values are
// compact JSON text. Absence is reported with ok == false, never an error.
package store

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// Store is an asynchronous key-value store.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Memory is an in-process Store. The zero value is ready to use.
type Memory struct {
	mu sync.RWMutex
	kv map[string]string
}

// NewMemory returns a Memory seeded with kv.
func NewMemory(kv map[string]string) *Memory {
	return &Memory{kv: maps.Clone(kv)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.kv[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.kv == nil {
		m.kv = make(map[string]string)
	}
	m.kv[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.kv, key)
	return nil
}

// Keys returns the stored keys, sorted.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.kv))
}
