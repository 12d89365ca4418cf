// Package localstore is the client-local durable key-value storage used for
// session state such as the selected account. Entries are namespaced by
// identity so independent sessions stay isolated.
package localstore

import (
	"context"
	"errors"
	"sync"
)

// ErrNoEntry is returned when no value is stored under the key.
var ErrNoEntry = errors.New("localstore: no entry")

// Store persists small string values per identity.
type Store interface {
	Get(ctx context.Context, owner, key string) (string, error)
	Set(ctx context.Context, owner, key, value string) error
	Delete(ctx context.Context, owner, key string) error
}

// Memory implements Store in process memory. Used by tests.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]string
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]string)}
}

func (m *Memory) Get(ctx context.Context, owner, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[owner+"\x00"+key]
	if !ok {
		return "", ErrNoEntry
	}
	return v, nil
}

func (m *Memory) Set(ctx context.Context, owner, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[owner+"\x00"+key] = value
	return nil
}

func (m *Memory) Delete(ctx context.Context, owner, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, owner+"\x00"+key)
	return nil
}
