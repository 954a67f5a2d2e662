// Package store persists JSON documents under fixed keys.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Keys written by the stats service.
const (
	KeySummary   = "summary"
	KeyCountries = "countries"
	KeyHistory   = "history"
	KeyNews      = "news"
)

// Store is a key-value store of JSON documents. Set overwrites unconditionally.
type Store interface {
	Set(ctx context.Context, key string, value any) error
	// Get decodes the value stored under key into out and reports whether
	// the key existed.
	Get(ctx context.Context, key string, out any) (bool, error)
	// UpdatedAt returns when key was last written.
	UpdatedAt(ctx context.Context, key string) (time.Time, bool, error)
}

// Memory is an in-process Store.
type Memory struct {
	mu      sync.RWMutex
	data    map[string][]byte
	written map[string]time.Time
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{data: map[string][]byte{}, written: map[string]time.Time{}, now: time.Now}
}

func (m *Memory) Set(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: encode %q: %w", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	m.written[key] = m.now()
	return nil
}

func (m *Memory) UpdatedAt(_ context.Context, key string) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	at, ok := m.written[key]
	return at, ok, nil
}

func (m *Memory) Get(_ context.Context, key string, out any) (bool, error) {
	m.mu.RLock()
	raw, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("store: decode %q: %w", key, err)
	}
	return true, nil
}
