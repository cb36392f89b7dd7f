package store

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
)

// MemoryKV is a non-durable KV for tests and the "memory" backend. Failures
// can be injected per key to exercise the persistence-failure paths.
type MemoryKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	fail   map[string]error
	failRd map[string]error
	writes []string
	closed bool
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		data:   make(map[string][]byte),
		fail:   make(map[string]error),
		failRd: make(map[string]error),
	}
}

// FailWrites makes every write touching key return err until cleared with
// a nil err.
func (m *MemoryKV) FailWrites(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fail, key)
		return
	}
	m.fail[key] = err
}

// FailReads makes every Get of key return err until cleared with a nil err.
func (m *MemoryKV) FailReads(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failRd, key)
		return
	}
	m.failRd[key] = err
}

// Writes returns the keys written so far, in order. Batches record each key.
func (m *MemoryKV) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.writes)
}

// Put stores raw bytes bypassing failure injection, for seeding fixtures.
func (m *MemoryKV) Put(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = slices.Clone(value)
}

// Get implements KV.
func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if err := m.failRd[key]; err != nil {
		return nil, err
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v), nil
}

// Set implements KV.
func (m *MemoryKV) Set(ctx context.Context, key string, value []byte) error {
	return m.SetBatch(ctx, map[string][]byte{key: value})
}

// SetBatch implements KV.
func (m *MemoryKV) SetBatch(_ context.Context, entries map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	keys := slices.Sorted(maps.Keys(entries))
	for _, k := range keys {
		if err := m.fail[k]; err != nil {
			return err
		}
	}
	for _, k := range keys {
		m.data[k] = slices.Clone(entries[k])
		m.writes = append(m.writes, k)
	}
	return nil
}

// Keys implements KV.
func (m *MemoryKV) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// Close implements KV.
func (m *MemoryKV) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
