package blobstore

import (
	"context"
	"sync"

	"github.com/jenn-le/hivemap/handle"
)

// Memory is an in-memory, content-addressed blob store. It is used by tests
// and by flush_sync, which by contract never needs durable storage.
type Memory struct {
	mu     sync.RWMutex
	blobs  map[handle.Handle][]byte
	named  map[string][]byte
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		blobs: make(map[handle.Handle][]byte),
		named: make(map[string][]byte),
	}
}

func (m *Memory) Upload(_ context.Context, bytes []byte) (handle.Handle, error) {
	h := handle.Of(bytes)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[h]; !ok {
		stored := make([]byte, len(bytes))
		copy(stored, bytes)
		m.blobs[h] = stored
	}
	return h, nil
}

func (m *Memory) Resolve(_ context.Context, h handle.Handle) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bytes, ok := m.blobs[h]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(bytes))
	copy(out, bytes)
	return out, nil
}

func (m *Memory) PutNamed(_ context.Context, name string, bytes []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(bytes))
	copy(stored, bytes)
	m.named[name] = stored
	return nil
}

func (m *Memory) GetNamed(_ context.Context, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bytes, ok := m.named[name]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(bytes))
	copy(out, bytes)
	return out, nil
}

var (
	_ Store      = (*Memory)(nil)
	_ NamedStore = (*Memory)(nil)
)
