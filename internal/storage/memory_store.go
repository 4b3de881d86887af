package storage

import (
	"sync"
	"sync/atomic"
)

// memoryStore keeps every body on the Go heap.
type memoryStore struct {
	closed atomic.Bool
}

// NewMemoryStore returns a store that keeps bodies in memory.
func NewMemoryStore() BodyStore {
	return &memoryStore{}
}

func (m *memoryStore) Put(_ string, data []byte) (Body, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	return newMemoryBody(data), nil
}

func (m *memoryStore) Close() error {
	m.closed.Store(true)
	return nil
}

type memoryBody struct {
	mu       sync.RWMutex
	data     []byte
	length   int64
	released bool
}

func newMemoryBody(data []byte) *memoryBody {
	return &memoryBody{data: data, length: int64(len(data))}
}

func (b *memoryBody) Len() int64 { return b.length }

func (b *memoryBody) ReadAt(p []byte, off int64) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.released {
		return 0, ErrReleased
	}
	return readAt(b.data, p, off)
}

func (b *memoryBody) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.released = true
	b.data = nil
	return nil
}
