// Package handles issues opaque, generation-stamped handles for values owned
// by a Registry.
//
// A handle packs a slot index and the slot's generation into one uint64:
//
//	handle = generation<<32 | (index + 1)
//
// Releasing a handle bumps its slot's generation, so a dangling handle never
// resolves to a later occupant of the same slot. Zero is never issued.
package handles

import (
	"errors"
	"math"
	"sync"
)

// Handle identifies one live value in a Registry.
type Handle uint64

// Invalid is the zero handle; it never refers to a value.
const Invalid Handle = 0

// ErrClosed is returned by Allocate once the registry has been closed.
var ErrClosed = errors.New("handle registry closed")

// ErrExhausted is returned when every addressable slot is live.
var ErrExhausted = errors.New("handle registry exhausted")

const indexBits = 32

func pack(index, gen uint32) Handle {
	return Handle(uint64(gen)<<indexBits | (uint64(index) + 1))
}

func (h Handle) unpack() (index, gen uint32, ok bool) {
	low := uint32(h)
	if low == 0 {
		return 0, 0, false
	}
	return low - 1, uint32(h >> indexBits), true
}

type slot[T any] struct {
	gen   uint32
	live  bool
	value T
}

// Registry maps handles to values. It is safe for concurrent use.
type Registry[T any] struct {
	mu     sync.RWMutex
	slots  []slot[T]
	free   []uint32
	live   int
	closed bool
}

// New returns an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{}
}

// Allocate stores v and returns a handle distinct from every live handle.
func (r *Registry[T]) Allocate(v T) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return Invalid, ErrClosed
	}

	var idx uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		if uint64(len(r.slots)) >= math.MaxUint32 {
			return Invalid, ErrExhausted
		}
		idx = uint32(len(r.slots))
		r.slots = append(r.slots, slot[T]{gen: 1})
	}

	s := &r.slots[idx]
	s.live = true
	s.value = v
	r.live++
	return pack(idx, s.gen), nil
}

// Resolve returns the value behind h, or false if h is unknown, released or
// the registry has been closed.
func (r *Registry[T]) Resolve(h Handle) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.lookup(h)
	if s == nil {
		var zero T
		return zero, false
	}
	return s.value, true
}

// Release removes h and returns the value it referred to. Releasing an
// unknown or already released handle reports false and changes nothing.
func (r *Registry[T]) Release(h Handle) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	s := r.lookup(h)
	if s == nil {
		return zero, false
	}

	v := s.value
	s.value = zero
	s.live = false
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	idx, _, _ := h.unpack()
	r.free = append(r.free, idx)
	r.live--
	return v, true
}

// Close invalidates every live handle, refuses further allocations and hands
// back the values that were live so the caller can dispose of them. Closing a
// closed registry returns nil.
func (r *Registry[T]) Close() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	out := make([]T, 0, r.live)
	for i := range r.slots {
		if r.slots[i].live {
			out = append(out, r.slots[i].value)
		}
	}
	r.slots = nil
	r.free = nil
	r.live = 0
	return out
}

// Len reports the number of live handles.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.live
}

func (r *Registry[T]) lookup(h Handle) *slot[T] {
	idx, gen, ok := h.unpack()
	if !ok || int(idx) >= len(r.slots) {
		return nil
	}
	s := &r.slots[idx]
	if !s.live || s.gen != gen {
		return nil
	}
	return s
}
