package handles

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAllocateResolveRelease(t *testing.T) {
	reg := New[string]()

	h, err := reg.Allocate("hello")
	require.NoError(t, err)
	assert.NotEqual(t, Invalid, h)

	v, ok := reg.Resolve(h)
	require.True(t, ok)
	assert.Equal(t, "hello", v)
	assert.Equal(t, 1, reg.Len())

	v, ok = reg.Release(h)
	require.True(t, ok)
	assert.Equal(t, "hello", v)

	_, ok = reg.Resolve(h)
	assert.False(t, ok, "released handle must not resolve")

	_, ok = reg.Release(h)
	assert.False(t, ok, "second release must be rejected")
	assert.Equal(t, 0, reg.Len())
}

func TestRegistryStaleHandleAfterSlotReuse(t *testing.T) {
	reg := New[int]()

	first, err := reg.Allocate(1)
	require.NoError(t, err)
	_, ok := reg.Release(first)
	require.True(t, ok)

	second, err := reg.Allocate(2)
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "reused slot must carry a new generation")

	_, ok = reg.Resolve(first)
	assert.False(t, ok)
	_, ok = reg.Release(first)
	assert.False(t, ok)

	v, ok := reg.Resolve(second)
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestRegistryRejectsUnknownHandles(t *testing.T) {
	reg := New[int]()
	_, err := reg.Allocate(7)
	require.NoError(t, err)

	for _, h := range []Handle{Invalid, Handle(99), pack(0, 42)} {
		_, ok := reg.Resolve(h)
		assert.False(t, ok, "handle %d", h)
	}
}

func TestRegistryCloseInvalidatesEverything(t *testing.T) {
	reg := New[string]()
	a, err := reg.Allocate("a")
	require.NoError(t, err)
	b, err := reg.Allocate("b")
	require.NoError(t, err)
	_, ok := reg.Release(b)
	require.True(t, ok)
	c, err := reg.Allocate("c")
	require.NoError(t, err)

	values := reg.Close()
	assert.ElementsMatch(t, []string{"a", "c"}, values)
	assert.Equal(t, 0, reg.Len())

	for _, h := range []Handle{a, b, c} {
		_, ok := reg.Resolve(h)
		assert.False(t, ok)
		_, ok = reg.Release(h)
		assert.False(t, ok)
	}

	_, err = reg.Allocate("d")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Nil(t, reg.Close(), "second close is a no-op")
}

func TestRegistryConcurrentAllocateIsUnique(t *testing.T) {
	reg := New[int]()
	const workers = 16
	const perWorker = 200

	var (
		mu   sync.Mutex
		seen = make(map[Handle]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				h, err := reg.Allocate(w*perWorker + i)
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				_, dup := seen[h]
				seen[h] = struct{}{}
				mu.Unlock()
				assert.False(t, dup, "duplicate handle %d", h)

				// Free every other handle so slots get recycled under contention.
				if i%2 == 0 {
					_, ok := reg.Release(h)
					assert.True(t, ok)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker/2, reg.Len())
}

func TestRegistryResolveRacingRelease(t *testing.T) {
	reg := New[*int]()
	value := 42
	h, err := reg.Allocate(&value)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if v, ok := reg.Resolve(h); ok {
					assert.Equal(t, 42, *v)
				}
			}
		}()
	}
	_, ok := reg.Release(h)
	assert.True(t, ok)
	wg.Wait()
}
