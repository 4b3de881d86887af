package engine

import (
	"errors"
	"io"
	"sync"

	"github.com/samvad-hq/httpbridge/internal/storage"
)

// response is the record behind one handle. The body never changes; mu
// serializes the cursor and release against concurrent reads.
type response struct {
	id     string
	status int
	body   storage.Body

	mu       sync.Mutex
	cursor   int64
	released bool
}

var errReleased = errors.New("response released")

func newResponse(id string, status int, body storage.Body) *response {
	return &response{id: id, status: status, body: body}
}

// next copies the bytes after the cursor into buf and advances it.
func (r *response) next(buf []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return 0, errReleased
	}
	n, err := r.readAt(buf, r.cursor)
	r.cursor += int64(n)
	return n, err
}

// at copies from an explicit offset without touching the cursor.
func (r *response) at(buf []byte, off int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return 0, errReleased
	}
	return r.readAt(buf, off)
}

func (r *response) readAt(buf []byte, off int64) (int, error) {
	if off >= r.body.Len() {
		return 0, nil
	}
	n, err := r.body.ReadAt(buf, off)
	if errors.Is(err, io.EOF) {
		err = nil
	}
	if errors.Is(err, storage.ErrReleased) {
		return 0, errReleased
	}
	return n, err
}

// release frees the body once. It waits for a read holding mu to finish.
func (r *response) release() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return nil
	}
	r.released = true
	return r.body.Release()
}
