package storage

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Package storage holds response bodies on behalf of the engine.

// Body is one stored, immutable response body.
type Body interface {
	io.ReaderAt
	Len() int64
	// Release frees the backing storage. Reads after Release fail with
	// ErrReleased.
	Release() error
}

// BodyStore accepts bodies and hands back readable Body values.
type BodyStore interface {
	Put(id string, data []byte) (Body, error)
	Close() error
}

// Options controls how concrete stores keep bodies.
type Options struct {
	// SpoolThreshold is the body size at or above which the bbolt store
	// writes the body to disk instead of keeping it in memory. Zero or less
	// selects the 1 MiB default.
	SpoolThreshold int64
}

const (
	TypeMemory = "memory"
	TypeBBolt  = "bbolt"

	defaultSpoolThreshold = 1 << 20
)

var (
	// ErrReleased is returned when reading a body that has been released.
	ErrReleased = errors.New("body released")
	// ErrClosed is returned by Put after the store has been closed.
	ErrClosed = errors.New("body store closed")
)

// NewBodyStore creates the configured storage backend.
func NewBodyStore(typ, path string, opts Options) (BodyStore, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", TypeMemory:
		return NewMemoryStore(), nil
	case TypeBBolt:
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.SpoolThreshold <= 0 {
		opts.SpoolThreshold = defaultSpoolThreshold
	}
	return opts
}

// readAt implements io.ReaderAt over an in-memory slice.
func readAt(data, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if off >= int64(len(data)) {
		return 0, io.EOF
	}
	n := copy(p, data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
