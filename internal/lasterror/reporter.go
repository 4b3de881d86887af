// Package lasterror holds the "last error" slot read by foreign callers that
// cannot receive error values.
//
// The slot is shared by every caller of one engine: concurrent failures
// overwrite each other, and a caller that needs the message for its own
// failure has to read it right after the failing call returns. The
// generation counter lets Go callers tell whether the message they see was
// produced after a given point.
package lasterror

import (
	"sync"
	"unicode/utf8"
)

// Reporter is a single overwrite-on-failure message slot.
type Reporter struct {
	mu  sync.RWMutex
	msg string
	gen uint64
}

// New returns an empty reporter at generation zero.
func New() *Reporter {
	return &Reporter{}
}

// Set replaces the message and returns the new generation.
func (r *Reporter) Set(msg string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msg = msg
	r.gen++
	return r.gen
}

// Record stores err's message and returns err unchanged. A nil error is
// ignored.
func (r *Reporter) Record(err error) error {
	if err != nil {
		r.Set(err.Error())
	}
	return err
}

// Read copies as much of the current message as fits into buf and returns
// the number of bytes written. The copy is cut back to a rune boundary so a
// truncated message is still valid UTF-8.
func (r *Reporter) Read(buf []byte) int {
	if len(buf) == 0 {
		return 0
	}

	r.mu.RLock()
	msg := r.msg
	r.mu.RUnlock()

	n := len(msg)
	if n > len(buf) {
		n = len(buf)
		for n > 0 && !utf8.RuneStart(msg[n]) {
			n--
		}
	}
	return copy(buf, msg[:n])
}

// Snapshot returns the current message and its generation.
func (r *Reporter) Snapshot() (string, uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.msg, r.gen
}
