package engine

import (
	"errors"

	"github.com/samvad-hq/httpbridge/internal/domain"
	"github.com/samvad-hq/httpbridge/internal/handles"
)

const (
	opRead      = "read"
	opReadAt    = "read_at"
	opFree      = "free"
	opStatus    = "status"
	opLength    = "length"
	opLastError = "last_error"
)

// Read copies the next chunk of the body behind h into buf and returns the
// number of bytes written. Zero bytes with a non-empty buf means the body is
// exhausted; reading past the end keeps returning zero.
func (e *Engine) Read(h uint64, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, e.fail(opRead, domain.Errorf(domain.KindInvalidArgument, opRead, "buffer capacity must be positive"))
	}
	rec, err := e.resolve(opRead, h)
	if err != nil {
		return 0, err
	}
	n, err := rec.next(buf)
	if err != nil {
		return 0, e.fail(opRead, e.readError(opRead, h, err))
	}
	e.metrics.AddBytesRead(n)
	return n, nil
}

// ReadAt copies body bytes starting at off without moving the read cursor.
func (e *Engine) ReadAt(h uint64, buf []byte, off int64) (int, error) {
	if len(buf) == 0 {
		return 0, e.fail(opReadAt, domain.Errorf(domain.KindInvalidArgument, opReadAt, "buffer capacity must be positive"))
	}
	if off < 0 {
		return 0, e.fail(opReadAt, domain.Errorf(domain.KindInvalidArgument, opReadAt, "offset must not be negative, got %d", off))
	}
	rec, err := e.resolve(opReadAt, h)
	if err != nil {
		return 0, err
	}
	n, err := rec.at(buf, off)
	if err != nil {
		return 0, e.fail(opReadAt, e.readError(opReadAt, h, err))
	}
	e.metrics.AddBytesRead(n)
	return n, nil
}

// Status returns the HTTP status of the response behind h.
func (e *Engine) Status(h uint64) (int, error) {
	rec, err := e.resolve(opStatus, h)
	if err != nil {
		return 0, err
	}
	return rec.status, nil
}

// Length returns the body length of the response behind h.
func (e *Engine) Length(h uint64) (int64, error) {
	rec, err := e.resolve(opLength, h)
	if err != nil {
		return 0, err
	}
	return rec.body.Len(), nil
}

// Free releases h and its body. A second Free of the same handle fails with
// NotFound and changes nothing.
func (e *Engine) Free(h uint64) error {
	rec, ok := e.registry.Release(handles.Handle(h))
	if !ok {
		return e.fail(opFree, notFound(opFree, h))
	}
	if err := rec.release(); err != nil {
		e.log.WarnObj("release response body failed", "release", map[string]any{
			"handle": h,
			"id":     rec.id,
			"error":  err.Error(),
		})
	}
	e.metrics.AddLiveHandles(-1)
	return nil
}

// Pending returns the number of live handles.
func (e *Engine) Pending() int {
	return e.registry.Len()
}

// LastError copies the most recent failure message into buf. A rejected
// call leaves the stored message alone so it can be read with a proper
// buffer afterwards.
func (e *Engine) LastError(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, domain.Errorf(domain.KindInvalidArgument, opLastError, "buffer capacity must be positive")
	}
	return e.errs.Read(buf), nil
}

// LastErrorMessage returns the most recent failure message and its
// generation.
func (e *Engine) LastErrorMessage() (string, uint64) {
	return e.errs.Snapshot()
}

// Reject records an argument error a caller detected before reaching the
// engine, such as a null pointer at the C boundary.
func (e *Engine) Reject(op, msg string) error {
	return e.fail(op, domain.Errorf(domain.KindInvalidArgument, op, "%s", msg))
}

func (e *Engine) resolve(op string, h uint64) (*response, error) {
	rec, ok := e.registry.Resolve(handles.Handle(h))
	if !ok {
		return nil, e.fail(op, notFound(op, h))
	}
	return rec, nil
}

func (e *Engine) readError(op string, h uint64, err error) error {
	if errors.Is(err, errReleased) {
		return notFound(op, h)
	}
	return domain.Wrap(domain.KindInternal, op, "read response body", err)
}

func notFound(op string, h uint64) error {
	return domain.Errorf(domain.KindNotFound, op, "invalid or already-freed handle: %d", h)
}
