// Package bridge is the scalar-only face of the engine: every input and
// output is a string, a byte slice, an integer or a handle, so it maps 1:1
// onto a C ABI. cmd/libhttpbridge exports it; the CLI drives it too.
package bridge

import (
	"context"
	"math"
	"time"

	"github.com/samvad-hq/httpbridge/internal/app"
	"github.com/samvad-hq/httpbridge/internal/engine"
	"github.com/samvad-hq/httpbridge/internal/lasterror"
)

// Result is what a request call hands back. Handle, Length and Status are
// only meaningful when Code is OK.
type Result struct {
	Code   Code
	Handle uint64
	Length int64
	Status int32
}

// Bridge forwards scalar calls to one engine.
type Bridge struct {
	rt  *app.Runtime
	eng *engine.Engine

	// initErr is set when the engine could not be built; every call then
	// fails with CodeInternal and the message sits in initErrs.
	initErr  error
	initErrs *lasterror.Reporter
}

// New returns a bridge over rt's engine. Shutdown also closes rt.
func New(rt *app.Runtime) *Bridge {
	return &Bridge{rt: rt, eng: rt.Engine()}
}

func newFailed(err error) *Bridge {
	errs := lasterror.New()
	errs.Set("httpbridge initialization failed: " + err.Error())
	return &Bridge{initErr: err, initErrs: errs}
}

// Request issues method against url. headers is a JSON object of strings,
// timeoutMs of zero means no timeout.
func (b *Bridge) Request(method, url, headers string, body []byte, timeoutMs int32) Result {
	if b.initErr != nil {
		return Result{Code: CodeInternal}
	}
	res, err := b.eng.Do(context.Background(), engine.Request{
		Method:  method,
		URL:     url,
		Headers: headers,
		Body:    body,
		Timeout: time.Duration(timeoutMs) * time.Millisecond,
	})
	if err != nil {
		return Result{Code: CodeOf(err)}
	}
	return Result{Code: OK, Handle: res.Handle, Length: res.Length, Status: int32(res.Status)}
}

// Get issues a GET request.
func (b *Bridge) Get(url, headers string, timeoutMs int32) Result {
	return b.Request("GET", url, headers, nil, timeoutMs)
}

// Post issues a POST request.
func (b *Bridge) Post(url, headers string, body []byte, timeoutMs int32) Result {
	return b.Request("POST", url, headers, body, timeoutMs)
}

// Put issues a PUT request.
func (b *Bridge) Put(url, headers string, body []byte, timeoutMs int32) Result {
	return b.Request("PUT", url, headers, body, timeoutMs)
}

// Patch issues a PATCH request.
func (b *Bridge) Patch(url, headers string, body []byte, timeoutMs int32) Result {
	return b.Request("PATCH", url, headers, body, timeoutMs)
}

// Delete issues a DELETE request.
func (b *Bridge) Delete(url, headers string, timeoutMs int32) Result {
	return b.Request("DELETE", url, headers, nil, timeoutMs)
}

// Read copies the next chunk of the body into buf. It returns the number of
// bytes written, zero at end of body, or a negative Code.
func (b *Bridge) Read(handle uint64, buf []byte) int32 {
	if b.initErr != nil {
		return int32(CodeInternal)
	}
	if len(buf) > math.MaxInt32 {
		buf = buf[:math.MaxInt32]
	}
	n, err := b.eng.Read(handle, buf)
	if err != nil {
		return int32(CodeOf(err))
	}
	return int32(n)
}

// Status returns the HTTP status behind handle, or a negative Code.
func (b *Bridge) Status(handle uint64) int32 {
	if b.initErr != nil {
		return int32(CodeInternal)
	}
	status, err := b.eng.Status(handle)
	if err != nil {
		return int32(CodeOf(err))
	}
	return int32(status)
}

// Free releases handle.
func (b *Bridge) Free(handle uint64) Code {
	if b.initErr != nil {
		return CodeInternal
	}
	return CodeOf(b.eng.Free(handle))
}

// LastError copies the most recent failure message into buf and returns the
// number of bytes written, or a negative Code when buf is empty.
func (b *Bridge) LastError(buf []byte) int32 {
	if len(buf) == 0 {
		return int32(CodeInvalidArgument)
	}
	if len(buf) > math.MaxInt32 {
		buf = buf[:math.MaxInt32]
	}
	if b.initErr != nil {
		return int32(b.initErrs.Read(buf))
	}
	n, err := b.eng.LastError(buf)
	if err != nil {
		return int32(CodeOf(err))
	}
	return int32(n)
}

// LastErrorMessage returns the whole last error message and its
// generation, which grows with every recorded failure.
func (b *Bridge) LastErrorMessage() (string, uint64) {
	if b.initErr != nil {
		return b.initErrs.Snapshot()
	}
	return b.eng.LastErrorMessage()
}

// Reject records an invalid argument found at the calling boundary and
// returns CodeInvalidArgument.
func (b *Bridge) Reject(op, msg string) Code {
	if b.initErr != nil {
		return CodeInternal
	}
	return CodeOf(b.eng.Reject(op, msg))
}

// Pending returns the number of live handles.
func (b *Bridge) Pending() int32 {
	if b.initErr != nil {
		return 0
	}
	n := b.eng.Pending()
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(n)
}

// Shutdown stops the engine. Calling it again does nothing.
func (b *Bridge) Shutdown() {
	if b.initErr != nil {
		return
	}
	_ = b.rt.Close(context.Background())
}
