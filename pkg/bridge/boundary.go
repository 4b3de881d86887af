package bridge

// The functions in this file hold the argument rules of the C exports so
// cmd/libhttpbridge only converts pointers. A nil slice or string pointer
// stands for a NULL pointer.

// Call is one request as it arrives over the C ABI.
type Call struct {
	Method string
	// URL is nil when the caller passed a NULL url.
	URL *string
	// Headers is empty for a NULL or empty header string.
	Headers string
	Body    []byte
	// TimeoutMs of zero means no timeout.
	TimeoutMs int32
	// HasOutputs is false when any of the handle, length or status
	// out-pointers is NULL.
	HasOutputs bool
}

// RequestCall validates the pointer arguments of c and issues the request.
func (b *Bridge) RequestCall(c Call) Result {
	if c.URL == nil {
		return Result{Code: b.Reject("request", "url pointer is null")}
	}
	if !c.HasOutputs {
		return Result{Code: b.Reject("request", "output pointer is null")}
	}
	return b.Request(c.Method, *c.URL, c.Headers, c.Body, c.TimeoutMs)
}

// ReadBuffer is Read for a raw buffer and capacity. A non-positive capacity
// is rejected before the buffer pointer is looked at, then a nil buf is
// rejected. buf must hold at least capacity bytes when it is not nil.
func (b *Bridge) ReadBuffer(handle uint64, buf []byte, capacity int32) int32 {
	if capacity <= 0 {
		return b.Read(handle, nil)
	}
	if buf == nil {
		return int32(b.Reject("read", "buffer pointer is null"))
	}
	return b.Read(handle, buf[:capacity])
}

// LastErrorNUL writes the last error message into buf followed by a NUL
// byte and returns the message length without the terminator. An empty buf
// is rejected without touching the stored message; a one-byte buf receives
// only the terminator.
func (b *Bridge) LastErrorNUL(buf []byte) int32 {
	if len(buf) == 0 {
		return int32(CodeInvalidArgument)
	}
	if len(buf) == 1 {
		buf[0] = 0
		return 0
	}
	n := b.LastError(buf[:len(buf)-1])
	if n < 0 {
		buf[0] = 0
		return n
	}
	buf[n] = 0
	return n
}
