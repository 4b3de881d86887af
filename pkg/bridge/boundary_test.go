package bridge

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestRequestCall(t *testing.T) {
	server := newServer(t)
	b := newTestBridge(t)

	res := b.RequestCall(Call{Method: "GET", URL: nil, HasOutputs: true})
	assert.Equal(t, CodeInvalidArgument, res.Code)
	assert.Zero(t, res.Handle)
	assert.Equal(t, "request: url pointer is null", lastError(b))

	res = b.RequestCall(Call{Method: "GET", URL: strPtr(server.URL + "/ok"), HasOutputs: false})
	assert.Equal(t, CodeInvalidArgument, res.Code)
	assert.Equal(t, "request: output pointer is null", lastError(b))
	assert.Zero(t, b.Pending(), "no request is issued without outputs")

	res = b.RequestCall(Call{
		Method:     "POST",
		URL:        strPtr(server.URL + "/echo"),
		Headers:    `{"X-Token": "c"}`,
		Body:       []byte("abi"),
		HasOutputs: true,
	})
	require.Equal(t, OK, res.Code)
	assert.Equal(t, int32(http.StatusCreated), res.Status)
	assert.Equal(t, "POST:c:abi", readString(t, b, res.Handle, 4))
}

func TestReadBuffer(t *testing.T) {
	server := newServer(t)
	b := newTestBridge(t)

	res := b.Get(server.URL+"/ok", "", 0)
	require.Equal(t, OK, res.Code)

	buf := []byte("xxxxxxxx")
	assert.Equal(t, int32(CodeInvalidArgument), b.ReadBuffer(res.Handle, buf, 0))
	assert.Equal(t, int32(CodeInvalidArgument), b.ReadBuffer(res.Handle, buf, -3))
	assert.Contains(t, lastError(b), "buffer capacity must be positive")
	assert.Equal(t, "xxxxxxxx", string(buf), "rejected read must not touch the buffer")

	// Capacity is checked before the pointer.
	assert.Equal(t, int32(CodeInvalidArgument), b.ReadBuffer(res.Handle, nil, 0))
	assert.Contains(t, lastError(b), "capacity")
	assert.Equal(t, int32(CodeInvalidArgument), b.ReadBuffer(res.Handle, nil, 4))
	assert.Equal(t, "read: buffer pointer is null", lastError(b))

	// Only capacity bytes are written even when the slice is longer.
	assert.Equal(t, int32(2), b.ReadBuffer(res.Handle, buf, 2))
	assert.Equal(t, "hexxxxxx", string(buf))
	assert.Equal(t, int32(3), b.ReadBuffer(res.Handle, buf, 8))
	assert.Equal(t, "llo", string(buf[:3]))
	assert.Equal(t, int32(0), b.ReadBuffer(res.Handle, buf, 8))

	require.Equal(t, OK, b.Free(res.Handle))
	assert.Equal(t, int32(CodeNotFound), b.ReadBuffer(res.Handle, buf, 8))
}

func TestLastErrorNUL(t *testing.T) {
	b := newTestBridge(t)
	require.Equal(t, CodeNotFound, b.Free(7))
	const msg = "free: invalid or already-freed handle: 7"

	assert.Equal(t, int32(CodeInvalidArgument), b.LastErrorNUL(nil))
	assert.Equal(t, int32(CodeInvalidArgument), b.LastErrorNUL([]byte{}))
	assert.Equal(t, msg, lastError(b), "rejected call keeps the message")

	one := []byte{'x'}
	assert.Equal(t, int32(0), b.LastErrorNUL(one))
	assert.Equal(t, []byte{0}, one)

	small := []byte("zzzzzz")
	assert.Equal(t, int32(5), b.LastErrorNUL(small))
	assert.Equal(t, "free:\x00", string(small))

	full := make([]byte, len(msg)+1)
	assert.Equal(t, int32(len(msg)), b.LastErrorNUL(full))
	assert.Equal(t, msg+"\x00", string(full))

	roomy := make([]byte, 128)
	for i := range roomy {
		roomy[i] = 'y'
	}
	n := b.LastErrorNUL(roomy)
	assert.Equal(t, int32(len(msg)), n)
	assert.Equal(t, byte(0), roomy[n])
	assert.Equal(t, byte('y'), roomy[n+1])
}

func TestBoundaryOnFailedBridge(t *testing.T) {
	b := newFailed(errors.New("bad config"))

	assert.Equal(t, CodeInternal, b.RequestCall(Call{Method: "GET", URL: nil}).Code)
	assert.Equal(t, int32(CodeInternal), b.ReadBuffer(1, nil, 4))

	buf := make([]byte, 64)
	n := b.LastErrorNUL(buf)
	require.Positive(t, n)
	assert.Contains(t, string(buf[:n]), "bad config")
	assert.Equal(t, byte(0), buf[n])
}
