package bridge

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samvad-hq/httpbridge/internal/app"
	"github.com/samvad-hq/httpbridge/internal/config"
	"github.com/samvad-hq/httpbridge/internal/domain"
	"github.com/samvad-hq/httpbridge/internal/logger"
)

func newTestBridge(t *testing.T) *Bridge {
	t.Helper()
	cfg := config.Default()
	cfg.ShutdownGracePeriod = time.Second
	rt, err := app.New(cfg, logger.NewFromZap(nil))
	require.NoError(t, err)
	b := New(rt)
	t.Cleanup(b.Shutdown)
	return b
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("hello"))
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Method", r.Method)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(r.Method + ":" + r.Header.Get("X-Token") + ":" + string(body)))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func readString(t *testing.T, b *Bridge, handle uint64, chunk int) string {
	t.Helper()
	var sb strings.Builder
	buf := make([]byte, chunk)
	for {
		n := b.Read(handle, buf)
		require.GreaterOrEqual(t, n, int32(0))
		if n == 0 {
			return sb.String()
		}
		sb.Write(buf[:n])
	}
}

func lastError(b *Bridge) string {
	buf := make([]byte, 512)
	n := b.LastError(buf)
	if n < 0 {
		return ""
	}
	return string(buf[:n])
}

func TestBridgeHello(t *testing.T) {
	server := newServer(t)
	b := newTestBridge(t)

	res := b.Get(server.URL+"/ok", "", 1000)
	require.Equal(t, OK, res.Code)
	assert.Equal(t, int64(5), res.Length)
	assert.Equal(t, int32(http.StatusOK), res.Status)
	assert.Equal(t, int32(http.StatusOK), b.Status(res.Handle))
	assert.Equal(t, int32(1), b.Pending())

	buf := make([]byte, 3)
	assert.Equal(t, int32(3), b.Read(res.Handle, buf))
	assert.Equal(t, "hel", string(buf))
	assert.Equal(t, int32(2), b.Read(res.Handle, buf))
	assert.Equal(t, "lo", string(buf[:2]))
	assert.Equal(t, int32(0), b.Read(res.Handle, buf))

	assert.Equal(t, OK, b.Free(res.Handle))
	assert.Equal(t, CodeNotFound, b.Free(res.Handle))
	assert.Equal(t, int32(CodeNotFound), b.Read(res.Handle, buf))
	assert.Contains(t, lastError(b), "invalid or already-freed handle")
	assert.Zero(t, b.Pending())
}

func TestBridgeMethodsWithBody(t *testing.T) {
	server := newServer(t)
	b := newTestBridge(t)

	headers := `{"X-Token": "abc"}`
	for method, call := range map[string]func() Result{
		"POST":  func() Result { return b.Post(server.URL+"/echo", headers, []byte("data"), 0) },
		"PUT":   func() Result { return b.Put(server.URL+"/echo", headers, []byte("data"), 0) },
		"PATCH": func() Result { return b.Patch(server.URL+"/echo", headers, []byte("data"), 0) },
	} {
		res := call()
		require.Equal(t, OK, res.Code, method)
		assert.Equal(t, int32(http.StatusCreated), res.Status)
		assert.Equal(t, method+":abc:data", readString(t, b, res.Handle, 1))
		assert.Equal(t, OK, b.Free(res.Handle))
	}

	res := b.Delete(server.URL+"/echo", headers, 0)
	require.Equal(t, OK, res.Code)
	assert.Equal(t, "DELETE:abc:", readString(t, b, res.Handle, 7))
}

func TestBridgeNon2xx(t *testing.T) {
	server := newServer(t)
	b := newTestBridge(t)

	res := b.Get(server.URL+"/missing", "", 0)
	require.Equal(t, OK, res.Code)
	assert.Equal(t, int32(http.StatusNotFound), res.Status)
	assert.Contains(t, readString(t, b, res.Handle, 16), "gone")
}

func TestBridgeErrors(t *testing.T) {
	server := newServer(t)
	b := newTestBridge(t)

	res := b.Get("not a url", "", 0)
	assert.Equal(t, CodeInvalidArgument, res.Code)
	assert.Zero(t, res.Handle)
	assert.NotEmpty(t, lastError(b))

	assert.Equal(t, CodeInvalidArgument, b.Get(server.URL+"/ok", "", -5).Code)
	assert.Equal(t, CodeInvalidArgument, b.Get(server.URL+"/ok", "[1,2]", 0).Code)
	assert.Equal(t, CodeInvalidArgument, b.Request("GET", server.URL+"/ok", "", []byte("body"), 0).Code)
	assert.Equal(t, CodeInvalidArgument, b.Request("OPTIONS", server.URL+"/ok", "", nil, 0).Code)

	res = b.Get(server.URL+"/slow", "", 50)
	assert.Equal(t, CodeTimeout, res.Code)
	assert.Contains(t, lastError(b), "timed out")

	closed := httptest.NewServer(http.NotFoundHandler())
	url := closed.URL
	closed.Close()
	assert.Equal(t, CodeTransport, b.Get(url, "", 1000).Code)

	ok := b.Get(server.URL+"/ok", "", 0)
	require.Equal(t, OK, ok.Code)
	assert.Equal(t, int32(CodeInvalidArgument), b.Read(ok.Handle, nil))
	assert.Equal(t, "hello", readString(t, b, ok.Handle, 2))
}

func TestBridgeLastErrorCapacity(t *testing.T) {
	b := newTestBridge(t)

	assert.Equal(t, CodeNotFound, b.Free(42))
	assert.Equal(t, int32(CodeInvalidArgument), b.LastError(nil))
	assert.Equal(t, int32(CodeInvalidArgument), b.LastError([]byte{}))
	assert.Contains(t, lastError(b), "42", "rejected last_error must keep the message")

	buf := make([]byte, 4)
	assert.Equal(t, int32(4), b.LastError(buf))
	assert.Equal(t, "free", string(buf))
}

func TestBridgeShutdown(t *testing.T) {
	server := newServer(t)
	b := newTestBridge(t)

	res := b.Get(server.URL+"/ok", "", 0)
	require.Equal(t, OK, res.Code)

	b.Shutdown()
	b.Shutdown()

	assert.Zero(t, b.Pending())
	assert.Equal(t, int32(CodeNotFound), b.Read(res.Handle, make([]byte, 8)))
	assert.Equal(t, CodeAlreadyShutdown, b.Get(server.URL+"/ok", "", 0).Code)
	assert.Contains(t, lastError(b), "shut down")
}

func TestFailedBridge(t *testing.T) {
	b := newFailed(errors.New("bad config"))

	assert.Equal(t, CodeInternal, b.Get("http://example.test/", "", 0).Code)
	assert.Equal(t, int32(CodeInternal), b.Read(1, make([]byte, 4)))
	assert.Equal(t, int32(CodeInternal), b.Status(1))
	assert.Equal(t, CodeInternal, b.Free(1))
	assert.Zero(t, b.Pending())
	assert.Contains(t, lastError(b), "bad config")
	b.Shutdown()
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want Code
	}{
		{nil, OK},
		{domain.ErrInvalidArgument, CodeInvalidArgument},
		{domain.Errorf(domain.KindTransport, "request", "refused"), CodeTransport},
		{domain.ErrTimeout, CodeTimeout},
		{domain.ErrNotFound, CodeNotFound},
		{domain.ErrAlreadyShutdown, CodeAlreadyShutdown},
		{errors.New("foreign"), CodeInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CodeOf(tt.err))
	}
	assert.Equal(t, "timeout", CodeTimeout.String())
	assert.Equal(t, "ok", OK.String())
}

func TestBridgeReject(t *testing.T) {
	b := newTestBridge(t)

	assert.Equal(t, CodeInvalidArgument, b.Reject("read", "buffer pointer is null"))
	assert.Equal(t, "read: buffer pointer is null", lastError(b))
	assert.Equal(t, CodeInternal, newFailed(errors.New("x")).Reject("read", "y"))
}

func TestBridgeLastErrorMessage(t *testing.T) {
	b := newTestBridge(t)

	msg, gen := b.LastErrorMessage()
	assert.Empty(t, msg)
	assert.Zero(t, gen)

	require.Equal(t, CodeNotFound, b.Free(3))
	require.Equal(t, CodeNotFound, b.Free(4))
	msg, gen = b.LastErrorMessage()
	assert.Equal(t, "free: invalid or already-freed handle: 4", msg)
	assert.Equal(t, uint64(2), gen)

	msg, _ = newFailed(errors.New("no config")).LastErrorMessage()
	assert.Equal(t, "httpbridge initialization failed: no config", msg)
}
