package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samvad-hq/httpbridge/internal/config"
	"github.com/samvad-hq/httpbridge/internal/domain"
	"github.com/samvad-hq/httpbridge/internal/logger"
)

func TestRuntimeEndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tester/1", r.Header.Get("User-Agent"))
		assert.Equal(t, "yes", r.Header.Get("X-Check"))
		_, _ = w.Write([]byte("runtime says hi"))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.UserAgent = "tester/1"
	cfg.StorageType = "bbolt"
	cfg.BBoltPath = filepath.Join(t.TempDir(), "spool.db")
	cfg.SpoolThresholdBytes = 4

	rt, err := New(cfg, logger.NewFromZap(nil))
	require.NoError(t, err)
	assert.NotNil(t, rt.Metrics())

	res, err := rt.Engine().Get(context.Background(), server.URL, `{"x-check":"yes"}`, 0)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Status)

	buf := make([]byte, 64)
	n, err := rt.Engine().Read(res.Handle, buf)
	require.NoError(t, err)
	assert.Equal(t, "runtime says hi", string(buf[:n]))

	require.NoError(t, rt.Close(context.Background()))
	_, err = rt.Engine().Read(res.Handle, buf)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRuntimeRejectsBadStorage(t *testing.T) {
	cfg := config.Default()
	cfg.StorageType = "redis"

	_, err := New(cfg, nil)
	assert.Error(t, err)

	_, err = New(nil, nil)
	assert.Error(t, err)
	_, err = Open(nil)
	assert.Error(t, err)
}

func TestOpenBuildsLogger(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "error"

	rt, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, rt.Close(context.Background()))
	require.NoError(t, rt.Close(context.Background()))
}
