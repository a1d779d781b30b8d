package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) string {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := lis.Addr().(*net.TCPAddr).Port
	require.NoError(t, lis.Close())
	return strconv.Itoa(port)
}

func TestApp_RunAndShutdown(t *testing.T) {
	dir := t.TempDir()
	httpPort := freePort(t)

	t.Setenv("CONFIG_PATH", dir)
	t.Setenv("DB_PATH", filepath.Join(dir, "users.db"))
	t.Setenv("HTTP_PORT", httpPort)
	t.Setenv("GRPC_PORT", freePort(t))
	t.Setenv("LOG_OUTPUT_PATH", filepath.Join(dir, "app.log"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := New(ctx)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:" + httpPort + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	_, err = os.Stat(filepath.Join(dir, "users.db"))
	assert.NoError(t, err)
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Setenv("CONFIG_PATH", t.TempDir())
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("LOG_OUTPUT_PATH", filepath.Join(t.TempDir(), "app.log"))

	_, err := New(context.Background())
	assert.ErrorContains(t, err, "config validation failed")
}

func TestIsStdSyncError(t *testing.T) {
	assert.True(t, isStdSyncError(&os.PathError{Op: "sync", Path: "/dev/stdout", Err: syscall.EINVAL}))
	assert.False(t, isStdSyncError(errors.New("disk full")))
}
