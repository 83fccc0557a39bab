package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestServer_ServesRegisteredHandlers(t *testing.T) {
	cfg := Config{Host: "127.0.0.1", HTTPPort: freePort(t), GRPCPort: freePort(t)}
	srv := New(cfg, nil)
	srv.RegisterHTTPHandler("GET /ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, GetRequestID(r.Context()))
	}))
	assert.NotNil(t, srv.HTTPMux())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errChan := make(chan error, 1)
	go func() { errChan <- srv.Start(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/ping", cfg.HTTPPort)
	var resp *http.Response
	require.Eventually(t, func() bool {
		var err error
		resp, err = http.Get(url)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, resp.Header.Get("X-Request-ID"), string(body))

	require.NoError(t, srv.Stop(context.Background()))
	cancel()
	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("server did not stop in time")
	}
}

func TestServer_Start_AlreadyStarted(t *testing.T) {
	srv := New(Config{Host: "127.0.0.1", HTTPPort: freePort(t), GRPCPort: freePort(t)}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)

	err := srv.Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server already started")
	_ = srv.Stop(context.Background())
}

func TestServer_Start_PortConflict(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	port := l.Addr().(*net.TCPAddr).Port

	tests := []struct {
		name string
		cfg  Config
	}{
		{"http", Config{Host: "127.0.0.1", HTTPPort: port, GRPCPort: freePort(t)}},
		{"grpc", Config{Host: "127.0.0.1", HTTPPort: freePort(t), GRPCPort: port}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New(tt.cfg, nil)
			assert.Error(t, srv.Start(context.Background()))
			_ = srv.Stop(context.Background())
		})
	}
}

func TestServer_Stop_ExpiredContext(t *testing.T) {
	srv := New(Config{Host: "127.0.0.1", HTTPPort: freePort(t), GRPCPort: freePort(t)}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer stopCancel()
	time.Sleep(5 * time.Millisecond)
	assert.NotPanics(t, func() { _ = srv.Stop(stopCtx) })
}
