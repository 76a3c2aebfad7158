package api

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-swing/pkg/config"
	"github.com/wonny/aegis-swing/pkg/logger"
)

func testServerConfig(port string) *config.Config {
	return &config.Config{
		Port: port,
		HTTP: config.HTTPConfig{
			ReadTimeout:     2 * time.Second,
			WriteTimeout:    3 * time.Second,
			IdleTimeout:     4 * time.Second,
			ShutdownTimeout: time.Second,
		},
	}
}

func TestServerUsesConfiguredTimeouts(t *testing.T) {
	s := New(testServerConfig("8099"), logger.NewNop(), http.NotFoundHandler())

	assert.Equal(t, ":8099", s.http.Addr)
	assert.Equal(t, 2*time.Second, s.http.ReadTimeout)
	assert.Equal(t, 3*time.Second, s.http.WriteTimeout)
	assert.Equal(t, 4*time.Second, s.http.IdleTimeout)
	assert.Equal(t, time.Second, s.drainFor)

	cfg := testServerConfig("8099")
	cfg.HTTP.ShutdownTimeout = 0
	assert.Equal(t, defaultShutdownTimeout, New(cfg, logger.NewNop(), http.NotFoundHandler()).drainFor)
}

func TestServerRunStopsOnCancel(t *testing.T) {
	s := New(testServerConfig("0"), logger.NewNop(), http.NotFoundHandler())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func TestServerRunReportsListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	_, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)

	cfg := testServerConfig(port)
	s := New(cfg, logger.NewNop(), http.NotFoundHandler())
	s.http.Addr = ln.Addr().String()

	err = s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api server")
}
