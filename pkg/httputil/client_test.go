package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-swing/pkg/config"
	"github.com/wonny/aegis-swing/pkg/logger"
)

func newTestClient() *Client {
	return New(&config.Config{}, logger.NewNop())
}

func TestNewDefaults(t *testing.T) {
	c := newTestClient()
	assert.Equal(t, 30*time.Second, c.httpClient.Timeout)
	assert.True(t, c.retryConfig.Enabled)
	assert.Equal(t, 3, c.retryConfig.MaxRetries)

	c2 := NewWithTimeout(&config.Config{}, logger.NewNop(), 5*time.Second).DisableRetry()
	assert.Equal(t, 5*time.Second, c2.httpClient.Timeout)
	assert.False(t, c2.retryConfig.Enabled)
}

func TestGetJSONWithHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer server.Close()

	c := newTestClient().WithHeader("Authorization", "Bearer secret").WithLimiter(100, 1)

	var out map[string]string
	require.NoError(t, c.GetJSON(context.Background(), server.URL, &out))
	assert.Equal(t, "ok", out["status"])
}

func TestGetJSONStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer server.Close()

	err := newTestClient().GetJSON(context.Background(), server.URL, &struct{}{})

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.True(t, se.Retryable())
	assert.Contains(t, se.Body, "slow down")
}

func TestRetryOn5xx(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"symbol":"AAPL"}`, string(body))
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"o-1"}`))
	}))
	defer server.Close()

	c := newTestClient().WithRetry(3, 5*time.Millisecond)
	var out struct {
		ID string `json:"id"`
	}
	require.NoError(t, c.PostJSONInto(context.Background(), server.URL, map[string]string{"symbol": "AAPL"}, &out))

	assert.Equal(t, "o-1", out.ID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestRetryOnTooManyRequests(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient().WithRetry(2, time.Millisecond)
	require.NoError(t, c.GetJSON(context.Background(), server.URL, nil))
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestDeleteJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/orders/o-1", r.URL.Path)
		if r.URL.Query().Get("missing") != "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := newTestClient().DisableRetry()
	require.NoError(t, c.DeleteJSON(context.Background(), server.URL+"/orders/o-1", nil))

	err := c.DeleteJSON(context.Background(), server.URL+"/orders/o-1?missing=1", nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, http.MethodDelete, se.Method)
}

func TestRetryExhaustedReturnsLastResponse(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := newTestClient().WithRetry(2, time.Millisecond)
	resp, err := c.Get(context.Background(), server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestIsRetryableError(t *testing.T) {
	tests := map[int]bool{
		200: false, 201: false, 400: false, 404: false,
		429: true, 500: true, 502: true, 503: true, 504: true,
	}
	for code, want := range tests {
		assert.Equal(t, want, IsRetryableError(code), fmt.Sprintf("status %d", code))
	}
}
