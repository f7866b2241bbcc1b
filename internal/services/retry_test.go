package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	config "github.com/inference-gateway/adgate/config"
	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
)

func fastRetryConfig() config.RetryConfig {
	return config.RetryConfig{
		Enabled:           true,
		MaxAttempts:       3,
		InitialBackoffMs:  1,
		MaxBackoffMs:      5,
		BackoffMultiplier: 2,
	}
}

func TestRetryableHTTPClient_Do_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("success"))
	}))
	defer server.Close()

	client := NewRetryableHTTPClient(10*time.Second, fastRetryConfig())
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRetryableHTTPClient_Do_RetryOnServerError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewRetryableHTTPClient(10*time.Second, fastRetryConfig())
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestRetryableHTTPClient_Do_ReplaysBody(t *testing.T) {
	var attempts atomic.Int32
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if attempts.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewRetryableHTTPClient(10*time.Second, fastRetryConfig())
	req, _ := http.NewRequest(http.MethodPost, server.URL, bytes.NewReader([]byte(`{"name":"x"}`)))

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, []string{`{"name":"x"}`, `{"name":"x"}`}, bodies)
}

func TestRetryableHTTPClient_Do_MaxRetriesExceeded(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewRetryableHTTPClient(10*time.Second, fastRetryConfig())
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestRetryableHTTPClient_Do_RetryDisabled(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := fastRetryConfig()
	cfg.Enabled = false
	client := NewRetryableHTTPClient(10*time.Second, cfg)
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestRetryableHTTPClient_Do_ContextCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := fastRetryConfig()
	cfg.InitialBackoffMs = 10_000
	cfg.MaxBackoffMs = 10_000
	client := NewRetryableHTTPClient(10*time.Second, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)

	_, err := client.Do(req)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var _ net.Error = timeoutError{}

func TestRetryableHTTPClient_isRetryableError(t *testing.T) {
	client := &RetryableHTTPClient{}

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "network timeout", err: timeoutError{}, expected: true},
		{name: "connection refused", err: syscall.ECONNREFUSED, expected: true},
		{name: "connection reset", err: syscall.ECONNRESET, expected: true},
		{name: "wrapped refused", err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, expected: true},
		{name: "unexpected EOF text", err: errors.New("unexpected EOF"), expected: true},
		{name: "generic error", err: errors.New("bad request"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, client.isRetryableError(tt.err))
		})
	}
}

func TestRetryableHTTPClient_isRetryableStatusCode(t *testing.T) {
	client := &RetryableHTTPClient{}

	tests := []struct {
		statusCode int
		expected   bool
	}{
		{http.StatusOK, false},
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
		{http.StatusRequestTimeout, true},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusGatewayTimeout, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.statusCode), func(t *testing.T) {
			assert.Equal(t, tt.expected, client.isRetryableStatusCode(tt.statusCode))
		})
	}
}

func TestRetryableHTTPClient_calculateBackoff(t *testing.T) {
	client := &RetryableHTTPClient{config: config.RetryConfig{
		InitialBackoffMs:  200,
		MaxBackoffMs:      1000,
		BackoffMultiplier: 2,
	}}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, 1000 * time.Millisecond},
		{5, 1000 * time.Millisecond},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, client.calculateBackoff(tt.attempt), "attempt %d", tt.attempt)
	}
}
