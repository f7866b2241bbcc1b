package services

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	config "github.com/inference-gateway/adgate/config"
	logger "github.com/inference-gateway/adgate/internal/logger"
)

// RetryableHTTPClient wraps http.Client with retry logic
type RetryableHTTPClient struct {
	client *http.Client
	config config.RetryConfig
}

// NewRetryableHTTPClient creates a new retryable HTTP client. timeout bounds
// each attempt, not the whole retry sequence.
func NewRetryableHTTPClient(timeout time.Duration, cfg config.RetryConfig) *RetryableHTTPClient {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = 1
	}
	return &RetryableHTTPClient{
		client: &http.Client{Timeout: timeout},
		config: cfg,
	}
}

// Do executes an HTTP request with retry logic
func (r *RetryableHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if !r.config.Enabled {
		return r.client.Do(req)
	}

	var lastErr error
	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		reqClone, err := r.cloneRequest(req)
		if err != nil {
			return nil, err
		}

		logger.Debug("HTTP request attempt",
			"attempt", attempt,
			"max_attempts", r.config.MaxAttempts,
			"method", req.Method,
			"path", req.URL.Path)

		resp, err := r.client.Do(reqClone)

		if err == nil {
			if !r.isRetryableStatusCode(resp.StatusCode) || attempt >= r.config.MaxAttempts {
				return resp, nil
			}
			_ = resp.Body.Close()
			logger.Debug("Received retryable status code",
				"status_code", resp.StatusCode,
				"attempt", attempt)
		} else if !r.isRetryableError(err) {
			return nil, err
		} else {
			logger.Debug("Retryable error encountered",
				"error", err.Error(),
				"attempt", attempt)
		}

		lastErr = err

		if attempt < r.config.MaxAttempts {
			backoff := r.calculateBackoff(attempt)
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(backoff):
			}
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("max retry attempts (%d) exceeded, last error: %w", r.config.MaxAttempts, lastErr)
	}

	return nil, fmt.Errorf("max retry attempts (%d) exceeded", r.config.MaxAttempts)
}

// cloneRequest copies the request and rewinds its body for another attempt
func (r *RetryableHTTPClient) cloneRequest(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		clone.Body = body
	}
	return clone, nil
}

// isRetryableError determines if an error should trigger a retry
func (r *RetryableHTTPClient) isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout awaiting response headers") ||
		strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "EOF")
}

// isRetryableStatusCode determines if an HTTP status code should trigger a retry
func (r *RetryableHTTPClient) isRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// calculateBackoff calculates the backoff delay for a given attempt
func (r *RetryableHTTPClient) calculateBackoff(attempt int) time.Duration {
	backoff := r.config.InitialBackoffMs
	for i := 1; i < attempt; i++ {
		backoff *= r.config.BackoffMultiplier
	}

	if r.config.MaxBackoffMs > 0 && backoff > r.config.MaxBackoffMs {
		backoff = r.config.MaxBackoffMs
	}

	return time.Duration(backoff) * time.Millisecond
}
