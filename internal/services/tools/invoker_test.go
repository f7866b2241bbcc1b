package tools

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/inference-gateway/adgate/internal/domain"
	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   map[string]any
}

func newPlatformServer(t *testing.T, status int, response string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Method = r.Method
		captured.Path = r.URL.EscapedPath()
		captured.Query = r.URL.RawQuery
		captured.Header = r.Header.Clone()
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &captured.Body)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)
	return server, captured
}

type stubReporter struct {
	cancelled chan struct{}
	values    []float64
}

func newStubReporter() *stubReporter {
	return &stubReporter{cancelled: make(chan struct{})}
}

func (r *stubReporter) Report(value float64, _ string, _ *time.Duration) {
	r.values = append(r.values, value)
}

func (r *stubReporter) Cancelled() <-chan struct{} { return r.cancelled }

func testInvoker(t *testing.T, baseURL string) *HTTPInvoker {
	t.Helper()
	c, err := ParseCatalog([]byte(testCatalogYAML))
	require.NoError(t, err)
	return NewHTTPInvoker(baseURL+"/", c, http.DefaultClient)
}

func TestHTTPInvoker_GetWithOAuth(t *testing.T) {
	server, captured := newPlatformServer(t, http.StatusOK, `{"apps": [{"app_id": "a-1"}]}`)
	invoker := testInvoker(t, server.URL)
	reporter := newStubReporter()

	result, err := invoker.Execute(context.Background(), domain.ToolInvocation{
		ToolName: "admob_list_apps",
		Params:   map[string]any{"account_id": "pub-123", "page_size": 50, "platforms": []any{"ios", "android"}},
		Credentials: &domain.NetworkCredentials{
			Network:     "admob",
			AccessToken: "ya29.token",
		},
	}, reporter)
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, captured.Method)
	assert.Equal(t, "/v1/admob/accounts/pub-123/apps", captured.Path)
	assert.Equal(t, "page_size=50&platforms=ios&platforms=android", captured.Query)
	assert.Equal(t, "Bearer ya29.token", captured.Header.Get("Authorization"))
	assert.Empty(t, captured.Header.Get(APIKeyHeader))
	assert.Len(t, result["apps"], 1)
	assert.Equal(t, []float64{0.1}, reporter.values)
}

func TestHTTPInvoker_PatchWithAPIKeyBody(t *testing.T) {
	server, captured := newPlatformServer(t, http.StatusOK, `[1, 2]`)
	c, err := NewCatalog([]Entry{{Name: "unity_update_placement", Method: "PATCH", Path: "/v1/unity/placements/{placement_id}"}})
	require.NoError(t, err)
	invoker := NewHTTPInvoker(server.URL, c, http.DefaultClient)

	result, err := invoker.Execute(context.Background(), domain.ToolInvocation{
		ToolName:    "unity_update_placement",
		Params:      map[string]any{"placement_id": "rewarded video", "floor": 1.5},
		Credentials: &domain.NetworkCredentials{Network: "unity", APIKey: "key-1", APISecret: "secret-1"},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPatch, captured.Method)
	assert.Equal(t, "/v1/unity/placements/rewarded%20video", captured.Path)
	assert.Equal(t, map[string]any{"floor": 1.5}, captured.Body)
	assert.Equal(t, "application/json", captured.Header.Get("Content-Type"))
	assert.Equal(t, "key-1", captured.Header.Get(APIKeyHeader))
	assert.Equal(t, "secret-1", captured.Header.Get(APISecretHeader))
	assert.Empty(t, captured.Header.Get("Authorization"))
	assert.Equal(t, []any{float64(1), float64(2)}, result["data"])
}

func TestHTTPInvoker_Errors(t *testing.T) {
	tests := []struct {
		name   string
		tool   string
		params map[string]any
		status int
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unknown tool",
			tool:   "admob_unknown",
			status: http.StatusOK,
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "unknown tool")
			},
		},
		{
			name:   "missing path param",
			tool:   "admob_list_apps",
			params: map[string]any{},
			status: http.StatusOK,
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "account_id")
			},
		},
		{
			name:   "upstream failure",
			tool:   "admob_list_apps",
			params: map[string]any{"account_id": "pub-1"},
			status: http.StatusTooManyRequests,
			check: func(t *testing.T, err error) {
				var upstream *UpstreamError
				require.True(t, errors.As(err, &upstream))
				assert.Equal(t, http.StatusTooManyRequests, upstream.StatusCode)
				assert.Equal(t, "upstream_error", upstream.Code())
				assert.Equal(t, http.StatusTooManyRequests, upstream.Details()["status"])
				assert.Equal(t, "slow down", upstream.Body)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newPlatformServer(t, tt.status, "slow down")
			invoker := testInvoker(t, server.URL)

			_, err := invoker.Execute(context.Background(), domain.ToolInvocation{ToolName: tt.tool, Params: tt.params}, nil)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestHTTPInvoker_CancelledBeforeSend(t *testing.T) {
	server, captured := newPlatformServer(t, http.StatusOK, `{}`)
	invoker := testInvoker(t, server.URL)

	reporter := newStubReporter()
	close(reporter.cancelled)

	_, err := invoker.Execute(context.Background(), domain.ToolInvocation{
		ToolName: "admob_generate_network_report",
		Params:   map[string]any{"account_id": "pub-1"},
	}, reporter)
	require.Error(t, err)
	assert.Empty(t, captured.Method)
	assert.True(t, invoker.IsLongRunning("admob_generate_network_report"))
}

func TestHTTPInvoker_EmptyBody(t *testing.T) {
	server, captured := newPlatformServer(t, http.StatusNoContent, "")
	c, err := NewCatalog([]Entry{{Name: "admob_delete_mediation_group", Method: "DELETE", Path: "/v1/admob/mediationGroups/{id}"}})
	require.NoError(t, err)
	invoker := NewHTTPInvoker(server.URL, c, http.DefaultClient)

	result, err := invoker.Execute(context.Background(), domain.ToolInvocation{
		ToolName: "admob_delete_mediation_group",
		Params:   map[string]any{"id": "mg-1", "force": true},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, captured.Method)
	assert.Equal(t, "force=true", captured.Query)
	assert.Equal(t, map[string]any{"status": http.StatusNoContent}, result)
}
