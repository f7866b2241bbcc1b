package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	domain "github.com/inference-gateway/adgate/internal/domain"
	logger "github.com/inference-gateway/adgate/internal/logger"
	zap "go.uber.org/zap"
)

const (
	// APIKeyHeader carries the key of api_key networks
	APIKeyHeader = "X-API-Key"
	// APISecretHeader carries the secret of api_key networks
	APISecretHeader = "X-API-Secret"

	maxErrorBody = 1024
)

// HTTPDoer is satisfied by *http.Client and services.RetryableHTTPClient
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// UpstreamError is a non-2xx response from a platform API. It carries a task
// error code so background failures are reported with the HTTP status.
type UpstreamError struct {
	ToolName   string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s returned %d", e.ToolName, e.StatusCode)
}

// Code implements services.TaskError
func (e *UpstreamError) Code() string {
	return "upstream_error"
}

// Details implements services.TaskError
func (e *UpstreamError) Details() map[string]any {
	return map[string]any{"status": e.StatusCode, "body": e.Body}
}

// HTTPInvoker executes catalog entries against the platform API gateway
type HTTPInvoker struct {
	baseURL string
	catalog *Catalog
	client  HTTPDoer
}

var _ domain.ToolExecutor = (*HTTPInvoker)(nil)

// NewHTTPInvoker creates an invoker for catalog over client
func NewHTTPInvoker(baseURL string, catalog *Catalog, client HTTPDoer) *HTTPInvoker {
	return &HTTPInvoker{
		baseURL: strings.TrimRight(baseURL, "/"),
		catalog: catalog,
		client:  client,
	}
}

// IsLongRunning implements domain.ToolExecutor
func (i *HTTPInvoker) IsLongRunning(toolName string) bool {
	return i.catalog.IsLongRunning(toolName)
}

// Execute expands the entry's path template from params, sends the remaining
// params as a query string (GET, DELETE) or JSON body, and authenticates with
// the invocation's credentials.
func (i *HTTPInvoker) Execute(ctx context.Context, inv domain.ToolInvocation, reporter domain.ProgressReporter) (map[string]any, error) {
	entry, ok := i.catalog.Lookup(inv.ToolName)
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", inv.ToolName)
	}

	if reporter != nil {
		select {
		case <-reporter.Cancelled():
			return nil, fmt.Errorf("%s cancelled before it was sent", inv.ToolName)
		default:
		}
	}

	req, err := i.buildRequest(ctx, entry, inv)
	if err != nil {
		return nil, err
	}

	if reporter != nil {
		reporter.Report(0.1, "request sent", nil)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", inv.ToolName, err)
	}
	defer func() { _ = resp.Body.Close() }()

	logger.L(ctx).Debug("platform call finished",
		zap.String("tool", inv.ToolName),
		zap.String("method", req.Method),
		zap.Int("status", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &UpstreamError{ToolName: inv.ToolName, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return decodeResult(resp)
}

func (i *HTTPInvoker) buildRequest(ctx context.Context, entry Entry, inv domain.ToolInvocation) (*http.Request, error) {
	remaining := make(map[string]any, len(inv.Params))
	for k, v := range inv.Params {
		remaining[k] = v
	}

	path, err := expandPath(entry.Path, remaining)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", entry.Name, err)
	}

	method := entry.Method
	if method == "" {
		method = http.MethodPost
	}

	endpoint := i.baseURL + path
	var body io.Reader
	switch method {
	case http.MethodGet, http.MethodDelete:
		if q := encodeQuery(remaining); q != "" {
			endpoint += "?" + q
		}
	default:
		data, err := json.Marshal(remaining)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s params: %w", entry.Name, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", entry.Name, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	authenticate(req, inv.Credentials)

	return req, nil
}

func authenticate(req *http.Request, creds *domain.NetworkCredentials) {
	if creds == nil {
		return
	}
	if tok := creds.OAuth2Token(); tok != nil {
		tok.SetAuthHeader(req)
		return
	}
	if creds.APIKey != "" {
		req.Header.Set(APIKeyHeader, creds.APIKey)
		if creds.APISecret != "" {
			req.Header.Set(APISecretHeader, creds.APISecret)
		}
	}
}

// expandPath substitutes {name} placeholders and removes the used params
func expandPath(template string, params map[string]any) (string, error) {
	var missing []string
	path := placeholderPattern.ReplaceAllStringFunc(template, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := params[name]
		if !ok || v == nil {
			missing = append(missing, name)
			return m
		}
		delete(params, name)
		return url.PathEscape(fmt.Sprint(v))
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("missing path parameters: %s", strings.Join(missing, ", "))
	}
	return path, nil
}

func encodeQuery(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := url.Values{}
	for _, k := range keys {
		switch v := params[k].(type) {
		case nil:
		case []any:
			for _, item := range v {
				values.Add(k, fmt.Sprint(item))
			}
		case []string:
			for _, item := range v {
				values.Add(k, item)
			}
		default:
			values.Set(k, fmt.Sprint(v))
		}
	}
	return values.Encode()
}

// decodeResult maps a JSON object to the result map; other JSON values are
// wrapped under "data" and empty bodies report only the status
func decodeResult(resp *http.Response) (map[string]any, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{"status": resp.StatusCode}, nil
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if obj, ok := v.(map[string]any); ok {
		return obj, nil
	}
	return map[string]any{"data": v}, nil
}
