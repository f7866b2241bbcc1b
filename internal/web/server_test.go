package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	websocket "github.com/gorilla/websocket"
	config "github.com/inference-gateway/adgate/config"
	domain "github.com/inference-gateway/adgate/internal/domain"
	storage "github.com/inference-gateway/adgate/internal/infra/storage"
	services "github.com/inference-gateway/adgate/internal/services"
	tools "github.com/inference-gateway/adgate/internal/services/tools"
	domainmocks "github.com/inference-gateway/adgate/tests/mocks/domain"
	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
)

type apiFixture struct {
	handler  http.Handler
	tasks    *services.BackgroundTaskManager
	broker   *services.CredentialBroker
	executor *domainmocks.FakeToolExecutor
}

func newAPIFixture(t *testing.T, oauth ...string) *apiFixture {
	t.Helper()

	networks := services.NewDefaultNetworkTable()

	registry := &domainmocks.FakeConnectionRegistry{}
	conns := make([]domain.ProviderConnection, 0, len(oauth))
	for _, p := range oauth {
		conns = append(conns, domain.ProviderConnection{Provider: p, Valid: true})
	}
	registry.ListOAuthProvidersReturns(conns, nil)

	exp := time.Now().Add(time.Hour)
	source := &domainmocks.FakeCredentialSource{}
	source.GetOAuthTokenReturns(&domain.OAuthToken{AccessToken: "ya29.token", ExpiresAt: &exp}, nil)

	catalog, err := tools.NewCatalog([]tools.Entry{
		{Name: "admob_list_apps", Method: http.MethodGet, Path: "/admob/apps"},
		{Name: "admanager_update_line_item", Method: http.MethodPatch, Path: "/admanager/line-items/{line_item_id}"},
		{Name: "unity_list_placements", Method: http.MethodGet, Path: "/unity/placements"},
	})
	require.NoError(t, err)

	approvals := services.NewApprovalGateway(storage.NewMemoryStore(), config.ApprovalConfig{}, services.ApprovalGatewayOptions{Catalog: catalog})
	tasks := services.NewBackgroundTaskManager(config.TasksConfig{HeartbeatInterval: time.Second}, nil)
	visibility := services.NewProviderVisibilityFilter(registry, networks)

	broker := services.NewCredentialBroker(source, networks, config.CredentialsConfig{})
	gate := services.NewToolGate(services.ToolGateDeps{
		Networks:    networks,
		Classifier:  services.NewToolClassifier(networks, nil),
		Policy:      services.NewStandardApprovalPolicy(),
		Visibility:  visibility,
		Approvals:   approvals,
		Credentials: broker,
		Tasks:       tasks,
		Catalog:     catalog,
	})

	executor := &domainmocks.FakeToolExecutor{}
	executor.ExecuteReturns(map[string]any{"ok": true}, nil)

	srv := NewServer(config.ServerConfig{}, Deps{
		Gate:        gate,
		Approvals:   approvals,
		Tasks:       tasks,
		Visibility:  visibility,
		Credentials: broker,
		Catalog:     catalog,
		Executor:    executor,
		Health:      func(context.Context) error { return nil },
	})

	return &apiFixture{handler: srv.Router(), tasks: tasks, broker: broker, executor: executor}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return f.doAs(t, "u1", method, path, body)
}

func (f *apiFixture) doAs(t *testing.T, userID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(HeaderUserID, userID)
	req.Header.Set(HeaderSessionID, "s1")

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestServer_HealthAndIdentity(t *testing.T) {
	f := newAPIFixture(t)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tools", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", decodeBody[errorResponse](t, rec).Code)
}

func TestServer_ListToolsHidesUnconnectedNetworks(t *testing.T) {
	f := newAPIFixture(t, "admob")

	rec := f.do(t, http.MethodGet, "/v1/tools", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[struct {
		Tools []toolView `json:"tools"`
	}](t, rec)
	require.Len(t, body.Tools, 1)
	assert.Equal(t, "admob_list_apps", body.Tools[0].Tool.Function.Name)
	assert.Equal(t, domain.RiskNone, body.Tools[0].Annotation.RiskLevel)
}

func TestServer_ToolCallStatuses(t *testing.T) {
	tests := []struct {
		name       string
		tool       string
		wantStatus int
		wantOut    domain.GateOutcome
	}{
		{name: "read tool allowed", tool: "admob_list_apps", wantStatus: http.StatusOK, wantOut: domain.GateAllow},
		{name: "update needs approval", tool: "admanager_update_line_item", wantStatus: http.StatusAccepted, wantOut: domain.GatePendingApproval},
		{name: "unconnected network denied", tool: "unity_list_placements", wantStatus: http.StatusForbidden, wantOut: domain.GateDeny},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t, "admob", "gam")

			rec := f.do(t, http.MethodPost, "/v1/tool-calls", toolCallRequest{ToolName: tt.tool, Params: map[string]any{"line_item_id": "li-1"}})
			assert.Equal(t, tt.wantStatus, rec.Code)

			resp := decodeBody[toolCallResponse](t, rec)
			require.NotNil(t, resp.Decision)
			assert.Equal(t, tt.wantOut, resp.Decision.Outcome)
			assert.NotContains(t, rec.Body.String(), "ya29.token")
		})
	}
}

func TestServer_ApprovalRoundTrip(t *testing.T) {
	f := newAPIFixture(t, "gam")

	rec := f.do(t, http.MethodPost, "/v1/tool-calls", toolCallRequest{
		ToolName: "admanager_update_line_item",
		Params:   map[string]any{"line_item_id": "li-1", "budget": 100},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	approvalID := decodeBody[toolCallResponse](t, rec).Decision.ApprovalID
	require.NotEmpty(t, approvalID)

	rec = f.do(t, http.MethodGet, "/v1/approvals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), approvalID)

	rec = f.do(t, http.MethodPost, "/v1/approvals/"+approvalID+"/resolve", resolveRequest{
		Decision:       "modify",
		ModifiedParams: map[string]any{"line_item_id": "li-1", "budget": 50},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/approvals/"+approvalID+"/resolve", resolveRequest{Decision: "approve"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/tool-calls/resume", resumeRequest{
		ApprovalID: approvalID,
		ToolName:   "admanager_update_line_item",
		Execute:    true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[toolCallResponse](t, rec)
	assert.Equal(t, domain.GateAllow, resp.Decision.Outcome)
	assert.Equal(t, float64(50), resp.Decision.Params["budget"])
	require.NotNil(t, resp.Execution)
	assert.Equal(t, true, resp.Execution.Result["ok"])

	require.Equal(t, 1, f.executor.ExecuteCallCount())
	_, inv, _ := f.executor.ExecuteArgsForCall(0)
	assert.Equal(t, "ya29.token", inv.Credentials.AccessToken)

	rec = f.do(t, http.MethodPost, "/v1/tool-calls/resume", resumeRequest{ApprovalID: approvalID, ToolName: "admanager_update_line_item"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ApprovalsAreOwnerOnly(t *testing.T) {
	f := newAPIFixture(t, "gam")

	rec := f.do(t, http.MethodPost, "/v1/tool-calls", toolCallRequest{
		ToolName: "admanager_update_line_item",
		Params:   map[string]any{"line_item_id": "li-1", "budget": 100},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	approvalID := decodeBody[toolCallResponse](t, rec).Decision.ApprovalID

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{name: "get", method: http.MethodGet, path: "/v1/approvals/" + approvalID},
		{name: "resolve", method: http.MethodPost, path: "/v1/approvals/" + approvalID + "/resolve", body: resolveRequest{Decision: "approve"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.doAs(t, "u2", tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Equal(t, "approval_not_found", decodeBody[errorResponse](t, rec).Code)
		})
	}

	rec = f.do(t, http.MethodGet, "/v1/approvals/"+approvalID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.ApprovalPending, decodeBody[domain.ApprovalView](t, rec).Status)
}

func TestServer_ResolveErrors(t *testing.T) {
	f := newAPIFixture(t, "gam")

	tests := []struct {
		name       string
		path       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{name: "unknown approval", path: "/v1/approvals/missing/resolve", body: resolveRequest{Decision: "approve"}, wantStatus: http.StatusNotFound, wantCode: "approval_not_found"},
		{name: "bad decision", path: "/v1/approvals/missing/resolve", body: resolveRequest{Decision: "maybe"}, wantStatus: http.StatusBadRequest, wantCode: "bad_request"},
		{name: "modify without params", path: "/v1/approvals/missing/resolve", body: resolveRequest{Decision: "modify"}, wantStatus: http.StatusBadRequest, wantCode: "bad_request"},
		{name: "unknown field", path: "/v1/approvals/missing/resolve", body: map[string]any{"verdict": "approve"}, wantStatus: http.StatusBadRequest, wantCode: "bad_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeBody[errorResponse](t, rec).Code)
		})
	}
}

func TestServer_BlockedTools(t *testing.T) {
	f := newAPIFixture(t, "admob")

	rec := f.do(t, http.MethodPost, "/v1/blocked-tools", scopedToolRequest{ToolName: "admob_list_apps", Scope: "session", Reason: "too noisy"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/tool-calls", toolCallRequest{ToolName: "admob_list_apps"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	resp := decodeBody[toolCallResponse](t, rec)
	assert.Equal(t, domain.DenyBlocked, resp.Decision.Reason)

	rec = f.do(t, http.MethodGet, "/v1/blocked-tools?scope=session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "too noisy")

	rec = f.do(t, http.MethodDelete, "/v1/blocked-tools?scope=session&tool_name=admob_list_apps", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeBody[map[string]int](t, rec)["removed"])

	rec = f.do(t, http.MethodPost, "/v1/tool-calls", toolCallRequest{ToolName: "admob_list_apps"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/blocked-tools?scope=org", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_PreApprovalSkipsApproval(t *testing.T) {
	f := newAPIFixture(t, "gam")

	rec := f.do(t, http.MethodPost, "/v1/pre-approvals", scopedToolRequest{ToolName: "admanager_update_line_item", TTLSeconds: 60})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/tool-calls", toolCallRequest{ToolName: "admanager_update_line_item", Params: map[string]any{"line_item_id": "li-1"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[toolCallResponse](t, rec).Decision.PreApproved)

	rec = f.do(t, http.MethodPost, "/v1/tool-calls", toolCallRequest{ToolName: "admanager_update_line_item", Params: map[string]any{"line_item_id": "li-1"}})
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestServer_Tasks(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/tasks/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	task, err := f.tasks.CreateTaskFor("u1", "report", 0)
	require.NoError(t, err)

	rec = f.do(t, http.MethodGet, "/v1/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), task.ID())

	rec = f.do(t, http.MethodPost, "/v1/tasks/"+task.ID()+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/tasks/"+task.ID()+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/tasks/"+task.ID(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[taskResponse](t, rec)
	assert.Equal(t, domain.BackgroundTaskStatusCancelled, resp.Status)
	require.NotNil(t, resp.Result)
	assert.Equal(t, domain.BackgroundTaskStatusCancelled, resp.Result.Status)
}

func TestServer_TasksAreOwnerOnly(t *testing.T) {
	f := newAPIFixture(t)

	task, err := f.tasks.CreateTaskFor("u1", "report", 0)
	require.NoError(t, err)
	unowned, err := f.tasks.CreateTask("maintenance", 0)
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{name: "get", method: http.MethodGet, path: "/v1/tasks/" + task.ID()},
		{name: "cancel", method: http.MethodPost, path: "/v1/tasks/" + task.ID() + "/cancel"},
		{name: "stream", method: http.MethodGet, path: "/v1/tasks/" + task.ID() + "/stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.doAs(t, "u2", tt.method, tt.path, nil)
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Equal(t, "task_not_found", decodeBody[errorResponse](t, rec).Code)
		})
	}
	assert.Equal(t, domain.BackgroundTaskStatusPending, task.Snapshot().Status)

	rec := f.doAs(t, "u2", http.MethodGet, "/v1/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), task.ID())

	rec = f.do(t, http.MethodGet, "/v1/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), task.ID())
	assert.NotContains(t, rec.Body.String(), unowned.ID())
}

func TestServer_InvalidateCredentials(t *testing.T) {
	f := newAPIFixture(t, "admob")

	rec := f.do(t, http.MethodPost, "/v1/tool-calls", toolCallRequest{ToolName: "admob_list_apps"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, f.broker.CacheSize())

	rec = f.doAs(t, "u2", http.MethodPost, "/v1/credentials/invalidate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decodeBody[map[string]int](t, rec)["removed"])
	assert.Equal(t, 1, f.broker.CacheSize())

	rec = f.do(t, http.MethodPost, "/v1/credentials/invalidate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeBody[map[string]int](t, rec)["removed"])
	assert.Equal(t, 0, f.broker.CacheSize())
}

func TestServer_StreamTask(t *testing.T) {
	f := newAPIFixture(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	release := make(chan struct{})
	task, err := f.tasks.SubmitFor(context.Background(), "u1", "report", 0, func(ctx context.Context, r domain.ProgressReporter) (map[string]any, error) {
		r.Report(0.5, "halfway", nil)
		<-release
		return map[string]any{"rows": 3}, nil
	})
	require.NoError(t, err)

	header := http.Header{}
	header.Set(HeaderUserID, "u1")
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/tasks/" + task.ID() + "/stream"

	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	defer func() { _ = conn.Close() }()

	close(release)

	var events []domain.TaskEvent
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var ev domain.TaskEvent
		if err := conn.ReadJSON(&ev); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected read error: %v", err)
			break
		}
		events = append(events, ev)
	}

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, domain.TaskEventComplete, last.Type)
	assert.Equal(t, float64(3), last.Result["rows"])
}

func TestServer_StreamUnknownTaskIsNotUpgraded(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/tasks/missing/stream", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
