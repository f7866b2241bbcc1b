package web

import (
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	domain "github.com/inference-gateway/adgate/internal/domain"
	sdk "github.com/inference-gateway/sdk"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		if err := s.deps.Health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"providers": s.deps.Visibility.GetProviderStatuses(r.Context(), id.UserID, id.OrganizationID),
	})
}

type toolView struct {
	Tool       sdk.ChatCompletionTool `json:"tool"`
	Annotation domain.ToolAnnotation  `json:"annotation"`
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())

	var defs []sdk.ChatCompletionTool
	if s.deps.Catalog != nil {
		defs = s.deps.Catalog.Definitions()
	}
	visible := s.deps.Visibility.GetVisibleTools(r.Context(), defs, id.UserID, id.OrganizationID)

	out := make([]toolView, 0, len(visible))
	for _, tool := range visible {
		out = append(out, toolView{Tool: tool, Annotation: s.deps.Gate.Classify(tool.Function.Name)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": out})
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	writeJSON(w, http.StatusOK, map[string]any{
		"tool_name":  name,
		"annotation": s.deps.Gate.Classify(name),
	})
}

type toolCallRequest struct {
	ToolName string         `json:"tool_name"`
	Params   map[string]any `json:"params"`
	Execute  bool           `json:"execute"`
}

type resumeRequest struct {
	ApprovalID string         `json:"approval_id"`
	ToolName   string         `json:"tool_name"`
	Params     map[string]any `json:"params"`
	Execute    bool           `json:"execute"`
}

type toolCallResponse struct {
	Decision  *domain.GateDecision    `json:"decision"`
	Execution *domain.ExecutionResult `json:"execution,omitempty"`
}

func decisionStatus(d *domain.GateDecision) int {
	switch d.Outcome {
	case domain.GateDeny:
		return http.StatusForbidden
	case domain.GatePendingApproval:
		return http.StatusAccepted
	default:
		return http.StatusOK
	}
}

func (s *Server) handleToolCall(w http.ResponseWriter, r *http.Request) {
	var body toolCallRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.ToolName == "" {
		writeError(w, r, badRequest("tool_name is required"))
		return
	}

	id := identityFrom(r.Context())
	decision, err := s.deps.Gate.Evaluate(r.Context(), id.request(body.ToolName, body.Params))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.respondDecision(w, r, decision, body.Execute)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	var body resumeRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.ApprovalID == "" || body.ToolName == "" {
		writeError(w, r, badRequest("approval_id and tool_name are required"))
		return
	}

	id := identityFrom(r.Context())
	decision, err := s.deps.Gate.Resume(r.Context(), id.request(body.ToolName, body.Params), body.ApprovalID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.respondDecision(w, r, decision, body.Execute)
}

func (s *Server) respondDecision(w http.ResponseWriter, r *http.Request, decision *domain.GateDecision, execute bool) {
	resp := toolCallResponse{Decision: decision}
	if execute && decision.Allowed() && s.deps.Executor != nil {
		res, err := s.deps.Gate.Execute(r.Context(), decision, s.deps.Executor)
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp.Execution = res
	}
	writeJSON(w, decisionStatus(decision), resp)
}

func (s *Server) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	approvals, err := s.deps.Approvals.ListPendingApprovals(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"approvals": approvals})
}

func (s *Server) handleGetApproval(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	view, err := s.deps.Approvals.GetApprovalForUser(r.Context(), chi.URLParam(r, "id"), id.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type resolveRequest struct {
	Decision       string         `json:"decision"`
	ModifiedParams map[string]any `json:"modified_params"`
}

func (s *Server) handleResolveApproval(w http.ResponseWriter, r *http.Request) {
	var body resolveRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	decision, ok := domain.ParseApprovalDecision(body.Decision)
	if !ok {
		writeError(w, r, badRequest("decision must be one of approve, reject, modify"))
		return
	}
	if decision == domain.DecisionModify && body.ModifiedParams == nil {
		writeError(w, r, badRequest("modified_params is required for modify"))
		return
	}

	id := identityFrom(r.Context())
	approval, err := s.deps.Approvals.ResolveApprovalForUser(r.Context(), chi.URLParam(r, "id"), id.UserID, decision, body.ModifiedParams)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"approval_id": approval.ID,
		"status":      approval.Status,
		"resolved_at": approval.ResolvedAt,
	})
}

type scopedToolRequest struct {
	ToolName   string `json:"tool_name"`
	Scope      string `json:"scope"`
	Reason     string `json:"reason,omitempty"`
	TTLSeconds int    `json:"ttl_seconds,omitempty"`
}

// scopeFor resolves "user" (default) or "session" to the caller's scope
func scopeFor(id identity, kind string) (domain.ToolScope, error) {
	switch domain.ScopeKind(kind) {
	case "", domain.ScopeUser:
		return domain.UserScope(id.UserID), nil
	case domain.ScopeSession:
		if id.SessionID == "" {
			return domain.ToolScope{}, badRequest("session scope requires the " + HeaderSessionID + " header")
		}
		return domain.SessionScope(id.SessionID), nil
	default:
		return domain.ToolScope{}, badRequest("scope must be user or session")
	}
}

func (s *Server) handleAddPreApproval(w http.ResponseWriter, r *http.Request) {
	var body scopedToolRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.ToolName == "" || body.TTLSeconds < 0 {
		writeError(w, r, badRequest("tool_name is required and ttl_seconds must not be negative"))
		return
	}
	scope, err := scopeFor(identityFrom(r.Context()), body.Scope)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ttl := time.Duration(body.TTLSeconds) * time.Second
	if err := s.deps.Approvals.AddPreApprovedTool(r.Context(), body.ToolName, scope, ttl); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"tool_name": body.ToolName, "scope": scope})
}

func (s *Server) handleListBlocked(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFor(identityFrom(r.Context()), r.URL.Query().Get("scope"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := s.deps.Approvals.ListBlockedTools(r.Context(), scope)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocked_tools": entries})
}

func (s *Server) handleAddBlocked(w http.ResponseWriter, r *http.Request) {
	var body scopedToolRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.ToolName == "" {
		writeError(w, r, badRequest("tool_name is required"))
		return
	}
	scope, err := scopeFor(identityFrom(r.Context()), body.Scope)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.deps.Approvals.AddBlockedTool(r.Context(), body.ToolName, scope, body.Reason); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"tool_name": body.ToolName, "scope": scope})
}

func (s *Server) handleClearBlocked(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scope, err := scopeFor(identityFrom(r.Context()), q.Get("scope"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	removed, err := s.deps.Approvals.ClearBlockedTools(r.Context(), scope, q.Get("tool_name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"tasks": s.deps.Tasks.ListTasksFor(id.UserID)})
}

type taskResponse struct {
	domain.TaskSnapshot
	Result *domain.TaskResult `json:"result,omitempty"`
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.deps.Tasks.OwnedTask(chi.URLParam(r, "id"), identityFrom(r.Context()).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := taskResponse{TaskSnapshot: task.Snapshot()}
	if res, ok := task.Result(); ok {
		resp.Result = res
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")
	if _, err := s.deps.Tasks.OwnedTask(taskID, identityFrom(r.Context()).UserID); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Tasks.CancelTask(taskID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task_id": taskID, "status": domain.BackgroundTaskStatusCancelled})
}

func (s *Server) handleInvalidateCredentials(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	removed := 0
	if s.deps.Credentials != nil {
		removed = s.deps.Credentials.InvalidateUser(id.UserID)
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}
