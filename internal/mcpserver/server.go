package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	config "github.com/inference-gateway/adgate/config"
	domain "github.com/inference-gateway/adgate/internal/domain"
	logger "github.com/inference-gateway/adgate/internal/logger"
	services "github.com/inference-gateway/adgate/internal/services"
	mcp "github.com/metoro-io/mcp-golang"
	mcphttp "github.com/metoro-io/mcp-golang/transport/http"
)

// Deps are the services exposed as MCP tools
type Deps struct {
	Gate        *services.ToolGate
	Approvals   *services.ApprovalGateway
	Tasks       *services.BackgroundTaskManager
	Visibility  *services.ProviderVisibilityFilter
	Credentials *services.CredentialBroker
	Catalog     domain.ToolCatalog
}

// Server exposes the gate's read and decision operations to MCP clients
type Server struct {
	cfg  config.MCPConfig
	deps Deps
	ctx  context.Context
}

// NewServer creates the MCP tool surface
func NewServer(cfg config.MCPConfig, deps Deps) *Server {
	return &Server{cfg: cfg, deps: deps, ctx: context.Background()}
}

// IdentityArgs identify the caller. The MCP endpoint is only reachable by
// the trusted front end, which fills these in.
type IdentityArgs struct {
	UserID         string `json:"user_id" jsonschema:"required,description=Caller user id"`
	OrganizationID string `json:"organization_id" jsonschema:"description=Caller organization id"`
}

type ListVisibleToolsArgs struct {
	IdentityArgs
}

type ClassifyToolArgs struct {
	ToolName string `json:"tool_name" jsonschema:"required,description=Fully qualified tool name such as admob_list_apps"`
}

type EvaluateToolCallArgs struct {
	IdentityArgs
	SessionID string `json:"session_id" jsonschema:"description=Conversation session id for session-scoped blocks and pre-approvals"`
	ToolName  string `json:"tool_name" jsonschema:"required,description=Tool to gate"`
	Arguments string `json:"arguments" jsonschema:"description=Tool arguments as a JSON object string"`
}

type ApprovalStatusArgs struct {
	IdentityArgs
	ApprovalID string `json:"approval_id" jsonschema:"required,description=Approval id returned by evaluate_tool_call"`
}

type ResolveApprovalArgs struct {
	IdentityArgs
	ApprovalID     string `json:"approval_id" jsonschema:"required,description=Approval id to resolve"`
	Decision       string `json:"decision" jsonschema:"required,enum=approve,enum=reject,enum=modify,description=Human decision"`
	ModifiedParams string `json:"modified_params" jsonschema:"description=Edited arguments as a JSON object string (modify only)"`
}

type InvalidateCredentialsArgs struct {
	IdentityArgs
}

type TaskArgs struct {
	IdentityArgs
	TaskID string `json:"task_id" jsonschema:"required,description=Background task id"`
}

// Register adds every gate tool to server
func (s *Server) Register(server *mcp.Server) error {
	tools := []struct {
		name        string
		description string
		handler     any
	}{
		{"list_visible_tools", "List the platform tools the caller can use, with their risk classification", s.listVisibleTools},
		{"classify_tool", "Classify a tool's risk level, category and approval requirement", s.classifyTool},
		{"evaluate_tool_call", "Gate a tool call: returns allow, deny or pending_approval", s.evaluateToolCall},
		{"approval_status", "Show a pending approval and its status", s.approvalStatus},
		{"resolve_approval", "Approve, reject or modify a pending approval", s.resolveApproval},
		{"task_status", "Show a background task's progress and result", s.taskStatus},
		{"cancel_task", "Cancel a pending or running background task", s.cancelTask},
		{"invalidate_credentials", "Drop the caller's cached platform credentials after a disconnect or reconnect", s.invalidateCredentials},
	}

	for _, t := range tools {
		if err := server.RegisterTool(t.name, t.description, t.handler); err != nil {
			return fmt.Errorf("failed to register %s tool: %w", t.name, err)
		}
	}
	return nil
}

// Start serves MCP over HTTP until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	s.ctx = ctx

	transport := mcphttp.NewHTTPTransport(s.cfg.Path)
	transport.WithAddr(s.cfg.Addr)

	server := mcp.NewServer(transport)
	if err := s.Register(server); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("MCP server listening", "addr", s.cfg.Addr, "path", s.cfg.Path)
		errCh <- server.Serve()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("mcp server error: %w", err)
		}
		<-ctx.Done()
	case <-ctx.Done():
	}

	logger.Info("Shutting down MCP server...")
	return transport.Close()
}

func jsonResponse(v any) (*mcp.ToolResponse, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	return mcp.NewToolResponse(mcp.NewTextContent(string(data))), nil
}

// errorText renders user-facing failures as tool output instead of protocol errors
func errorText(err error) (*mcp.ToolResponse, error) {
	msg := err.Error()
	var uf domain.UserFacingError
	if errors.As(err, &uf) {
		msg = uf.UserMessage()
	}
	return mcp.NewToolResponse(mcp.NewTextContent("Error: " + msg)), nil
}

func decodeObject(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	return services.DecodeToolArguments(raw)
}

func (s *Server) listVisibleTools(args ListVisibleToolsArgs) (*mcp.ToolResponse, error) {
	if args.UserID == "" {
		return errorText(errors.New("user_id is required"))
	}

	var defs []string
	if s.deps.Catalog != nil {
		for _, d := range s.deps.Catalog.Definitions() {
			defs = append(defs, d.Function.Name)
		}
	}

	type visibleTool struct {
		Name       string                `json:"name"`
		Annotation domain.ToolAnnotation `json:"annotation"`
	}
	names := s.deps.Visibility.FilterToolNames(s.ctx, defs, args.UserID, args.OrganizationID)
	out := make([]visibleTool, 0, len(names))
	for _, n := range names {
		out = append(out, visibleTool{Name: n, Annotation: s.deps.Gate.Classify(n)})
	}
	return jsonResponse(map[string]any{"tools": out})
}

func (s *Server) classifyTool(args ClassifyToolArgs) (*mcp.ToolResponse, error) {
	if args.ToolName == "" {
		return errorText(errors.New("tool_name is required"))
	}
	return jsonResponse(s.deps.Gate.Classify(args.ToolName))
}

func (s *Server) evaluateToolCall(args EvaluateToolCallArgs) (*mcp.ToolResponse, error) {
	if args.UserID == "" || args.ToolName == "" {
		return errorText(errors.New("user_id and tool_name are required"))
	}
	params, err := decodeObject(args.Arguments)
	if err != nil {
		return errorText(err)
	}

	decision, err := s.deps.Gate.Evaluate(s.ctx, domain.ToolCallRequest{
		ToolName:       args.ToolName,
		Params:         params,
		UserID:         args.UserID,
		OrganizationID: args.OrganizationID,
		SessionID:      args.SessionID,
	})
	if err != nil {
		return errorText(err)
	}
	return jsonResponse(decision)
}

func (s *Server) approvalStatus(args ApprovalStatusArgs) (*mcp.ToolResponse, error) {
	if args.UserID == "" {
		return errorText(errors.New("user_id is required"))
	}
	view, err := s.deps.Approvals.GetApprovalForUser(s.ctx, args.ApprovalID, args.UserID)
	if err != nil {
		return errorText(err)
	}
	return jsonResponse(view)
}

func (s *Server) resolveApproval(args ResolveApprovalArgs) (*mcp.ToolResponse, error) {
	if args.UserID == "" {
		return errorText(errors.New("user_id is required"))
	}
	decision, ok := domain.ParseApprovalDecision(args.Decision)
	if !ok {
		return errorText(fmt.Errorf("unknown decision %q", args.Decision))
	}
	modified, err := decodeObject(args.ModifiedParams)
	if err != nil {
		return errorText(err)
	}
	if decision == domain.DecisionModify && modified == nil {
		return errorText(errors.New("modified_params is required for modify"))
	}

	approval, err := s.deps.Approvals.ResolveApprovalForUser(s.ctx, args.ApprovalID, args.UserID, decision, modified)
	if err != nil {
		return errorText(err)
	}
	return jsonResponse(map[string]any{"approval_id": approval.ID, "status": approval.Status})
}

func (s *Server) taskStatus(args TaskArgs) (*mcp.ToolResponse, error) {
	task, err := s.deps.Tasks.OwnedTask(args.TaskID, args.UserID)
	if err != nil {
		return errorText(err)
	}
	if res, ok := task.Result(); ok {
		return jsonResponse(res)
	}
	return jsonResponse(task.Snapshot())
}

func (s *Server) cancelTask(args TaskArgs) (*mcp.ToolResponse, error) {
	if _, err := s.deps.Tasks.OwnedTask(args.TaskID, args.UserID); err != nil {
		return errorText(err)
	}
	if err := s.deps.Tasks.CancelTask(args.TaskID); err != nil {
		return errorText(err)
	}
	return jsonResponse(map[string]any{"task_id": args.TaskID, "status": domain.BackgroundTaskStatusCancelled})
}

func (s *Server) invalidateCredentials(args InvalidateCredentialsArgs) (*mcp.ToolResponse, error) {
	if args.UserID == "" {
		return errorText(errors.New("user_id is required"))
	}
	removed := 0
	if s.deps.Credentials != nil {
		removed = s.deps.Credentials.InvalidateUser(args.UserID)
	}
	logger.Info("Invalidated cached credentials", "user_id", args.UserID, "removed", removed)
	return jsonResponse(map[string]any{"removed": removed})
}
