package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	audit "github.com/inference-gateway/adgate/internal/audit"
	domain "github.com/inference-gateway/adgate/internal/domain"
	logger "github.com/inference-gateway/adgate/internal/logger"
	metrics "github.com/inference-gateway/adgate/internal/metrics"
	sdk "github.com/inference-gateway/sdk"
	zap "go.uber.org/zap"
)

// ErrCallNotAllowed is returned by Execute for decisions that are not allow
var ErrCallNotAllowed = errors.New("tool call not allowed")

// ToolGate runs every tool call through visibility, block list,
// classification, approval and credential brokering, in that order.
type ToolGate struct {
	networks    *NetworkTable
	classifier  *ToolClassifier
	policy      domain.ApprovalPolicy
	visibility  *ProviderVisibilityFilter
	approvals   *ApprovalGateway
	credentials *CredentialBroker
	tasks       *BackgroundTaskManager
	catalog     domain.ToolCatalog
	audit       *audit.Logger
}

// ToolGateDeps groups the collaborators of a ToolGate
type ToolGateDeps struct {
	Networks    *NetworkTable
	Classifier  *ToolClassifier
	Policy      domain.ApprovalPolicy
	Visibility  *ProviderVisibilityFilter
	Approvals   *ApprovalGateway
	Credentials *CredentialBroker
	Tasks       *BackgroundTaskManager
	Catalog     domain.ToolCatalog
	Audit       *audit.Logger
}

// NewToolGate creates a tool gate. A nil policy falls back to the standard policy.
func NewToolGate(deps ToolGateDeps) *ToolGate {
	g := &ToolGate{
		networks:    deps.Networks,
		classifier:  deps.Classifier,
		policy:      deps.Policy,
		visibility:  deps.Visibility,
		approvals:   deps.Approvals,
		credentials: deps.Credentials,
		tasks:       deps.Tasks,
		catalog:     deps.Catalog,
		audit:       deps.Audit,
	}
	if g.networks == nil {
		g.networks = NewDefaultNetworkTable()
	}
	if g.classifier == nil {
		g.classifier = NewToolClassifier(g.networks, nil)
	}
	if g.policy == nil {
		g.policy = NewStandardApprovalPolicy()
	}
	return g
}

// Classify annotates a tool using the catalog's method hint when one is known
func (g *ToolGate) Classify(toolName string) domain.ToolAnnotation {
	hint := ""
	if g.catalog != nil {
		hint = g.catalog.MethodHint(toolName)
	}
	return g.classifier.Classify(toolName, hint)
}

// Evaluate gates one tool call. Denials and pending approvals are returned as
// decisions; only collaborator or store failures are returned as errors.
func (g *ToolGate) Evaluate(ctx context.Context, req domain.ToolCallRequest) (*domain.GateDecision, error) {
	ctx = logger.WithRequest(ctx, req.UserID, req.OrganizationID, req.ToolName)

	decision := &domain.GateDecision{
		ToolName:       req.ToolName,
		UserID:         req.UserID,
		OrganizationID: req.OrganizationID,
		Params:         req.Params,
	}

	if err := g.visibility.VerifyToolAccess(ctx, req.ToolName, req.UserID, req.OrganizationID); err != nil {
		g.dropCredentials(ctx, req.ToolName, req.UserID, req.OrganizationID)
		return g.finish(ctx, req, deny(decision, domain.DenyNotConnected, err))
	}

	blocked, err := g.approvals.BlockedEntry(ctx, req.ToolName, req.Scopes()...)
	if err != nil {
		return nil, fmt.Errorf("failed to check block list: %w", err)
	}
	if blocked != nil {
		return g.finish(ctx, req, deny(decision, domain.DenyBlocked,
			&domain.ToolBlockedError{ToolName: req.ToolName, Reason: blocked.Reason}))
	}

	decision.Annotation = g.Classify(req.ToolName)

	if g.policy.ShouldRequireApproval(ctx, decision.Annotation) {
		preApproved, err := g.consumePreApproval(ctx, req)
		if err != nil {
			return nil, err
		}

		if !preApproved {
			id, err := g.approvals.CreatePendingApproval(ctx, req, decision.Annotation)
			var blockedErr *domain.ToolBlockedError
			switch {
			case errors.As(err, &blockedErr):
				return g.finish(ctx, req, deny(decision, domain.DenyBlocked, blockedErr))
			case err != nil:
				return nil, err
			}
			decision.Outcome = domain.GatePendingApproval
			decision.ApprovalID = id
			decision.Message = fmt.Sprintf("The %s action needs your approval before it runs.", req.ToolName)
			return g.finish(ctx, req, decision)
		}
		decision.PreApproved = true
	}

	return g.allow(ctx, req, decision)
}

// EvaluateToolCall gates a tool call emitted by a chat completion. Arguments
// are decoded from their JSON string form.
func (g *ToolGate) EvaluateToolCall(ctx context.Context, call sdk.ChatCompletionMessageToolCall, userID, organizationID, sessionID string) (*domain.GateDecision, error) {
	params, err := DecodeToolArguments(call.Function.Arguments)
	if err != nil {
		return nil, fmt.Errorf("invalid arguments for %s: %w", call.Function.Name, err)
	}
	return g.Evaluate(ctx, domain.ToolCallRequest{
		ToolName:       call.Function.Name,
		Params:         params,
		UserID:         userID,
		OrganizationID: organizationID,
		SessionID:      sessionID,
	})
}

// DecodeToolArguments parses the JSON argument string of a tool call. Blank
// arguments decode to an empty map.
func DecodeToolArguments(arguments string) (map[string]any, error) {
	params := map[string]any{}
	if strings.TrimSpace(arguments) == "" {
		return params, nil
	}
	if err := json.Unmarshal([]byte(arguments), &params); err != nil {
		return nil, err
	}
	return params, nil
}

// Resume finishes a call that was waiting for approval. Access is re-verified
// before the approval is consumed; a rejected approval yields a deny decision
// and an expired one returns *domain.ApprovalExpiredError.
func (g *ToolGate) Resume(ctx context.Context, req domain.ToolCallRequest, approvalID string) (*domain.GateDecision, error) {
	ctx = logger.WithRequest(ctx, req.UserID, req.OrganizationID, req.ToolName)

	decision := &domain.GateDecision{
		ToolName:       req.ToolName,
		UserID:         req.UserID,
		OrganizationID: req.OrganizationID,
		ApprovalID:     approvalID,
		Params:         req.Params,
	}

	if err := g.visibility.VerifyToolAccess(ctx, req.ToolName, req.UserID, req.OrganizationID); err != nil {
		g.dropCredentials(ctx, req.ToolName, req.UserID, req.OrganizationID)
		return g.finish(ctx, req, deny(decision, domain.DenyNotConnected, err))
	}

	pending, _, err := g.approvals.load(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	if pending.ToolName != req.ToolName || pending.UserID != req.UserID {
		logger.L(ctx).Warn("approval does not belong to this call",
			zap.String("approval_id", approvalID),
			zap.String("approval_tool", pending.ToolName))
		return nil, &domain.ApprovalNotFoundError{ApprovalID: approvalID}
	}

	approval, err := g.approvals.ConsumeApproval(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	decision.Annotation = approval.Annotation

	if approval.Status == domain.ApprovalRejected {
		return g.finish(ctx, req, deny(decision, domain.DenyRejected,
			&domain.ApprovalRejectedError{ApprovalID: approvalID, ToolName: req.ToolName}))
	}

	decision.Params = approval.EffectiveParams()
	req.Params = decision.Params
	return g.allow(ctx, req, decision)
}

// Execute runs an allowed call. Calls the executor marks long-running are
// submitted to the task manager and return at once with the task id.
func (g *ToolGate) Execute(ctx context.Context, decision *domain.GateDecision, executor domain.ToolExecutor) (*domain.ExecutionResult, error) {
	if !decision.Allowed() {
		return nil, fmt.Errorf("%w: %s", ErrCallNotAllowed, decision.ToolName)
	}

	if err := g.visibility.VerifyToolAccess(ctx, decision.ToolName, decision.UserID, decision.OrganizationID); err != nil {
		g.dropCredentials(ctx, decision.ToolName, decision.UserID, decision.OrganizationID)
		return nil, err
	}

	inv := domain.ToolInvocation{
		ToolName:       decision.ToolName,
		Params:         decision.Params,
		UserID:         decision.UserID,
		OrganizationID: decision.OrganizationID,
		Credentials:    decision.Credentials,
	}
	network := decision.Annotation.Network

	if g.tasks != nil && executor.IsLongRunning(decision.ToolName) {
		task, err := g.tasks.SubmitFor(ctx, decision.UserID, decision.ToolName, 0, func(ctx context.Context, reporter domain.ProgressReporter) (map[string]any, error) {
			return g.run(ctx, executor, inv, network, reporter)
		})
		if err != nil {
			return nil, err
		}
		return &domain.ExecutionResult{ToolName: decision.ToolName, TaskID: task.ID(), Background: true}, nil
	}

	result, err := g.run(ctx, executor, inv, network, contextReporter{ctx: ctx})
	if err != nil {
		return nil, err
	}
	return &domain.ExecutionResult{ToolName: decision.ToolName, Result: result}, nil
}

func (g *ToolGate) run(ctx context.Context, executor domain.ToolExecutor, inv domain.ToolInvocation, network string, reporter domain.ProgressReporter) (map[string]any, error) {
	start := time.Now()
	result, err := executor.Execute(ctx, inv, reporter)

	status := "success"
	if err != nil {
		status = "error"
		logger.L(ctx).Warn("tool execution failed", zap.String("tool", inv.ToolName), zap.Error(err))
	}
	metrics.RecordToolExecution(network, status, time.Since(start))
	return result, err
}

func (g *ToolGate) consumePreApproval(ctx context.Context, req domain.ToolCallRequest) (bool, error) {
	for _, scope := range req.Scopes() {
		ok, err := g.approvals.CheckAndConsumePreApproval(ctx, req.ToolName, scope)
		if err != nil {
			return false, fmt.Errorf("failed to check pre-approval: %w", err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// allow fetches credentials for the tool's network. Tools without a network
// prefix run without credentials.
func (g *ToolGate) allow(ctx context.Context, req domain.ToolCallRequest, decision *domain.GateDecision) (*domain.GateDecision, error) {
	if _, ok := g.networks.ExtractNetwork(req.ToolName); ok {
		creds, err := g.credentials.GetCredentialsForTool(ctx, req.UserID, req.OrganizationID, req.ToolName)
		if err != nil {
			var notFound *domain.CredentialsNotFoundError
			var expired *domain.CredentialsExpiredError
			if errors.As(err, &notFound) || errors.As(err, &expired) {
				return g.finish(ctx, req, deny(decision, domain.DenyNotConnected, err))
			}
			return nil, err
		}
		decision.Credentials = creds
	}

	decision.Outcome = domain.GateAllow
	return g.finish(ctx, req, decision)
}

// dropCredentials evicts the cached credential of a network the user is no
// longer connected to, so a reconnect fetches fresh credentials
func (g *ToolGate) dropCredentials(ctx context.Context, toolName, userID, organizationID string) {
	network, ok := g.networks.ExtractNetwork(toolName)
	if !ok || g.credentials == nil {
		return
	}
	g.credentials.Invalidate(network, userID, organizationID)
	logger.L(ctx).Debug("dropped cached credentials", zap.String("network", network))
}

func deny(decision *domain.GateDecision, reason domain.DenyReason, err error) *domain.GateDecision {
	decision.Outcome = domain.GateDeny
	decision.Reason = reason
	decision.Message = domain.UserMessageOf(err)
	decision.Credentials = nil
	return decision
}

func (g *ToolGate) finish(ctx context.Context, req domain.ToolCallRequest, decision *domain.GateDecision) (*domain.GateDecision, error) {
	network := decision.Annotation.Network
	if network == "" {
		network, _ = g.networks.ExtractNetwork(req.ToolName)
	}
	metrics.RecordGateDecision(string(decision.Outcome), string(decision.Reason), network)
	g.audit.ToolCallGated(req, decision)

	logger.L(ctx).Info("tool call gated",
		zap.String("outcome", string(decision.Outcome)),
		zap.String("reason", string(decision.Reason)),
		zap.String("risk_level", string(decision.Annotation.RiskLevel)),
		zap.String("approval_id", decision.ApprovalID),
		zap.Bool("pre_approved", decision.PreApproved))

	return decision, nil
}

// contextReporter adapts an inline call's context to a ProgressReporter
type contextReporter struct {
	ctx context.Context
}

func (r contextReporter) Report(value float64, message string, _ *time.Duration) {
	logger.L(r.ctx).Debug("tool progress", zap.Float64("progress", value), zap.String("message", message))
}

func (r contextReporter) Cancelled() <-chan struct{} {
	return r.ctx.Done()
}
