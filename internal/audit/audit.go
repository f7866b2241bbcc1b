// Package audit writes an append-only trail of gate decisions and approval
// mutations, separate from the application log.
package audit

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	config "github.com/inference-gateway/adgate/config"
	domain "github.com/inference-gateway/adgate/internal/domain"
	zerolog "github.com/rs/zerolog"
)

const redacted = "[REDACTED]"

var (
	bearerTokenPattern = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9\-._~+/]+=*`)
	keyValuePattern    = regexp.MustCompile(`(?i)\b(token|secret|password|api_key|authorization)\s*[:=]\s*([^\s,;]+)`)
	sensitiveKeys      = []string{"token", "secret", "password", "api_key", "apikey", "authorization"}
)

// Logger emits structured audit entries. A nil *Logger discards everything.
type Logger struct {
	logger zerolog.Logger
	closer io.Closer
}

// NewLogger wraps an existing zerolog logger
func NewLogger(logger zerolog.Logger) *Logger {
	return &Logger{logger: logger.With().Str("component", "audit").Logger()}
}

// Open builds the audit logger described by cfg. It returns nil when auditing
// is disabled; an empty path writes to stderr.
func Open(cfg config.AuditConfig) (*Logger, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	if cfg.Path == "" {
		return NewLogger(zerolog.New(os.Stderr).With().Timestamp().Logger()), nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	f, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	l := NewLogger(zerolog.New(f).With().Timestamp().Logger())
	l.closer = f
	return l, nil
}

// Close releases the audit file, if any
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// ToolCallGated records one gate decision
func (l *Logger) ToolCallGated(req domain.ToolCallRequest, decision *domain.GateDecision) {
	if l == nil || decision == nil {
		return
	}

	entry := l.logger.Info().
		Str("event", "tool_call.gated").
		Str("tool", req.ToolName).
		Str("user_id", req.UserID).
		Str("organization_id", req.OrganizationID).
		Str("session_id", req.SessionID).
		Str("outcome", string(decision.Outcome)).
		Str("network", decision.Annotation.Network).
		Str("risk_level", string(decision.Annotation.RiskLevel)).
		Bool("pre_approved", decision.PreApproved).
		Interface("params", RedactParams(req.Params))

	if decision.Reason != "" {
		entry = entry.Str("reason", string(decision.Reason))
	}
	if decision.ApprovalID != "" {
		entry = entry.Str("approval_id", decision.ApprovalID)
	}
	entry.Msg("tool call gated")
}

// ApprovalResolved records a human decision or an expiry
func (l *Logger) ApprovalResolved(approval *domain.PendingApproval) {
	if l == nil || approval == nil {
		return
	}

	entry := l.logger.Info().
		Str("event", "approval.resolved").
		Str("approval_id", approval.ID).
		Str("tool", approval.ToolName).
		Str("user_id", approval.UserID).
		Str("status", string(approval.Status))

	if approval.Status == domain.ApprovalModified {
		entry = entry.Interface("modified_params", RedactParams(approval.ModifiedParams))
	}
	entry.Msg("approval resolved")
}

// PreApprovalAdded records a one-shot bypass grant
func (l *Logger) PreApprovalAdded(entry domain.PreApprovedToolEntry) {
	if l == nil {
		return
	}
	l.logger.Info().
		Str("event", "pre_approval.added").
		Str("tool", entry.ToolName).
		Str("scope", entry.Scope.String()).
		Msg("pre-approval added")
}

// PreApprovalConsumed records use of a one-shot bypass
func (l *Logger) PreApprovalConsumed(toolName string, scope domain.ToolScope) {
	if l == nil {
		return
	}
	l.logger.Info().
		Str("event", "pre_approval.consumed").
		Str("tool", toolName).
		Str("scope", scope.String()).
		Msg("pre-approval consumed")
}

// ToolBlocked records a standing deny
func (l *Logger) ToolBlocked(entry domain.BlockedToolEntry) {
	if l == nil {
		return
	}
	l.logger.Info().
		Str("event", "blocked_tool.added").
		Str("tool", entry.ToolName).
		Str("scope", entry.Scope.String()).
		Str("reason", RedactSensitiveText(entry.Reason)).
		Msg("tool blocked")
}

// BlockedToolsCleared records removal of standing denies
func (l *Logger) BlockedToolsCleared(scope domain.ToolScope, removed int) {
	if l == nil {
		return
	}
	l.logger.Info().
		Str("event", "blocked_tool.cleared").
		Str("scope", scope.String()).
		Int("removed", removed).
		Msg("blocked tools cleared")
}

// RedactParams returns a deep copy of params with sensitive keys replaced
// and bearer strings masked
func RedactParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		if isSensitiveKey(k) {
			out[k] = redacted
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return RedactParams(typed)
	case []any:
		items := make([]any, len(typed))
		for i, item := range typed {
			items[i] = redactValue(item)
		}
		return items
	case string:
		return RedactSensitiveText(typed)
	default:
		return v
	}
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// RedactSensitiveText removes obvious secrets from free text
func RedactSensitiveText(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return raw
	}

	out := bearerTokenPattern.ReplaceAllString(raw, "Bearer "+redacted)
	return keyValuePattern.ReplaceAllStringFunc(out, func(match string) string {
		if parts := strings.SplitN(match, ":", 2); len(parts) == 2 {
			return fmt.Sprintf("%s: %s", strings.TrimSpace(parts[0]), redacted)
		}
		if parts := strings.SplitN(match, "=", 2); len(parts) == 2 {
			return fmt.Sprintf("%s=%s", strings.TrimSpace(parts[0]), redacted)
		}
		return redacted
	})
}
