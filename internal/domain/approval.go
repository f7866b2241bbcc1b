package domain

import (
	"strings"
	"time"
)

// ApprovalStatus is the lifecycle state of a pending approval
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
	ApprovalModified ApprovalStatus = "modified"
	ApprovalExpired  ApprovalStatus = "expired"
)

// IsTerminal reports whether no further resolution is possible
func (s ApprovalStatus) IsTerminal() bool {
	return s != ApprovalPending
}

// ApprovalDecision is the human decision submitted for a pending approval
type ApprovalDecision string

const (
	DecisionApprove ApprovalDecision = "approve"
	DecisionReject  ApprovalDecision = "reject"
	DecisionModify  ApprovalDecision = "modify"
)

// ParseApprovalDecision accepts the decision verbs and their past-tense forms
func ParseApprovalDecision(s string) (ApprovalDecision, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approve", "approved":
		return DecisionApprove, true
	case "reject", "rejected":
		return DecisionReject, true
	case "modify", "modified":
		return DecisionModify, true
	default:
		return "", false
	}
}

// Status maps a decision to the terminal status it produces
func (d ApprovalDecision) Status() ApprovalStatus {
	switch d {
	case DecisionApprove:
		return ApprovalApproved
	case DecisionReject:
		return ApprovalRejected
	case DecisionModify:
		return ApprovalModified
	default:
		return ApprovalPending
	}
}

// PendingApproval is the durable record of a dangerous call awaiting a decision
type PendingApproval struct {
	ID             string         `json:"id"`
	ToolName       string         `json:"tool_name"`
	Params         map[string]any `json:"params"`
	UserID         string         `json:"user_id"`
	OrganizationID string         `json:"organization_id,omitempty"`
	Status         ApprovalStatus `json:"status"`
	ModifiedParams map[string]any `json:"modified_params,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	ExpiresAt      time.Time      `json:"expires_at"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
	Annotation     ToolAnnotation `json:"annotation"`
}

// EffectiveParams returns the human-edited params for modified decisions and
// the original params otherwise
func (p *PendingApproval) EffectiveParams() map[string]any {
	if p.Status == ApprovalModified && p.ModifiedParams != nil {
		return p.ModifiedParams
	}
	return p.Params
}

// ApprovalView is what a human-facing collaborator renders for a decision
type ApprovalView struct {
	ApprovalID  string         `json:"approval_id"`
	ToolName    string         `json:"tool_name"`
	Params      map[string]any `json:"params"`
	SchemaHints map[string]any `json:"schema_hints,omitempty"`
	Status      ApprovalStatus `json:"status"`
	Annotation  ToolAnnotation `json:"annotation"`
	CreatedAt   time.Time      `json:"created_at"`
	ExpiresAt   time.Time      `json:"expires_at"`
}

// ScopeKind distinguishes user-wide from session-wide entries
type ScopeKind string

const (
	ScopeUser    ScopeKind = "user"
	ScopeSession ScopeKind = "session"
)

// ToolScope identifies who a pre-approval or block entry applies to
type ToolScope struct {
	Kind ScopeKind `json:"kind"`
	ID   string    `json:"id"`
}

// UserScope builds a user-wide scope
func UserScope(userID string) ToolScope {
	return ToolScope{Kind: ScopeUser, ID: userID}
}

// SessionScope builds a session-wide scope
func SessionScope(sessionID string) ToolScope {
	return ToolScope{Kind: ScopeSession, ID: sessionID}
}

// String renders the scope as a store key segment
func (s ToolScope) String() string {
	return string(s.Kind) + ":" + s.ID
}

// PreApprovedToolEntry is a one-shot bypass of the approval step
type PreApprovedToolEntry struct {
	ToolName  string     `json:"tool_name"`
	Scope     ToolScope  `json:"scope"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// BlockedToolEntry is a standing deny until cleared
type BlockedToolEntry struct {
	ToolName  string     `json:"tool_name"`
	Scope     ToolScope  `json:"scope"`
	Reason    string     `json:"reason,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
