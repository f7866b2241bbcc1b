package domain

// RiskLevel indicates the potential impact of executing a tool
type RiskLevel string

const (
	RiskNone     RiskLevel = "none"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Severity orders risk levels so callers can compare them
func (r RiskLevel) Severity() int {
	switch r {
	case RiskNone:
		return 0
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	default:
		return 0
	}
}

// ToolCategory is the functional area a tool operates on
type ToolCategory string

const (
	CategoryReporting ToolCategory = "reporting"
	CategoryInventory ToolCategory = "inventory"
	CategoryMediation ToolCategory = "mediation"
	CategoryApps      ToolCategory = "apps"
	CategoryAdUnits   ToolCategory = "ad_units"
	CategoryAccounts  ToolCategory = "accounts"
	CategoryTargeting ToolCategory = "targeting"
	CategoryCreatives ToolCategory = "creatives"
	CategoryOrders    ToolCategory = "orders"
	CategoryLineItems ToolCategory = "line_items"
	CategoryGeneral   ToolCategory = "general"
)

// UnknownNetwork is reported for tools without a recognized network prefix
const UnknownNetwork = "unknown"

// ToolAnnotation is the risk classification of a single tool
type ToolAnnotation struct {
	IsDangerous      bool         `json:"is_dangerous"`
	RequiresApproval bool         `json:"requires_approval"`
	Category         ToolCategory `json:"category"`
	RiskLevel        RiskLevel    `json:"risk_level"`
	Network          string       `json:"network"`
	Description      string       `json:"description"`
	Reversible       bool         `json:"reversible"`

	// ExplicitRead is set when a read pattern or GET hint matched, as opposed
	// to the unmatched default.
	ExplicitRead bool `json:"-"`
}

// ReadOnly reports whether the annotation describes a non-mutating tool
func (a ToolAnnotation) ReadOnly() bool {
	return !a.IsDangerous && a.RiskLevel == RiskNone
}

// ToolCallRequest is one tool invocation submitted to the gate
type ToolCallRequest struct {
	ToolName       string         `json:"tool_name"`
	Params         map[string]any `json:"params"`
	UserID         string         `json:"user_id"`
	OrganizationID string         `json:"organization_id,omitempty"`
	SessionID      string         `json:"session_id,omitempty"`
}

// Scopes returns the pre-approval/block scopes the request falls under
func (r ToolCallRequest) Scopes() []ToolScope {
	scopes := []ToolScope{UserScope(r.UserID)}
	if r.SessionID != "" {
		scopes = append(scopes, SessionScope(r.SessionID))
	}
	return scopes
}

// GateOutcome is the result kind of gating a tool call
type GateOutcome string

const (
	GateAllow           GateOutcome = "allow"
	GateDeny            GateOutcome = "deny"
	GatePendingApproval GateOutcome = "pending_approval"
)

// DenyReason explains a GateDeny outcome
type DenyReason string

const (
	DenyNotConnected DenyReason = "not_connected"
	DenyBlocked      DenyReason = "blocked"
	DenyRejected     DenyReason = "rejected"
)

// GateDecision is returned for every gated tool call. Credentials are never serialized.
type GateDecision struct {
	Outcome        GateOutcome         `json:"outcome"`
	Reason         DenyReason          `json:"reason,omitempty"`
	Message        string              `json:"message,omitempty"`
	ApprovalID     string              `json:"approval_id,omitempty"`
	ToolName       string              `json:"tool_name"`
	UserID         string              `json:"user_id,omitempty"`
	OrganizationID string              `json:"organization_id,omitempty"`
	Annotation     ToolAnnotation      `json:"annotation"`
	Params         map[string]any      `json:"params,omitempty"`
	PreApproved    bool                `json:"pre_approved,omitempty"`
	Credentials    *NetworkCredentials `json:"-"`
}

// Allowed reports whether the call may execute now
func (d *GateDecision) Allowed() bool {
	return d != nil && d.Outcome == GateAllow
}

// ExecutionResult is the outcome of running an allowed call. Long-running
// calls return immediately with the id of the background task tracking them.
type ExecutionResult struct {
	ToolName   string         `json:"tool_name"`
	Result     map[string]any `json:"result,omitempty"`
	TaskID     string         `json:"task_id,omitempty"`
	Background bool           `json:"background"`
}
