package services

import (
	"context"
	"fmt"

	domain "github.com/inference-gateway/adgate/internal/domain"
)

// StandardApprovalPolicy implements the default approval policy:
// a call requires approval iff its classification says so. Tools that match
// no classification pattern are treated as read-only and pass without approval.
type StandardApprovalPolicy struct{}

// NewStandardApprovalPolicy creates a new standard approval policy
func NewStandardApprovalPolicy() *StandardApprovalPolicy {
	return &StandardApprovalPolicy{}
}

// ShouldRequireApproval implements the approval decision logic
func (p *StandardApprovalPolicy) ShouldRequireApproval(_ context.Context, annotation domain.ToolAnnotation) bool {
	return annotation.RequiresApproval
}

// PermissiveApprovalPolicy bypasses all approval.
// Useful for automation, testing, or highly trusted environments
type PermissiveApprovalPolicy struct{}

// NewPermissiveApprovalPolicy creates a new permissive approval policy
func NewPermissiveApprovalPolicy() *PermissiveApprovalPolicy {
	return &PermissiveApprovalPolicy{}
}

// ShouldRequireApproval always returns false
func (p *PermissiveApprovalPolicy) ShouldRequireApproval(context.Context, domain.ToolAnnotation) bool {
	return false
}

// StrictApprovalPolicy requires approval for everything that is not an
// explicitly recognized read. Unmatched tool names are gated instead of
// passing through.
type StrictApprovalPolicy struct{}

// NewStrictApprovalPolicy creates a new strict approval policy
func NewStrictApprovalPolicy() *StrictApprovalPolicy {
	return &StrictApprovalPolicy{}
}

// ShouldRequireApproval returns false only for explicit reads
func (p *StrictApprovalPolicy) ShouldRequireApproval(_ context.Context, annotation domain.ToolAnnotation) bool {
	if annotation.RequiresApproval {
		return true
	}
	return !annotation.ExplicitRead
}

// NewApprovalPolicy resolves a policy by its configured name
func NewApprovalPolicy(name string) (domain.ApprovalPolicy, error) {
	switch name {
	case "", "standard":
		return NewStandardApprovalPolicy(), nil
	case "strict":
		return NewStrictApprovalPolicy(), nil
	case "permissive":
		return NewPermissiveApprovalPolicy(), nil
	default:
		return nil, fmt.Errorf("unknown approval policy: %s", name)
	}
}
