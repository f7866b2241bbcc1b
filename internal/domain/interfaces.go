package domain

import (
	"context"

	sdk "github.com/inference-gateway/sdk"
)

//go:generate go tool counterfeiter -generate

// CredentialSource is the external credential system of record. Both lookups
// return an error wrapping ErrNotFound when no record exists; any other error
// is a transport or collaborator failure.
//
//counterfeiter:generate -o ../../tests/mocks/domain/fake_credential_source.go . CredentialSource
type CredentialSource interface {
	GetOAuthToken(ctx context.Context, userID, organizationID, provider string) (*OAuthToken, error)
	GetAPIKeyCredentials(ctx context.Context, userID, organizationID, adSource string) (*APIKeyCredentials, error)
}

// ConnectionRegistry lists which providers a user has connected, from two
// independent sources.
//
//counterfeiter:generate -o ../../tests/mocks/domain/fake_connection_registry.go . ConnectionRegistry
type ConnectionRegistry interface {
	ListOAuthProviders(ctx context.Context, userID, organizationID string) ([]ProviderConnection, error)
	ListAdSources(ctx context.Context, userID, organizationID string) ([]ProviderConnection, error)
}

// ApprovalPolicy determines whether a classified tool call requires human approval
type ApprovalPolicy interface {
	ShouldRequireApproval(ctx context.Context, annotation ToolAnnotation) bool
}

// EventPublisher delivers lifecycle events to interested collaborators
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload any) error
	Close() error
}

// ToolInvocation is an allowed call handed to the external execution step
type ToolInvocation struct {
	ToolName       string
	Params         map[string]any
	UserID         string
	OrganizationID string
	Credentials    *NetworkCredentials
}

// ToolExecutor performs the external execution of an allowed tool call
//
//counterfeiter:generate -o ../../tests/mocks/domain/fake_tool_executor.go . ToolExecutor
type ToolExecutor interface {
	Execute(ctx context.Context, invocation ToolInvocation, reporter ProgressReporter) (map[string]any, error)
	IsLongRunning(toolName string) bool
}

// ToolCatalog describes the callable tools known to the gate
type ToolCatalog interface {
	MethodHint(toolName string) string
	SchemaHints(toolName string) map[string]any
	Definitions() []sdk.ChatCompletionTool
}
