package container

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	config "github.com/inference-gateway/adgate/config"
	domain "github.com/inference-gateway/adgate/internal/domain"
	storage "github.com/inference-gateway/adgate/internal/infra/storage"
	domainmocks "github.com/inference-gateway/adgate/tests/mocks/domain"
	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
)

const testCatalog = `tools:
  - name: admob_list_apps
    method: GET
    path: /admob/apps
  - name: unity_sync_placements
    method: POST
    path: /unity/placements/sync
    long_running: true
`

const testOverrides = `overrides:
  unity_sync_placements:
    risk_level: medium
    category: inventory
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	catalogPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(testCatalog), 0644))
	overridesPath := filepath.Join(dir, "overrides.yaml")
	require.NoError(t, os.WriteFile(overridesPath, []byte(testOverrides), 0644))

	cfg := config.DefaultConfig()
	cfg.Approval.Storage.Type = "memory"
	cfg.Catalog.Path = catalogPath
	cfg.Classifier.OverridesFile = overridesPath
	cfg.Audit.Path = filepath.Join(dir, "audit.log")
	return cfg
}

func TestNewServiceContainer_WiresGate(t *testing.T) {
	registry := &domainmocks.FakeConnectionRegistry{}
	registry.ListAdSourcesReturns([]domain.ProviderConnection{{Provider: "unity", Valid: true}}, nil)
	source := &domainmocks.FakeCredentialSource{}
	source.GetAPIKeyCredentialsReturns(&domain.APIKeyCredentials{APIKey: "k", Secret: "s"}, nil)

	c, err := NewServiceContainer(testConfig(t), nil, Options{
		Store:              storage.NewMemoryStore(),
		CredentialSource:   source,
		ConnectionRegistry: registry,
	})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, c.Close()) })

	assert.Equal(t, 2, c.Catalog().Len())

	annotation := c.Gate().Classify("unity_sync_placements")
	assert.Equal(t, domain.RiskMedium, annotation.RiskLevel)
	assert.Equal(t, domain.CategoryInventory, annotation.Category)

	decision, err := c.Gate().Evaluate(context.Background(), domain.ToolCallRequest{ToolName: "admob_list_apps", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, domain.GateDeny, decision.Outcome)
	assert.Equal(t, domain.DenyNotConnected, decision.Reason)

	assert.NotNil(t, c.WebServer().Router())
	assert.NotNil(t, c.MCPServer())
}

func TestNewServiceContainer_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
	}{
		{name: "missing catalog", mutate: func(cfg *config.Config) { cfg.Catalog.Path = "/nonexistent/catalog.yaml" }},
		{name: "missing overrides", mutate: func(cfg *config.Config) { cfg.Classifier.OverridesFile = "/nonexistent/overrides.yaml" }},
		{name: "unknown policy", mutate: func(cfg *config.Config) { cfg.Approval.Policy = "lenient" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)

			_, err := NewServiceContainer(cfg, nil)
			assert.Error(t, err)
		})
	}
}

func TestServiceContainer_SweepRemovesExpiredApprovals(t *testing.T) {
	cfg := testConfig(t)
	cfg.Approval.Timeout = time.Millisecond

	registry := &domainmocks.FakeConnectionRegistry{}
	registry.ListOAuthProvidersReturns([]domain.ProviderConnection{{Provider: "gam", Valid: true}}, nil)

	c, err := NewServiceContainer(cfg, nil, Options{ConnectionRegistry: registry, CredentialSource: &domainmocks.FakeCredentialSource{}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	decision, err := c.Gate().Evaluate(ctx, domain.ToolCallRequest{ToolName: "admanager_update_line_item", UserID: "u1"})
	require.NoError(t, err)
	require.Equal(t, domain.GatePendingApproval, decision.Outcome)

	time.Sleep(5 * time.Millisecond)
	c.sweep(ctx)

	_, err = c.Approvals().GetApproval(ctx, decision.ApprovalID)
	var notFound *domain.ApprovalNotFoundError
	assert.ErrorAs(t, err, &notFound)
}
