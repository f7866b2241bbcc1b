package services

import (
	"context"
	"testing"

	domain "github.com/inference-gateway/adgate/internal/domain"
	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
)

func TestApprovalPolicies(t *testing.T) {
	classifier := NewToolClassifier(NewDefaultNetworkTable(), nil)
	ctx := context.Background()

	tests := []struct {
		tool       string
		standard   bool
		strict     bool
		permissive bool
	}{
		{tool: "admob_list_apps", standard: false, strict: false, permissive: false},
		{tool: "admob_frobnicate", standard: false, strict: true, permissive: false},
		{tool: "applovin_create_ad_unit", standard: true, strict: true, permissive: false},
		{tool: "admob_delete_ad_unit", standard: true, strict: true, permissive: false},
		{tool: "admob_stop_mediation_ab_experiment", standard: true, strict: true, permissive: false},
	}

	policies := map[string]domain.ApprovalPolicy{
		"standard":   NewStandardApprovalPolicy(),
		"strict":     NewStrictApprovalPolicy(),
		"permissive": NewPermissiveApprovalPolicy(),
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			annotation := classifier.Classify(tt.tool, "")

			assert.Equal(t, tt.standard, policies["standard"].ShouldRequireApproval(ctx, annotation), "standard")
			assert.Equal(t, tt.strict, policies["strict"].ShouldRequireApproval(ctx, annotation), "strict")
			assert.Equal(t, tt.permissive, policies["permissive"].ShouldRequireApproval(ctx, annotation), "permissive")
		})
	}
}

func TestNewApprovalPolicy(t *testing.T) {
	tests := []struct {
		name    string
		want    domain.ApprovalPolicy
		wantErr bool
	}{
		{name: "", want: &StandardApprovalPolicy{}},
		{name: "standard", want: &StandardApprovalPolicy{}},
		{name: "strict", want: &StrictApprovalPolicy{}},
		{name: "permissive", want: &PermissiveApprovalPolicy{}},
		{name: "yolo", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy, err := NewApprovalPolicy(tt.name)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "unknown approval policy")
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, policy)
		})
	}
}
