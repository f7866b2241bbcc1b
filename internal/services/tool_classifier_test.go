package services

import (
	"os"
	"path/filepath"
	"testing"

	domain "github.com/inference-gateway/adgate/internal/domain"
	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
)

func TestToolClassifier_Classify(t *testing.T) {
	classifier := NewToolClassifier(NewDefaultNetworkTable(), nil)

	tests := []struct {
		name         string
		tool         string
		method       string
		risk         domain.RiskLevel
		dangerous    bool
		reversible   bool
		category     domain.ToolCategory
		network      string
		explicitRead bool
	}{
		{
			name:         "list is a read",
			tool:         "admob_list_ad_units",
			risk:         domain.RiskNone,
			reversible:   true,
			category:     domain.CategoryAdUnits,
			network:      "admob",
			explicitRead: true,
		},
		{
			name:      "delete is critical and irreversible",
			tool:      "admob_delete_ad_unit",
			risk:      domain.RiskCritical,
			dangerous: true,
			category:  domain.CategoryAdUnits,
			network:   "admob",
		},
		{
			name:       "update is high",
			tool:       "admob_update_ad_unit",
			risk:       domain.RiskHigh,
			dangerous:  true,
			reversible: true,
			category:   domain.CategoryAdUnits,
			network:    "admob",
		},
		{
			name:       "archive is an update",
			tool:       "admanager_archive_orders",
			risk:       domain.RiskHigh,
			dangerous:  true,
			reversible: true,
			category:   domain.CategoryOrders,
			network:    "admanager",
		},
		{
			name:       "create is medium",
			tool:       "applovin_create_ad_unit",
			risk:       domain.RiskMedium,
			dangerous:  true,
			reversible: true,
			category:   domain.CategoryAdUnits,
			network:    "applovin",
		},
		{
			name:         "generating a report is a read",
			tool:         "admob_generate_network_report",
			risk:         domain.RiskNone,
			reversible:   true,
			category:     domain.CategoryReporting,
			network:      "admob",
			explicitRead: true,
		},
		{
			name:         "alias prefix resolves its network",
			tool:         "gam_list_orders",
			risk:         domain.RiskNone,
			reversible:   true,
			category:     domain.CategoryOrders,
			network:      "admanager",
			explicitRead: true,
		},
		{
			name:         "longest prefix wins",
			tool:         "applovin_max_get_ad_units",
			risk:         domain.RiskNone,
			reversible:   true,
			category:     domain.CategoryAdUnits,
			network:      "applovin",
			explicitRead: true,
		},
		{
			name:         "levelplay instances are mediation",
			tool:         "levelplay_list_instances",
			risk:         domain.RiskNone,
			reversible:   true,
			category:     domain.CategoryMediation,
			network:      "ironsource",
			explicitRead: true,
		},
		{
			name:       "unmatched operation defaults to no risk",
			tool:       "admob_frobnicate",
			risk:       domain.RiskNone,
			reversible: true,
			category:   domain.CategoryGeneral,
			network:    "admob",
		},
		{
			name:      "unknown network",
			tool:      "purge_everything",
			risk:      domain.RiskCritical,
			dangerous: true,
			category:  domain.CategoryGeneral,
			network:   domain.UnknownNetwork,
		},
		{
			name:      "method hint decides unmatched names",
			tool:      "admob_frobnicate",
			method:    "delete",
			risk:      domain.RiskCritical,
			dangerous: true,
			category:  domain.CategoryGeneral,
			network:   "admob",
		},
		{
			name:       "POST hint is a create",
			tool:       "unity_sync_placements",
			method:     "POST",
			risk:       domain.RiskMedium,
			dangerous:  true,
			reversible: true,
			category:   domain.CategoryInventory,
			network:    "unity",
		},
		{
			name:         "GET hint is a read",
			tool:         "unity_sync_placements",
			method:       "GET",
			risk:         domain.RiskNone,
			reversible:   true,
			category:     domain.CategoryInventory,
			network:      "unity",
			explicitRead: true,
		},
		{
			name:       "name pattern outranks a weaker hint",
			tool:       "admob_update_app",
			method:     "GET",
			risk:       domain.RiskHigh,
			dangerous:  true,
			reversible: true,
			category:   domain.CategoryApps,
			network:    "admob",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := classifier.Classify(tt.tool, tt.method)

			assert.Equal(t, tt.risk, a.RiskLevel)
			assert.Equal(t, tt.dangerous, a.IsDangerous)
			assert.Equal(t, tt.dangerous, a.RequiresApproval)
			assert.Equal(t, tt.reversible, a.Reversible)
			assert.Equal(t, tt.category, a.Category)
			assert.Equal(t, tt.network, a.Network)
			assert.Equal(t, tt.explicitRead, a.ExplicitRead)
			assert.NotEmpty(t, a.Description)
		})
	}
}

func TestToolClassifier_Descriptions(t *testing.T) {
	classifier := NewToolClassifier(NewDefaultNetworkTable(), nil)

	assert.Equal(t, "Permanently deletes ad units on AdMob; this cannot be undone",
		classifier.Classify("admob_delete_ad_unit", "").Description)
	assert.Equal(t, "Reads reporting on Google Ad Manager",
		classifier.Classify("admanager_get_report", "").Description)
	assert.Equal(t, "Runs an operation on resources across networks",
		classifier.Classify("frobnicate", "").Description)
}

func TestToolClassifier_Overrides(t *testing.T) {
	t.Run("built-in exception", func(t *testing.T) {
		classifier := NewToolClassifier(NewDefaultNetworkTable(), nil)
		a := classifier.Classify("admob_stop_mediation_ab_experiment", "")

		assert.Equal(t, domain.RiskCritical, a.RiskLevel)
		assert.False(t, a.Reversible)
		assert.Equal(t, domain.CategoryMediation, a.Category)
	})

	t.Run("caller overrides replace built-ins", func(t *testing.T) {
		custom := domain.ToolAnnotation{RiskLevel: domain.RiskLow, Network: "admob", Category: domain.CategoryMediation}
		classifier := NewToolClassifier(NewDefaultNetworkTable(), map[string]domain.ToolAnnotation{
			"admob_stop_mediation_ab_experiment": custom,
		})

		assert.Equal(t, custom, classifier.Classify("admob_stop_mediation_ab_experiment", "DELETE"))
		assert.Contains(t, classifier.Overrides(), "applovin_max_integration")
	})

	t.Run("overrides copy is detached", func(t *testing.T) {
		classifier := NewToolClassifier(NewDefaultNetworkTable(), nil)
		copied := classifier.Overrides()
		delete(copied, "applovin_max_integration")

		assert.Contains(t, classifier.Overrides(), "applovin_max_integration")
	})
}

func TestToolClassifier_IsDeterministic(t *testing.T) {
	classifier := NewToolClassifier(NewDefaultNetworkTable(), nil)
	first := classifier.Classify("ironsource_update_instance", "PUT")
	for range 10 {
		assert.Equal(t, first, classifier.Classify("ironsource_update_instance", "PUT"))
	}
}

func TestLoadOverridesFile(t *testing.T) {
	networks := NewDefaultNetworkTable()

	write := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "overrides.yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	t.Run("valid file", func(t *testing.T) {
		path := write(t, `
overrides:
  unity_sync_placements:
    risk_level: medium
    description: Syncs placements from the Unity dashboard
  admob_refresh_cache:
    risk_level: none
  moloco_reset_budget:
    risk_level: critical
    category: accounts
    requires_approval: true
    reversible: true
`)
		overrides, err := LoadOverridesFile(path, networks)
		require.NoError(t, err)
		require.Len(t, overrides, 3)

		sync := overrides["unity_sync_placements"]
		assert.Equal(t, domain.RiskMedium, sync.RiskLevel)
		assert.Equal(t, "unity", sync.Network)
		assert.Equal(t, domain.CategoryInventory, sync.Category)
		assert.True(t, sync.RequiresApproval)
		assert.True(t, sync.Reversible)

		refresh := overrides["admob_refresh_cache"]
		assert.False(t, refresh.RequiresApproval)
		assert.True(t, refresh.ExplicitRead)

		reset := overrides["moloco_reset_budget"]
		assert.Equal(t, domain.CategoryAccounts, reset.Category)
		assert.True(t, reset.Reversible)
	})

	t.Run("unknown risk level", func(t *testing.T) {
		path := write(t, "overrides:\n  admob_x:\n    risk_level: extreme\n")
		_, err := LoadOverridesFile(path, networks)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown risk_level")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadOverridesFile(filepath.Join(t.TempDir(), "nope.yaml"), networks)
		assert.Error(t, err)
	})

	t.Run("override takes effect in the classifier", func(t *testing.T) {
		path := write(t, "overrides:\n  admob_delete_test_device:\n    risk_level: low\n")
		overrides, err := LoadOverridesFile(path, networks)
		require.NoError(t, err)

		a := NewToolClassifier(networks, overrides).Classify("admob_delete_test_device", "DELETE")
		assert.Equal(t, domain.RiskLow, a.RiskLevel)
	})
}
