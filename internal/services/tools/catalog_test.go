package tools

import (
	"os"
	"path/filepath"
	"testing"

	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
)

const testCatalogYAML = `
tools:
  - name: admob_list_apps
    method: get
    path: /v1/admob/accounts/{account_id}/apps
    description: List the apps of an AdMob account
    parameters:
      type: object
      properties:
        account_id:
          type: string
      required: [account_id]
  - name: admanager_update_line_item
    method: PATCH
    path: /v1/gam/networks/{network_code}/lineItems/{line_item_id}
  - name: admob_generate_network_report
    method: POST
    path: /v1/admob/accounts/{account_id}/networkReport:generate
    long_running: true
`

func TestParseCatalog(t *testing.T) {
	c, err := ParseCatalog([]byte(testCatalogYAML))
	require.NoError(t, err)

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []string{"admob_list_apps", "admanager_update_line_item", "admob_generate_network_report"}, c.Names())
	assert.Equal(t, "GET", c.MethodHint("admob_list_apps"))
	assert.Equal(t, "PATCH", c.MethodHint("admanager_update_line_item"))
	assert.Equal(t, "", c.MethodHint("unknown_tool"))
	assert.True(t, c.IsLongRunning("admob_generate_network_report"))
	assert.False(t, c.IsLongRunning("admob_list_apps"))

	entry, ok := c.Lookup("admanager_update_line_item")
	require.True(t, ok)
	assert.Equal(t, []string{"network_code", "line_item_id"}, entry.PathParams())

	hints := c.SchemaHints("admob_list_apps")
	require.NotNil(t, hints)
	assert.Equal(t, "object", hints["type"])
	hints["type"] = "mutated"
	assert.Equal(t, "object", c.SchemaHints("admob_list_apps")["type"])
	assert.Nil(t, c.SchemaHints("admanager_update_line_item"))
}

func TestCatalog_Definitions(t *testing.T) {
	c, err := ParseCatalog([]byte(testCatalogYAML))
	require.NoError(t, err)

	defs := c.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "admob_list_apps", defs[0].Function.Name)
	require.NotNil(t, defs[0].Function.Description)
	assert.Equal(t, "List the apps of an AdMob account", *defs[0].Function.Description)
	require.NotNil(t, defs[0].Function.Parameters)
	assert.Nil(t, defs[1].Function.Parameters)
}

func TestNewCatalog_Validation(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		wantErr string
	}{
		{name: "missing name", entries: []Entry{{Path: "/x"}}, wantErr: "name is required"},
		{name: "missing path", entries: []Entry{{Name: "a"}}, wantErr: "path is required"},
		{name: "duplicate", entries: []Entry{{Name: "a", Path: "/a"}, {Name: "a", Path: "/b"}}, wantErr: "more than once"},
		{name: "bad method", entries: []Entry{{Name: "a", Path: "/a", Method: "TRACE"}}, wantErr: "unsupported method"},
		{name: "empty method is allowed", entries: []Entry{{Name: "a", Path: "/a"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.entries)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	empty, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
	assert.Empty(t, empty.Definitions())

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testCatalogYAML), 0600))
	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte("tools: [unterminated"))
	assert.Error(t, err)
}
