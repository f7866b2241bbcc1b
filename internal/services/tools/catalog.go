package tools

import (
	"fmt"
	"maps"
	"net/http"
	"os"
	"regexp"
	"strings"

	domain "github.com/inference-gateway/adgate/internal/domain"
	sdk "github.com/inference-gateway/sdk"
	yaml "gopkg.in/yaml.v3"
)

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// Entry describes one callable platform operation
type Entry struct {
	Name        string         `yaml:"name"`
	Method      string         `yaml:"method"`
	Path        string         `yaml:"path"`
	Description string         `yaml:"description"`
	Parameters  map[string]any `yaml:"parameters"`
	LongRunning bool           `yaml:"long_running"`
}

// PathParams returns the placeholder names in the entry's path template
func (e Entry) PathParams() []string {
	matches := placeholderPattern.FindAllStringSubmatch(e.Path, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

type catalogFile struct {
	Tools []Entry `yaml:"tools"`
}

// Catalog is the data-driven dispatch table of platform operations. It is
// immutable after loading.
type Catalog struct {
	entries map[string]Entry
	order   []string
}

var _ domain.ToolCatalog = (*Catalog)(nil)

// NewCatalog builds a catalog from entries, rejecting duplicates and
// entries without a name or path
func NewCatalog(entries []Entry) (*Catalog, error) {
	c := &Catalog{entries: make(map[string]Entry, len(entries))}

	for i, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("tool %d: name is required", i)
		}
		if e.Path == "" {
			return nil, fmt.Errorf("tool %s: path is required", e.Name)
		}
		if _, dup := c.entries[e.Name]; dup {
			return nil, fmt.Errorf("tool %s: defined more than once", e.Name)
		}

		e.Method = strings.ToUpper(strings.TrimSpace(e.Method))
		switch e.Method {
		case "", http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			return nil, fmt.Errorf("tool %s: unsupported method %q", e.Name, e.Method)
		}

		c.entries[e.Name] = e
		c.order = append(c.order, e.Name)
	}

	return c, nil
}

// ParseCatalog decodes a catalog document of the form
//
//	tools:
//	  - name: admob_list_apps
//	    method: GET
//	    path: /v1/admob/accounts/{account_id}/apps
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse tool catalog: %w", err)
	}
	return NewCatalog(file.Tools)
}

// LoadCatalog reads a catalog file. An empty path yields an empty catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return NewCatalog(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tool catalog: %w", err)
	}
	return ParseCatalog(data)
}

// Lookup returns the entry for a tool
func (c *Catalog) Lookup(name string) (Entry, bool) {
	e, ok := c.entries[name]
	return e, ok
}

// Names returns the tool names in catalog order
func (c *Catalog) Names() []string {
	return append([]string(nil), c.order...)
}

// Len returns the number of tools
func (c *Catalog) Len() int {
	return len(c.order)
}

// MethodHint returns the transport method used to classify a tool
func (c *Catalog) MethodHint(name string) string {
	return c.entries[name].Method
}

// SchemaHints returns a copy of the tool's parameter schema
func (c *Catalog) SchemaHints(name string) map[string]any {
	e, ok := c.entries[name]
	if !ok || e.Parameters == nil {
		return nil
	}
	return maps.Clone(e.Parameters)
}

// IsLongRunning reports whether calls should be tracked as background tasks
func (c *Catalog) IsLongRunning(name string) bool {
	return c.entries[name].LongRunning
}

// Definitions renders every entry as a chat completion tool
func (c *Catalog) Definitions() []sdk.ChatCompletionTool {
	out := make([]sdk.ChatCompletionTool, 0, len(c.order))
	for _, name := range c.order {
		e := c.entries[name]

		description := e.Description
		var parameters *sdk.FunctionParameters
		if e.Parameters != nil {
			fp := sdk.FunctionParameters(maps.Clone(e.Parameters))
			parameters = &fp
		}

		out = append(out, sdk.ChatCompletionTool{
			Type: sdk.Function,
			Function: sdk.FunctionObject{
				Name:        e.Name,
				Description: &description,
				Parameters:  parameters,
			},
		})
	}
	return out
}
