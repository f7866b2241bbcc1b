package services

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	domain "github.com/inference-gateway/adgate/internal/domain"
	yaml "gopkg.in/yaml.v3"
)

type operationKind int

const (
	opNone operationKind = iota
	opRead
	opCreate
	opUpdate
	opDelete
)

// operationPattern pairs a verb pattern with the transport methods that imply it.
// The table is evaluated top to bottom: delete > update > create > read.
type operationPattern struct {
	kind    operationKind
	pattern *regexp.Regexp
	methods []string
}

var operationPatterns = []operationPattern{
	{
		kind:    opDelete,
		pattern: regexp.MustCompile(`(^|_)(delete|remove|destroy|purge|revoke|unlink|erase|drop)(_|$)`),
		methods: []string{"DELETE"},
	},
	{
		kind:    opUpdate,
		pattern: regexp.MustCompile(`(^|_)(update|patch|edit|modify|set|change|rename|enable|disable|pause|resume|activate|deactivate|archive|unarchive|assign|unassign|replace|move|upsert)(_|$)`),
		methods: []string{"PUT", "PATCH"},
	},
	{
		kind:    opCreate,
		pattern: regexp.MustCompile(`(^|_)(create|add|insert|new|upload|generate|run|submit|launch|start|copy|duplicate|clone|register|import)(_|$)`),
		methods: []string{"POST"},
	},
	{
		kind:    opRead,
		pattern: regexp.MustCompile(`(^|_)(list|get|read|fetch|search|query|find|describe|show|lookup|view|count|export|download|reports?|stats|statistics|metrics|summary|preview|check|validate)(_|$)`),
		methods: []string{"GET", "HEAD"},
	},
}

var readPattern = operationPatterns[3].pattern

type categoryKeywords struct {
	category domain.ToolCategory
	keywords []string
}

// categoryTable is evaluated in order; the first keyword hit wins
var categoryTable = []categoryKeywords{
	{domain.CategoryReporting, []string{"report", "stats", "statistics", "metric", "revenue", "earning", "analytics", "performance"}},
	{domain.CategoryLineItems, []string{"line_item", "lineitem"}},
	{domain.CategoryAdUnits, []string{"ad_unit", "adunit"}},
	{domain.CategoryCreatives, []string{"creative"}},
	{domain.CategoryOrders, []string{"order"}},
	{domain.CategoryMediation, []string{"mediation", "waterfall", "experiment", "ab_test", "bidding", "ad_source", "mapping", "instance"}},
	{domain.CategoryTargeting, []string{"targeting", "audience", "geo", "segment", "key_value"}},
	{domain.CategoryInventory, []string{"inventory", "placement", "ad_slot", "site"}},
	{domain.CategoryApps, []string{"app", "application"}},
	{domain.CategoryAccounts, []string{"account", "publisher", "company", "team", "user"}},
}

// DefaultOverrides covers tools whose names do not encode their risk
var DefaultOverrides = map[string]domain.ToolAnnotation{
	"admob_stop_mediation_ab_experiment": {
		IsDangerous:      true,
		RequiresApproval: true,
		Category:         domain.CategoryMediation,
		RiskLevel:        domain.RiskCritical,
		Network:          "admob",
		Description:      "Stops a mediation A/B experiment and commits the chosen variant; this cannot be undone",
		Reversible:       false,
	},
	"admanager_perform_line_item_action": {
		IsDangerous:      true,
		RequiresApproval: true,
		Category:         domain.CategoryLineItems,
		RiskLevel:        domain.RiskHigh,
		Network:          "admanager",
		Description:      "Performs a bulk action (pause, resume, archive) on Google Ad Manager line items",
		Reversible:       true,
	},
	"admanager_perform_order_action": {
		IsDangerous:      true,
		RequiresApproval: true,
		Category:         domain.CategoryOrders,
		RiskLevel:        domain.RiskHigh,
		Network:          "admanager",
		Description:      "Performs a bulk action (approve, pause, archive) on Google Ad Manager orders",
		Reversible:       true,
	},
	"levelplay_instance_integration": {
		IsDangerous:      true,
		RequiresApproval: true,
		Category:         domain.CategoryMediation,
		RiskLevel:        domain.RiskMedium,
		Network:          "ironsource",
		Description:      "Configures ironSource LevelPlay network instances for an app",
		Reversible:       true,
	},
	"applovin_max_integration": {
		IsDangerous:      true,
		RequiresApproval: true,
		Category:         domain.CategoryMediation,
		RiskLevel:        domain.RiskMedium,
		Network:          "applovin",
		Description:      "Configures AppLovin MAX mediated network integration for an ad unit",
		Reversible:       true,
	},
}

// ToolClassifier derives risk annotations from tool identifiers
type ToolClassifier struct {
	networks  *NetworkTable
	overrides map[string]domain.ToolAnnotation
}

// NewToolClassifier creates a classifier. Overrides are merged on top of
// DefaultOverrides; both are keyed by exact tool name.
func NewToolClassifier(networks *NetworkTable, overrides map[string]domain.ToolAnnotation) *ToolClassifier {
	merged := make(map[string]domain.ToolAnnotation, len(DefaultOverrides)+len(overrides))
	for name, a := range DefaultOverrides {
		merged[name] = a
	}
	for name, a := range overrides {
		merged[name] = a
	}
	return &ToolClassifier{networks: networks, overrides: merged}
}

// Classify returns the risk annotation for a tool. methodHint is the optional
// HTTP method the tool is transported with. It never fails.
func (c *ToolClassifier) Classify(toolName, methodHint string) domain.ToolAnnotation {
	if a, ok := c.overrides[toolName]; ok {
		return a
	}

	network, _ := c.networks.ExtractNetwork(toolName)
	operation := c.networks.StripPrefix(toolName)
	category := inferCategory(operation)
	method := strings.ToUpper(strings.TrimSpace(methodHint))

	annotation := domain.ToolAnnotation{
		Category:   category,
		Network:    network,
		RiskLevel:  domain.RiskNone,
		Reversible: true,
	}

	kind := classifyOperation(operation, method)
	switch kind {
	case opDelete:
		annotation.IsDangerous = true
		annotation.RequiresApproval = true
		annotation.RiskLevel = domain.RiskCritical
		annotation.Reversible = false
	case opUpdate:
		annotation.IsDangerous = true
		annotation.RequiresApproval = true
		annotation.RiskLevel = domain.RiskHigh
	case opCreate:
		annotation.IsDangerous = true
		annotation.RequiresApproval = true
		annotation.RiskLevel = domain.RiskMedium
	case opRead:
		annotation.ExplicitRead = true
	}

	annotation.Description = c.describe(kind, category, network)
	return annotation
}

// Overrides returns a copy of the exception table
func (c *ToolClassifier) Overrides() map[string]domain.ToolAnnotation {
	out := make(map[string]domain.ToolAnnotation, len(c.overrides))
	for k, v := range c.overrides {
		out[k] = v
	}
	return out
}

func classifyOperation(operation, method string) operationKind {
	for _, p := range operationPatterns {
		if !p.pattern.MatchString(operation) && !containsString(p.methods, method) {
			continue
		}
		if p.kind == opCreate && readPattern.MatchString(operation) {
			return opRead
		}
		return p.kind
	}
	return opNone
}

func inferCategory(operation string) domain.ToolCategory {
	padded := "_" + operation + "_"
	for _, entry := range categoryTable {
		for _, kw := range entry.keywords {
			if strings.Contains(padded, "_"+kw+"_") ||
				strings.Contains(padded, "_"+kw+"s_") ||
				strings.Contains(padded, "_"+kw+"es_") {
				return entry.category
			}
		}
	}
	return domain.CategoryGeneral
}

func (c *ToolClassifier) describe(kind operationKind, category domain.ToolCategory, network string) string {
	subject := strings.ReplaceAll(string(category), "_", " ")
	if category == domain.CategoryGeneral {
		subject = "resources"
	}

	where := "across networks"
	if network != domain.UnknownNetwork {
		where = "on " + c.networks.DisplayName(network)
	}

	switch kind {
	case opDelete:
		return fmt.Sprintf("Permanently deletes %s %s; this cannot be undone", subject, where)
	case opUpdate:
		return fmt.Sprintf("Modifies existing %s %s", subject, where)
	case opCreate:
		return fmt.Sprintf("Creates %s %s", subject, where)
	case opRead:
		return fmt.Sprintf("Reads %s %s", subject, where)
	default:
		return fmt.Sprintf("Runs an operation on %s %s", subject, where)
	}
}

func containsString(list []string, s string) bool {
	if s == "" {
		return false
	}
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

type overrideFile struct {
	Overrides map[string]overrideSpec `yaml:"overrides"`
}

type overrideSpec struct {
	RiskLevel        string `yaml:"risk_level"`
	Category         string `yaml:"category"`
	Network          string `yaml:"network"`
	Description      string `yaml:"description"`
	RequiresApproval *bool  `yaml:"requires_approval"`
	Reversible       *bool  `yaml:"reversible"`
}

// LoadOverridesFile reads extra exception-table entries from a YAML file of the form
//
//	overrides:
//	  unity_sync_placements:
//	    risk_level: medium
//	    category: inventory
func LoadOverridesFile(path string, networks *NetworkTable) (map[string]domain.ToolAnnotation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read overrides file: %w", err)
	}

	var file overrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse overrides file: %w", err)
	}

	out := make(map[string]domain.ToolAnnotation, len(file.Overrides))
	for name, spec := range file.Overrides {
		risk := domain.RiskLevel(strings.ToLower(spec.RiskLevel))
		switch risk {
		case domain.RiskNone, domain.RiskLow, domain.RiskMedium, domain.RiskHigh, domain.RiskCritical:
		default:
			return nil, fmt.Errorf("override %s: unknown risk_level %q", name, spec.RiskLevel)
		}

		network := spec.Network
		if network == "" {
			network, _ = networks.ExtractNetwork(name)
		}

		category := domain.ToolCategory(spec.Category)
		if category == "" {
			category = inferCategory(networks.StripPrefix(name))
		}

		annotation := domain.ToolAnnotation{
			IsDangerous:      risk != domain.RiskNone,
			RequiresApproval: risk != domain.RiskNone,
			Category:         category,
			RiskLevel:        risk,
			Network:          network,
			Description:      spec.Description,
			Reversible:       risk != domain.RiskCritical,
			ExplicitRead:     risk == domain.RiskNone,
		}
		if spec.RequiresApproval != nil {
			annotation.RequiresApproval = *spec.RequiresApproval
		}
		if spec.Reversible != nil {
			annotation.Reversible = *spec.Reversible
		}
		out[name] = annotation
	}

	return out, nil
}
