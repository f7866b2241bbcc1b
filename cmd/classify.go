package cmd

import (
	"fmt"

	domain "github.com/inference-gateway/adgate/internal/domain"
	services "github.com/inference-gateway/adgate/internal/services"
	tools "github.com/inference-gateway/adgate/internal/services/tools"
	cobra "github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <tool-name>...",
	Short: "Classify tools by risk",
	Long: `Print the risk annotation the gate assigns to each tool name: network,
category, risk level, whether it is dangerous, reversible and whether the
configured approval policy would hold it for approval.

Runs offline: only the classifier overrides file and the tool catalog are read.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func init() {
	formatFlag(classifyCmd)
	rootCmd.AddCommand(classifyCmd)
}

type classification struct {
	ToolName       string                `json:"tool_name"`
	Annotation     domain.ToolAnnotation `json:"annotation"`
	NeedsApproval  bool                  `json:"needs_approval"`
	ApprovalPolicy string                `json:"approval_policy"`
}

func runClassify(cmd *cobra.Command, args []string) error {
	networks := services.NewDefaultNetworkTable()

	var overrides map[string]domain.ToolAnnotation
	if path := Cfg.Classifier.OverridesFile; path != "" {
		loaded, err := services.LoadOverridesFile(path, networks)
		if err != nil {
			return err
		}
		overrides = loaded
	}

	catalog, err := tools.LoadCatalog(Cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("failed to load tool catalog: %w", err)
	}

	policy, err := services.NewApprovalPolicy(Cfg.Approval.Policy)
	if err != nil {
		return err
	}

	classifier := services.NewToolClassifier(networks, overrides)
	results := make([]classification, 0, len(args))
	for _, name := range args {
		annotation := classifier.Classify(name, catalog.MethodHint(name))
		results = append(results, classification{
			ToolName:       name,
			Annotation:     annotation,
			NeedsApproval:  policy.ShouldRequireApproval(cmd.Context(), annotation),
			ApprovalPolicy: Cfg.Approval.Policy,
		})
	}

	if isJSON(cmd) {
		return printJSON(results)
	}

	for _, r := range results {
		a := r.Annotation
		fmt.Printf("%s\n", r.ToolName)
		fmt.Printf("   Network: %s\n", a.Network)
		fmt.Printf("   Category: %s\n", a.Category)
		fmt.Printf("   Risk: %s\n", a.RiskLevel)
		fmt.Printf("   Dangerous: %v  Reversible: %v\n", a.IsDangerous, a.Reversible)
		fmt.Printf("   Needs approval (%s policy): %v\n", r.ApprovalPolicy, r.NeedsApproval)
		fmt.Printf("   %s\n\n", a.Description)
	}
	return nil
}
