package cmd

import (
	"fmt"

	domain "github.com/inference-gateway/adgate/internal/domain"
	cobra "github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect the tool catalog",
	Long:  `Inspect the catalog of platform operations the gate can dispatch.`,
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog tools with their risk classification",
	Long: `List every catalog tool with its classification. With --user, only the
tools whose network the user has connected are listed (the accounts service
must be reachable).`,
	RunE: listTools,
}

var toolsProvidersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Show which networks a user has connected",
	RunE:  listProviders,
}

func init() {
	toolsListCmd.Flags().String("user", "", "Only list tools visible to this user")
	toolsListCmd.Flags().String("org", "", "Organization of --user")
	formatFlag(toolsListCmd)

	toolsProvidersCmd.Flags().String("user", "", "User id")
	toolsProvidersCmd.Flags().String("org", "", "Organization id")
	formatFlag(toolsProvidersCmd)
	_ = toolsProvidersCmd.MarkFlagRequired("user")

	toolsCmd.AddCommand(toolsListCmd, toolsProvidersCmd)
	rootCmd.AddCommand(toolsCmd)
}

type toolListing struct {
	Name        string                `json:"name"`
	Method      string                `json:"method"`
	Path        string                `json:"path"`
	LongRunning bool                  `json:"long_running,omitempty"`
	Annotation  domain.ToolAnnotation `json:"annotation"`
}

func listTools(cmd *cobra.Command, args []string) error {
	c, err := newContainer()
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	names := c.Catalog().Names()
	if user, _ := cmd.Flags().GetString("user"); user != "" {
		org, _ := cmd.Flags().GetString("org")
		names = c.Visibility().FilterToolNames(cmd.Context(), names, user, org)
	}

	listing := make([]toolListing, 0, len(names))
	for _, name := range names {
		entry, _ := c.Catalog().Lookup(name)
		listing = append(listing, toolListing{
			Name:        name,
			Method:      entry.Method,
			Path:        entry.Path,
			LongRunning: entry.LongRunning,
			Annotation:  c.Gate().Classify(name),
		})
	}

	if isJSON(cmd) {
		return printJSON(listing)
	}

	if len(listing) == 0 {
		fmt.Println("No tools available.")
		fmt.Println("Set catalog.path in the config to a tool catalog file.")
		return nil
	}

	fmt.Printf("Tools (%d):\n\n", len(listing))
	for i, t := range listing {
		fmt.Printf("%d. %s\n", i+1, t.Name)
		fmt.Printf("   %s %s\n", t.Method, t.Path)
		fmt.Printf("   Risk: %s  Approval: %v\n", t.Annotation.RiskLevel, t.Annotation.RequiresApproval)
		if t.LongRunning {
			fmt.Println("   Runs as a background task")
		}
		fmt.Println()
	}
	return nil
}

func listProviders(cmd *cobra.Command, args []string) error {
	c, err := newContainer()
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	user, _ := cmd.Flags().GetString("user")
	org, _ := cmd.Flags().GetString("org")
	statuses := c.Visibility().GetProviderStatuses(cmd.Context(), user, org)

	if isJSON(cmd) {
		return printJSON(statuses)
	}

	for _, s := range statuses {
		state := "not connected"
		if s.Connected {
			state = "connected"
		}
		fmt.Printf("%-24s %s\n", s.DisplayName, state)
	}
	return nil
}
