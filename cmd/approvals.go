package cmd

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	domain "github.com/inference-gateway/adgate/internal/domain"
	cobra "github.com/spf13/cobra"
)

var approvalsCmd = &cobra.Command{
	Use:     "approvals",
	Aliases: []string{"approval"},
	Short:   "Manage pending approvals and tool blocks",
	Long: `Inspect and resolve approvals held in the configured approval store, and
manage standing tool blocks. Only meaningful with a shared store (sqlite,
postgres or redis); the memory store starts empty for each command.`,
}

var approvalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending approvals for a user",
	RunE:  listApprovals,
}

var approvalsGetCmd = &cobra.Command{
	Use:   "get <approval-id>",
	Short: "Show one approval",
	Args:  cobra.ExactArgs(1),
	RunE:  getApproval,
}

var approvalsResolveCmd = &cobra.Command{
	Use:   "resolve <approval-id>",
	Short: "Approve, reject or modify a pending approval",
	Args:  cobra.ExactArgs(1),
	RunE:  resolveApproval,
}

var approvalsBlockCmd = &cobra.Command{
	Use:   "block <tool-name>",
	Short: "Block a tool for a user or session",
	Args:  cobra.ExactArgs(1),
	RunE:  blockTool,
}

var approvalsUnblockCmd = &cobra.Command{
	Use:   "unblock [tool-name]",
	Short: "Remove a tool block, or every block in scope when no tool is given",
	Args:  cobra.MaximumNArgs(1),
	RunE:  unblockTool,
}

var approvalsBlockedCmd = &cobra.Command{
	Use:   "blocked",
	Short: "List blocked tools for a user or session",
	RunE:  listBlocked,
}

var approvalsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Purge expired approvals and pre-approvals",
	RunE:  cleanupApprovals,
}

func init() {
	approvalsListCmd.Flags().String("user", "", "User id")
	_ = approvalsListCmd.MarkFlagRequired("user")
	formatFlag(approvalsListCmd)

	formatFlag(approvalsGetCmd)

	approvalsResolveCmd.Flags().String("decision", "", "approve, reject or modify")
	approvalsResolveCmd.Flags().String("params", "", "Edited parameters as a JSON object (modify only)")
	_ = approvalsResolveCmd.MarkFlagRequired("decision")
	formatFlag(approvalsResolveCmd)

	for _, c := range []*cobra.Command{approvalsBlockCmd, approvalsUnblockCmd, approvalsBlockedCmd} {
		scopeFlags(c)
	}
	approvalsBlockCmd.Flags().String("reason", "", "Why the tool is blocked")
	formatFlag(approvalsBlockedCmd)

	approvalsCmd.AddCommand(
		approvalsListCmd,
		approvalsGetCmd,
		approvalsResolveCmd,
		approvalsBlockCmd,
		approvalsUnblockCmd,
		approvalsBlockedCmd,
		approvalsCleanupCmd,
	)
	rootCmd.AddCommand(approvalsCmd)
}

func scopeFlags(cmd *cobra.Command) {
	cmd.Flags().String("user", "", "Scope to a user id")
	cmd.Flags().String("session", "", "Scope to a session id")
	cmd.MarkFlagsMutuallyExclusive("user", "session")
	cmd.MarkFlagsOneRequired("user", "session")
}

func scopeFromFlags(cmd *cobra.Command) domain.ToolScope {
	if session, _ := cmd.Flags().GetString("session"); session != "" {
		return domain.SessionScope(session)
	}
	user, _ := cmd.Flags().GetString("user")
	return domain.UserScope(user)
}

func listApprovals(cmd *cobra.Command, args []string) error {
	c, err := newContainer()
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	user, _ := cmd.Flags().GetString("user")
	views, err := c.Approvals().ListPendingApprovals(cmd.Context(), user)
	if err != nil {
		return err
	}

	if isJSON(cmd) {
		return printJSON(views)
	}

	if len(views) == 0 {
		fmt.Println("No pending approvals.")
		return nil
	}
	for _, v := range views {
		printApproval(v)
	}
	return nil
}

func getApproval(cmd *cobra.Command, args []string) error {
	c, err := newContainer()
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	view, err := c.Approvals().GetApproval(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if isJSON(cmd) {
		return printJSON(view)
	}
	printApproval(view)
	return nil
}

func resolveApproval(cmd *cobra.Command, args []string) error {
	raw, _ := cmd.Flags().GetString("decision")
	decision, ok := domain.ParseApprovalDecision(raw)
	if !ok {
		return fmt.Errorf("invalid decision %q: must be approve, reject or modify", raw)
	}

	var params map[string]any
	if p, _ := cmd.Flags().GetString("params"); p != "" {
		if decision != domain.DecisionModify {
			return fmt.Errorf("--params is only valid with --decision modify")
		}
		if err := json.Unmarshal([]byte(p), &params); err != nil {
			return fmt.Errorf("invalid --params: %w", err)
		}
	}

	c, err := newContainer()
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	approval, err := c.Approvals().ResolveApproval(cmd.Context(), args[0], decision, params)
	if err != nil {
		return err
	}

	if isJSON(cmd) {
		return printJSON(approval)
	}
	fmt.Printf("Approval %s is now %s\n", approval.ID, approval.Status)
	return nil
}

func blockTool(cmd *cobra.Command, args []string) error {
	c, err := newContainer()
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	scope := scopeFromFlags(cmd)
	reason, _ := cmd.Flags().GetString("reason")
	if err := c.Approvals().AddBlockedTool(cmd.Context(), args[0], scope, reason); err != nil {
		return err
	}
	fmt.Printf("Blocked %s for %s\n", args[0], scope)
	return nil
}

func unblockTool(cmd *cobra.Command, args []string) error {
	c, err := newContainer()
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	var toolName string
	if len(args) > 0 {
		toolName = args[0]
	}

	scope := scopeFromFlags(cmd)
	removed, err := c.Approvals().ClearBlockedTools(cmd.Context(), scope, toolName)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d block(s) for %s\n", removed, scope)
	return nil
}

func listBlocked(cmd *cobra.Command, args []string) error {
	c, err := newContainer()
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	entries, err := c.Approvals().ListBlockedTools(cmd.Context(), scopeFromFlags(cmd))
	if err != nil {
		return err
	}

	if isJSON(cmd) {
		return printJSON(entries)
	}

	if len(entries) == 0 {
		fmt.Println("No blocked tools.")
		return nil
	}
	for _, e := range entries {
		line := e.ToolName
		if e.Reason != "" {
			line += " (" + e.Reason + ")"
		}
		fmt.Println(line)
	}
	return nil
}

func cleanupApprovals(cmd *cobra.Command, args []string) error {
	c, err := newContainer()
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	removed, err := c.Approvals().CleanupExpired(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d expired record(s)\n", removed)
	return nil
}

func printApproval(v *domain.ApprovalView) {
	fmt.Printf("%s  %s  [%s]\n", v.ApprovalID, v.ToolName, v.Status)
	fmt.Printf("   Risk: %s  Expires: %s\n", v.Annotation.RiskLevel, v.ExpiresAt.Format("2006-01-02 15:04:05"))
	if len(v.Params) > 0 {
		keys := slices.Sorted(maps.Keys(v.Params))
		fmt.Printf("   Params: %s\n", strings.Join(keys, ", "))
	}
	fmt.Println()
}
