package cmd

import (
	"fmt"

	domain "github.com/inference-gateway/adgate/internal/domain"
	cobra "github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Long:  `Display version information for adgate.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if isJSON(cmd) {
			return printJSON(GetVersionInfo())
		}
		fmt.Printf("adgate version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built at: %s\n", date)
		return nil
	},
}

// GetVersionInfo returns the current version information
func GetVersionInfo() domain.VersionInfo {
	return domain.VersionInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	}
}

func init() {
	formatFlag(versionCmd)
	rootCmd.AddCommand(versionCmd)
}
