package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	config "github.com/inference-gateway/adgate/config"
	container "github.com/inference-gateway/adgate/internal/container"
	logger "github.com/inference-gateway/adgate/internal/logger"
	cobra "github.com/spf13/cobra"
	viper "github.com/spf13/viper"
)

var (
	// Cfg is the configuration loaded before any command runs
	Cfg *config.Config
	// V is the viper instance Cfg was decoded from
	V *viper.Viper
)

var rootCmd = &cobra.Command{
	Use:   "adgate",
	Short: "Risk gate for agent calls to ad-monetization platforms",
	Long: `adgate sits between a conversational agent and ad-monetization platforms
(AdMob, Google Ad Manager, AppLovin MAX, Unity, ironSource and others).

It classifies every tool call by risk, hides tools for networks the user has
not connected, holds dangerous calls for human approval, injects per-user
credentials into allowed calls and tracks long-running work as background tasks.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
}

// Execute runs the root command
func Execute() {
	defer logger.Close()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", fmt.Sprintf("config file (default is %s)", config.DefaultConfigPath))
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
}

func initConfig(cmd *cobra.Command) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	flagPath, _ := cmd.Flags().GetString("config")

	configPath := config.GetConfigPath(flagPath)
	cfg, v, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	Cfg, V = cfg, v
	logger.Init(verbose, cfg)
	logger.Debug("Configuration loaded", "path", configPath)
	return nil
}

// newContainer wires every service from the loaded configuration
func newContainer() (*container.ServiceContainer, error) {
	if Cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return container.NewServiceContainer(Cfg, V)
}

func formatFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "text", "Output format (text, json)")
}

func isJSON(cmd *cobra.Command) bool {
	format, _ := cmd.Flags().GetString("format")
	return format == "json"
}

func printJSON(v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(output))
	return nil
}
