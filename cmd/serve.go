package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	container "github.com/inference-gateway/adgate/internal/container"
	logger "github.com/inference-gateway/adgate/internal/logger"
	cobra "github.com/spf13/cobra"
	errgroup "golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gate's HTTP API",
	Long: `Start the HTTP API the agent and the approval UI talk to.

The API provides:
  - Visible tool lists and risk classification
  - Tool-call gating (allow, deny, pending approval) and resume after approval
  - Approval, pre-approval and block-list management
  - Background task status, cancellation and websocket progress streams
  - Health checks and Prometheus metrics

With --mcp (or mcp.enabled in the config) the MCP tool surface is served as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			Cfg.Server.Port = port
		}
		if host, _ := cmd.Flags().GetString("host"); host != "" {
			Cfg.Server.Host = host
		}
		if withMCP, _ := cmd.Flags().GetBool("mcp"); withMCP {
			Cfg.MCP.Enabled = true
		}
		interval, _ := cmd.Flags().GetDuration("janitor-interval")
		return runServers(true, Cfg.MCP.Enabled, interval)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "API server port (default: 8090)")
	serveCmd.Flags().String("host", "", "API server host (default: 127.0.0.1)")
	serveCmd.Flags().Bool("mcp", false, "Also serve the MCP tool surface")
	serveCmd.Flags().Duration("janitor-interval", container.DefaultJanitorInterval, "How often expired approvals and finished tasks are swept")
}

// runServers starts the requested surfaces and the janitor, and blocks
// until SIGINT/SIGTERM or the first server error
func runServers(api, mcp bool, janitorInterval time.Duration) error {
	c, err := newContainer()
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("Failed to close services", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := c.Health(healthCtx); err != nil {
		logger.Warn("Storage health check failed", "error", err)
		fmt.Printf("Warning: approval storage may not be available: %v\n", err)
	}
	cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		c.RunJanitor(ctx, janitorInterval)
		return nil
	})

	if api {
		server := c.WebServer()
		fmt.Printf("HTTP API listening on http://%s\n", Cfg.Server.Addr())
		g.Go(func() error { return server.Start(ctx) })
	}
	if mcp {
		server := c.MCPServer()
		fmt.Printf("MCP endpoint on %s%s\n", Cfg.MCP.Addr, Cfg.MCP.Path)
		g.Go(func() error { return server.Start(ctx) })
	}

	return g.Wait()
}
