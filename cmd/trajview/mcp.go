package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aretw0/trajview/internal/cli"
	"github.com/aretw0/trajview/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts the engine as an MCP Server.
This allows AI agents to open viewer sessions, select subjects and load
trajectories as tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		addr, _ := cmd.Flags().GetString("addr")
		baseURL, _ := cmd.Flags().GetString("base-url")

		cfg, logger, err := loadConfig(cmd, nil)
		if err != nil {
			return err
		}
		// Metrics have no listener here.
		cfg.HTTP.Metrics = false

		rt, err := cli.NewRuntime(cfg, logger)
		if err != nil {
			return err
		}
		defer rt.Close()

		sigCtx, stop := shutdownContext(cmd.Context())
		defer stop()
		go func() {
			if err := rt.Engine.Run(sigCtx); err != nil {
				logger.Error("Cache janitor stopped", "err", err)
			}
		}()

		srv := mcp.NewServer(rt.Engine, mcp.WithLogger(logger))

		switch transport {
		case "stdio":
			// Logs go to Stderr so they don't corrupt JSON-RPC on Stdout
			logger.Info("Starting trajview MCP Server (Stdio)")
			return srv.ServeStdio()
		case "sse":
			if baseURL == "" {
				baseURL = "http://localhost" + addr
			}
			if err := srv.ServeSSE(sigCtx, addr, baseURL); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("MCP Server execution failed: %w", err)
			}
			logger.Info("MCP Server stopped gracefully")
			return nil
		default:
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().String("addr", ":8081", "Address to listen on (only for SSE)")
	mcpCmd.Flags().String("base-url", "", "Public base URL advertised to SSE clients")
}
