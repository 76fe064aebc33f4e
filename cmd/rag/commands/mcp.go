package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"ragreader/internal/logger"
	"ragreader/internal/mcp"
)

func NewMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Runs the document pipeline as an MCP (Model Context Protocol) server over
stdio, so LLM agents can index directories and ask questions about them.`,
		Example: `  # claude_desktop_config.json:
  # {
  #   "mcpServers": {
  #     "ragreader": {"command": "rag", "args": ["mcp"]}
  #   }
  # }`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			server := mcpserver.NewMCPServer("ragreader", versionInfo.Version)
			mcp.RegisterTools(server, a.Service)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("MCP server starting on stdio")
			serverErr := make(chan error, 1)
			go func() {
				serverErr <- mcpserver.ServeStdio(server)
			}()

			var runErr error
			select {
			case <-ctx.Done():
				logger.Info("shutdown signal received")
			case err := <-serverErr:
				if err != nil {
					runErr = fmt.Errorf("server error: %w", err)
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := a.Close(shutdownCtx); err != nil {
				logger.Warn("shutdown: %v", err)
			}
			return runErr
		},
	}
}
