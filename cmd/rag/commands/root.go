// Package commands implements the rag command line.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ragreader/internal/app"
	"ragreader/internal/config"
	"ragreader/internal/logger"
)

var (
	cfgPath string
	verbose bool
	session string
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rag",
		Short: "Ask questions about a folder of documents",
		Long: `rag indexes the .txt and .pdf files in a directory and answers
questions about them with a language model, citing the passages it used.

Run it as an HTTP API (serve), an interactive chat (chat), a one-shot
question (ask) or an MCP server for LLM agents (mcp).`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to YAML config (default ./config.yaml or ~/.config/ragreader/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().StringVarP(&session, "session", "s", "default", "session to build into and query")

	cmd.AddCommand(
		NewServeCmd(),
		NewChatCmd(),
		NewAskCmd(),
		NewMCPCmd(),
		NewVersionCmd(),
	)
	return cmd
}

func Execute() error {
	return NewRootCmd().Execute()
}

func loadConfig() (*config.AppConfig, error) {
	if err := config.LoadEnv(); err != nil {
		logger.Warn("%v", err)
	}
	var (
		cfg  *config.AppConfig
		path string
		err  error
	)
	if cfgPath != "" {
		path = cfgPath
		cfg, err = config.Load(cfgPath)
	} else {
		cfg, path, err = config.LoadDefault()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if verbose {
		cfg.Log.Verbose = true
	}
	logger.SetVerbose(cfg.Log.Verbose)
	logger.Debug("using config %s", path)
	return cfg, nil
}

func loadApp() (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(cfg)
}
