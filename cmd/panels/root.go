package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/photo-panels/internal/app"
	"github.com/joseph-ayodele/photo-panels/internal/common"
)

var (
	cfgFile  string
	verbose  bool
	jsonLogs bool
)

var rootCmd = &cobra.Command{
	Use:           "panels",
	Short:         "Build photographic panel documents from inspection report PDFs",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json", false, "log as JSON")
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// setup loads configuration and installs the process logger. Logs go to stderr so
// stdout carries only command output.
func setup() (common.Config, *slog.Logger, error) {
	logger := app.NewLogger(os.Stderr, jsonLogs, verbose)
	slog.SetDefault(logger)
	cfg, err := common.LoadConfig(cfgFile)
	if err != nil {
		return common.Config{}, logger, err
	}
	return cfg, logger, nil
}
