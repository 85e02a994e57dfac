// Package cmd implements the adlift command line interface.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adlift/adlift/internal/config"
	"github.com/adlift/adlift/internal/observability"
	"github.com/adlift/adlift/pkg/storage"
	"github.com/adlift/adlift/pkg/storage/factory"
)

// Exit codes surfaced through exitError.
const (
	ExitInvalidArgument    = 2
	ExitServiceUnavailable = 69
	ExitInternalError      = 70
)

var rootCmd = &cobra.Command{
	Use:   "adlift",
	Short: "Campaign storage and job queue tooling",
	Long: `adlift manages creative-campaign processing: it stores generated
assets behind a swappable storage backend (local, S3, Azure Blob, GCS),
queues campaign jobs with priorities, and drives them through a bounded
worker pool.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		observability.Init(rootVerbose)
		cfg, err := config.Load(rootConfigPath, observability.CLILogger)
		if err != nil {
			return exitError(ExitInvalidArgument, "Invalid configuration", err)
		}
		appConfig = cfg
		return nil
	},
}

var (
	rootConfigPath string
	rootVerbose    bool

	// appConfig is populated by PersistentPreRunE before any RunE fires.
	appConfig *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootConfigPath, "config", "c", "", "Path to config file (default: ./adlift.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false, "Enable debug logging")
}

// Execute runs the CLI with the given context.
func Execute(ctx context.Context) error {
	defer observability.Sync()
	return rootCmd.ExecuteContext(ctx)
}

// newBackend constructs the configured storage backend for a command.
func newBackend(ctx context.Context) (storage.Backend, error) {
	b, err := factory.New(ctx, appConfig.Storage, observability.CLILogger)
	if err != nil {
		observability.CLILogger.Error("Failed to create storage backend", zap.Error(err))
		return nil, exitError(ExitServiceUnavailable, "Failed to connect to storage backend", err)
	}
	return b, nil
}

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return fmt.Errorf("%s: %w (exit code %d)", message, err, code)
}
