package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/adlift/adlift/internal/observability"
	"github.com/adlift/adlift/internal/server"
	"github.com/adlift/adlift/pkg/batch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the campaign API server",
	Long: `Run the HTTP API server. Submitted campaigns are queued and drained
by the same bounded worker pool that batch processing uses, so
concurrency limits stay uniform.

Example:
  adlift serve
  adlift serve --host 0.0.0.0 --port 9000`,
	RunE: runServe,
}

var (
	serveHost string
	servePort int
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	backend, err := newBackend(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	q := loadQueue()

	p := batch.New(batch.Config{
		MaxWorkers:   appConfig.Batch.MaxWorkers,
		JobTimeout:   appConfig.Batch.JobTimeout,
		RateLimit:    rate.Limit(appConfig.Batch.RateLimit),
		PollInterval: appConfig.Batch.PollInterval,
	}, newPipeline(backend), observability.CLILogger)

	// Workers drain the queue for the lifetime of the server.
	go p.Run(ctx, q)

	host := appConfig.Server.Host
	if serveHost != "" {
		host = serveHost
	}
	port := appConfig.Server.Port
	if servePort > 0 {
		port = servePort
	}

	srv := server.New(host, port, q, backend, p, observability.CLILogger)
	srv.ShutdownTimeout = appConfig.Server.ShutdownTimeout

	serveErr := srv.Start(ctx)

	if err := q.SaveState(appConfig.Batch.StatePath); err != nil {
		observability.CLILogger.Error("Failed to persist queue state on shutdown",
			zap.String("path", appConfig.Batch.StatePath),
			zap.Error(err))
	}
	if serveErr != nil {
		return exitError(ExitInternalError, "Server failed", serveErr)
	}
	return nil
}
