package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/adlift/adlift/internal/observability"
	"github.com/adlift/adlift/pkg/batch"
)

var batchCmd = &cobra.Command{
	Use:   "batch <brief-directory>",
	Short: "Process all campaign briefs in a directory",
	Long: `Process every campaign brief (*.json) in a directory through the
pipeline, bounded by a configurable worker count.

Example:
  adlift batch ./briefs
  adlift batch ./briefs --workers 8 --timeout 2m
  adlift batch ./briefs --report reports/run.json`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

var (
	batchWorkers int
	batchTimeout time.Duration
	batchRate    float64
	batchReport  string
)

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 0, "Worker count (default from config)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 0, "Per-campaign timeout (default from config)")
	batchCmd.Flags().Float64Var(&batchRate, "rate", 0, "Max campaign dispatches per second (default from config)")
	batchCmd.Flags().StringVar(&batchReport, "report", "", "Storage path for the batch report (default from config)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	directory := args[0]

	backend, err := newBackend(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	cfg := batch.Config{
		MaxWorkers: appConfig.Batch.MaxWorkers,
		JobTimeout: appConfig.Batch.JobTimeout,
		RateLimit:  rate.Limit(appConfig.Batch.RateLimit),
	}
	if batchWorkers > 0 {
		cfg.MaxWorkers = batchWorkers
	}
	if batchTimeout > 0 {
		cfg.JobTimeout = batchTimeout
	}
	if batchRate > 0 {
		cfg.RateLimit = rate.Limit(batchRate)
	}
	reportPath := appConfig.Batch.ReportPath
	if batchReport != "" {
		reportPath = batchReport
	}

	p := batch.New(cfg, newPipeline(backend), observability.CLILogger)

	start := time.Now()
	results, err := p.ProcessDirectory(ctx, directory)
	if err != nil {
		observability.CLILogger.Error("Batch failed to start",
			zap.String("directory", directory),
			zap.Error(err))
		return exitError(ExitInvalidArgument, "Cannot process directory", err)
	}
	elapsed := time.Since(start)

	summary := batch.Summarize(results, elapsed)
	printSummary(cmd, summary, results)

	report := p.BuildReport(results, elapsed)
	if !p.SaveReport(ctx, backend, report, reportPath) {
		observability.CLILogger.Warn("Report not persisted", zap.String("path", reportPath))
	}

	if summary.Failed > 0 {
		return exitError(ExitInternalError, "Batch finished with failures",
			fmt.Errorf("%d of %d campaigns failed", summary.Failed, summary.Total))
	}
	return nil
}

func printSummary(cmd *cobra.Command, s batch.Summary, results []batch.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Campaigns:   %d (%d ok, %d failed)\n", s.Total, s.Successful, s.Failed)
	fmt.Fprintf(out, "Success:     %.1f%%\n", s.SuccessRate)
	fmt.Fprintf(out, "Duration:    %.2fs (avg %.2fs/campaign)\n", s.TotalDuration, s.AvgDuration)
	fmt.Fprintf(out, "Throughput:  %.1f campaigns/min\n", s.Throughput)
	for _, r := range results {
		if !r.Success {
			fmt.Fprintf(out, "  FAILED %s: %s\n", r.Campaign, r.Error)
		}
	}
}
