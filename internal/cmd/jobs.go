package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adlift/adlift/internal/observability"
	"github.com/adlift/adlift/pkg/queue"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and manage the campaign job queue",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs, optionally filtered by status",
	RunE:  runJobsList,
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show one job as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsShow,
}

var jobsAddCmd = &cobra.Command{
	Use:   "add <brief-path>",
	Short: "Queue a campaign brief",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsAdd,
}

var jobsRetryCmd = &cobra.Command{
	Use:   "retry <job-id>",
	Short: "Re-queue a completed, failed or cancelled job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsRetry,
}

var jobsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue statistics",
	RunE:  runJobsStats,
}

var (
	jobsListStatus  string
	jobsAddPriority int
)

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd, jobsShowCmd, jobsAddCmd, jobsRetryCmd, jobsStatsCmd)

	jobsListCmd.Flags().StringVarP(&jobsListStatus, "status", "s", "", "Filter by status (pending|in_progress|completed|failed|cancelled)")
	jobsAddCmd.Flags().IntVarP(&jobsAddPriority, "priority", "p", 0, "Job priority (higher runs first)")
}

// loadQueue restores queue state from the configured state file. A
// missing file yields an empty queue, which is normal on first use.
func loadQueue() *queue.Queue {
	q := queue.New(observability.CLILogger)
	q.LoadState(appConfig.Batch.StatePath)
	return q
}

func saveQueue(q *queue.Queue) error {
	if err := q.SaveState(appConfig.Batch.StatePath); err != nil {
		observability.CLILogger.Error("Failed to persist queue state",
			zap.String("path", appConfig.Batch.StatePath),
			zap.Error(err))
		return exitError(ExitInternalError, "Failed to persist queue state", err)
	}
	return nil
}

func runJobsList(cmd *cobra.Command, args []string) error {
	filter := queue.Status(jobsListStatus)
	if filter != "" && !filter.Valid() {
		return exitError(ExitInvalidArgument, "Unknown status", fmt.Errorf("%q", jobsListStatus))
	}

	q := loadQueue()
	jobs := q.Jobs(filter)
	out := cmd.OutOrStdout()
	if len(jobs) == 0 {
		fmt.Fprintln(out, "no jobs")
		return nil
	}
	for _, j := range jobs {
		fmt.Fprintf(out, "%s  %-11s  p%d  %s\n", j.ID, j.Status, j.Priority, j.BriefPath)
	}
	return nil
}

func runJobsShow(cmd *cobra.Command, args []string) error {
	q := loadQueue()
	job, ok := q.GetJob(args[0])
	if !ok {
		return exitError(ExitInvalidArgument, "Unknown job", fmt.Errorf("%q", args[0]))
	}
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return exitError(ExitInternalError, "Cannot encode job", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func runJobsAdd(cmd *cobra.Command, args []string) error {
	q := loadQueue()
	id := q.AddJob(args[0], jobsAddPriority)
	if err := saveQueue(q); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

func runJobsRetry(cmd *cobra.Command, args []string) error {
	q := loadQueue()
	if !q.RetryJob(args[0]) {
		return exitError(ExitInvalidArgument, "Job cannot be retried",
			fmt.Errorf("%q is unknown or not in a terminal state", args[0]))
	}
	if err := saveQueue(q); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s re-queued\n", args[0])
	return nil
}

func runJobsStats(cmd *cobra.Command, args []string) error {
	q := loadQueue()
	s := q.Statistics()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Total:       %d\n", s.Total)
	fmt.Fprintf(out, "Pending:     %d\n", s.Pending)
	fmt.Fprintf(out, "In progress: %d\n", s.InProgress)
	fmt.Fprintf(out, "Completed:   %d\n", s.Completed)
	fmt.Fprintf(out, "Failed:      %d\n", s.Failed)
	fmt.Fprintf(out, "Cancelled:   %d\n", s.Cancelled)
	fmt.Fprintf(out, "Avg time:    %.2fs\n", s.AvgProcessingTime)
	return nil
}
