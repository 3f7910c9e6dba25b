package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"retrying/internal/runner"
	"retrying/pkg/checkpoint"
	"retrying/pkg/logger"
	"retrying/pkg/ratelimit"
	"retrying/pkg/ui"
)

var (
	batchPolicy policyFlags

	// Batch command flags
	workers   int
	rateLimit string
	burst     int
	useShell  bool
	verbose   bool
	resume    bool
	cpPath    string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch FILE",
	Short: "Run a file of commands concurrently, each under the same policy",
	Long: `Run every command listed in FILE, one per line, through a pool of
workers. Each command is retried independently under the selected policy.

Blank lines and lines starting with # are ignored. Use - to read the
list from standard input. The rate limit applies to all attempts across
all workers, so a burst of failures cannot overload a shared dependency.`,
	Example: `  # Four workers, at most 30 attempts per minute overall
  retrying batch jobs.txt --workers 4 --rate 30/m -n 5 --wait-exp-max 30

  # Lines containing pipes or redirects need a shell
  retrying batch --shell jobs.txt

  # Skip commands that already succeeded in an interrupted run
  retrying batch --resume jobs.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchPolicy.register(batchCmd)

	batchCmd.Flags().IntVarP(&workers, "workers", "w", 4, "number of concurrent workers")
	batchCmd.Flags().StringVar(&rateLimit, "rate", "", "maximum attempts across all workers, e.g. 10/s or 100/m (default unlimited)")
	batchCmd.Flags().IntVar(&burst, "burst", 1, "attempts allowed at once before the rate applies")
	batchCmd.Flags().BoolVar(&useShell, "shell", false, "run each line with sh -c")
	batchCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print every retry and result instead of a progress line")
	batchCmd.Flags().BoolVar(&resume, "resume", false, "skip commands that succeeded in an earlier run of the same file")
	batchCmd.Flags().StringVar(&cpPath, "checkpoint", "", "checkpoint file (default: in the user data directory)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	jobs, err := runner.ReadJobsFile(args[0], useShell)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		ui.PrintWarning("No commands to run", args[0])
		return nil
	}

	perSecond, err := ratelimit.ParseRate(rateLimit)
	if err != nil {
		return err
	}

	log := logger.GetLogger()

	var (
		cpMgr *checkpoint.Manager
		cp    *checkpoint.Checkpoint
	)
	if resume {
		cpMgr, cp, err = openCheckpoint(args[0], jobs, log)
		if err != nil {
			return err
		}
		jobs = pending(jobs, cp)
		if len(jobs) == 0 {
			ui.PrintSuccess("All commands already succeeded")
			return cpMgr.Delete()
		}
		ui.PrintInfo("Resuming", fmt.Sprintf("%d of %d commands left", len(jobs), cp.Total))
	}

	progress := ui.NewProgressDisplay(ui.Output(), len(jobs), verbose)
	executor, shutdown, err := buildExecutor(cmd, &batchPolicy, nil, func(attempt uint, err error, delay time.Duration) {
		progress.Retry(attempt, err, delay)
	})
	if err != nil {
		return err
	}
	defer shutdown()

	pool := runner.NewPool(
		workers,
		executor,
		runner.Command{Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()}.Operation(),
		ratelimit.New(perSecond, burst),
		log,
	)

	results, err := runner.RunAll(cmd.Context(), pool, jobs, func(r runner.Result) {
		progress.Complete(r.Job.ID, r.Attempts, r.Err)
		if cpMgr == nil {
			return
		}
		var cpErr error
		if r.Success() {
			cpErr = cpMgr.RecordSuccess(cp, r.Job.ID, strings.Join(r.Job.Args, " "))
		} else {
			cpErr = cpMgr.RecordFailure(cp)
		}
		if cpErr != nil {
			log.WithError(cpErr).Warn("Failed to update checkpoint")
		}
	})
	failed := progress.Summary()
	if err != nil {
		return err
	}
	if cpMgr != nil && failed == 0 {
		if err := cpMgr.Delete(); err != nil {
			log.WithError(err).Warn("Failed to remove checkpoint")
		}
	}

	log.InfoWithFields("Batch finished", map[string]interface{}{
		"jobs":   len(results),
		"failed": failed,
	})
	if failed > 0 {
		return &exitError{code: runner.ExitFailure, err: fmt.Errorf("%d of %d commands failed", failed, len(jobs))}
	}
	return nil
}

func openCheckpoint(source string, jobs []runner.Job, log logger.Logger) (*checkpoint.Manager, *checkpoint.Checkpoint, error) {
	var mgr *checkpoint.Manager
	if cpPath != "" {
		mgr = checkpoint.NewManagerAt(cpPath, log)
	} else {
		if source == "-" {
			return nil, nil, fmt.Errorf("--resume with standard input requires --checkpoint")
		}
		var err error
		mgr, err = checkpoint.NewManager(source, log)
		if err != nil {
			return nil, nil, err
		}
	}

	lines := make([][]string, len(jobs))
	for i, job := range jobs {
		lines[i] = job.Args
	}
	cp, err := mgr.Resume(source, checkpoint.Digest(lines), len(jobs))
	if err != nil {
		return nil, nil, err
	}
	return mgr, cp, nil
}

// pending drops jobs recorded as completed in cp.
func pending(jobs []runner.Job, cp *checkpoint.Checkpoint) []runner.Job {
	out := jobs[:0:0]
	for _, job := range jobs {
		if !cp.IsCompleted(job.ID) {
			out = append(out, job)
		}
	}
	return out
}
