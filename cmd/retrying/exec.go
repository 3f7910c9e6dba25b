package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"retrying/internal/runner"
	"retrying/pkg/logger"
	"retrying/pkg/retry"
	"retrying/pkg/ui"
)

var execPolicy policyFlags

// execCmd represents the exec command
var execCmd = &cobra.Command{
	Use:   "exec [flags] -- command [args...]",
	Short: "Run a command, retrying it under a policy",
	Long: `Run a command and re-run it when it fails, until it succeeds or the
policy's stop condition is reached.

The command's own exit status is passed through once retries are exhausted.
Failures are classified as:
  - exit_status  the command exited non-zero
  - signal       the command was killed by a signal
  - not_found    the command could not be started`,
	Example: `  # Retry up to 5 times, waiting 2 seconds between attempts
  retrying exec -n 5 --wait-fixed 2 -- curl -sf https://example.com/health

  # Use the "deploy" policy from retrying.yaml
  retrying exec -p deploy -- ./deploy.sh

  # Exponential backoff for at most a minute, only on non-zero exits
  retrying exec -d 60 --wait-exp-max 10 --if-errors exit_status -- make test`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

func init() {
	rootCmd.AddCommand(execCmd)
	execPolicy.register(execCmd)
	execCmd.Flags().SetInterspersed(false)
}

func runExec(cmd *cobra.Command, args []string) error {
	executor, shutdown, err := buildExecutor(cmd, &execPolicy, nil, func(attempt uint, err error, delay time.Duration) {
		ui.PrintRetry(attempt, err, ui.FormatDuration(delay))
	})
	if err != nil {
		return err
	}
	defer shutdown()

	ctx := cmd.Context()
	c := runner.Command{Stdout: os.Stdout, Stderr: os.Stderr}

	err = executor.Run(ctx, func() error {
		return c.Run(ctx, args)
	})
	if err != nil {
		return &exitError{code: runner.ExitCode(err), err: err}
	}
	return nil
}

// buildExecutor resolves the policy selected by flags and wires it to the
// configured logger, environment and metrics. fallback replaces the filter
// when the policy sets none.
func buildExecutor(
	cmd *cobra.Command,
	flags *policyFlags,
	fallback retry.Filter,
	onRetry func(uint, error, time.Duration),
) (*retry.Executor, func(), error) {
	name, pc, err := flags.resolve(cmd, cfg)
	if err != nil {
		return nil, nil, err
	}

	policy, err := retry.FromConfig(pc)
	if err != nil {
		return nil, nil, err
	}
	if policy.Retry == nil && fallback != nil {
		policy.Retry = fallback
	}

	env, err := environment()
	if err != nil {
		return nil, nil, err
	}

	observer, shutdown, err := startMetrics(cfg.Metrics)
	if err != nil {
		return nil, nil, err
	}

	log := logger.GetLogger()
	executor, err := retry.NewExecutor(policy,
		retry.WithName(name),
		retry.WithLogger(log),
		retry.WithEnvironment(env),
		retry.WithObserver(observer),
		retry.WithOnRetry(onRetry),
	)
	if err != nil {
		shutdown()
		return nil, nil, err
	}

	logger.LogPolicy(log, name, executor.Describe())
	return executor, shutdown, nil
}
