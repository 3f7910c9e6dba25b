package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"retrying/pkg/config"
	"retrying/pkg/envoverride"
	"retrying/pkg/logger"
	"retrying/pkg/ui"
)

var (
	// Version information
	version   = "0.3.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile  string
	logLevel    string
	logFormat   string
	envsPrefix  string
	envFiles    []string
	metricsAddr string
	quiet       bool

	// cfg is loaded once before any subcommand runs
	cfg *config.Config
)

// exitError carries the status the process should exit with.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "retrying",
	Short: "Run commands under a configurable retry policy",
	Long: `retrying re-runs a command until it succeeds or its policy gives up.

A policy combines:
  - a stop condition (attempt count, elapsed time, or both)
  - a wait strategy (fixed, random or exponential)
  - a retry filter (which error kinds are worth retrying)

Policies live in retrying.yaml and can be tuned per deployment through
{PREFIX}__STOP__ATTEMPTS style environment variables.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if quiet {
			ui.SetOutput(io.Discard)
		} else {
			ui.SetOutput(os.Stderr)
		}

		flags := make(map[string]interface{})
		if cmd.Flags().Changed("log-level") {
			flags["log-level"] = logLevel
		} else if quiet {
			flags["log-level"] = "error"
		}
		if logFormat != "" {
			flags["log-format"] = logFormat
		}
		if envsPrefix != "" {
			flags["envs-prefix"] = envsPrefix
		}
		if metricsAddr != "" {
			flags["metrics-addr"] = metricsAddr
		}

		loaded, err := config.Load(configFile, flags)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded

		logger.Initialize(&cfg.Logging)
		logger.WithField("version", version).Debug("retrying starting")
		return nil
	},
}

// Execute adds all child commands to the root command and exits with the
// status of the command that ran.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return
	}

	code := 1
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		code = exitErr.code
	}
	ui.PrintError("retrying", err)
	stop()
	os.Exit(code)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./retrying.yaml or ~/.config/retrying/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error, disabled)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (console, json)")
	rootCmd.PersistentFlags().StringVar(&envsPrefix, "envs-prefix", "", "environment prefix for policy overrides")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "read policy overrides from .env files in addition to the environment")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except the command's own")

	rootCmd.SetVersionTemplate(`retrying {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// environment returns the environment policy overrides are resolved in.
func environment() (envoverride.Environment, error) {
	if len(envFiles) == 0 {
		return envoverride.OS(), nil
	}
	return envoverride.Dotenv(envFiles...)
}
