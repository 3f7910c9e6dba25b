// Package logger provides the structured logging interface used across retrying.
//
// It wraps zerolog behind a small Logger interface so that library packages
// (the executor, env overrides, the batch runner) can accept any
// implementation and default to NewNop when none is injected.
//
// Basic Usage:
//
//	cfg := &config.LoggingConfig{Level: "info", Format: "console"}
//	if err := logger.Initialize(cfg); err != nil {
//	    return err
//	}
//	logger.WithField("policy", "api").Info("Retry policy resolved")
//
// Library Usage:
//
//	executor, err := retry.NewExecutor(policy, retry.WithLogger(logger.GetLogger()))
//
// Tests use NewTestLogger, which records every message together with its
// fields so assertions can inspect diagnostics:
//
//	log := logger.NewTestLogger()
//	envoverride.Override(env, log, uint(5), "SVC", envoverride.StopAttempts)
//	require.True(t, log.HasMessage("environment override ignored"))
//
// Configuration options:
//   - Level: debug, info, warn, error or disabled
//   - Format: console (default) or json
//   - File: optional path; when set, events are written to both stderr and the file
package logger
