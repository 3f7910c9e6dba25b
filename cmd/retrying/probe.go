package main

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"retrying/internal/runner"
	"retrying/pkg/httpclient"
	"retrying/pkg/logger"
	"retrying/pkg/retry"
	"retrying/pkg/ui"
)

var (
	probePolicy policyFlags

	// Probe command flags
	probeTimeout time.Duration
	probeHeaders []string
	probeBody    bool
)

// probeCmd represents the probe command
var probeCmd = &cobra.Command{
	Use:   "probe URL",
	Short: "GET a URL until it answers with a success status",
	Long: `Send GET requests to URL under the selected policy until it answers with
a 2xx or 3xx status.

HTTP failures are classified so they can be used with --if-errors and
--if-not-errors:
  - 401, 403          auth
  - 404, 410          not_found
  - 408, 504          timeout
  - 429               rate_limit
  - 502, 503          unavailable
  - other 5xx         server_error
  - other 4xx         invalid
  - connection errors network

When the policy sets no filter, only network, timeout, rate_limit,
unavailable and server_error failures are retried.`,
	Example: `  # Wait up to two minutes for a service to come up
  retrying probe -d 120 --wait-fixed 2 http://localhost:8080/healthz

  # Print the response once it succeeds
  retrying probe --body -n 5 https://example.com/status.json`,
	Args: cobra.ExactArgs(1),
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probePolicy.register(probeCmd)

	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", 10*time.Second, "timeout for each request")
	probeCmd.Flags().StringArrayVarP(&probeHeaders, "header", "H", nil, "extra request header as 'Name: value' (repeatable)")
	probeCmd.Flags().BoolVar(&probeBody, "body", false, "copy the successful response body to standard output")
}

func runProbe(cmd *cobra.Command, args []string) error {
	headers, err := parseHeaders(probeHeaders)
	if err != nil {
		return err
	}

	executor, shutdown, err := buildExecutor(cmd, &probePolicy, retry.Classified{}, func(attempt uint, err error, delay time.Duration) {
		ui.PrintRetry(attempt, err, ui.FormatDuration(delay))
	})
	if err != nil {
		return err
	}
	defer shutdown()

	client := httpclient.NewClient(probeTimeout, executor, logger.GetLogger())
	client.SetHeaders(headers)

	start := time.Now()
	resp, err := client.Get(cmd.Context(), args[0])
	if err != nil {
		return &exitError{code: runner.ExitFailure, err: err}
	}
	defer resp.Body.Close()

	ui.PrintSuccess(fmt.Sprintf("%s answered %s after %s", args[0], resp.Status, ui.FormatDuration(time.Since(start))))
	if probeBody {
		if _, err := io.Copy(cmd.OutOrStdout(), resp.Body); err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
	}
	return nil
}

// parseHeaders splits "Name: value" pairs.
func parseHeaders(raw []string) (map[string]string, error) {
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q: expected 'Name: value'", h)
		}
		headers[http.CanonicalHeaderKey(name)] = strings.TrimSpace(value)
	}
	return headers, nil
}
