package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"retrying/pkg/config"
	"retrying/pkg/envoverride"
	"retrying/pkg/logger"
	"retrying/pkg/retry"
	"retrying/pkg/ui"
)

// policyCmd represents the policy command
var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect and manage retry policies",
	Long: `Inspect and manage the retry policies defined in the config file.

Policies can be loaded from:
  - Command line flags (highest priority)
  - {PREFIX}__* environment variables, resolved when a policy is used
  - Configuration file`,
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured policies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listPolicies(cmd.OutOrStdout(), cfg)
	},
}

var policyShowCmd = &cobra.Command{
	Use:   "show [NAME]",
	Short: "Show a policy as it resolves in the current environment",
	Long: `Show a policy after environment overrides have been applied.

Every override variable the policy would read is listed with its value,
or with the reason it was ignored.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := config.DefaultPolicyName
		if len(args) == 1 {
			name = args[0]
		}
		env, err := environment()
		if err != nil {
			return err
		}
		return showPolicy(cmd.OutOrStdout(), cfg, name, env)
	},
}

var policyValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate every configured policy",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return validatePolicies(cmd.OutOrStdout(), cfg)
	},
}

var policyInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as 'retrying.yaml'
unless a different path is specified with the --config flag.`,
	Args: cobra.NoArgs,
	// The file being created may not exist or parse yet
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFile
		if path == "" {
			path = "retrying.yaml"
		}
		if err := writeExampleConfig(path); err != nil {
			return err
		}
		ui.PrintSuccess("Configuration file created: " + path)
		fmt.Fprintln(cmd.OutOrStdout(), "\nNext steps:")
		fmt.Fprintln(cmd.OutOrStdout(), "1. Edit the policies to match your commands")
		fmt.Fprintln(cmd.OutOrStdout(), "2. Run 'retrying policy validate' to check the configuration")
		fmt.Fprintln(cmd.OutOrStdout(), "3. Run a command with 'retrying exec -p default -- <command>'")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyListCmd)
	policyCmd.AddCommand(policyShowCmd)
	policyCmd.AddCommand(policyValidateCmd)
	policyCmd.AddCommand(policyInitCmd)
}

func listPolicies(w io.Writer, c *config.Config) error {
	names := c.PolicyNames()
	if len(names) == 0 {
		ui.PrintWarning("No policies configured", "run 'retrying policy init' to create an example")
		return nil
	}
	for _, name := range names {
		pc, _ := c.Policy(name)
		policy, err := retry.FromConfig(pc)
		if err != nil {
			fmt.Fprintf(w, "%s\t%s\n", name, ui.Red(err.Error()))
			continue
		}
		// as written in the file, without environment overrides
		executor, err := retry.NewExecutor(policy, retry.WithName(name), retry.WithEnvironment(envoverride.Map(nil)))
		if err != nil {
			fmt.Fprintf(w, "%s\t%s\n", name, ui.Red(err.Error()))
			continue
		}
		d := executor.Describe()
		fmt.Fprintf(w, "%s\tstop=%v wait=%v retry=%v\n", name, d["stop"], d["wait"], d["retry"])
	}
	return nil
}

// showPolicy prints the resolved policy and the state of each override
// variable.
func showPolicy(w io.Writer, c *config.Config, name string, env envoverride.Environment) error {
	pc, ok := c.Policy(name)
	if !ok {
		return fmt.Errorf("policy %q is not configured", name)
	}
	policy, err := retry.FromConfig(pc)
	if err != nil {
		return fmt.Errorf("policy %q: %w", name, err)
	}

	executor, err := retry.NewExecutor(policy,
		retry.WithName(name),
		retry.WithLogger(logger.GetLogger()),
		retry.WithEnvironment(env),
	)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(map[string]interface{}{name: executor.Describe()})
	if err != nil {
		return fmt.Errorf("failed to format policy: %w", err)
	}
	fmt.Fprint(w, string(data))

	if policy.EnvPrefix == "" {
		fmt.Fprintln(w, "\nEnvironment overrides: disabled (no envs_prefix)")
		return nil
	}

	fmt.Fprintln(w, "\nEnvironment overrides:")
	for _, suffix := range envoverride.Suffixes() {
		varName := envoverride.VarName(policy.EnvPrefix, suffix)
		value, diag, ok := envoverride.Lookup(env, varName)
		switch {
		case ok:
			fmt.Fprintf(w, "  %s=%s\n", varName, value)
		case diag != nil:
			fmt.Fprintf(w, "  %s %s\n", varName, ui.Yellow("ignored: "+diag.Reason))
		default:
			fmt.Fprintf(w, "  %s %s\n", varName, ui.Dim("unset"))
		}
	}
	return nil
}

func validatePolicies(w io.Writer, c *config.Config) error {
	names := c.PolicyNames()
	if len(names) == 0 {
		return errors.New("no policies configured")
	}

	failed := map[string]error{}
	for _, name := range names {
		pc, _ := c.Policy(name)
		if _, err := retry.FromConfig(pc); err != nil {
			failed[name] = err
		}
	}

	if len(failed) > 0 {
		bad := make([]string, 0, len(failed))
		for name := range failed {
			bad = append(bad, name)
		}
		sort.Strings(bad)
		ui.PrintError("Configuration has errors")
		for _, name := range bad {
			fmt.Fprintf(w, "  - %s: %v\n", name, failed[name])
		}
		return &exitError{code: 1, err: fmt.Errorf("%d of %d policies are invalid", len(failed), len(names))}
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Fprintf(w, "\nPolicies: %d\n", len(names))
	if c.EnvsPrefix != "" {
		fmt.Fprintf(w, "Default envs prefix: %s\n", c.EnvsPrefix)
	}
	return nil
}

func writeExampleConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s (remove it first to overwrite)", path)
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}
	return nil
}

const exampleConfig = `# retrying configuration file
#
# Each policy combines a stop condition, a wait strategy and a retry filter.
# Values can be overridden per deployment with environment variables named
# {PREFIX}__{SETTING}, for example MY_SERVICE__STOP__ATTEMPTS=7.

# Prefix applied to policies that do not set their own
envs_prefix: "RETRYING_POLICY"

policies:
  default:
    stop:
      # Give up after this many attempts
      attempts: 5
      # ...or once this many seconds have elapsed
      duration: 120
    wait:
      # min(max, multiplier * exp_base^(attempt-1) + min), in seconds
      exponential:
        multiplier: 0.5
        min: 0
        max: 30
        exp_base: 2
    retry:
      # Error kinds: network, timeout, rate_limit, unavailable, server_error,
      # auth, not_found, invalid, exit_status, signal, unknown
      if_not_errors: [not_found, invalid]

  quick:
    stop:
      attempts: 3
    wait:
      fixed: 1

  jittered:
    envs_prefix: "JITTERED"
    stop:
      duration: 60
    wait:
      random:
        min: 0.5
        max: 5

# Logging configuration
logging:
  # Log level: debug, info, warn, error, disabled
  level: "warn"
  # Log format: console, json
  format: "console"
  # Log file path (optional)
  file: ""

# Prometheus metrics, served while a command runs
metrics:
  # Listen address, for example ":9102"; empty disables the endpoint
  addr: ""
  namespace: "retrying"
`
