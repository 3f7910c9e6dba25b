package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retrying/pkg/config"
	"retrying/pkg/envoverride"
	"retrying/pkg/retry"
)

func parsePolicyFlags(t *testing.T, args ...string) (*cobra.Command, *policyFlags) {
	t.Helper()
	var f policyFlags
	cmd := &cobra.Command{Use: "test"}
	f.register(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd, &f
}

func TestResolveInlineOnly(t *testing.T) {
	c := config.DefaultConfig()
	c.EnvsPrefix = "APP"
	cmd, f := parsePolicyFlags(t, "-n", "4", "--wait-fixed", "0.5", "--if-errors", "exit_status,signal")

	name, pc, err := f.resolve(cmd, c)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultPolicyName, name)
	assert.Equal(t, "APP", pc.EnvsPrefix)
	require.NotNil(t, pc.Stop)
	assert.Equal(t, uint(4), pc.Stop.Attempts)
	require.NotNil(t, pc.Wait.Fixed)
	assert.Equal(t, 0.5, *pc.Wait.Fixed)
	assert.Equal(t, []string{"exit_status", "signal"}, pc.Retry.IfErrors)

	policy, err := retry.FromConfig(pc)
	require.NoError(t, err)
	assert.Equal(t, retry.StopAttempts{Attempts: 4}, policy.Stop)
}

func TestResolveOverridesNamedPolicy(t *testing.T) {
	c := config.DefaultConfig()
	c.Policies["deploy"] = config.PolicyConfig{
		Stop: &config.StopConfig{Attempts: 3, Duration: 60},
		Wait: &config.WaitConfig{Exponential: &config.ExponentialConfig{Multiplier: 1, Max: 10, ExpBase: 2}},
	}
	cmd, f := parsePolicyFlags(t, "-p", "deploy", "--attempts", "8", "--wait-random-max", "2")

	name, pc, err := f.resolve(cmd, c)
	require.NoError(t, err)
	assert.Equal(t, "deploy", name)
	assert.Equal(t, uint(8), pc.Stop.Attempts)
	assert.Equal(t, 60.0, pc.Stop.Duration)
	assert.Nil(t, pc.Wait.Exponential)
	require.NotNil(t, pc.Wait.Random)
	assert.Equal(t, config.RandomConfig{Min: 0, Max: 2}, *pc.Wait.Random)

	// the stored policy is left untouched
	assert.Equal(t, uint(3), c.Policies["deploy"].Stop.Attempts)
}

func TestResolveErrors(t *testing.T) {
	c := config.DefaultConfig()

	cmd, f := parsePolicyFlags(t)
	_, _, err := f.resolve(cmd, c)
	assert.ErrorContains(t, err, `policy "default" is not configured`)

	cmd, f = parsePolicyFlags(t, "-n", "2", "--wait-fixed", "1", "--wait-exp-max", "5")
	_, _, err = f.resolve(cmd, c)
	assert.ErrorContains(t, err, "only one of")
}

func TestExampleConfigIsValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retrying.yaml")
	require.NoError(t, writeExampleConfig(path))
	assert.Error(t, writeExampleConfig(path), "existing files are not overwritten")

	c := config.DefaultConfig()
	require.NoError(t, c.LoadFromFile(path))
	require.NoError(t, c.Validate())
	assert.Equal(t, []string{"default", "jittered", "quick"}, c.PolicyNames())

	var out bytes.Buffer
	require.NoError(t, validatePolicies(&out, c))
	assert.Contains(t, out.String(), "Policies: 3")
}

func TestShowPolicyReportsOverrides(t *testing.T) {
	c := config.DefaultConfig()
	c.Policies["api"] = config.PolicyConfig{
		Stop:       &config.StopConfig{Attempts: 3},
		EnvsPrefix: "API",
	}
	env := envoverride.Map(map[string]string{
		"API__STOP__ATTEMPTS": "7",
		"api__wait__fixed":    "1",
		"API__WAIT__FIXED":    "2",
	})

	var out bytes.Buffer
	require.NoError(t, showPolicy(&out, c, "api", env))

	text := out.String()
	assert.Contains(t, text, "attempts(7)")
	assert.Contains(t, text, "API__STOP__ATTEMPTS=7")
	assert.Contains(t, text, "more than one variable matches")
}

func TestShowPolicyUnknown(t *testing.T) {
	var out bytes.Buffer
	err := showPolicy(&out, config.DefaultConfig(), "missing", envoverride.Map(nil))
	assert.ErrorContains(t, err, `policy "missing" is not configured`)
}

func TestListPolicies(t *testing.T) {
	fixed := 1.0
	c := config.DefaultConfig()
	c.Policies["quick"] = config.PolicyConfig{
		Stop: &config.StopConfig{Attempts: 3},
		Wait: &config.WaitConfig{Fixed: &fixed},
	}

	var out bytes.Buffer
	require.NoError(t, listPolicies(&out, c))
	assert.Contains(t, out.String(), "quick\tstop=attempts(3) wait=fixed(1s) retry=all")
}
