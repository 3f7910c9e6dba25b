package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"retrying/pkg/config"
)

// policyFlags are the inline policy settings shared by exec and batch.
// Set flags override the matching section of the named policy.
type policyFlags struct {
	name string

	attempts uint
	duration float64

	waitFixed     float64
	waitRandomMin float64
	waitRandomMax float64
	waitExpMult   float64
	waitExpMin    float64
	waitExpMax    float64
	waitExpBase   uint

	ifErrors    []string
	ifNotErrors []string
}

func (f *policyFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.name, "policy", "p", config.DefaultPolicyName, "named policy from the config file")

	fs.UintVarP(&f.attempts, "attempts", "n", 0, "stop after this many attempts")
	fs.Float64VarP(&f.duration, "duration", "d", 0, "stop once this many seconds have elapsed")

	fs.Float64Var(&f.waitFixed, "wait-fixed", 0, "wait a fixed number of seconds between attempts")
	fs.Float64Var(&f.waitRandomMin, "wait-random-min", config.DefaultRandomMin, "lower bound of a random wait, in seconds")
	fs.Float64Var(&f.waitRandomMax, "wait-random-max", config.DefaultRandomMax, "upper bound of a random wait, in seconds")
	fs.Float64Var(&f.waitExpMult, "wait-exp-multiplier", config.DefaultExponentialMultiplier, "exponential wait multiplier")
	fs.Float64Var(&f.waitExpMin, "wait-exp-min", config.DefaultExponentialMin, "exponential wait offset, in seconds")
	fs.Float64Var(&f.waitExpMax, "wait-exp-max", config.DefaultExponentialMax, "exponential wait ceiling, in seconds")
	fs.UintVar(&f.waitExpBase, "wait-exp-base", config.DefaultExponentialExpBase, "exponential wait base")

	fs.StringSliceVar(&f.ifErrors, "if-errors", nil, "retry only these error kinds")
	fs.StringSliceVar(&f.ifNotErrors, "if-not-errors", nil, "retry every error kind except these")

	cmd.MarkFlagsMutuallyExclusive("if-errors", "if-not-errors")
}

// resolve returns the policy name and configuration to run with.
func (f *policyFlags) resolve(cmd *cobra.Command, c *config.Config) (string, config.PolicyConfig, error) {
	changed := cmd.Flags().Changed

	pc, found := c.Policy(f.name)
	inline := false
	for _, name := range []string{
		"attempts", "duration", "wait-fixed",
		"wait-random-min", "wait-random-max",
		"wait-exp-multiplier", "wait-exp-min", "wait-exp-max", "wait-exp-base",
		"if-errors", "if-not-errors",
	} {
		if changed(name) {
			inline = true
			break
		}
	}
	if !found {
		if !inline {
			return "", pc, fmt.Errorf("policy %q is not configured; pass --attempts or --duration, or add it to the config file", f.name)
		}
		pc.EnvsPrefix = c.EnvsPrefix
	}

	if changed("attempts") || changed("duration") {
		stop := config.StopConfig{}
		if pc.Stop != nil {
			stop = *pc.Stop
		}
		if changed("attempts") {
			stop.Attempts = f.attempts
		}
		if changed("duration") {
			stop.Duration = f.duration
		}
		pc.Stop = &stop
	}

	randomSet := changed("wait-random-min") || changed("wait-random-max")
	expSet := changed("wait-exp-multiplier") || changed("wait-exp-min") || changed("wait-exp-max") || changed("wait-exp-base")
	variants := 0
	for _, set := range []bool{changed("wait-fixed"), randomSet, expSet} {
		if set {
			variants++
		}
	}
	switch {
	case variants > 1:
		return "", pc, fmt.Errorf("only one of --wait-fixed, --wait-random-* and --wait-exp-* may be used")
	case changed("wait-fixed"):
		fixed := f.waitFixed
		pc.Wait = &config.WaitConfig{Fixed: &fixed}
	case randomSet:
		pc.Wait = &config.WaitConfig{Random: &config.RandomConfig{Min: f.waitRandomMin, Max: f.waitRandomMax}}
	case expSet:
		pc.Wait = &config.WaitConfig{Exponential: &config.ExponentialConfig{
			Multiplier: f.waitExpMult,
			Min:        f.waitExpMin,
			Max:        f.waitExpMax,
			ExpBase:    f.waitExpBase,
		}}
	}

	switch {
	case changed("if-errors"):
		pc.Retry = &config.RetryConfig{IfErrors: f.ifErrors}
	case changed("if-not-errors"):
		pc.Retry = &config.RetryConfig{IfNotErrors: f.ifNotErrors}
	}

	return f.name, pc, nil
}
