package retry

import (
	"errors"
	"fmt"
	"math"

	"retrying/pkg/config"
	errs "retrying/pkg/errors"
)

// Policy is a complete, immutable retry policy. Nil members mean: never
// stop, do not wait, retry every error. EnvPrefix enables environment
// overrides of the built-in Stop and Wait variants.
type Policy struct {
	Stop      Stop
	Wait      Wait
	Retry     Filter
	EnvPrefix string
}

// Validate rejects policies whose built-in variants hold impossible values.
// Custom Stop, Wait and Filter implementations are accepted as they are.
func (p Policy) Validate() error {
	var all []error

	switch s := p.Stop.(type) {
	case StopAttempts:
		all = appendErr(all, validateAttempts(s))
	case StopDuration:
		all = appendErr(all, validateDuration(s))
	case StopAttemptsOrDuration:
		all = appendErr(all, validateAttempts(s.Attempts))
		all = appendErr(all, validateDuration(s.Duration))
	}

	switch w := p.Wait.(type) {
	case WaitFixed:
		if math.IsNaN(w.Seconds) || w.Seconds < 0 {
			all = append(all, errs.NewConfigurationError("wait.fixed", "must not be negative, got %v", w.Seconds))
		}
	case WaitRandom:
		if math.IsNaN(w.Min) || math.IsNaN(w.Max) || w.Min > w.Max {
			all = append(all, errs.NewConfigurationError("wait.random", "requires min <= max, got min=%v max=%v", w.Min, w.Max))
		}
	case WaitExponential:
		if w.ExpBase < 1 {
			all = append(all, errs.NewConfigurationError("wait.exponential.exp_base", "must be at least 1"))
		}
		if math.IsNaN(w.Multiplier) || math.IsNaN(w.Min) || math.IsNaN(w.Max) {
			all = append(all, errs.NewConfigurationError("wait.exponential", "arguments must be numbers"))
		}
	}

	switch f := p.Retry.(type) {
	case AllowList:
		all = appendErr(all, validateKinds("retry.if_errors", f.Kinds))
	case DenyList:
		all = appendErr(all, validateKinds("retry.if_not_errors", f.Kinds))
	}

	return errors.Join(all...)
}

func appendErr(all []error, err error) []error {
	if err != nil {
		return append(all, err)
	}
	return all
}

func validateAttempts(s StopAttempts) error {
	if s.Attempts < 1 {
		return errs.NewConfigurationError("stop.attempts", "must be at least 1")
	}
	return nil
}

func validateDuration(s StopDuration) error {
	if math.IsNaN(s.Seconds) || s.Seconds <= 0 {
		return errs.NewConfigurationError("stop.duration", "must be positive, got %v", s.Seconds)
	}
	return nil
}

func validateKinds(field string, kinds []Kind) error {
	for _, k := range kinds {
		if k == nil {
			return errs.NewConfigurationError(field, "contains a nil kind")
		}
	}
	return nil
}

// PolicyOption configures a policy built with NewPolicy.
type PolicyOption func(*policyBuilder)

type policyBuilder struct {
	attempts *uint
	duration *float64
	waits    []Wait
	filters  []string
	policy   Policy
}

// Attempts stops after n attempts.
func Attempts(n uint) PolicyOption {
	return func(b *policyBuilder) { b.attempts = &n }
}

// Duration stops once seconds have elapsed since the first attempt.
func Duration(seconds float64) PolicyOption {
	return func(b *policyBuilder) { b.duration = &seconds }
}

// Fixed waits a constant number of seconds between attempts.
func Fixed(seconds float64) PolicyOption {
	return func(b *policyBuilder) { b.waits = append(b.waits, WaitFixed{Seconds: seconds}) }
}

// Random waits a uniformly random number of seconds in [min, max].
func Random(min, max float64) PolicyOption {
	return func(b *policyBuilder) { b.waits = append(b.waits, WaitRandom{Min: min, Max: max}) }
}

// Exponential waits min(max, multiplier*expBase^(attempt-1)+min) seconds.
func Exponential(multiplier, min, max float64, expBase uint) PolicyOption {
	return func(b *policyBuilder) {
		b.waits = append(b.waits, WaitExponential{Multiplier: multiplier, Min: min, Max: max, ExpBase: expBase})
	}
}

// IfErrors retries only errors of the given kinds.
func IfErrors(kinds ...Kind) PolicyOption {
	return func(b *policyBuilder) {
		b.filters = append(b.filters, "if_errors")
		b.policy.Retry = AllowList{Kinds: kinds}
	}
}

// IfNotErrors retries every error except those of the given kinds.
func IfNotErrors(kinds ...Kind) PolicyOption {
	return func(b *policyBuilder) {
		b.filters = append(b.filters, "if_not_errors")
		b.policy.Retry = DenyList{Kinds: kinds}
	}
}

// IfRetryable retries according to the classification in pkg/errors.
func IfRetryable() PolicyOption {
	return func(b *policyBuilder) {
		b.filters = append(b.filters, "classified")
		b.policy.Retry = Classified{}
	}
}

// EnvsPrefix enables environment overrides under prefix.
func EnvsPrefix(prefix string) PolicyOption {
	return func(b *policyBuilder) { b.policy.EnvPrefix = prefix }
}

// NewPolicy builds and validates a policy.
func NewPolicy(opts ...PolicyOption) (Policy, error) {
	b := &policyBuilder{}
	for _, opt := range opts {
		opt(b)
	}

	switch {
	case b.attempts != nil && b.duration != nil:
		b.policy.Stop = StopAttemptsOrDuration{
			Attempts: StopAttempts{Attempts: *b.attempts},
			Duration: StopDuration{Seconds: *b.duration},
		}
	case b.attempts != nil:
		b.policy.Stop = StopAttempts{Attempts: *b.attempts}
	case b.duration != nil:
		b.policy.Stop = StopDuration{Seconds: *b.duration}
	}

	if len(b.waits) > 1 {
		return Policy{}, errs.NewConfigurationError("wait", "only one wait strategy may be configured")
	}
	if len(b.waits) == 1 {
		b.policy.Wait = b.waits[0]
	}

	if len(b.filters) > 1 {
		return Policy{}, errs.NewConfigurationError("retry", "only one of %v should be configured at the same time", b.filters)
	}

	if err := b.policy.Validate(); err != nil {
		return Policy{}, err
	}
	return b.policy, nil
}

// FromConfig converts a file policy into a Policy. Error kind names are
// resolved to errs.ErrorType values.
func FromConfig(pc config.PolicyConfig) (Policy, error) {
	if err := pc.Validate(); err != nil {
		return Policy{}, err
	}

	var opts []PolicyOption

	if s := pc.Stop; s != nil {
		if s.Attempts == 0 && s.Duration == 0 {
			return Policy{}, errs.NewConfigurationError("stop", "requires `attempts` or `duration`")
		}
		if s.Attempts > 0 {
			opts = append(opts, Attempts(s.Attempts))
		}
		if s.Duration > 0 {
			opts = append(opts, Duration(s.Duration))
		}
	}

	if w := pc.Wait; w != nil {
		switch {
		case w.Fixed != nil:
			opts = append(opts, Fixed(*w.Fixed))
		case w.Random != nil:
			opts = append(opts, Random(w.Random.Min, w.Random.Max))
		case w.Exponential != nil:
			e := w.Exponential
			opts = append(opts, Exponential(e.Multiplier, e.Min, e.Max, e.ExpBase))
		}
	}

	if r := pc.Retry; r != nil {
		switch {
		case len(r.IfErrors) > 0:
			kinds, err := parseKinds(r.IfErrors)
			if err != nil {
				return Policy{}, err
			}
			opts = append(opts, IfErrors(kinds...))
		case len(r.IfNotErrors) > 0:
			kinds, err := parseKinds(r.IfNotErrors)
			if err != nil {
				return Policy{}, err
			}
			opts = append(opts, IfNotErrors(kinds...))
		}
	}

	if pc.EnvsPrefix != "" {
		opts = append(opts, EnvsPrefix(pc.EnvsPrefix))
	}

	return NewPolicy(opts...)
}

func parseKinds(names []string) ([]Kind, error) {
	kinds := make([]Kind, 0, len(names))
	for _, name := range names {
		t, err := errs.ParseErrorType(name)
		if err != nil {
			return nil, errs.NewConfigurationError("retry", "%v", err)
		}
		kinds = append(kinds, t)
	}
	return kinds, nil
}

// describe renders a policy member for logs and the CLI.
func describe(v interface{}) string {
	if v == nil {
		return "none"
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", v)
}
