package envoverride

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"retrying/pkg/logger"
)

// Suffixes appended to a policy prefix, one per overridable scalar.
const (
	StopAttempts              = "STOP__ATTEMPTS"
	StopDuration              = "STOP__DURATION"
	WaitFixed                 = "WAIT__FIXED"
	WaitRandomMin             = "WAIT__RANDOM__MIN"
	WaitRandomMax             = "WAIT__RANDOM__MAX"
	WaitExponentialMultiplier = "WAIT__EXPONENTIAL__MULTIPLIER"
	WaitExponentialMin        = "WAIT__EXPONENTIAL__MIN"
	WaitExponentialMax        = "WAIT__EXPONENTIAL__MAX"
	WaitExponentialExpBase    = "WAIT__EXPONENTIAL__EXP_BASE"
)

// Suffixes lists every known suffix in a stable order.
func Suffixes() []string {
	return []string{
		StopAttempts,
		StopDuration,
		WaitFixed,
		WaitRandomMin,
		WaitRandomMax,
		WaitExponentialMultiplier,
		WaitExponentialMin,
		WaitExponentialMax,
		WaitExponentialExpBase,
	}
}

// Scalar is the set of value types an override can replace.
type Scalar interface {
	uint | uint8 | uint16 | uint32 | uint64 |
		int | int8 | int16 | int32 | int64 |
		float32 | float64 | string | bool
}

// VarName builds the variable name for prefix and suffix.
func VarName(prefix, name string) string {
	return prefix + "__" + name
}

// Diagnostic describes why an environment variable was ignored.
type Diagnostic struct {
	Variable string
	Matches  []string
	Reason   string
}

func (d *Diagnostic) Error() string {
	if len(d.Matches) > 1 {
		return fmt.Sprintf("%s: %s (matched %s); unset all but one", d.Variable, d.Reason, strings.Join(d.Matches, ", "))
	}
	return fmt.Sprintf("%s: %s", d.Variable, d.Reason)
}

// Lookup resolves varName against env case-insensitively. ok is true only
// when exactly one variable matches and its value is non-empty; otherwise a
// Diagnostic is returned when something matched but could not be used.
func Lookup(env Environment, varName string) (value string, diag *Diagnostic, ok bool) {
	var (
		matches []string
		values  []string
	)
	for _, e := range entries(env) {
		if strings.EqualFold(e[0], varName) {
			matches = append(matches, e[0])
			values = append(values, e[1])
		}
	}

	switch {
	case len(matches) == 0:
		return "", nil, false
	case len(matches) > 1:
		return "", &Diagnostic{Variable: varName, Matches: matches, Reason: "more than one variable matches"}, false
	case values[0] == "":
		return "", &Diagnostic{Variable: varName, Matches: matches, Reason: fmt.Sprintf("variable %s is empty", matches[0])}, false
	}
	return values[0], nil, true
}

// Override returns the value of {prefix}__{name} parsed as T, or original
// when the variable is unset, ambiguous, empty or unparsable. Problems are
// reported to log and never returned. An empty prefix disables the lookup.
func Override[T Scalar](env Environment, log logger.Logger, original T, prefix, name string) T {
	if prefix == "" {
		return original
	}
	if env == nil {
		env = OS()
	}
	log = logger.Or(log)

	varName := VarName(prefix, name)
	raw, diag, ok := Lookup(env, varName)
	if !ok {
		if diag != nil {
			report(log, diag, original)
		}
		return original
	}

	v, err := parse[T](raw)
	if err != nil {
		report(log, &Diagnostic{
			Variable: varName,
			Matches:  []string{varName},
			Reason:   fmt.Sprintf("cannot parse %q as %T: %v", raw, original, err),
		}, original)
		return original
	}

	log.DebugWithFields("environment override applied", map[string]interface{}{
		"variable": varName,
		"value":    raw,
	})
	return v
}

func report(log logger.Logger, diag *Diagnostic, original interface{}) {
	log.WarnWithFields("environment override ignored", map[string]interface{}{
		"variable": diag.Variable,
		"matches":  diag.Matches,
		"reason":   diag.Reason,
		"using":    fmt.Sprint(original),
	})
}

func parse[T Scalar](raw string) (T, error) {
	var (
		zero T
		v    interface{}
		err  error
	)

	switch any(zero).(type) {
	case uint:
		var n uint64
		n, err = strconv.ParseUint(raw, 10, strconv.IntSize)
		v = uint(n)
	case uint8:
		var n uint64
		n, err = strconv.ParseUint(raw, 10, 8)
		v = uint8(n)
	case uint16:
		var n uint64
		n, err = strconv.ParseUint(raw, 10, 16)
		v = uint16(n)
	case uint32:
		var n uint64
		n, err = strconv.ParseUint(raw, 10, 32)
		v = uint32(n)
	case uint64:
		v, err = strconv.ParseUint(raw, 10, 64)
	case int:
		var n int64
		n, err = strconv.ParseInt(raw, 10, strconv.IntSize)
		v = int(n)
	case int8:
		var n int64
		n, err = strconv.ParseInt(raw, 10, 8)
		v = int8(n)
	case int16:
		var n int64
		n, err = strconv.ParseInt(raw, 10, 16)
		v = int16(n)
	case int32:
		var n int64
		n, err = strconv.ParseInt(raw, 10, 32)
		v = int32(n)
	case int64:
		v, err = strconv.ParseInt(raw, 10, 64)
	case float32:
		var f float64
		f, err = strconv.ParseFloat(raw, 32)
		if err == nil && math.IsNaN(f) {
			err = fmt.Errorf("not a number")
		}
		v = float32(f)
	case float64:
		var f float64
		f, err = strconv.ParseFloat(raw, 64)
		if err == nil && math.IsNaN(f) {
			err = fmt.Errorf("not a number")
		}
		v = f
	case string:
		v = raw
	case bool:
		v, err = strconv.ParseBool(raw)
	}

	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// Resolver applies overrides for one prefix. The zero value performs no
// lookups.
type Resolver struct {
	Env    Environment
	Prefix string
	Logger logger.Logger
}

// Enabled reports whether the resolver consults the environment at all.
func (r Resolver) Enabled() bool {
	return r.Prefix != ""
}

// Uint overrides an unsigned integer scalar.
func (r Resolver) Uint(original uint, name string) uint {
	return Override(r.Env, r.Logger, original, r.Prefix, name)
}

// Float overrides a seconds-valued scalar.
func (r Resolver) Float(original float64, name string) float64 {
	return Override(r.Env, r.Logger, original, r.Prefix, name)
}
