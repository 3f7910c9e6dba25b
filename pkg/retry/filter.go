package retry

import (
	"context"
	"errors"
	"reflect"
	"strings"

	errs "retrying/pkg/errors"
)

// Kind identifies a class of errors regardless of their payload.
//
// Three constructions are provided: KindOf matches by dynamic type,
// KindIs matches a sentinel value, and errs.ErrorType matches the Type of
// an *errs.Error.
type Kind interface {
	Match(err error) bool
	String() string
}

type typeKind[E error] struct{}

func (typeKind[E]) Match(err error) bool {
	var target E
	return errors.As(err, &target)
}

func (typeKind[E]) String() string {
	return reflect.TypeOf((*E)(nil)).Elem().String()
}

// KindOf matches any error in the chain assignable to E.
func KindOf[E error]() Kind {
	return typeKind[E]{}
}

type sentinelKind struct {
	target error
}

func (k sentinelKind) Match(err error) bool { return errors.Is(err, k.target) }

func (k sentinelKind) String() string { return k.target.Error() }

// KindIs matches errors for which errors.Is(err, target) holds.
func KindIs(target error) Kind {
	return sentinelKind{target: target}
}

var _ Kind = errs.ErrorType("")

// Filter classifies a failure as worth retrying or terminal.
type Filter interface {
	IsRetryable(err error) bool
}

// RetryAll treats every error as retryable.
type RetryAll struct{}

func (RetryAll) IsRetryable(error) bool { return true }

func (RetryAll) String() string { return "all" }

// AllowList retries only errors matching one of Kinds.
type AllowList struct {
	Kinds []Kind
}

func (f AllowList) IsRetryable(err error) bool {
	return matchAny(f.Kinds, err)
}

func (f AllowList) String() string {
	return "if_errors" + kindList(f.Kinds)
}

// DenyList retries every error except those matching one of Kinds.
type DenyList struct {
	Kinds []Kind
}

func (f DenyList) IsRetryable(err error) bool {
	return !matchAny(f.Kinds, err)
}

func (f DenyList) String() string {
	return "if_not_errors" + kindList(f.Kinds)
}

// Classified retries according to errs.IsRetryable for classified errors.
// Context cancellation is terminal; unclassified errors are retried.
type Classified struct{}

func (Classified) IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var e *errs.Error
	if errors.As(err, &e) {
		return errs.IsRetryable(e.Type)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

func (Classified) String() string { return "classified" }

func matchAny(kinds []Kind, err error) bool {
	for _, k := range kinds {
		if k.Match(err) {
			return true
		}
	}
	return false
}

func kindList(kinds []Kind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return "[" + strings.Join(names, ", ") + "]"
}
