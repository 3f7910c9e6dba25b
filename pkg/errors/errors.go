package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorType identifies the kind of an operational failure. Two errors with the
// same ErrorType are the same kind regardless of their message or code.
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeUnavailable ErrorType = "unavailable"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeInvalid     ErrorType = "invalid"
	ErrorTypeExitStatus  ErrorType = "exit_status"
	ErrorTypeSignal      ErrorType = "signal"
	ErrorTypeUnknown     ErrorType = "unknown"
)

var knownTypes = []ErrorType{
	ErrorTypeNetwork,
	ErrorTypeTimeout,
	ErrorTypeRateLimit,
	ErrorTypeUnavailable,
	ErrorTypeServerError,
	ErrorTypeAuth,
	ErrorTypeNotFound,
	ErrorTypeInvalid,
	ErrorTypeExitStatus,
	ErrorTypeSignal,
	ErrorTypeUnknown,
}

// KnownTypes returns every error type understood by ParseErrorType.
func KnownTypes() []ErrorType {
	out := make([]ErrorType, len(knownTypes))
	copy(out, knownTypes)
	return out
}

// ParseErrorType converts a configuration name into an ErrorType.
// Matching is case-insensitive and accepts '-' in place of '_'.
func ParseErrorType(name string) (ErrorType, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	for _, t := range knownTypes {
		if string(t) == normalized {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown error type %q", name)
}

// Match reports whether err carries this error type anywhere in its chain.
// It lets an ErrorType be used directly as a retry filter kind.
func (t ErrorType) Match(err error) bool {
	var typed *Error
	if stderrors.As(err, &typed) {
		return typed.Type == t
	}
	return false
}

func (t ErrorType) String() string {
	return string(t)
}

// Error represents an operational error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

// New creates a typed error without an underlying cause.
func New(t ErrorType, code int, message string) *Error {
	return &Error{Type: t, Code: code, Message: message}
}

// Wrap attaches a type to an existing error.
func Wrap(t ErrorType, code int, err error) *Error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &Error{Type: t, Code: code, Message: msg, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// TypeOf returns the type of the first *Error in err's chain, or
// ErrorTypeUnknown when there is none.
func TypeOf(err error) ErrorType {
	var typed *Error
	if stderrors.As(err, &typed) {
		return typed.Type
	}
	return ErrorTypeUnknown
}

// IsRetryable checks if an error type should be retried by default
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeRateLimit, ErrorTypeUnavailable, ErrorTypeServerError:
		return true
	case ErrorTypeAuth, ErrorTypeNotFound, ErrorTypeInvalid:
		return false
	default:
		return false
	}
}

// ConfigurationError reports an invalid retry policy. It is returned while a
// policy is being built and never from inside a retry loop.
type ConfigurationError struct {
	Field  string
	Reason string
}

// NewConfigurationError creates a ConfigurationError for the given field.
func NewConfigurationError(field, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "invalid retry configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid retry configuration for `%s`: %s", e.Field, e.Reason)
}

// IsConfigurationError reports whether err is, or wraps, a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return stderrors.As(err, &cfgErr)
}
