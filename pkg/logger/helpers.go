package logger

import (
	"github.com/rs/zerolog"
)

// LogPolicy logs the resolved parameters of a retry policy at startup
func LogPolicy(l Logger, name string, params map[string]interface{}) {
	fields := map[string]interface{}{"policy": name}
	for k, v := range params {
		fields[k] = v
	}
	l.InfoWithFields("Retry policy resolved", fields)
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, config map[string]interface{}) {
	entry := l.WithField("component", component)
	if len(config) > 0 {
		entry = entry.WithFields(config)
	}
	entry.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(l Logger, component string, reason string) {
	l.WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// Or returns l, or a no-op logger when l is nil.
func Or(l Logger) Logger {
	if l == nil {
		return NewNop()
	}
	return l
}

// NewNop creates a logger that discards everything. Library packages default
// to it so that they stay silent unless a logger is injected.
func NewNop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(string) {}
func (nopLogger) Info(string) {}
func (nopLogger) Warn(string) {}
func (nopLogger) Error(string) {}
func (n nopLogger) WithField(string, interface{}) Logger { return n }
func (n nopLogger) WithFields(map[string]interface{}) Logger { return n }
func (n nopLogger) WithError(error) Logger { return n }
func (nopLogger) DebugWithFields(string, map[string]interface{}) {}
func (nopLogger) InfoWithFields(string, map[string]interface{}) {}
func (nopLogger) WarnWithFields(string, map[string]interface{}) {}
func (nopLogger) ErrorWithFields(string, map[string]interface{}) {}
func (nopLogger) GetZerolog() *zerolog.Logger { return nil }
