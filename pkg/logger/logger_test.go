package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"retrying/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{
			name:    "valid config with info level",
			cfg:     &config.LoggingConfig{Level: "info"},
			wantErr: false,
		},
		{
			name:    "json format",
			cfg:     &config.LoggingConfig{Level: "debug", Format: "json"},
			wantErr: false,
		},
		{
			name:    "invalid log level",
			cfg:     &config.LoggingConfig{Level: "invalid"},
			wantErr: true,
		},
		{
			name: "config with file output",
			cfg: &config.LoggingConfig{
				Level: "info",
				File:  filepath.Join(t.TempDir(), "logs", "retrying.log"),
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"invalid", zerolog.InfoLevel, true},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel() = %v, want %v", level, tt.expected)
			}
		})
	}
}

func TestNewWriterLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, "warn")

	logger.Info("hidden")
	logger.Warn("shown")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Error("Info message should be filtered at warn level")
	}
	if !strings.Contains(output, "shown") {
		t.Error("Warn message not found in output")
	}
}

func TestWithFieldsIsolation(t *testing.T) {
	var buf bytes.Buffer
	base := NewWriter(&buf, "debug")

	child := base.WithField("policy", "api")
	child.WithField("attempt", uint(2)).Info("first")
	base.Info("second")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 log lines, got %d", len(lines))
	}

	var first, second map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatal(err)
	}

	if first["policy"] != "api" || first["attempt"] != float64(2) {
		t.Errorf("Unexpected fields on child logger: %v", first)
	}
	if _, ok := second["policy"]; ok {
		t.Error("Parent logger must not inherit child fields")
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, "debug")

	if logger.WithError(nil) != logger {
		t.Error("WithError(nil) should return the same logger")
	}

	logger.WithError(errors.New("connection refused")).Error("attempt failed")

	output := buf.String()
	if !strings.Contains(output, "attempt failed") {
		t.Error("Message not found in output")
	}
	if !strings.Contains(output, "connection refused") {
		t.Error("Error message not found in output")
	}
}

func TestStructuredLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, "debug")

	logger.WarnWithFields("retrying operation", map[string]interface{}{
		"attempt":  uint(1),
		"delay_ms": int64(1500),
		"error":    errors.New("timeout"),
	})

	output := buf.String()
	for _, want := range []string{`"attempt":1`, `"delay_ms":1500`, `"error":"timeout"`, `"level":"warn"`} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %s in output %s", want, output)
		}
	}
}

func TestNopLogger(t *testing.T) {
	logger := NewNop()
	logger.WithField("k", "v").WithError(errors.New("x")).Error("nothing")
	if logger.GetZerolog() != nil {
		t.Error("Nop logger should not expose a zerolog instance")
	}
	if Or(nil) == nil {
		t.Error("Or(nil) should return a usable logger")
	}
}

func TestGlobalLogger(t *testing.T) {
	if err := Initialize(&config.LoggingConfig{Level: "debug"}); err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}

	if GetLogger() == nil {
		t.Error("GetLogger() returned nil")
	}

	Debug("debug message")
	Info("info message")
	WithField("key", "value").Info("with field")
	WithError(errors.New("test")).Error("with error")
}

func TestTestLoggerCapturesChildFields(t *testing.T) {
	log := NewTestLogger()

	log.WithField("policy", "api").WithError(errors.New("boom")).Warn("retrying operation")
	log.Info("plain")

	warns := log.GetMessagesByLevel("WARN")
	if len(warns) != 1 {
		t.Fatalf("Expected 1 warning, got %d", len(warns))
	}
	if warns[0].Fields["policy"] != "api" {
		t.Errorf("Expected policy field, got %v", warns[0].Fields)
	}
	if warns[0].Error == nil || warns[0].Error.Error() != "boom" {
		t.Errorf("Expected captured error, got %v", warns[0].Error)
	}
	if !log.HasMessage("plain") || log.CountMessage("retrying operation") != 1 {
		t.Error("Expected both messages to be captured by the shared sink")
	}

	log.Clear()
	if len(log.GetMessages()) != 0 || log.String() != "" {
		t.Error("Clear should drop all messages")
	}
}
