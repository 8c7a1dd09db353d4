package logging

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-somfy/internal/infrastructure/config"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, "1.0.0", &buf)

	logger.Info("test message", "key", "value")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}

	if logEntry["msg"] != "test message" {
		t.Errorf("msg = %v, want 'test message'", logEntry["msg"])
	}
	if logEntry["key"] != "value" {
		t.Errorf("key = %v, want 'value'", logEntry["key"])
	}
	if logEntry["service"] != ServiceName {
		t.Errorf("service = %v, want %q", logEntry["service"], ServiceName)
	}
	if logEntry["version"] != "1.0.0" {
		t.Errorf("version = %v, want 1.0.0", logEntry["version"])
	}
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "debug", Format: "text"}, "1.0.0", &buf)

	logger.Debug("polling", "listener", "abc")

	output := buf.String()
	if !strings.Contains(output, "msg=polling") {
		t.Errorf("output = %q, want text format", output)
	}
	if !strings.Contains(output, "service=somfy") {
		t.Errorf("output = %q, want service attribute", output)
	}
}

func TestNew_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "warn", Format: "json"}, "1.0.0", &buf)

	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info entry written at warn level: %q", buf.String())
	}

	logger.Warn("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Errorf("warn entry missing: %q", buf.String())
	}
}

func TestOutputFor(t *testing.T) {
	tests := []struct {
		name string
		want io.Writer
	}{
		{"stdout", os.Stdout},
		{"STDOUT", os.Stdout},
		{"stderr", os.Stderr},
		{"", os.Stderr},
		{"discard", io.Discard},
	}

	for _, tt := range tests {
		if got := outputFor(tt.name); got != tt.want {
			t.Errorf("outputFor(%q) returned the wrong writer", tt.name)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected slog.Level
	}{
		{name: "debug level", input: "debug", expected: slog.LevelDebug},
		{name: "info level", input: "info", expected: slog.LevelInfo},
		{name: "warn level", input: "warn", expected: slog.LevelWarn},
		{name: "warning level", input: "warning", expected: slog.LevelWarn},
		{name: "error level", input: "error", expected: slog.LevelError},
		{name: "unknown defaults to info", input: "unknown", expected: slog.LevelInfo},
		{name: "empty defaults to info", input: "", expected: slog.LevelInfo},
		{name: "case insensitive", input: "DEBUG", expected: slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, "1.0.0", &buf)

	childLogger := logger.With("component", "bridge")
	if childLogger == logger {
		t.Error("expected child logger to be different from parent")
	}

	childLogger.Info("registered")
	if !strings.Contains(buf.String(), `"component":"bridge"`) {
		t.Errorf("output = %q, want component attribute", buf.String())
	}
}

func TestDefault(t *testing.T) {
	logger := Default()

	if logger == nil {
		t.Fatal("expected non-nil default logger")
	}
}
