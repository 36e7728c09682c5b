package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"trace", TraceLevel},
		{"debug", DebugLevel},
		{"info", InfoLevel},
		{"WARN", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"", InfoLevel},
		{"bogus", InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{TraceLevel, "TRACE"},
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{Level(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.expected)
		}
	}
}

func TestLogRespectsLevel(t *testing.T) {
	if err := Initialize(Config{Level: WarnLevel}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	var buf bytes.Buffer
	SetOutput(&buf)

	Info("should be suppressed")
	Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Errorf("info message leaked through warn-level logger: %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Errorf("warn message missing from output: %q", out)
	}
}

func TestJSONOutput(t *testing.T) {
	if err := Initialize(Config{Level: InfoLevel, JSON: true, Component: "engine"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	var buf bytes.Buffer
	SetOutput(&buf)

	Info("planning", String("path", ".github/workflows/ci.yml"), Int("changes", 3))

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if entry.Message != "planning" {
		t.Errorf("message = %q, want %q", entry.Message, "planning")
	}
	if entry.Component != "engine" {
		t.Errorf("component = %q, want %q", entry.Component, "engine")
	}
	if entry.Fields["path"] != ".github/workflows/ci.yml" {
		t.Errorf("path field = %v", entry.Fields["path"])
	}
}

func TestDryRunIndicator(t *testing.T) {
	if err := Initialize(Config{Level: InfoLevel, DryRun: true}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	var buf bytes.Buffer
	SetOutput(&buf)

	Info("would write file")

	if !strings.Contains(buf.String(), "[DRY-RUN]") {
		t.Errorf("expected dry-run indicator in output: %q", buf.String())
	}
}
