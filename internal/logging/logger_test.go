package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	output := &bytes.Buffer{}
	logger := New(LevelInfo, output)

	if logger == nil {
		t.Fatal("New() returned nil")
	}
	if logger.GetLevel() != LevelInfo {
		t.Errorf("level = %v, want %v", logger.GetLevel(), LevelInfo)
	}
}

func TestNewFromString(t *testing.T) {
	tests := []struct {
		name      string
		levelStr  string
		wantLevel Level
	}{
		{"debug", "debug", LevelDebug},
		{"info", "info", LevelInfo},
		{"warn", "warn", LevelWarn},
		{"error", "error", LevelError},
		{"DEBUG uppercase", "DEBUG", LevelDebug},
		{"unknown defaults to info", "invalid", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewFromString(tt.levelStr, &bytes.Buffer{})
			if logger.GetLevel() != tt.wantLevel {
				t.Errorf("level = %v, want %v", logger.GetLevel(), tt.wantLevel)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{" Error ", LevelError},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	output := &bytes.Buffer{}
	logger := New(LevelWarn, output)

	logger.Debug("debug %d", 1)
	logger.Info("info %d", 2)
	logger.Warn("warn %d", 3)
	logger.Error("error %d", 4)

	got := output.String()
	if strings.Contains(got, "debug 1") || strings.Contains(got, "info 2") {
		t.Errorf("messages below WARN were written: %q", got)
	}
	if !strings.Contains(got, "warn 3") {
		t.Errorf("missing warn message in %q", got)
	}
	if !strings.Contains(got, "error 4") {
		t.Errorf("missing error message in %q", got)
	}
	if !strings.Contains(got, "ERROR") {
		t.Errorf("missing level label in %q", got)
	}
}

func TestSetLevel(t *testing.T) {
	output := &bytes.Buffer{}
	logger := New(LevelError, output)

	logger.Info("hidden")
	logger.SetLevel(LevelDebug)
	logger.Debug("visible")

	if logger.GetLevel() != LevelDebug {
		t.Errorf("GetLevel() = %v, want %v", logger.GetLevel(), LevelDebug)
	}
	got := output.String()
	if strings.Contains(got, "hidden") {
		t.Errorf("info message written at ERROR level: %q", got)
	}
	if !strings.Contains(got, "visible") {
		t.Errorf("debug message missing after SetLevel: %q", got)
	}
}

func TestWithSharesLevel(t *testing.T) {
	output := &bytes.Buffer{}
	logger := New(LevelInfo, output)
	child := logger.With("session", "abc")

	child.Info("submitted")
	if !strings.Contains(output.String(), "abc") {
		t.Errorf("child logger did not attach fields: %q", output.String())
	}

	output.Reset()
	logger.SetLevel(LevelError)
	child.Info("dropped")
	if output.Len() != 0 {
		t.Errorf("child logger ignored parent level change: %q", output.String())
	}
}

func TestNop(t *testing.T) {
	logger := Nop()
	logger.Error("nothing %s", "here")
	if err := logger.Sync(); err != nil {
		t.Errorf("Sync() error = %v", err)
	}
}
