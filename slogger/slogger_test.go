package slogger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected LogLevel
	}{
		{"debug level", "debug", LevelDebug},
		{"info level", "info", LevelInfo},
		{"warn level", "warn", LevelWarn},
		{"warning alias", "warning", LevelWarn},
		{"error level", "error", LevelError},
		{"uppercase", "DEBUG", LevelDebug},
		{"padded", " error ", LevelError},
		{"empty string", "", DefaultLogLevel},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			level, err := ParseLevel(tc.input)
			require.NoError(t, err)
			require.Equal(t, tc.expected, level)
		})
	}

	level, err := ParseLevel("verbose")
	require.Error(t, err)
	require.Contains(t, err.Error(), `"verbose"`)
	require.Equal(t, DefaultLogLevel, level)
}

func TestDevNullLogger(t *testing.T) {
	logger := NewDevNullLogger()

	logger.Debug("debug message", "key", "value")
	logger.Info("info message", "key", "value")
	logger.Warn("warn message", "key", "value")
	logger.Error("error message", "key", "value")

	withLogger := logger.With("context", "value")
	require.IsType(t, &DevNullLogger{}, withLogger)
}

func TestSloggerWritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOptions(Options{Writer: &buf, Level: LevelInfo})

	logger.Debug("hidden")
	logger.With("session", "s1").Warn("compaction retry", "attempt", 2)

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "compaction retry")
	require.Contains(t, out, "session=s1")
	require.Contains(t, out, "attempt=2")
	require.Contains(t, out, "caller=slogger/slogger_test.go")
	require.NotContains(t, out, "\x1b[")
}

func TestForSession(t *testing.T) {
	var buf bytes.Buffer
	logger := ForSession(NewWithOptions(Options{Writer: &buf, Level: LevelDebug}), "s1")

	logger.Debug("compacting session", "attempt", 1)
	require.Contains(t, buf.String(), "session_id=s1")
	require.Contains(t, buf.String(), "attempt=1")
}

func TestFormatCaller(t *testing.T) {
	require.Equal(t, "a.go:3", formatCaller("a.go", 3))
	require.Equal(t, "pkg/a.go:3", formatCaller("/src/pkg/a.go", 3))
}

func TestDefaultLogger(t *testing.T) {
	require.IsType(t, &DevNullLogger{}, DefaultLogger)
}
