package slogger

import (
	"fmt"
	"strings"
)

// DefaultLogger is used by library types constructed without a logger.
var DefaultLogger Logger = NewDevNullLogger()

// Logger is the structured logging interface used across autocompact. It
// mirrors the slog method set so adapters for other libraries stay thin.
type Logger interface {
	// Debug logs a message at debug level with optional key-value pairs
	Debug(msg string, keysAndValues ...any)

	// Info logs a message at info level with optional key-value pairs
	Info(msg string, keysAndValues ...any)

	// Warn logs a message at warn level with optional key-value pairs
	Warn(msg string, keysAndValues ...any)

	// Error logs a message at error level with optional key-value pairs
	Error(msg string, keysAndValues ...any)

	// With returns a new Logger instance with the given key-value pairs added to the context
	With(keysAndValues ...any) Logger
}

// SessionKey is the attribute that ties a log line to an opencode session.
const SessionKey = "session_id"

// ForSession scopes logger to one session.
func ForSession(logger Logger, sessionID string) Logger {
	return logger.With(SessionKey, sessionID)
}

// ParseLevel converts a level name to a LogLevel. Names are case-insensitive
// and "warning" is accepted for warn. An empty name gives DefaultLogLevel.
func ParseLevel(level string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "":
		return DefaultLogLevel, nil
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return DefaultLogLevel, fmt.Errorf("invalid log level: %q", level)
}

var (
	_ Logger = (*DevNullLogger)(nil)
	_ Logger = (*Slogger)(nil)
)

// DevNullLogger discards everything. It is the default for library use so
// embedding applications opt in to output.
type DevNullLogger struct{}

// NewDevNullLogger returns a new DevNullLogger instance
func NewDevNullLogger() *DevNullLogger {
	return &DevNullLogger{}
}

func (l *DevNullLogger) Debug(string, ...any) {}
func (l *DevNullLogger) Info(string, ...any)  {}
func (l *DevNullLogger) Warn(string, ...any)  {}
func (l *DevNullLogger) Error(string, ...any) {}
func (l *DevNullLogger) With(...any) Logger   { return l }
