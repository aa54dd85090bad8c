package slogger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

var (
	DefaultLogLevel = LevelInfo
)

// LogLevel represents the minimum log level
type LogLevel slog.Level

// Available log levels
const (
	LevelDebug LogLevel = LogLevel(slog.LevelDebug)
	LevelInfo  LogLevel = LogLevel(slog.LevelInfo)
	LevelWarn  LogLevel = LogLevel(slog.LevelWarn)
	LevelError LogLevel = LogLevel(slog.LevelError)
)

// Options configures a Slogger.
type Options struct {
	// Writer receives log output. Defaults to os.Stderr.
	Writer io.Writer

	// Level is the minimum level written.
	Level LogLevel

	// NoColor disables ANSI colors. When Writer is a terminal file and
	// NoColor is false, colors are enabled.
	NoColor bool

	// TimeFormat defaults to time.Kitchen.
	TimeFormat string
}

// Slogger implements the Logger interface using slog
type Slogger struct {
	logger *slog.Logger
}

// New returns a Slogger writing to stderr at the given level.
func New(level LogLevel) *Slogger {
	return NewWithOptions(Options{Level: level})
}

// NewWithOptions returns a Slogger backed by a tint handler.
func NewWithOptions(opts Options) *Slogger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	noColor := opts.NoColor
	if f, ok := w.(*os.File); !ok || !isatty.IsTerminal(f.Fd()) {
		noColor = true
	}
	timeFormat := opts.TimeFormat
	if timeFormat == "" {
		timeFormat = time.Kitchen
	}
	tintHandler := tint.NewHandler(w, &tint.Options{
		NoColor:    noColor,
		TimeFormat: timeFormat,
		Level:      slog.Level(opts.Level),
	})
	return &Slogger{
		logger: slog.New(tintHandler),
	}
}

func (l *Slogger) Debug(msg string, keysAndValues ...any) {
	l.log(LevelDebug, msg, keysAndValues)
}

func (l *Slogger) Info(msg string, keysAndValues ...any) {
	l.log(LevelInfo, msg, keysAndValues)
}

func (l *Slogger) Warn(msg string, keysAndValues ...any) {
	l.log(LevelWarn, msg, keysAndValues)
}

func (l *Slogger) Error(msg string, keysAndValues ...any) {
	l.log(LevelError, msg, keysAndValues)
}

func (l *Slogger) With(keysAndValues ...any) Logger {
	return &Slogger{logger: l.logger.With(keysAndValues...)}
}

// log prepends the caller of Debug, Info, Warn or Error. Disabled levels
// return before the stack is walked.
func (l *Slogger) log(level LogLevel, msg string, keysAndValues []any) {
	ctx := context.Background()
	if !l.logger.Enabled(ctx, slog.Level(level)) {
		return
	}
	if _, file, line, ok := runtime.Caller(2); ok {
		keysAndValues = append([]any{"caller", formatCaller(file, line)}, keysAndValues...)
	}
	l.logger.Log(ctx, slog.Level(level), msg, keysAndValues...)
}

func formatCaller(file string, line int) string {
	// Take the last two path components for readability
	parts := strings.Split(file, "/")
	switch len(parts) {
	case 0:
		return "unknown"
	case 1:
		return fmt.Sprintf("%s:%d", parts[0], line)
	default:
		return fmt.Sprintf("%s/%s:%d",
			parts[len(parts)-2],
			parts[len(parts)-1],
			line)
	}
}
