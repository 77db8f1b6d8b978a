// Package logger provides the process-wide structured logger: a
// package-level slog.Logger + slog.LevelVar pattern, extended with
// rotating file output (main log plus a parallel errors-only log) since
// streamops runs unattended as a background service rather than in a
// foreground terminal.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the global logger instance.
var Log *slog.Logger

// level is the dynamic log level, changeable at runtime via SetLevel.
// Uses slog.LevelVar which is backed by atomic.Int64 — safe for concurrent use.
var level slog.LevelVar

// errorWriter receives only records at slog.LevelError or above; nil until
// InitFile is called.
var errorWriter io.Writer

// Init initializes the global logger with the specified level, writing to
// stdout. Use InitFile to additionally write rotating files.
func Init(levelStr string) {
	SetLevel(levelStr)
	Log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: &level,
	}))
}

// InitFile initializes the global logger writing both to stdout and to a
// rotating log file under logDir (service.log, 10 MiB x 5 backups), with a
// second rotating file (service_errors.log) receiving only error-level
// records, per the filesystem layout contract.
func InitFile(levelStr, logDir, service string) {
	SetLevel(levelStr)

	mainFile := &lumberjack.Logger{
		Filename:   logDir + "/" + service + ".log",
		MaxSize:    10, // MiB
		MaxBackups: 5,
		Compress:   false,
	}
	errFile := &lumberjack.Logger{
		Filename:   logDir + "/" + service + "_errors.log",
		MaxSize:    10,
		MaxBackups: 5,
		Compress:   false,
	}
	errorWriter = errFile

	multi := io.MultiWriter(os.Stdout, mainFile, &errorOnlyWriter{dst: errFile})
	Log = slog.New(slog.NewTextHandler(multi, &slog.HandlerOptions{
		Level: &level,
	}))
}

// errorOnlyWriter filters the text-handler byte stream down to lines that
// slog rendered at error level, so the dedicated error log doesn't duplicate
// the full stream. slog.TextHandler writes one line per record prefixed with
// "level=ERROR" when the level is Error, so a substring check suffices here.
type errorOnlyWriter struct {
	dst io.Writer
}

func (w *errorOnlyWriter) Write(p []byte) (int, error) {
	if strings.Contains(string(p), "level=ERROR") {
		_, _ = w.dst.Write(p)
	}
	return len(p), nil
}

// SetLevel changes the log level at runtime. Valid values: debug, info, warn, error.
// Invalid values fall back to info.
func SetLevel(levelStr string) {
	var lvl slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	level.Set(lvl)
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	if Log != nil {
		Log.Debug(msg, args...)
	}
}

// Info logs an info message.
func Info(msg string, args ...any) {
	if Log != nil {
		Log.Info(msg, args...)
	}
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	if Log != nil {
		Log.Warn(msg, args...)
	}
}

// Error logs an error message.
func Error(msg string, args ...any) {
	if Log != nil {
		Log.Error(msg, args...)
	}
}

// With returns a logger with the given attributes attached, falling back to
// a discard logger if Init hasn't run yet (keeps callers panic-free in tests).
func With(args ...any) *slog.Logger {
	if Log == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return Log.With(args...)
}
