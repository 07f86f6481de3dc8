package telemetry

import (
	"log/slog"
	"os"
)

// Default is the always-on structured logger used for warnings and
// recoverable-error reporting: a single repo failing to refresh does
// not abort the caller, but it is always logged. It is independent of
// the opt-in profiling session managed by Start/Stop below, which
// additionally mirrors events into a JSONL trace file when a caller
// asks for it via --profile.
var Default = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// Warn logs a recoverable error and, when a profiling session is active,
// mirrors the event into its JSONL trace.
func Warn(msg string, kv ...any) {
	Default.Warn(msg, kv...)
	Event(msg, kv...)
}

// Info logs an informational event through both the default logger and,
// when active, the profiling session's trace.
func Info(msg string, kv ...any) {
	Default.Info(msg, kv...)
	Event(msg, kv...)
}
