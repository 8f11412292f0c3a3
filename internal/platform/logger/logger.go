package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. Level defaults to info;
// set SIGNET_LOG_LEVEL=debug for verbose delivery tracing.
func New() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("SIGNET_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
