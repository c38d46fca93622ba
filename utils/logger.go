package utils

import (
	"log/slog"
	"os"
)

// NewLogger builds the application logger. Production emits JSON records,
// everything else human readable text at debug level.
func NewLogger(goEnv string) *slog.Logger {
	if goEnv == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
