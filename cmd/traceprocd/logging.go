package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

func setupLogger(level string) (*slog.Logger, string) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: logLevel == slog.LevelDebug,
	})

	runID := uuid.NewString()
	logger := slog.New(handler).With(
		"service", appName,
		"version", Version,
		"run_id", runID,
	)
	return logger, runID
}
