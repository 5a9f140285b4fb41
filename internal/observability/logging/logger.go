package logging

import (
	"log/slog"
	"os"
	"strings"
)

// NewJSONLogger builds the stdout JSON logger both binaries install as the
// process default. Debug level also records source positions, which is worth
// the overhead when tracing a single document through the pipeline.
func NewJSONLogger(service, level string) *slog.Logger {
	parsed := parseLevel(level)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     parsed,
		AddSource: parsed == slog.LevelDebug,
	})
	return slog.New(handler).With("service", service)
}

// ForStage tags a child logger with the pipeline stage ("ocr", "summarize"),
// so the worker's interleaved job logs can be split per stage.
func ForStage(logger *slog.Logger, stage string) *slog.Logger {
	return logger.With("stage", stage)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
