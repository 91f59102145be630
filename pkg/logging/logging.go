// Package logging configures structured logging via log/slog.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config holds logging options.
type Config struct {
	// Level is the minimum level to emit.
	Level slog.Level
	// JSON switches to JSON output (for running under a supervisor).
	JSON bool
	// Output defaults to os.Stderr.
	Output io.Writer
}

// FromEnv builds a Config from LOG_LEVEL (DEBUG/INFO/WARN/ERROR, default
// INFO) and LOG_JSON.
func FromEnv() Config {
	return Config{
		Level: parseLevel(os.Getenv("LOG_LEVEL")),
		JSON:  os.Getenv("LOG_JSON") != "",
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup installs and returns the default logger.
func Setup(cfg Config) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: cfg.Level}
	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
