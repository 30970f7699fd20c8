// Package logging constructs the zap loggers used across the agent.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Production JSON encoding by default;
// format "console" switches to the development encoder for humans
// watching a terminal. verbose forces debug regardless of the
// configured level.
func New(level, format string, verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if format == "console" || format == "text" {
		cfg = zap.NewDevelopmentConfig()
	}

	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(parsed)
	}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	return logger, nil
}
