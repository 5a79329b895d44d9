package main

import (
	"fmt"
	"log/slog"

	"github.com/tasktide/conflict-engine/internal/config"
	"github.com/tasktide/conflict-engine/internal/platform/logger"
)

// setupAppLogger configures and initializes the application logger based on
// config settings.
func setupAppLogger(cfg *config.Config) (*slog.Logger, error) {
	l, err := logger.Setup(logger.Config{
		Level: cfg.Server.LogLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	return l, nil
}
