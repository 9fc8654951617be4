package main

import (
	"log/slog"

	"ratchet/internal/config"
	"ratchet/internal/handler"
	"ratchet/internal/logging"
)

// newEmptyRegistry backs CLI-side sweeps, which route items but never run
// handlers.
func newEmptyRegistry() *handler.Registry {
	return handler.NewRegistry()
}

// loggerForCLI builds a logger that writes to the shared log file only, so
// command output stays clean while direct-store mutations still leave a trace.
func loggerForCLI(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil || cfg.Paths.LogDir == "" {
		return logging.NewNop(), nil
	}
	return logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      "console",
		OutputPaths: []string{cfg.LogPath()},
	})
}
