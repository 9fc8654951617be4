package main

import (
	"log/slog"

	"ratchet/internal/config"
	"ratchet/internal/handler"
	"ratchet/internal/logging"
)

// buildRegistry assembles the handler set for this deployment. Handlers live
// outside the lifecycle core; host builds register their own per-kind
// implementations here. An item whose kind has no handler stays eligible and
// is skipped with a warning until one is registered.
func buildRegistry(cfg *config.Config, logger *slog.Logger) *handler.Registry {
	registry := handler.NewRegistry()

	if kinds := registry.Kinds(); len(kinds) == 0 {
		logger.Warn("no handlers registered; items will queue until handlers are added",
			logging.String(logging.FieldComponent, "bootstrap"))
	}
	return registry
}
