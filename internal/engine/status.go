package engine

import (
	"context"

	"ratchet/internal/handler"
	"ratchet/internal/store"
)

// Summary is a point-in-time snapshot of engine and queue state.
type Summary struct {
	Running       bool
	InFlight      int
	Stats         store.Stats
	HandlerHealth []handler.Health
	LastError     string
}

// Summarize collects the current engine status.
func (m *Manager) Summarize(ctx context.Context) (Summary, error) {
	stats, err := m.store.Stats(ctx)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{
		Running:       m.Running(),
		InFlight:      m.inFlightCount(),
		Stats:         stats,
		HandlerHealth: m.registry.HealthChecks(ctx),
	}
	if err := m.LastError(); err != nil {
		summary.LastError = err.Error()
	}
	return summary, nil
}
