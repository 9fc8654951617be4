package engine

import (
	"context"
	"log/slog"
	"time"

	"ratchet/internal/logging"
	"ratchet/internal/store"
)

// HeartbeatMonitor refreshes the heartbeat of items while their handlers run.
// A heartbeat that stops aging marks the item live; once it goes stale the
// sweep reclaims the item for another attempt.
type HeartbeatMonitor struct {
	store    *store.Store
	logger   *slog.Logger
	interval time.Duration
}

// NewHeartbeatMonitor creates a monitor that beats at the given interval.
func NewHeartbeatMonitor(st *store.Store, logger *slog.Logger, interval time.Duration) *HeartbeatMonitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &HeartbeatMonitor{
		store:    st,
		logger:   logging.NewComponentLogger(logger, "heartbeat"),
		interval: interval,
	}
}

// StartLoop begins beating for one item and returns a stop function. The stop
// function blocks until the loop has exited, so no heartbeat lands after the
// attempt's outcome is recorded.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, itemID string) func() {
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				if err := h.store.UpdateHeartbeat(ctx, itemID); err != nil {
					if ctx.Err() != nil {
						return
					}
					h.logger.Warn("heartbeat update failed",
						logging.String(logging.FieldItemID, itemID),
						logging.Error(err),
					)
				}
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
	}
}
