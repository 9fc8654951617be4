package engine

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RunOnce performs a single sweep pass: routes and dispatches every eligible
// item, then waits for the dispatched work to finish. Exposed so operators can
// trigger a deterministic pass on demand.
func (m *Manager) RunOnce(ctx context.Context) error {
	staleBefore := time.Now().Add(-time.Duration(m.cfg.Engine.HeartbeatTimeout) * time.Second)
	items, err := m.store.NextEligible(ctx, staleBefore)
	if err != nil {
		return fmt.Errorf("list eligible items: %w", err)
	}

	var pass sync.WaitGroup
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		if !m.markInFlight(item.ID) {
			continue
		}
		select {
		case m.sem <- struct{}{}:
		case <-ctx.Done():
			m.clearInFlight(item.ID)
			pass.Wait()
			return ctx.Err()
		}
		pass.Add(1)
		go func(id string) {
			defer pass.Done()
			defer func() { <-m.sem }()
			defer m.clearInFlight(id)
			m.processItem(ctx, id)
		}(item.ID)
	}
	pass.Wait()
	return ctx.Err()
}
