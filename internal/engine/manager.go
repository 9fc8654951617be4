package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"ratchet/internal/config"
	"ratchet/internal/handler"
	"ratchet/internal/logging"
	"ratchet/internal/store"
)

// Manager coordinates sweeps over the work item store.
type Manager struct {
	cfg      *config.Config
	store    *store.Store
	registry *handler.Registry
	advisor  Advisor
	logger   *slog.Logger

	sweepInterval  time.Duration
	errorRetry     time.Duration
	handlerTimeout time.Duration
	heartbeat      *HeartbeatMonitor

	kick chan struct{}
	sem  chan struct{}

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	inflight map[string]struct{}
	lastErr  error
}

// NewManager constructs a sweep manager with the default ledger-backed
// strategy advisor.
func NewManager(cfg *config.Config, st *store.Store, registry *handler.Registry, logger *slog.Logger) *Manager {
	return NewManagerWithAdvisor(cfg, st, registry, NewLedgerAdvisor(st, cfg.Retry.StrategyThreshold), logger)
}

// NewManagerWithAdvisor constructs a sweep manager with a custom advisor.
func NewManagerWithAdvisor(cfg *config.Config, st *store.Store, registry *handler.Registry, advisor Advisor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	if advisor == nil {
		advisor = NopAdvisor{}
	}
	return &Manager{
		cfg:            cfg,
		store:          st,
		registry:       registry,
		advisor:        advisor,
		logger:         logging.NewComponentLogger(logger, "engine"),
		sweepInterval:  time.Duration(cfg.Engine.SweepInterval) * time.Second,
		errorRetry:     time.Duration(cfg.Engine.ErrorRetryInterval) * time.Second,
		handlerTimeout: time.Duration(cfg.Engine.HandlerTimeout) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			st,
			logger,
			time.Duration(cfg.Engine.HeartbeatInterval)*time.Second,
		),
		kick:     make(chan struct{}, 1),
		sem:      make(chan struct{}, cfg.Engine.Workers),
		inflight: make(map[string]struct{}),
	}
}

// Start begins background sweeping. Crash-interrupted items are made eligible
// again before the first sweep.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("engine already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	if reclaimed, err := m.store.ClearStaleHeartbeats(runCtx, time.Now()); err != nil {
		m.logger.Warn("failed to reclaim interrupted items; they become eligible once heartbeats expire",
			logging.Error(err),
			logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
		)
	} else if reclaimed > 0 {
		m.logger.Info("reclaimed interrupted items", logging.Int64("count", reclaimed))
	}

	go m.run(runCtx)
	return nil
}

// Stop terminates background sweeping and waits for in-flight work.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Kick requests an immediate sweep. Safe to call at any time; redundant kicks
// coalesce.
func (m *Manager) Kick() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// Running reports whether the background loop is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	for {
		if err := m.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			m.setLastError(err)
			m.logger.Error("sweep failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "sweep_failed"),
				logging.String(logging.FieldErrorHint, "check work item database access"),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.errorRetry):
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.sweepInterval):
		case <-m.kick:
		}
	}
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

// LastError returns the most recent sweep-level failure, if any.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Manager) inFlightCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inflight)
}

func (m *Manager) markInFlight(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.inflight[id]; busy {
		return false
	}
	m.inflight[id] = struct{}{}
	return true
}

func (m *Manager) clearInFlight(id string) {
	m.mu.Lock()
	delete(m.inflight, id)
	m.mu.Unlock()
}
