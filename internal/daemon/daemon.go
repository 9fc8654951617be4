// Package daemon ties the engine, approval gate, and store together into a
// single-instance background service.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"ratchet/internal/approval"
	"ratchet/internal/config"
	"ratchet/internal/engine"
	"ratchet/internal/ledger"
	"ratchet/internal/lifecycle"
	"ratchet/internal/logging"
	"ratchet/internal/store"
)

// Daemon coordinates background processing and enforces single-instance
// execution through a file lock.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	engine *engine.Manager
	gate   *approval.Gate

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Engine       engine.Summary
	DatabasePath string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, eng *engine.Manager) (*Daemon, error) {
	if cfg == nil || st == nil || logger == nil || eng == nil {
		return nil, errors.New("daemon requires config, store, logger, and engine manager")
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		engine:   eng,
		gate:     approval.NewGate(st, logger),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the engine.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another ratchet daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.engine.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start engine: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("ratchet daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.engine.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("ratchet daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status reports combined daemon and engine state.
func (d *Daemon) Status(ctx context.Context) Status {
	summary, err := d.engine.Summarize(ctx)
	if err != nil {
		d.logger.Warn("failed to summarize engine", logging.Error(err))
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Engine:       summary,
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
	}
}

// Sweep requests an immediate pass over the store. When the engine loop is not
// running the pass executes inline so operator-triggered sweeps still work.
func (d *Daemon) Sweep(ctx context.Context) error {
	if d.running.Load() {
		d.engine.Kick()
		return nil
	}
	return d.engine.RunOnce(ctx)
}

// CreateItem registers new work and nudges the engine so fresh items do not
// wait for the next interval.
func (d *Daemon) CreateItem(ctx context.Context, spec store.NewItem) (*store.Item, error) {
	item, err := d.store.Create(ctx, spec)
	if err != nil {
		return nil, err
	}
	if d.running.Load() {
		d.engine.Kick()
	}
	return item, nil
}

// ListItems returns items filtered by status.
func (d *Daemon) ListItems(ctx context.Context, statuses ...lifecycle.Status) ([]*store.Item, error) {
	return d.store.List(ctx, statuses...)
}

// DescribeItem fetches one item by id.
func (d *Daemon) DescribeItem(ctx context.Context, id string) (*store.Item, error) {
	return d.store.GetByID(ctx, id)
}

// History returns the ledger for one item.
func (d *Daemon) History(ctx context.Context, id string) ([]ledger.Entry, error) {
	return d.store.History(ctx, id)
}

// LedgerBetween returns ledger entries in a time window.
func (d *Daemon) LedgerBetween(ctx context.Context, from, to time.Time) ([]ledger.Entry, error) {
	return d.store.LedgerBetween(ctx, from, to)
}

// PendingApprovals lists items awaiting a decision.
func (d *Daemon) PendingApprovals(ctx context.Context) ([]*store.Item, error) {
	return d.gate.Pending(ctx)
}

// Decide records an approval decision and nudges the engine so approved items
// start processing promptly.
func (d *Daemon) Decide(ctx context.Context, id string, approved bool, reason string) (*store.Item, error) {
	item, err := d.gate.Decide(ctx, id, approved, reason)
	if err != nil {
		return nil, err
	}
	if approved && d.running.Load() {
		d.engine.Kick()
	}
	return item, nil
}
