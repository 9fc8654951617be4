package testsupport

import (
	"path/filepath"
	"testing"

	"ratchet/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Timing is tightened so sweep-driven tests finish quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Engine.SweepInterval = 1
	cfg.Engine.ErrorRetryInterval = 1
	cfg.Engine.HandlerTimeout = 5
	cfg.Engine.HeartbeatInterval = 1
	cfg.Engine.HeartbeatTimeout = 2

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithWorkers overrides the dispatch pool size on the test config.
func WithWorkers(workers int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Engine.Workers = workers
	}
}

// WithMaxAttempts overrides the default attempt budget on the test config.
func WithMaxAttempts(attempts int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Retry.MaxAttempts = attempts
	}
}

// WithStrategyThreshold overrides the advisor threshold on the test config.
func WithStrategyThreshold(threshold int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Retry.StrategyThreshold = threshold
	}
}
