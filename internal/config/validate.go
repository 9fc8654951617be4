package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("log_dir: %w", err)
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}

// Validate checks configuration invariants after normalization.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return fmt.Errorf("config: data_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return fmt.Errorf("config: log_dir must not be empty")
	}
	if c.Engine.SweepInterval <= 0 {
		return fmt.Errorf("config: sweep_interval must be positive, got %d", c.Engine.SweepInterval)
	}
	if c.Engine.ErrorRetryInterval <= 0 {
		return fmt.Errorf("config: error_retry_interval must be positive, got %d", c.Engine.ErrorRetryInterval)
	}
	if c.Engine.Workers <= 0 {
		return fmt.Errorf("config: workers must be positive, got %d", c.Engine.Workers)
	}
	if c.Engine.HandlerTimeout <= 0 {
		return fmt.Errorf("config: handler_timeout must be positive, got %d", c.Engine.HandlerTimeout)
	}
	if c.Engine.HeartbeatInterval <= 0 {
		return fmt.Errorf("config: heartbeat_interval must be positive, got %d", c.Engine.HeartbeatInterval)
	}
	if c.Engine.HeartbeatTimeout < c.Engine.HeartbeatInterval {
		return fmt.Errorf("config: heartbeat_timeout (%d) must be at least heartbeat_interval (%d)",
			c.Engine.HeartbeatTimeout, c.Engine.HeartbeatInterval)
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("config: max_attempts must be positive, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.StrategyThreshold < 0 {
		return fmt.Errorf("config: strategy_threshold must not be negative, got %d", c.Retry.StrategyThreshold)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("config: logging format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
