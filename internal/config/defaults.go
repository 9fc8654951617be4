package config

const (
	defaultDataDir            = "~/.local/share/ratchet"
	defaultLogDir             = "~/.local/share/ratchet/logs"
	defaultSweepInterval      = 30
	defaultErrorRetryInterval = 5
	defaultWorkers            = 4
	defaultHandlerTimeout     = 300
	defaultHeartbeatInterval  = 15
	defaultHeartbeatTimeout   = 120
	defaultMaxAttempts        = 10
	defaultStrategyThreshold  = 3
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Engine: Engine{
			SweepInterval:      defaultSweepInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			Workers:            defaultWorkers,
			HandlerTimeout:     defaultHandlerTimeout,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
		},
		Retry: Retry{
			MaxAttempts:       defaultMaxAttempts,
			StrategyThreshold: defaultStrategyThreshold,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
