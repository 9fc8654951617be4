package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"ratchet/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "data_dir:             %s\n", cfg.Paths.DataDir)
			fmt.Fprintf(out, "log_dir:              %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "database:             %s\n", cfg.DatabasePath())
			fmt.Fprintf(out, "socket:               %s\n", cfg.SocketPath())
			fmt.Fprintf(out, "sweep_interval:       %ds\n", cfg.Engine.SweepInterval)
			fmt.Fprintf(out, "error_retry_interval: %ds\n", cfg.Engine.ErrorRetryInterval)
			fmt.Fprintf(out, "workers:              %d\n", cfg.Engine.Workers)
			fmt.Fprintf(out, "handler_timeout:      %ds\n", cfg.Engine.HandlerTimeout)
			fmt.Fprintf(out, "heartbeat_interval:   %ds\n", cfg.Engine.HeartbeatInterval)
			fmt.Fprintf(out, "heartbeat_timeout:    %ds\n", cfg.Engine.HeartbeatTimeout)
			fmt.Fprintf(out, "max_attempts:         %d\n", cfg.Retry.MaxAttempts)
			fmt.Fprintf(out, "strategy_threshold:   %d\n", cfg.Retry.StrategyThreshold)
			fmt.Fprintf(out, "log_format:           %s\n", cfg.Logging.Format)
			fmt.Fprintf(out, "log_level:            %s\n", cfg.Logging.Level)
			return nil
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}
