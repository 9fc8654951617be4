package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"ratchet/internal/engine"
	"ratchet/internal/ipc"
	"ratchet/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and work item status",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()

			client, err := ctx.dialClient()
			if err == nil {
				defer client.Close()
				resp, err := client.Status()
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				printDaemonStatus(cmd, resp)
				return nil
			}

			// No daemon: report queue counts straight from the store.
			cfg, cfgErr := ctx.ensureConfig()
			if cfgErr != nil {
				return cfgErr
			}
			st, openErr := store.Open(cfg)
			if openErr != nil {
				return fmt.Errorf("open store: %w", openErr)
			}
			defer st.Close()
			stats, statsErr := st.Stats(cmd.Context())
			if statsErr != nil {
				return statsErr
			}

			counts := make(map[string]int, len(stats))
			for status, count := range stats {
				counts[string(status)] = count
			}
			if jsonOutput {
				return writeJSON(cmd, map[string]any{"running": false, "item_stats": counts})
			}
			fmt.Fprintln(stdout, "Daemon: not running")
			printStatsTable(cmd, counts)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}

func printDaemonStatus(cmd *cobra.Command, resp *ipc.StatusResponse) {
	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)

	running, tone := "running", toneGood
	if !resp.Running {
		running, tone = "stopped", toneWarn
	}
	fmt.Fprintln(stdout, statusLine("Daemon", fmt.Sprintf("%s (pid %d)", running, resp.PID), tone, colorize))
	fmt.Fprintln(stdout, statusLine("Database", resp.DatabasePath, toneNeutral, colorize))
	fmt.Fprintln(stdout, statusLine("Lock", resp.LockPath, toneNeutral, colorize))
	if resp.InFlight > 0 {
		fmt.Fprintln(stdout, statusLine("In flight", fmt.Sprintf("%d", resp.InFlight), toneNeutral, colorize))
	}
	if resp.LastError != "" {
		fmt.Fprintln(stdout, statusLine("Last error", resp.LastError, toneBad, colorize))
	}
	if len(resp.HandlerHealth) > 0 {
		fmt.Fprintln(stdout, "Handlers:")
		for _, health := range resp.HandlerHealth {
			state, healthTone := "ready", toneGood
			if !health.Ready {
				state, healthTone = "not ready", toneBad
			}
			if health.Detail != "" {
				state = fmt.Sprintf("%s (%s)", state, health.Detail)
			}
			fmt.Fprintln(stdout, "  "+statusLine(health.Name, state, healthTone, colorize))
		}
	}
	printStatsTable(cmd, resp.ItemStats)
}

func printStatsTable(cmd *cobra.Command, stats map[string]int) {
	stdout := cmd.OutOrStdout()
	rows := buildStatsRows(stats)
	if len(rows) == 0 {
		fmt.Fprintln(stdout, "No work items")
		return
	}
	fmt.Fprintln(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
}

func newSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Trigger an immediate processing pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			err := ctx.withClient(func(client *ipc.Client) error {
				_, err := client.Sweep()
				return err
			})
			if err == nil {
				fmt.Fprintln(stdout, "Sweep triggered")
				return nil
			}

			// Without a daemon the pass runs inline; only routing happens
			// since no handlers are registered in the CLI process.
			cfg, cfgErr := ctx.ensureConfig()
			if cfgErr != nil {
				return cfgErr
			}
			st, openErr := store.Open(cfg)
			if openErr != nil {
				return fmt.Errorf("open store: %w", openErr)
			}
			defer st.Close()
			logger, logErr := loggerForCLI(cfg)
			if logErr != nil {
				return logErr
			}
			manager := engine.NewManager(cfg, st, newEmptyRegistry(), logger)
			if err := manager.RunOnce(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "Sweep completed (routing only; no daemon running)")
			return nil
		},
	}
}

func newStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the ratchet daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			if ctx.daemonReachable() {
				fmt.Fprintln(stdout, "Daemon already running")
				return nil
			}

			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			launch := exec.Command(exe)
			launch.Stdout = nil
			launch.Stderr = nil
			launch.Stdin = nil
			if err := launch.Start(); err != nil {
				return fmt.Errorf("launch daemon: %w", err)
			}
			if err := launch.Process.Release(); err != nil {
				return fmt.Errorf("detach daemon: %w", err)
			}

			fmt.Fprintln(stdout, "Daemon not running, launching...")
			deadline := time.Now().Add(10 * time.Second)
			for time.Now().Before(deadline) {
				if ctx.daemonReachable() {
					fmt.Fprintln(stdout, "Daemon started")
					return nil
				}
				time.Sleep(200 * time.Millisecond)
			}
			return errors.New("daemon did not become reachable; check the log file")
		},
	}
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the ratchet daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			err := ctx.withClient(func(client *ipc.Client) error {
				_, err := client.Stop()
				return err
			})
			if err != nil {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}
}

// daemonExecutable locates ratchetd next to the current binary, falling back
// to PATH lookup.
func daemonExecutable() (string, error) {
	self, err := os.Executable()
	if err == nil {
		candidate := filepath.Join(filepath.Dir(self), "ratchetd")
		if info, statErr := os.Stat(candidate); statErr == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	path, lookErr := exec.LookPath("ratchetd")
	if lookErr != nil {
		return "", fmt.Errorf("locate ratchetd: %w", lookErr)
	}
	return path, nil
}

