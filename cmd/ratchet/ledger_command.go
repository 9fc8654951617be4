package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ratchet/internal/ipc"
	"ratchet/internal/store"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	var (
		sinceFlag  string
		untilFlag  string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Query the decision ledger across items",
		RunE: func(cmd *cobra.Command, args []string) error {
			since, err := parseTimeFlag(sinceFlag, "--since")
			if err != nil {
				return err
			}
			until, err := parseTimeFlag(untilFlag, "--until")
			if err != nil {
				return err
			}

			var entries []ipc.LedgerEntryView
			err = ctx.withStore(
				func(client *ipc.Client) error {
					resp, err := client.Ledger(strings.TrimSpace(sinceFlag), strings.TrimSpace(untilFlag))
					if err != nil {
						return err
					}
					entries = resp.Entries
					return nil
				},
				func(st *store.Store) error {
					stored, err := st.LedgerBetween(cmd.Context(), since, until)
					if err != nil {
						return err
					}
					entries = ipc.FromEntries(stored)
					return nil
				},
			)
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, map[string]any{"entries": entries})
			}
			stdout := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(stdout, "No ledger entries in range")
				return nil
			}
			fmt.Fprintln(stdout, renderTable(ledgerHeaders, buildLedgerRows(entries), ledgerAligns))
			return nil
		},
	}

	cmd.Flags().StringVar(&sinceFlag, "since", "", "Lower time bound (RFC 3339), inclusive")
	cmd.Flags().StringVar(&untilFlag, "until", "", "Upper time bound (RFC 3339), exclusive")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}

func parseTimeFlag(value, flag string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", flag, err)
	}
	return t, nil
}
