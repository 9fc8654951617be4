package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ratchet/internal/approval"
	"ratchet/internal/ipc"
	"ratchet/internal/lifecycle"
	"ratchet/internal/store"
)

func newApprovalsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "approvals",
		Short: "Work with items awaiting approval",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List items awaiting a decision",
		RunE: func(cmd *cobra.Command, args []string) error {
			var items []ipc.ItemView
			err := ctx.withStore(
				func(client *ipc.Client) error {
					resp, err := client.ApprovalList()
					if err != nil {
						return err
					}
					items = resp.Items
					return nil
				},
				func(st *store.Store) error {
					stored, err := st.List(cmd.Context(), lifecycle.StatusAwaitingApproval)
					if err != nil {
						return err
					}
					items = ipc.FromItems(stored)
					return nil
				},
			)
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, map[string]any{"items": items})
			}
			stdout := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(stdout, "No items awaiting approval")
				return nil
			}
			fmt.Fprintln(stdout, renderTable(itemHeaders, buildItemRows(items), itemAligns))
			return nil
		},
	}
	listCmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")

	cmd.AddCommand(listCmd)
	return cmd
}

func newApproveCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve an item so processing can begin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecision(ctx, cmd, strings.TrimSpace(args[0]), true, reason)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded in the ledger")
	return cmd
}

func newRejectCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject an item; rejection is terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecision(ctx, cmd, strings.TrimSpace(args[0]), false, reason)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded in the ledger")
	cmd.MarkFlagRequired("reason")
	return cmd
}

func runDecision(ctx *commandContext, cmd *cobra.Command, id string, approved bool, reason string) error {
	var decided ipc.ItemView
	err := ctx.withStore(
		func(client *ipc.Client) error {
			resp, err := client.Decide(id, approved, reason)
			if err != nil {
				return err
			}
			decided = resp.Item
			return nil
		},
		func(st *store.Store) error {
			cfg, cfgErr := ctx.ensureConfig()
			if cfgErr != nil {
				return cfgErr
			}
			logger, logErr := loggerForCLI(cfg)
			if logErr != nil {
				return logErr
			}
			gate := approval.NewGate(st, logger)
			item, err := gate.Decide(cmd.Context(), id, approved, reason)
			if err != nil {
				return err
			}
			decided = ipc.FromItem(item)
			return nil
		},
	)
	if err != nil {
		return err
	}

	stdout := cmd.OutOrStdout()
	if approved {
		fmt.Fprintf(stdout, "Item %s approved; now %s\n", decided.ID, formatStatusLabel(decided.Status))
	} else {
		fmt.Fprintf(stdout, "Item %s rejected\n", decided.ID)
	}
	return nil
}
