package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ratchet/internal/ipc"
	"ratchet/internal/lifecycle"
	"ratchet/internal/store"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var (
		priority         string
		requiresApproval bool
		payload          string
		maxAttempts      int
	)

	cmd := &cobra.Command{
		Use:   "add <kind>",
		Short: "Create a new work item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := strings.TrimSpace(args[0])
			req := ipc.ItemCreateRequest{
				Kind:             kind,
				Priority:         priority,
				RequiresApproval: requiresApproval,
				Payload:          payload,
				MaxAttempts:      maxAttempts,
			}

			var created ipc.ItemView
			err := ctx.withStore(
				func(client *ipc.Client) error {
					resp, err := client.ItemCreate(req)
					if err != nil {
						return err
					}
					created = resp.Item
					return nil
				},
				func(st *store.Store) error {
					item, err := st.Create(cmd.Context(), store.NewItem{
						Kind:             lifecycle.Kind(kind),
						Priority:         lifecycle.Priority(priority),
						RequiresApproval: requiresApproval,
						Payload:          payload,
						MaxAttempts:      maxAttempts,
					})
					if err != nil {
						return err
					}
					created = ipc.FromItem(item)
					return nil
				},
			)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "Created item %s (%s, %s priority)\n", created.ID, created.Kind, created.Priority)
			if created.RequiresApproval {
				fmt.Fprintln(stdout, "Item requires approval before processing")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&priority, "priority", "", "Priority: critical, high, medium, or low")
	cmd.Flags().BoolVar(&requiresApproval, "requires-approval", false, "Hold the item for human approval before processing")
	cmd.Flags().StringVar(&payload, "payload", "", "Opaque payload stored with the item")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "Attempt budget override (0 uses the configured default)")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var (
		stageFlag  string
		statusFlag []string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work items",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := listStatuses(stageFlag, statusFlag)
			if err != nil {
				return err
			}

			var items []ipc.ItemView
			err = ctx.withStore(
				func(client *ipc.Client) error {
					resp, err := client.ItemList(statuses)
					if err != nil {
						return err
					}
					items = resp.Items
					return nil
				},
				func(st *store.Store) error {
					parsed := make([]lifecycle.Status, 0, len(statuses))
					for _, raw := range statuses {
						status, ok := lifecycle.ParseStatus(raw)
						if !ok {
							return fmt.Errorf("unknown status %q", raw)
						}
						parsed = append(parsed, status)
					}
					stored, err := st.List(cmd.Context(), parsed...)
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
				fmt.Fprintln(stdout, "No work items")
				return nil
			}
			fmt.Fprintln(stdout, renderTable(itemHeaders, buildItemRows(items), itemAligns))
			return nil
		},
	}

	cmd.Flags().StringVar(&stageFlag, "stage", "", "Filter by stage: incoming, approval, processing, completed, failed, rejected")
	cmd.Flags().StringSliceVar(&statusFlag, "status", nil, "Filter by status (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}

// listStatuses resolves the --stage and --status filters into a status set.
// Stage names map one-to-one onto statuses, so both filters reduce to the
// same wire shape.
func listStatuses(stageFlag string, statusFlag []string) ([]string, error) {
	if stageFlag != "" && len(statusFlag) > 0 {
		return nil, fmt.Errorf("--stage and --status are mutually exclusive")
	}
	if stageFlag != "" {
		status, ok := lifecycle.StatusForStage(strings.ToLower(strings.TrimSpace(stageFlag)))
		if !ok {
			return nil, fmt.Errorf("unknown stage %q", stageFlag)
		}
		return []string{string(status)}, nil
	}
	statuses := make([]string, 0, len(statusFlag))
	for _, raw := range statusFlag {
		trimmed := strings.ToLower(strings.TrimSpace(raw))
		if _, ok := lifecycle.ParseStatus(trimmed); !ok {
			return nil, fmt.Errorf("unknown status %q", raw)
		}
		statuses = append(statuses, trimmed)
	}
	return statuses, nil
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one work item in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])

			var item ipc.ItemView
			err := ctx.withStore(
				func(client *ipc.Client) error {
					resp, err := client.ItemDescribe(id)
					if err != nil {
						return err
					}
					item = resp.Item
					return nil
				},
				func(st *store.Store) error {
					stored, err := st.GetByID(cmd.Context(), id)
					if err != nil {
						return err
					}
					item = ipc.FromItem(stored)
					return nil
				},
			)
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, item)
			}
			printItemDetail(cmd, item)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}

func printItemDetail(cmd *cobra.Command, item ipc.ItemView) {
	stdout := cmd.OutOrStdout()
	fmt.Fprintf(stdout, "ID:                %s\n", item.ID)
	fmt.Fprintf(stdout, "Kind:              %s\n", item.Kind)
	fmt.Fprintf(stdout, "Priority:          %s\n", item.Priority)
	fmt.Fprintf(stdout, "Status:            %s\n", formatStatusLabel(item.Status))
	fmt.Fprintf(stdout, "Stage:             %s\n", formatStatusLabel(item.Stage))
	fmt.Fprintf(stdout, "Requires approval: %s\n", yesNo(item.RequiresApproval))
	if item.Approved != nil {
		fmt.Fprintf(stdout, "Approved:          %s\n", yesNo(*item.Approved))
	}
	fmt.Fprintf(stdout, "Attempts:          %d/%d\n", item.AttemptCount, item.MaxAttempts)
	if item.LastError != "" {
		fmt.Fprintf(stdout, "Last error:        %s\n", item.LastError)
	}
	if item.Payload != "" {
		fmt.Fprintf(stdout, "Payload:           %s\n", item.Payload)
	}
	fmt.Fprintf(stdout, "Created:           %s\n", formatDisplayTime(item.CreatedAt))
	fmt.Fprintf(stdout, "Updated:           %s\n", formatDisplayTime(item.UpdatedAt))
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show the audit trail for one work item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])

			var entries []ipc.LedgerEntryView
			err := ctx.withStore(
				func(client *ipc.Client) error {
					resp, err := client.History(id)
					if err != nil {
						return err
					}
					entries = resp.Entries
					return nil
				},
				func(st *store.Store) error {
					stored, err := st.History(cmd.Context(), id)
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
				fmt.Fprintln(stdout, "No history recorded")
				return nil
			}
			fmt.Fprintln(stdout, renderTable(ledgerHeaders, buildLedgerRows(entries), ledgerAligns))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}
