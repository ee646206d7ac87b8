package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"localqueue/internal/api"
	"localqueue/internal/queue"
	"localqueue/internal/queueaccess"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the work queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show item counts per state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(access queueaccess.Access) error {
				stats, err := access.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.QueueStatsResponse{Counts: stats})
				}
				out := cmd.OutOrStdout()
				if totalQueued(stats) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprint(out, renderTable([]string{"State", "Count"}, buildQueueStatusRows(stats), []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var states []string
	var limit int
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List outstanding work items, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, state := range states {
				if _, ok := queue.ParseState(state); !ok {
					return fmt.Errorf("unknown state %q (valid: %s)", state, validStates())
				}
			}
			if limit < 0 {
				return fmt.Errorf("limit must be zero or positive")
			}
			return ctx.withQueue(func(access queueaccess.Access) error {
				items, err := access.List(cmd.Context(), limit, states)
				if err != nil {
					return err
				}
				if jsonOutput {
					if items == nil {
						items = []api.QueueItem{}
					}
					return writeJSON(cmd, api.QueueListResponse{Items: items})
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No work items found")
					return nil
				}
				headers := []string{"Fingerprint", "Type", "State", "Created", "Payload"}
				fmt.Fprint(out, renderTable(headers, buildQueueListRows(items), nil))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&states, "state", "s", nil, "Filter by state (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum items per state (0 for no limit)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "show <fingerprint>",
		Short: "Show one work item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fp, err := api.ParseFingerprint(args[0])
			if err != nil {
				return err
			}
			return ctx.withQueue(func(access queueaccess.Access) error {
				item, err := access.Describe(cmd.Context(), fp)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, item)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Fingerprint: %s (%d)\n", item.FingerprintHex, item.Fingerprint)
				fmt.Fprintf(out, "Type:        %s\n", item.WorkType)
				fmt.Fprintf(out, "State:       %s\n", formatStateLabel(item.State))
				fmt.Fprintf(out, "Created:     %s\n", formatDisplayTime(item.CreatedAt))
				fmt.Fprintf(out, "Payload:\n%s\n", item.Payload)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "clear [fingerprint]",
		Short: "Remove a work item, or every item with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return fmt.Errorf("specify a fingerprint or --all")
			}
			var fp int64
			if !all {
				parsed, err := api.ParseFingerprint(args[0])
				if err != nil {
					return err
				}
				fp = parsed
			}
			return ctx.withQueue(func(access queueaccess.Access) error {
				out := cmd.OutOrStdout()
				if all {
					removed, err := access.ClearAll(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d work item(s)\n", removed)
					return nil
				}
				removed, err := access.ClearItem(cmd.Context(), fp)
				if err != nil {
					return err
				}
				if !removed {
					fmt.Fprintf(out, "Work item %s not found\n", api.FormatFingerprint(fp))
					return nil
				}
				fmt.Fprintf(out, "Cleared work item %s\n", api.FormatFingerprint(fp))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Remove every work item, including running ones")
	return cmd
}

func validStates() string {
	names := make([]string, 0, 3)
	for _, state := range queue.AllStates() {
		names = append(names, strings.ToLower(string(state)))
	}
	return strings.Join(names, ", ")
}
