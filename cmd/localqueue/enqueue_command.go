package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"localqueue/internal/api"
	"localqueue/internal/queueaccess"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "enqueue <work-type> <payload|->",
		Short: "Add a work item to the queue",
		Long: "Add a work item to the queue. Pass - as the payload to read it from stdin.\n" +
			"Enqueueing the same work type and payload twice yields the same item.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			workType := strings.TrimSpace(args[0])
			payload := args[1]
			if payload == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read payload: %w", err)
				}
				payload = string(data)
			}
			return ctx.withQueue(func(access queueaccess.Access) error {
				item, err := access.Enqueue(cmd.Context(), workType, payload)
				if errors.Is(err, api.ErrDropped) {
					return fmt.Errorf("enqueue %s: %w", workType, err)
				}
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, item)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Enqueued %s (%s)\n", item.FingerprintHex, formatStateLabel(item.State))
				if !access.Remote() {
					fmt.Fprintln(out, "Daemon not running; the item will be processed on next start")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
