package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"localqueue/internal/api"
	"localqueue/internal/fingerprint"
)

func newFingerprintCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "fingerprint <work-type> <payload|->",
		Short:       "Print the fingerprint a work item would be stored under",
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := args[1]
			if payload == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read payload: %w", err)
				}
				payload = string(data)
			}
			factory, err := fingerprint.NewFactory(1)
			if err != nil {
				return err
			}
			fp := factory.Fingerprint(args[0], payload)
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", api.FormatFingerprint(fp), strconv.FormatInt(fp, 10))
			return nil
		},
	}
	return cmd
}
