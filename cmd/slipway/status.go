package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/slipway-sh/slipway/internal/shell/store"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the persisted state of the last deploy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			workDir, err := os.Getwd()
			if err != nil {
				return err
			}

			record, err := store.NewFileStore(workDir).Load()
			if err != nil {
				return err
			}
			if record == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no deployment found, run: slipway deploy")
				return nil
			}

			out, err := json.MarshalIndent(record, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if record.Status.IsFailure() {
				return fmt.Errorf("last deploy failed at stage %q: %s", record.FailingStage, record.LastError)
			}
			return nil
		},
	}
}
