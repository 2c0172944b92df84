package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/slipway-sh/slipway/internal/shell/store"
)

func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove the deployed container, cluster objects, and artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			workDir, err := os.Getwd()
			if err != nil {
				return err
			}

			// Only build a cluster client when the record says the deploy
			// touched the cluster.
			record, err := store.NewFileStore(workDir).Load()
			if err != nil {
				return err
			}
			clusterMode := record != nil && record.KubernetesEnabled

			eng, done, err := buildEngine(clusterMode)
			if err != nil {
				return err
			}
			defer done()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := eng.Cleanup(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cleanup complete")
			return nil
		},
	}
}
