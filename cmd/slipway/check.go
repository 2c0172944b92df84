package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	var prod bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the deployment environment without deploying",
		Long: `check confirms the container runtime is installed and responding. With
--prod it also confirms the Kubernetes context exists and the API server is
reachable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, done, err := buildEngine(prod)
			if err != nil {
				return err
			}
			defer done()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := eng.Check(ctx, prod); err != nil {
				return err
			}
			if prod {
				fmt.Fprintf(cmd.OutOrStdout(), "environment ok (context %s)\n", cfg.Kube.Context)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "environment ok")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&prod, "prod", false, "also verify cluster access")
	return cmd
}
