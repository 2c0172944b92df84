package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/slipway-sh/slipway/internal/core/domain"
)

func newDeployCmd() *cobra.Command {
	var (
		prod     bool
		port     int
		replicas int
		name     string
		appType  string
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Build and deploy the app in the current directory",
		Long: `deploy verifies the environment, generates the deployment artifacts,
builds the image, and starts the app in Docker. With --prod it continues and
rolls the app out to the configured Kubernetes context.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := resolveSpec(cmd, prod, port, replicas, name, appType)
			if err != nil {
				return err
			}

			eng, done, err := buildEngine(spec.Mode.IsCluster())
			if err != nil {
				return err
			}
			defer done()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, err := eng.Deploy(ctx, spec)
			if err != nil {
				if report != nil && report.Record != nil {
					return fmt.Errorf("deploy failed at stage %q (status %s): %w",
						report.Record.FailingStage, report.Record.Status, err)
				}
				return err
			}

			for _, w := range report.Warnings {
				fmt.Fprintf(cmd.OutOrStdout(), "warning: %s\n", w)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s deployed: %s\n", spec.Name, report.URL)
			return nil
		},
	}

	cmd.Flags().BoolVar(&prod, "prod", false, "deploy to the Kubernetes cluster")
	cmd.Flags().IntVar(&port, "port", 3000, "port the app listens on")
	cmd.Flags().IntVar(&replicas, "rpl", 1, "replica count (cluster mode, defaults to 3 with --prod)")
	cmd.Flags().StringVar(&name, "name", "", "app name (defaults to the directory name)")
	cmd.Flags().StringVar(&appType, "type", string(domain.AppTypeBun), "app type: bun, node, nextjs, static")
	return cmd
}

// resolveSpec turns the flags into a validated AppSpec. The replica default
// follows the mode: one locally, three on the cluster, unless --rpl is set.
func resolveSpec(cmd *cobra.Command, prod bool, port, replicas int, name, appType string) (domain.AppSpec, error) {
	mode := domain.ModeDev
	if prod {
		mode = domain.ModeProd
		if !cmd.Flags().Changed("rpl") {
			replicas = 3
		}
	}

	if name == "" {
		wd, err := os.Getwd()
		if err != nil {
			return domain.AppSpec{}, err
		}
		name = filepath.Base(wd)
	}

	spec := domain.AppSpec{
		Name:      name,
		Type:      domain.AppType(appType),
		Port:      port,
		Mode:      mode,
		Replicas:  replicas,
		AutoScale: prod,
	}
	if err := spec.Validate(); err != nil {
		return domain.AppSpec{}, err
	}
	return spec, nil
}
