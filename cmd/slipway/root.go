package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/slipway-sh/slipway/internal/core/render"
	"github.com/slipway-sh/slipway/internal/engine"
	"github.com/slipway-sh/slipway/internal/shell/docker"
	"github.com/slipway-sh/slipway/internal/shell/kube"
	"github.com/slipway-sh/slipway/internal/shell/store"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var (
	cfgFile string
	cfg     *Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "slipway",
	Short: "Deploy apps to Docker and Kubernetes from your project directory",
	Long: `slipway takes the project in the current directory, generates its
deployment artifacts, builds and runs it in Docker, and in production mode
rolls it out to the local Kubernetes cluster.`,
	// SilenceUsage prevents printing the usage block on errors we handle
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		logger = SetupLogger(cfg)
		return nil
	},
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(fmt.Sprintf("slipway {{.Version}} (built %s)\n", BuildTime))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file")

	rootCmd.AddCommand(newDeployCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newCleanupCmd())
	rootCmd.AddCommand(newCheckCmd())
}

// buildEngine wires the engine against the real adapters. The cluster client
// is only constructed when the invocation targets the cluster, so local
// deploys work without a kubeconfig.
func buildEngine(clusterMode bool) (*engine.Engine, func(), error) {
	workDir, err := os.Getwd()
	if err != nil {
		return nil, nil, err
	}

	runtime, err := docker.NewDockerRuntime(cfg.Docker.Host)
	if err != nil {
		return nil, nil, err
	}

	var cluster kube.Cluster
	if clusterMode {
		cluster, err = kube.NewClient(cfg.Kube.Path, cfg.Kube.Context)
		if err != nil {
			runtime.Close()
			return nil, nil, err
		}
	}

	eng := engine.New(engine.Options{
		Runtime:         runtime,
		Launcher:        docker.ExecLauncher{},
		Cluster:         cluster,
		Store:           store.NewFileStore(workDir),
		Defaults:        render.NewDefaults(),
		ExpectedContext: cfg.Kube.Context,
		WorkDir:         workDir,
		Logger:          logger,
	})
	cleanup := func() { runtime.Close() }
	return eng, cleanup, nil
}
