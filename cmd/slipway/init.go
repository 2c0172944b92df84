package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/slipway-sh/slipway/internal/core/domain"
	"github.com/slipway-sh/slipway/internal/core/scaffold"
)

func newInitCmd() *cobra.Command {
	var (
		appType string
		name    string
		port    int
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a new app in the current directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			workDir, err := os.Getwd()
			if err != nil {
				return err
			}
			if name == "" {
				name = filepath.Base(workDir)
			}

			files, err := scaffold.Files(domain.AppSpec{
				Name: name, Type: domain.AppType(appType), Port: port,
				Mode: domain.ModeDev, Replicas: 1,
			})
			if err != nil {
				return err
			}

			for _, f := range files {
				path := filepath.Join(workDir, f.Name)
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "skipping %s (already exists)\n", f.Name)
					continue
				}
				if dir := filepath.Dir(path); dir != workDir {
					if err := os.MkdirAll(dir, 0o755); err != nil {
						return err
					}
				}
				if err := os.WriteFile(path, f.Content, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", f.Name)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s is ready, run: slipway deploy\n", name)
			return nil
		},
	}

	cmd.Flags().StringVar(&appType, "type", string(domain.AppTypeBun), "app type: bun, node, nextjs, static")
	cmd.Flags().StringVar(&name, "name", "", "app name (defaults to the directory name)")
	cmd.Flags().IntVar(&port, "port", 3000, "port the app listens on")
	return cmd
}
