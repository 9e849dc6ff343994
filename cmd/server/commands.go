package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "workerhub",
		Short:         "Shared worker registry with live socket.io sync",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (yaml, json or toml)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the registry hub and its HTTP/socket.io endpoints",
		Long: `Run the registry hub. Configuration comes from defaults, the optional
--config file and environment variables (PORT, DATA_FILE, STORE_BACKEND, ...).

Example:
  workerhub serve
  PORT=8080 STORE_BACKEND=redis REDIS_URL=redis://localhost:6379/0 workerhub serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cfgFile)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}

	root.AddCommand(serve, versionCmd)
	return root
}
