package main

import (
	"github.com/spf13/cobra"

	"panorama-viewer/internal/config"
)

// newRootCmd serves when called without a subcommand.
func newRootCmd(cfg *config.Config) *cobra.Command {
	serve := newServeCmd(cfg)

	cmd := &cobra.Command{
		Use:           "panorama-viewer",
		Short:         "HTTP backend for uploading and browsing panorama images",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}

	cmd.AddCommand(serve, newMigrateCmd(cfg))
	return cmd
}
