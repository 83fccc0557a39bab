package main

import (
	"github.com/spf13/cobra"

	"github.com/syntrixbase/docflow/internal/config"
)

func newRootCmd() *cobra.Command {
	var configDir string

	root := &cobra.Command{
		Use:   "docflow",
		Short: "Document API server with realtime notifications",
		Long: `docflow serves document reads and writes over HTTP and websockets,
and notifies subscribed rooms of every write.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configDir, "config", "c", config.DefaultDir, "configuration directory")

	root.AddCommand(
		newServeCmd(&configDir),
		newTokenCmd(&configDir),
		newActionsCmd(),
	)
	return root
}
