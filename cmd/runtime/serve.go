package main

import (
	"github.com/spf13/cobra"

	"github.com/morezero/script-runtime/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the runtime (NATS gateway, HTTP health, metrics and catalog)",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	return server.Run()
}
