package main

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "Pulse - Proactive Personal AI Agent",
	Long: `Pulse is a self-hosted AI agent with a proactive task pipeline:
scheduled and recurring tasks fire work items that are delivered into the
agent's conversation as if the user had asked for them.`,
	Version: Version,
}

func init() {
	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(taskCmd)
}
