package main

import (
	"fmt"
	"os"

	"pulse/internal/config"
	"pulse/internal/logger"

	"github.com/spf13/cobra"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Validate and inspect Pulse configuration.`,
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate [config-file]",
	Short: "Validate configuration file",
	Long:  `Validate the configuration file and check for errors.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		log, err := logger.New(logger.Config{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
			os.Exit(1)
		}

		configPath := "./config.toml"
		if len(args) > 0 {
			configPath = args[0]
		}

		log.Info("Validating configuration", logger.Field{Key: "path", Value: configPath})

		cfg, err := config.Load(configPath)
		if err != nil {
			log.Error("Failed to load config", err)
			os.Exit(1)
		}

		errors := cfg.Validate()
		if len(errors) > 0 {
			log.Error("Config validation failed", fmt.Errorf("%d errors", len(errors)))
			for _, e := range errors {
				log.Error("Validation error", e)
			}
			os.Exit(1)
		}

		log.Info("Configuration is valid")
	},
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show [config-file]",
	Short: "Show effective configuration",
	Long:  `Print the effective configuration after defaults and environment expansion.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		configPath := "./config.toml"
		if len(args) > 0 {
			configPath = args[0]
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("workspace: %s\n", cfg.Workspace.Path)
		fmt.Printf("agent.provider: %s\n", cfg.Agent.Provider)
		fmt.Printf("agent.model: %s\n", cfg.Agent.Model)
		fmt.Printf("agent.max_iterations: %d\n", cfg.Agent.MaxIterations)
		fmt.Printf("scheduler.tick_seconds: %d\n", cfg.Scheduler.TickSeconds)
		fmt.Printf("watcher.rescan_seconds: %d\n", cfg.Watcher.RescanSeconds)
		fmt.Printf("bus.capacity: %d\n", cfg.Bus.Capacity)
		fmt.Printf("logging: %s/%s -> %s\n", cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
		fmt.Printf("tools.fetch.enabled: %t\n", cfg.Tools.Fetch.Enabled)
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}
