package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pulse/internal/agent"
	"pulse/internal/bus"
	"pulse/internal/config"
	"pulse/internal/coordinator"
	"pulse/internal/llm"
	"pulse/internal/logger"
	"pulse/internal/pending"
	"pulse/internal/schedule"
	"pulse/internal/tools"
	"pulse/internal/tools/fetch"
	"pulse/internal/workspace"

	"github.com/spf13/cobra"
)

var (
	serveConfigPath  string
	serveLogLevel    string
	serveInteractive bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Pulse agent (main command)",
	Long: `Start the Pulse agent with the specified configuration.
This initializes all components (logger, event bus, LLM provider, agent,
scheduler, watcher) and handles graceful shutdown.

With --interactive, lines read from stdin are sent to the agent as user
messages while the proactive pipeline keeps running in the background.`,
	Run: serveHandler,
}

func serveHandler(cmd *cobra.Command, args []string) {
	// Load .env file if exists
	if err := config.LoadEnvOptional("./.env"); err != nil {
		fmt.Printf("Failed to load .env file: %v\n", err)
		os.Exit(1)
	}

	configPath := serveConfigPath
	if configPath == "" {
		configPath = "./config.toml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if serveLogLevel != "" {
		cfg.Logging.Level = serveLogLevel
	}

	if errors := cfg.Validate(); len(errors) > 0 {
		fmt.Printf("Configuration validation failed:\n")
		for _, e := range errors {
			fmt.Printf("  - %v\n", e)
		}
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	log.Info("Starting Pulse",
		logger.Field{Key: "version", Value: Version},
		logger.Field{Key: "git_commit", Value: GitCommit},
		logger.Field{Key: "config", Value: configPath},
		logger.Field{Key: "workspace", Value: cfg.Workspace.Path},
		logger.Field{Key: "llm_provider", Value: cfg.Agent.Provider},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Event bus
	eventBus := bus.New(cfg.Bus.Capacity, log)
	if err := eventBus.Start(ctx); err != nil {
		log.Error("Failed to start event bus", err)
		os.Exit(1)
	}

	// LLM provider
	var provider llm.Provider
	switch cfg.Agent.Provider {
	case "openai":
		provider = llm.NewOpenAIProvider(llm.OpenAIConfig{
			APIKey:         cfg.LLM.OpenAI.APIKey,
			BaseURL:        cfg.LLM.OpenAI.BaseURL,
			Model:          cfg.Agent.Model,
			TimeoutSeconds: cfg.LLM.OpenAI.TimeoutSeconds,
		}, log)
		log.Info("OpenAI-compatible LLM provider initialized",
			logger.Field{Key: "base_url", Value: cfg.LLM.OpenAI.BaseURL})
	case "mock":
		provider = llm.NewEchoProvider()
		log.Warn("Mock LLM provider initialized, replies echo the input")
	default:
		log.Error("Unsupported LLM provider", nil,
			logger.Field{Key: "provider", Value: cfg.Agent.Provider})
		os.Exit(1)
	}

	// Agent
	pulseAgent, err := agent.New(agent.Config{
		Provider:      provider,
		Logger:        log,
		SystemPrompt:  cfg.Agent.SystemPrompt,
		Model:         cfg.Agent.Model,
		MaxTokens:     cfg.Agent.MaxTokens,
		Temperature:   cfg.Agent.Temperature,
		MaxIterations: cfg.Agent.MaxIterations,
	})
	if err != nil {
		log.Error("Failed to initialize agent", err)
		os.Exit(1)
	}

	// Workspace layout and durable stores
	ws := workspace.New(cfg.Workspace)
	if err := ws.EnsureLayout(); err != nil {
		log.Error("Failed to prepare workspace", err)
		os.Exit(1)
	}
	pendingStore := pending.NewStore(ws.PendingDir(), log)
	taskStorage := schedule.NewStorage(ws.TasksDir(), log)
	resultStore := schedule.NewResultStore(ws.ResultsDir(), log)

	// Scheduler
	scheduler := schedule.NewScheduler(schedule.Config{
		Logger:  log,
		Bus:     eventBus,
		Storage: taskStorage,
		Results: resultStore,
		Pending: pendingStore,
		Tick:    time.Duration(cfg.Scheduler.TickSeconds) * time.Second,
	})
	if err := scheduler.LoadTasks(); err != nil {
		log.Error("Failed to load persisted tasks", err)
		os.Exit(1)
	}

	// Tools
	if err := pulseAgent.RegisterTool(tools.NewSystemTimeTool(log)); err != nil {
		log.Error("Failed to register system_time tool", err)
		os.Exit(1)
	}
	if err := pulseAgent.RegisterTool(tools.NewScheduleTool(scheduler, log)); err != nil {
		log.Error("Failed to register schedule tool", err)
		os.Exit(1)
	}
	if cfg.Tools.Fetch.Enabled {
		if err := pulseAgent.RegisterTool(fetch.NewFetchTool(cfg.Tools.Fetch, log)); err != nil {
			log.Error("Failed to register web_fetch tool", err)
			os.Exit(1)
		}
		log.Info("Fetch tool registered")
	}

	// Coordinator: scheduler tick plus watcher delivery
	coord := coordinator.New(coordinator.Config{
		Logger:    log,
		Agent:     pulseAgent,
		Scheduler: scheduler,
		Bus:       eventBus,
		Store:     pendingStore,
		Rescan:    time.Duration(cfg.Watcher.RescanSeconds) * time.Second,
	})
	if err := coord.Start(ctx); err != nil {
		log.Error("Failed to start proactive pipeline", err)
		os.Exit(1)
	}

	// Log pipeline events as they happen.
	eventCh := eventBus.Subscribe(ctx)
	go func() {
		for event := range eventCh {
			log.InfoCtx(ctx, "pipeline event",
				logger.Field{Key: "type", Value: event.Type},
				logger.Field{Key: "task_id", Value: event.TaskID},
				logger.Field{Key: "task_name", Value: event.TaskName})
		}
	}()

	if serveInteractive {
		go runREPL(ctx, pulseAgent, log)
	}

	log.Info("Pulse is running")

	sig := <-sigChan
	log.Info("Received shutdown signal",
		logger.Field{Key: "signal", Value: sig.String()})

	log.Info("Shutting down Pulse...")
	cancel()

	coord.Stop()
	if err := eventBus.Stop(); err != nil {
		log.Error("Failed to stop event bus", err)
		os.Exit(1)
	}

	log.Info("Pulse stopped gracefully")
	os.Exit(0)
}

// runREPL reads user lines from stdin and runs each through the agent.
func runREPL(ctx context.Context, a *agent.Agent, log *logger.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Type a message and press enter. Ctrl+C to quit.")

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/clear" {
			a.Clear()
			fmt.Println("Conversation cleared.")
			continue
		}

		answer, err := a.Run(ctx, line)
		if err != nil {
			log.Error("agent run failed", err)
			fmt.Printf("Error: %v\n", err)
			continue
		}
		fmt.Println(answer)
	}
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "Path to configuration file (default: ./config.toml)")
	serveCmd.Flags().StringVarP(&serveLogLevel, "log-level", "l", "", "Override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVarP(&serveInteractive, "interactive", "i", false, "Read user messages from stdin")
}
