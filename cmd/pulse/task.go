package main

import (
	"fmt"
	"os"
	"time"

	"pulse/internal/config"
	"pulse/internal/logger"
	"pulse/internal/pending"
	"pulse/internal/schedule"
	"pulse/internal/workspace"

	"github.com/spf13/cobra"
)

var (
	taskConfigPath string
	taskName       string
	taskAt         string
	taskEvery      string
	taskPrompt     string
	taskMaxRuns    int
)

// taskCmd represents the task command
var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage proactive tasks",
	Long: `Create, list and manage the proactive tasks stored in the workspace.
Changes made here are picked up by a running serve process on restart;
the schedule tool inside the agent manages tasks live.`,
}

// taskScheduler builds a scheduler over the configured workspace without
// arming its tick.
func taskScheduler() (*schedule.Scheduler, *schedule.ResultStore, *logger.Logger) {
	configPath := taskConfigPath
	if configPath == "" {
		configPath = "./config.toml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: "warn", Format: "text", Output: "stderr"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ws := workspace.New(cfg.Workspace)
	if err := ws.EnsureLayout(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to prepare workspace: %v\n", err)
		os.Exit(1)
	}

	results := schedule.NewResultStore(ws.ResultsDir(), log)
	scheduler := schedule.NewScheduler(schedule.Config{
		Logger:  log,
		Storage: schedule.NewStorage(ws.TasksDir(), log),
		Results: results,
		Pending: pending.NewStore(ws.PendingDir(), log),
	})
	if err := scheduler.LoadTasks(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load tasks: %v\n", err)
		os.Exit(1)
	}

	return scheduler, results, log
}

// taskAddCmd represents the task add command
var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a scheduled or recurring task",
	Long: `Add a new proactive task. Exactly one of --at (one-shot) or
--every (recurring) must be given.`,
	Run: func(cmd *cobra.Command, args []string) {
		if taskName == "" || taskPrompt == "" {
			fmt.Fprintln(os.Stderr, "--name and --prompt are required")
			os.Exit(1)
		}
		if (taskAt == "") == (taskEvery == "") {
			fmt.Fprintln(os.Stderr, "exactly one of --at or --every is required")
			os.Exit(1)
		}

		scheduler, _, _ := taskScheduler()

		def := schedule.Definition{
			Name:      taskName,
			Action:    schedule.Action{Prompt: taskPrompt},
			MaxRuns:   taskMaxRuns,
			CreatedBy: "user",
		}

		if taskAt != "" {
			at, err := time.Parse(time.RFC3339, taskAt)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Invalid --at value (expected ISO8601): %v\n", err)
				os.Exit(1)
			}
			def.Kind = schedule.TaskScheduled
			def.Trigger = schedule.Trigger{At: &at}
		} else {
			def.Kind = schedule.TaskRecurring
			def.Trigger = schedule.Trigger{Every: taskEvery}
		}

		task, err := scheduler.CreateTask(def)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create task: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Task created: %s\n", task.ID)
		if task.NextRun != nil {
			fmt.Printf("Next run: %s\n", task.NextRun.Format(time.RFC1123))
		}
	},
}

// taskListCmd represents the task list command
var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tasks",
	Run: func(cmd *cobra.Command, args []string) {
		scheduler, _, _ := taskScheduler()

		tasks := scheduler.ListTasks()
		if len(tasks) == 0 {
			fmt.Println("No tasks found.")
			return
		}

		for _, task := range tasks {
			fmt.Printf("%s  %-10s %-20s enabled=%t runs=%d", task.ID, task.Kind, task.Name, task.Enabled, task.RunCount)
			if task.NextRun != nil {
				fmt.Printf("  next=%s", task.NextRun.Format(time.RFC3339))
			}
			fmt.Println()
		}
	},
}

// taskRemoveCmd represents the task remove command
var taskRemoveCmd = &cobra.Command{
	Use:   "remove <task-id>",
	Short: "Remove a task",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		scheduler, _, _ := taskScheduler()

		if err := scheduler.DeleteTask(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to remove task: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Task removed: %s\n", args[0])
	},
}

// taskEnableCmd represents the task enable command
var taskEnableCmd = &cobra.Command{
	Use:   "enable <task-id>",
	Short: "Enable a task",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		scheduler, _, _ := taskScheduler()

		if err := scheduler.ToggleTask(args[0], true); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to enable task: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Task enabled: %s\n", args[0])
	},
}

// taskDisableCmd represents the task disable command
var taskDisableCmd = &cobra.Command{
	Use:   "disable <task-id>",
	Short: "Disable a task",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		scheduler, _, _ := taskScheduler()

		if err := scheduler.ToggleTask(args[0], false); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to disable task: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Task disabled: %s\n", args[0])
	},
}

// taskResultsCmd represents the task results command
var taskResultsCmd = &cobra.Command{
	Use:   "results [task-id]",
	Short: "Show recorded task results",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, results, _ := taskScheduler()

		taskID := ""
		if len(args) > 0 {
			taskID = args[0]
		}

		records, err := results.List(taskID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list results: %v\n", err)
			os.Exit(1)
		}
		if len(records) == 0 {
			fmt.Println("No results found.")
			return
		}

		for _, r := range records {
			status := "ok"
			if !r.Success {
				status = "failed: " + r.Error
			}
			fmt.Printf("%s  %s  %s\n", r.Timestamp.Format(time.RFC3339), r.TaskID, status)
			if r.Output != "" {
				fmt.Printf("    %s\n", r.Output)
			}
		}
	},
}

func init() {
	taskCmd.PersistentFlags().StringVarP(&taskConfigPath, "config", "c", "", "Path to configuration file (default: ./config.toml)")

	taskAddCmd.Flags().StringVar(&taskName, "name", "", "Task name")
	taskAddCmd.Flags().StringVar(&taskAt, "at", "", "One-shot firing time (ISO8601)")
	taskAddCmd.Flags().StringVar(&taskEvery, "every", "", "Recurrence expression (cron syntax)")
	taskAddCmd.Flags().StringVar(&taskPrompt, "prompt", "", "Instruction the agent runs when the task fires")
	taskAddCmd.Flags().IntVar(&taskMaxRuns, "max-runs", 0, "Maximum firings for a recurring task (0 = unlimited)")

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskRemoveCmd)
	taskCmd.AddCommand(taskEnableCmd)
	taskCmd.AddCommand(taskDisableCmd)
	taskCmd.AddCommand(taskResultsCmd)
}
