package tools

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"pulse/internal/logger"
	"pulse/internal/schedule"
)

// TaskManager is the subset of the scheduler the schedule tool needs.
type TaskManager interface {
	CreateTask(def schedule.Definition) (*schedule.Task, error)
	ListTasks() []*schedule.Task
	DeleteTask(id string) error
	ToggleTask(id string, enabled bool) error
}

// ScheduleTool lets the agent manage its own scheduled and recurring tasks.
type ScheduleTool struct {
	manager TaskManager
	logger  *logger.Logger
}

// ScheduleArgs represents the arguments for the schedule tool.
type ScheduleArgs struct {
	Action  string `json:"action"`   // "add_scheduled", "add_recurring", "remove", "list", "enable", "disable"
	Name    string `json:"name"`     // Human-readable task name
	At      string `json:"at"`       // ISO8601 datetime for one-shot tasks
	Every   string `json:"every"`    // Cron expression for recurring tasks
	Prompt  string `json:"prompt"`   // Instruction handed to the agent when the task fires
	MaxRuns int    `json:"max_runs"` // Optional firing cap, 0 = unlimited
	TaskID  string `json:"task_id"`  // Task ID for remove/enable/disable
}

// NewScheduleTool creates a new ScheduleTool instance.
func NewScheduleTool(manager TaskManager, log *logger.Logger) *ScheduleTool {
	return &ScheduleTool{
		manager: manager,
		logger:  log,
	}
}

// Name returns the tool name.
func (t *ScheduleTool) Name() string {
	return "schedule"
}

// Description returns a description of what the tool does.
func (t *ScheduleTool) Description() string {
	return "Manages scheduled tasks. Supports creating one-shot tasks at a specific time, recurring tasks on a cron schedule, listing tasks, enabling, disabling and removing them."
}

// Parameters returns the JSON Schema for the tool's parameters.
func (t *ScheduleTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"description": "Action to perform: 'add_scheduled' to create a one-shot task, 'add_recurring' to create a recurring task, 'list' to show all tasks, 'remove' to delete a task, 'enable'/'disable' to toggle one.",
				"enum":        []string{"add_scheduled", "add_recurring", "remove", "list", "enable", "disable"},
			},
			"name": map[string]any{
				"type":        "string",
				"description": "Short human-readable task name. Required for add actions.",
			},
			"at": map[string]any{
				"type":        "string",
				"description": "ISO8601 datetime for one-shot execution (e.g., '2026-08-23T18:00:00Z'). Required for 'add_scheduled'.",
			},
			"every": map[string]any{
				"type":        "string",
				"description": "Cron expression defining the recurrence (e.g., '*/5 * * * *' for every 5 minutes). Required for 'add_recurring'.",
			},
			"prompt": map[string]any{
				"type":        "string",
				"description": "Instruction the agent executes when the task fires. Required for add actions.",
			},
			"max_runs": map[string]any{
				"type":        "integer",
				"description": "Maximum number of firings for a recurring task. Omit or 0 for unlimited.",
			},
			"task_id": map[string]any{
				"type":        "string",
				"description": "Task ID. Required for 'remove', 'enable' and 'disable'.",
			},
		},
		"required": []string{"action"},
	}
}

// Execute executes the schedule tool.
// args is a JSON-encoded string containing the tool's input parameters.
func (t *ScheduleTool) Execute(args string) (string, error) {
	var params ScheduleArgs
	if err := json.Unmarshal([]byte(args), &params); err != nil {
		return "", fmt.Errorf("failed to parse schedule arguments: %w", err)
	}

	switch params.Action {
	case "add_scheduled":
		return t.addScheduled(params)
	case "add_recurring":
		return t.addRecurring(params)
	case "remove":
		return t.removeTask(params)
	case "list":
		return t.listTasks()
	case "enable":
		return t.toggleTask(params, true)
	case "disable":
		return t.toggleTask(params, false)
	default:
		return "", fmt.Errorf("invalid action: %s. Valid actions: add_scheduled, add_recurring, remove, list, enable, disable", params.Action)
	}
}

// addScheduled creates a one-shot task firing at a specific instant.
func (t *ScheduleTool) addScheduled(params ScheduleArgs) (string, error) {
	if params.At == "" {
		return "", fmt.Errorf("at parameter is required for add_scheduled action")
	}

	at, err := time.Parse(time.RFC3339, params.At)
	if err != nil {
		return "", fmt.Errorf("invalid at format (expected ISO8601): %w", err)
	}

	task, err := t.manager.CreateTask(schedule.Definition{
		Name:      params.Name,
		Kind:      schedule.TaskScheduled,
		Trigger:   schedule.Trigger{At: &at},
		Action:    schedule.Action{Prompt: params.Prompt},
		CreatedBy: "schedule_tool",
	})
	if err != nil {
		return "", fmt.Errorf("failed to add scheduled task: %w", err)
	}

	t.logger.Info("scheduled task added",
		logger.Field{Key: "task_id", Value: task.ID},
		logger.Field{Key: "at", Value: at})

	return fmt.Sprintf("Scheduled task added\n   Task ID: %s\n   Name: %s\n   Fires at: %s",
		task.ID, task.Name, at.Format(time.RFC1123)), nil
}

// addRecurring creates a task firing on a cron schedule.
func (t *ScheduleTool) addRecurring(params ScheduleArgs) (string, error) {
	if params.Every == "" {
		return "", fmt.Errorf("every parameter is required for add_recurring action")
	}

	task, err := t.manager.CreateTask(schedule.Definition{
		Name:      params.Name,
		Kind:      schedule.TaskRecurring,
		Trigger:   schedule.Trigger{Every: params.Every},
		Action:    schedule.Action{Prompt: params.Prompt},
		MaxRuns:   params.MaxRuns,
		CreatedBy: "schedule_tool",
	})
	if err != nil {
		return "", fmt.Errorf("failed to add recurring task: %w", err)
	}

	t.logger.Info("recurring task added",
		logger.Field{Key: "task_id", Value: task.ID},
		logger.Field{Key: "every", Value: params.Every})

	next := "unknown"
	if task.NextRun != nil {
		next = task.NextRun.Format(time.RFC1123)
	}

	return fmt.Sprintf("Recurring task added\n   Task ID: %s\n   Name: %s\n   Schedule: %s\n   Next run: %s",
		task.ID, task.Name, params.Every, next), nil
}

// removeTask deletes a task.
func (t *ScheduleTool) removeTask(params ScheduleArgs) (string, error) {
	if params.TaskID == "" {
		return "", fmt.Errorf("task_id parameter is required for remove action")
	}

	if err := t.manager.DeleteTask(params.TaskID); err != nil {
		return "", fmt.Errorf("failed to remove task: %w", err)
	}

	t.logger.Info("task removed", logger.Field{Key: "task_id", Value: params.TaskID})

	return fmt.Sprintf("Task removed\n   Task ID: %s", params.TaskID), nil
}

// toggleTask enables or disables a task.
func (t *ScheduleTool) toggleTask(params ScheduleArgs, enabled bool) (string, error) {
	if params.TaskID == "" {
		return "", fmt.Errorf("task_id parameter is required for enable/disable actions")
	}

	if err := t.manager.ToggleTask(params.TaskID, enabled); err != nil {
		return "", fmt.Errorf("failed to toggle task: %w", err)
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	return fmt.Sprintf("Task %s\n   Task ID: %s", state, params.TaskID), nil
}

// listTasks lists all tasks.
func (t *ScheduleTool) listTasks() (string, error) {
	tasks := t.manager.ListTasks()

	if len(tasks) == 0 {
		return "No scheduled tasks found.", nil
	}

	var result strings.Builder
	result.WriteString("Scheduled Tasks:\n---------------\n")
	for _, task := range tasks {
		result.WriteString(fmt.Sprintf("Task ID: %s\n", task.ID))
		result.WriteString(fmt.Sprintf("Name: %s\n", task.Name))
		result.WriteString(fmt.Sprintf("Kind: %s\n", task.Kind))
		if task.Trigger.At != nil {
			result.WriteString(fmt.Sprintf("At: %s\n", task.Trigger.At.Format(time.RFC1123)))
		}
		if task.Trigger.Every != "" {
			result.WriteString(fmt.Sprintf("Every: %s\n", task.Trigger.Every))
		}
		result.WriteString(fmt.Sprintf("Enabled: %t\n", task.Enabled))
		result.WriteString(fmt.Sprintf("Runs: %d\n", task.RunCount))
		if task.NextRun != nil {
			result.WriteString(fmt.Sprintf("Next run: %s\n", task.NextRun.Format(time.RFC1123)))
		}
		result.WriteString("---------------\n")
	}

	return result.String(), nil
}
