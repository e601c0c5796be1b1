// Package schedule provides the durable task store and the periodic
// evaluator that turns time-based triggers into pending work items.
// Tasks are persisted one JSON file per task; every firing produces one
// work item in the pending store for the watcher to deliver.
package schedule

import (
	"time"
)

// TaskKind represents the trigger style of a task.
type TaskKind string

const (
	// TaskScheduled is a one-shot task firing at an absolute time.
	TaskScheduled TaskKind = "scheduled"
	// TaskRecurring is a task firing on a recurrence expression.
	TaskRecurring TaskKind = "recurring"
	// TaskEvent is a task fired by an external signal.
	TaskEvent TaskKind = "event"
)

// Trigger describes when a task becomes due.
type Trigger struct {
	// At is the absolute firing instant for scheduled tasks.
	At *time.Time `json:"at,omitempty"`
	// Every is the recurrence expression for recurring tasks,
	// e.g. "*/5 * * * *".
	Every string `json:"every,omitempty"`
}

// Action describes what a firing injects into the agent.
type Action struct {
	// Prompt is injected as if it came from the user.
	Prompt string `json:"prompt"`
	// AllowedTools optionally restricts which tools the firing may use.
	AllowedTools []string `json:"allowed_tools,omitempty"`
}

// Task is a durable unit of proactive work.
type Task struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Kind    TaskKind `json:"kind"`
	Trigger Trigger  `json:"trigger"`
	Action  Action   `json:"action"`
	Enabled bool     `json:"enabled"`

	// Run bookkeeping. NextRun, when present, is the earliest future
	// instant the task is eligible to fire; nil means the task is dormant.
	LastRun  *time.Time `json:"last_run,omitempty"`
	NextRun  *time.Time `json:"next_run,omitempty"`
	RunCount int        `json:"run_count"`
	MaxRuns  int        `json:"max_runs,omitempty"` // 0 means unlimited

	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by,omitempty"` // "user" or "agent"
}

// Exhausted reports whether the task has reached its run limit.
func (t *Task) Exhausted() bool {
	return t.MaxRuns > 0 && t.RunCount >= t.MaxRuns
}

// Definition holds the caller-supplied fields for creating a task.
// ID, creation time and initial NextRun are computed by the scheduler.
type Definition struct {
	Name      string
	Kind      TaskKind
	Trigger   Trigger
	Action    Action
	MaxRuns   int
	CreatedBy string
}

// Result is an immutable record of one firing's outcome.
type Result struct {
	TaskID    string    `json:"task_id"`
	Success   bool      `json:"success"`
	Output    string    `json:"output,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
