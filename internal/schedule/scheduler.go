package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"pulse/internal/bus"
	"pulse/internal/logger"
	"pulse/internal/pending"
)

const (
	// DefaultTick is the default interval between due-task evaluations.
	DefaultTick = 10 * time.Second
)

var (
	// ErrTaskNotFound is returned when a task id does not exist.
	ErrTaskNotFound = errors.New("task not found")
)

// Config holds the scheduler's collaborators and settings.
type Config struct {
	Logger  *logger.Logger
	Bus     *bus.Bus
	Storage *Storage
	Results *ResultStore
	Pending *pending.Store
	Tick    time.Duration
}

// Scheduler owns the durable set of task definitions and evaluates due
// tasks on a fixed tick, emitting one pending work item per firing.
type Scheduler struct {
	mu      sync.RWMutex
	logger  *logger.Logger
	bus     *bus.Bus
	storage *Storage
	results *ResultStore
	pending *pending.Store

	tasks map[string]*Task

	tick    time.Duration
	ticker  *time.Ticker
	ctx     context.Context
	cancel  context.CancelFunc
	started bool

	now func() time.Time
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(cfg Config) *Scheduler {
	tick := cfg.Tick
	if tick == 0 {
		tick = DefaultTick
	}

	return &Scheduler{
		logger:  cfg.Logger,
		bus:     cfg.Bus,
		storage: cfg.Storage,
		results: cfg.Results,
		pending: cfg.Pending,
		tasks:   make(map[string]*Task),
		tick:    tick,
		now:     time.Now,
	}
}

// LoadTasks loads persisted task definitions into memory.
// Per-record load failures are already skipped by the storage layer.
func (s *Scheduler) LoadTasks() error {
	tasks, err := s.storage.Load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, task := range tasks {
		s.tasks[task.ID] = task
	}

	s.logger.Info("tasks loaded", logger.Field{Key: "count", Value: len(tasks)})
	return nil
}

// Start arms the periodic tick. Calling Start while started is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true
	s.ticker = time.NewTicker(s.tick)

	go func() {
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-s.ticker.C:
				s.Tick(s.now())
			}
		}
	}()

	s.logger.Info("scheduler started", logger.Field{Key: "tick", Value: s.tick.String()})
}

// Stop disarms the tick. Calling Stop while stopped is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.cancel()
	s.ticker.Stop()
	s.started = false

	s.logger.Info("scheduler stopped")
}

// IsStarted returns true if the scheduler tick is armed.
func (s *Scheduler) IsStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// CreateTask validates a definition, assigns a fresh id and creation time,
// computes the initial next-run instant, persists the task and returns it.
func (s *Scheduler) CreateTask(def Definition) (*Task, error) {
	now := s.now()

	task := &Task{
		ID:        uuid.NewString(),
		Name:      def.Name,
		Kind:      def.Kind,
		Trigger:   def.Trigger,
		Action:    def.Action,
		Enabled:   true,
		MaxRuns:   def.MaxRuns,
		CreatedAt: now,
		CreatedBy: def.CreatedBy,
	}

	if task.Name == "" {
		return nil, fmt.Errorf("task name is required")
	}
	if task.Action.Prompt == "" {
		return nil, fmt.Errorf("task prompt is required")
	}

	switch def.Kind {
	case TaskScheduled:
		if def.Trigger.At == nil {
			return nil, fmt.Errorf("scheduled task requires trigger.at")
		}
		at := *def.Trigger.At
		task.NextRun = &at

	case TaskRecurring:
		rec, err := ParseRecurrence(def.Trigger.Every)
		if err != nil {
			return nil, err
		}
		next := rec.Next(now)
		if next.IsZero() {
			return nil, fmt.Errorf("recurrence %q never fires", def.Trigger.Every)
		}
		task.NextRun = &next

	case TaskEvent:
		// Dormant until signalled.

	default:
		return nil, fmt.Errorf("invalid task kind: %s", def.Kind)
	}

	// Persist and return a snapshot: once the task is in the map a
	// concurrent tick may mutate its run bookkeeping.
	s.mu.Lock()
	s.tasks[task.ID] = task
	copied := *task
	s.mu.Unlock()

	if err := s.storage.Save(&copied); err != nil {
		return nil, err
	}

	s.publish(bus.NewEvent(bus.EventTaskCreated, copied.ID, copied.Name, string(copied.Kind)))

	s.logger.Info("task created",
		logger.Field{Key: "task_id", Value: copied.ID},
		logger.Field{Key: "name", Value: copied.Name},
		logger.Field{Key: "kind", Value: copied.Kind})

	return &copied, nil
}

// ListTasks returns a snapshot of all tasks.
func (s *Scheduler) ListTasks() []*Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]*Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		copied := *task
		tasks = append(tasks, &copied)
	}
	return tasks
}

// GetTask returns a copy of the task with the given id.
func (s *Scheduler) GetTask(id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	copied := *task
	return &copied, nil
}

// DeleteTask removes a task from memory and storage.
func (s *Scheduler) DeleteTask(id string) error {
	s.mu.Lock()
	_, ok := s.tasks[id]
	if ok {
		delete(s.tasks, id)
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	if err := s.storage.Delete(id); err != nil {
		return err
	}

	s.logger.Info("task deleted", logger.Field{Key: "task_id", Value: id})
	return nil
}

// ToggleTask enables or disables a task and persists the change.
func (s *Scheduler) ToggleTask(id string, enabled bool) error {
	s.mu.Lock()
	task, ok := s.tasks[id]
	var copied Task
	if ok {
		task.Enabled = enabled
		copied = *task
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	if err := s.storage.Save(&copied); err != nil {
		return err
	}

	s.logger.Info("task toggled",
		logger.Field{Key: "task_id", Value: id},
		logger.Field{Key: "enabled", Value: enabled})
	return nil
}

// SignalTask arms an event task to fire on the next tick.
func (s *Scheduler) SignalTask(id string) error {
	now := s.now()

	s.mu.Lock()
	task, ok := s.tasks[id]
	var copied Task
	if ok {
		if task.Kind == TaskEvent {
			task.NextRun = &now
		}
		copied = *task
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if copied.Kind != TaskEvent {
		return fmt.Errorf("task %s is not an event task", id)
	}

	return s.storage.Save(&copied)
}

// Tick evaluates all tasks due at the given instant and fires them.
// Exposed so tests and the serve loop can force an evaluation pass.
func (s *Scheduler) Tick(now time.Time) {
	due := s.collectDue(now)

	for _, task := range due {
		s.fire(task, now)
	}
}

// collectDue advances bookkeeping for every due task under the lock and
// returns copies to fire. NextRun is recomputed before the work item is
// written so a crash mid-fire cannot re-arm a one-shot.
func (s *Scheduler) collectDue(now time.Time) []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*Task
	for _, task := range s.tasks {
		if !task.Enabled || task.NextRun == nil || task.NextRun.After(now) {
			continue
		}
		if task.Exhausted() {
			continue
		}

		task.RunCount++
		fired := now
		task.LastRun = &fired

		switch task.Kind {
		case TaskRecurring:
			if rec, err := ParseRecurrence(task.Trigger.Every); err == nil && !task.Exhausted() {
				next := rec.Next(now)
				task.NextRun = &next
			} else {
				task.NextRun = nil
			}
		default:
			// One-shot and event tasks go dormant after firing.
			task.NextRun = nil
		}

		copied := *task
		due = append(due, &copied)
	}

	return due
}

// fire persists the updated task and emits one pending work item.
func (s *Scheduler) fire(task *Task, now time.Time) {
	if err := s.storage.Save(task); err != nil {
		s.logger.Error("failed to persist fired task", err,
			logger.Field{Key: "task_id", Value: task.ID})
	}

	item := pending.WorkItem{
		TaskID:   task.ID,
		TaskName: task.Name,
		Prompt:   task.Action.Prompt,
		FiredAt:  now,
	}
	if _, err := s.pending.Put(item); err != nil {
		s.logger.Error("failed to write pending work item", err,
			logger.Field{Key: "task_id", Value: task.ID})
		return
	}

	s.publish(bus.NewEvent(bus.EventTaskFired, task.ID, task.Name, ""))

	s.logger.Info("task fired",
		logger.Field{Key: "task_id", Value: task.ID},
		logger.Field{Key: "name", Value: task.Name},
		logger.Field{Key: "run_count", Value: task.RunCount})
}

// RecordResult appends an immutable record of one firing's outcome.
func (s *Scheduler) RecordResult(result Result) error {
	return s.results.Append(result)
}

// publish sends an event, tolerating an unstarted or full bus.
func (s *Scheduler) publish(event bus.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(event); err != nil {
		s.logger.Warn("failed to publish event",
			logger.Field{Key: "type", Value: event.Type},
			logger.Field{Key: "error", Value: err.Error()})
	}
}
