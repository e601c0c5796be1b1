// Package coordinator wires the proactive pipeline together: the scheduler
// turns triggers into pending work items, the watcher delivers them, and
// the coordinator injects each item into the agent and records the outcome.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"pulse/internal/agent"
	"pulse/internal/bus"
	"pulse/internal/llm"
	"pulse/internal/logger"
	"pulse/internal/pending"
	"pulse/internal/schedule"
	"pulse/internal/watcher"
)

// Config holds the coordinator's collaborators.
type Config struct {
	Logger    *logger.Logger
	Agent     *agent.Agent
	Scheduler *schedule.Scheduler
	Bus       *bus.Bus
	Store     *pending.Store
	Rescan    time.Duration
}

// Coordinator owns the watcher and translates delivered work items into
// agent activity.
type Coordinator struct {
	logger    *logger.Logger
	agent     *agent.Agent
	scheduler *schedule.Scheduler
	bus       *bus.Bus
	watcher   *watcher.Watcher

	now func() time.Time
}

// New creates a coordinator and its watcher. The watcher is not started;
// call Start.
func New(cfg Config) *Coordinator {
	c := &Coordinator{
		logger:    cfg.Logger,
		agent:     cfg.Agent,
		scheduler: cfg.Scheduler,
		bus:       cfg.Bus,
		now:       time.Now,
	}

	c.watcher = watcher.New(watcher.Config{
		Logger:  cfg.Logger,
		Store:   cfg.Store,
		Handler: c.Handle,
		Rescan:  cfg.Rescan,
	})

	return c
}

// Start arms the scheduler tick and the watcher.
func (c *Coordinator) Start(ctx context.Context) error {
	c.scheduler.Start(ctx)
	if err := c.watcher.Start(ctx); err != nil {
		c.scheduler.Stop()
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	return nil
}

// Stop disarms the watcher first so no new items reach the agent, then
// the scheduler.
func (c *Coordinator) Stop() {
	c.watcher.Stop()
	c.scheduler.Stop()
}

// Watcher returns the coordinator's watcher.
func (c *Coordinator) Watcher() *watcher.Watcher {
	return c.watcher
}

// Handle delivers one work item to the agent: the item's prompt is steered
// into the conversation as a user-role message tagged with the task name,
// then the loop is woken. A Continue that lands while the agent is already
// running is a no-op; the loop picks the steered message up at its next
// checkpoint either way.
func (c *Coordinator) Handle(ctx context.Context, item *pending.WorkItem) error {
	c.logger.InfoCtx(ctx, "delivering work item",
		logger.Field{Key: "task_id", Value: item.TaskID},
		logger.Field{Key: "task_name", Value: item.TaskName})

	c.agent.Steer(llm.Message{
		Role:    llm.RoleUser,
		Content: fmt.Sprintf("[Scheduled task: %s] %s", item.TaskName, item.Prompt),
	})

	output, err := c.agent.Continue(ctx)

	result := schedule.Result{
		TaskID:    item.TaskID,
		Success:   err == nil,
		Output:    output,
		Timestamp: c.now(),
	}
	if err != nil {
		result.Error = err.Error()
	}

	if recordErr := c.scheduler.RecordResult(result); recordErr != nil {
		c.logger.Warn("failed to record task result",
			logger.Field{Key: "task_id", Value: item.TaskID},
			logger.Field{Key: "error", Value: recordErr.Error()})
	}

	if err != nil {
		c.publish(bus.NewEvent(bus.EventItemError, item.TaskID, item.TaskName, err.Error()))
		return fmt.Errorf("agent failed on task %s: %w", item.TaskID, err)
	}

	c.publish(bus.NewEvent(bus.EventItemProcessed, item.TaskID, item.TaskName, ""))
	return nil
}

// publish sends an event, tolerating a nil or unstarted bus.
func (c *Coordinator) publish(event bus.Event) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Publish(event); err != nil {
		c.logger.Warn("failed to publish event",
			logger.Field{Key: "type", Value: event.Type},
			logger.Field{Key: "error", Value: err.Error()})
	}
}
