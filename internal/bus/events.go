// Package bus provides the runtime's event surface: a small asynchronous
// pub/sub bus carrying lifecycle events about proactive tasks and work item
// delivery. External layers (UIs, notification adapters) subscribe; the
// scheduler, watcher and coordinator publish.
package bus

import (
	"encoding/json"
	"time"
)

// EventType represents the type of a lifecycle event.
type EventType string

const (
	// EventTaskCreated is published when a new task definition is persisted.
	EventTaskCreated EventType = "task_created"
	// EventTaskFired is published when the scheduler fires a due task.
	EventTaskFired EventType = "task_fired"
	// EventItemProcessed is published after a work item has been delivered.
	EventItemProcessed EventType = "item_processed"
	// EventItemError is published when delivering a work item fails.
	EventItemError EventType = "item_error"
)

// Event represents a lifecycle event in the proactive pipeline.
type Event struct {
	Type      EventType `json:"type"`
	TaskID    string    `json:"task_id,omitempty"`
	TaskName  string    `json:"task_name,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates a new Event with the current timestamp.
func NewEvent(eventType EventType, taskID, taskName, detail string) Event {
	return Event{
		Type:      eventType,
		TaskID:    taskID,
		TaskName:  taskName,
		Detail:    detail,
		Timestamp: time.Now(),
	}
}

// ToJSON serializes the Event to JSON bytes.
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON deserializes the Event from JSON bytes.
func (e *Event) FromJSON(data []byte) error {
	return json.Unmarshal(data, e)
}
