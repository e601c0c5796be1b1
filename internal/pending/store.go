// Package pending provides durable storage for pending work items.
// A work item is the envelope representing one firing of a proactive task,
// written by the scheduler and consumed by the watcher. Each item lives in
// its own JSON file so that an unprocessed firing survives process restarts.
package pending

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"pulse/internal/logger"
)

// WorkItem represents one firing of a task awaiting delivery to the agent.
type WorkItem struct {
	TaskID   string    `json:"task_id"`
	TaskName string    `json:"task_name"`
	Prompt   string    `json:"prompt"`
	FiredAt  time.Time `json:"fired_at"`
}

// Store persists work items as one JSON file per item.
// Filenames embed the fire timestamp and task id, so lexicographic order
// is delivery order and names are unique per firing.
type Store struct {
	dir    string
	logger *logger.Logger
}

// NewStore creates a work item store rooted at dir.
func NewStore(dir string, log *logger.Logger) *Store {
	return &Store{
		dir:    dir,
		logger: log,
	}
}

// Dir returns the directory holding live work items.
func (s *Store) Dir() string {
	return s.dir
}

// Put writes a work item to disk and returns the path of the created file.
func (s *Store) Put(item WorkItem) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create pending directory: %w", err)
	}

	name := fmt.Sprintf("%d_%s.json", item.FiredAt.UnixNano(), item.TaskID)
	path := filepath.Join(s.dir, name)

	data, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal work item: %w", err)
	}

	// Write-then-rename so the item appears atomically: a watcher notified
	// of the final name never observes a partially written file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write work item: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write work item: %w", err)
	}

	s.logger.Debug("work item written",
		logger.Field{Key: "task_id", Value: item.TaskID},
		logger.Field{Key: "path", Value: path})

	return path, nil
}

// List returns the paths of all live work items in time order.
// A missing directory yields an empty list, not an error.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pending directory: %w", err)
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(s.dir, entry.Name()))
	}
	sort.Strings(paths)

	return paths, nil
}

// Read loads and parses the work item at path.
func (s *Store) Read(path string) (*WorkItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var item WorkItem
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("failed to parse work item %s: %w", path, err)
	}

	return &item, nil
}

// Delete removes the work item file at path. Callers distinguish an
// already-gone item via os.IsNotExist on the returned error.
func (s *Store) Delete(path string) error {
	return os.Remove(path)
}
