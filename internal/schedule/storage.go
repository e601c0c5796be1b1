package schedule

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pulse/internal/logger"
)

// Storage persists task definitions, one JSON file per task keyed by id.
type Storage struct {
	dir    string
	logger *logger.Logger
}

// NewStorage creates a task storage rooted at dir.
func NewStorage(dir string, log *logger.Logger) *Storage {
	return &Storage{
		dir:    dir,
		logger: log,
	}
}

// taskPath returns the file path for a task id.
func (s *Storage) taskPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Load reads all persisted tasks. A record that fails to load is logged
// and skipped; it does not abort loading the rest.
func (s *Storage) Load() ([]*Task, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tasks directory: %w", err)
	}

	var tasks []*Task
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Error("failed to read task file, skipping", err,
				logger.Field{Key: "path", Value: path})
			continue
		}

		var task Task
		if err := json.Unmarshal(data, &task); err != nil {
			s.logger.Error("failed to parse task file, skipping", err,
				logger.Field{Key: "path", Value: path})
			continue
		}

		tasks = append(tasks, &task)
	}

	return tasks, nil
}

// Save persists a task, creating the directory if needed.
func (s *Storage) Save(task *Task) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create tasks directory: %w", err)
	}

	data, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal task %s: %w", task.ID, err)
	}

	// Write-then-rename so concurrent saves of the same task settle on one
	// complete record instead of interleaving.
	tmp, err := os.CreateTemp(s.dir, task.ID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write task %s: %w", task.ID, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write task %s: %w", task.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write task %s: %w", task.ID, err)
	}
	if err := os.Rename(tmp.Name(), s.taskPath(task.ID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write task %s: %w", task.ID, err)
	}

	return nil
}

// Delete removes the persisted task with the given id.
// Deleting a task that is not on disk is not an error.
func (s *Storage) Delete(id string) error {
	err := os.Remove(s.taskPath(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	return nil
}

// ResultStore appends immutable task result records, one JSON file per
// result keyed by task id and timestamp.
type ResultStore struct {
	dir    string
	logger *logger.Logger
}

// NewResultStore creates a result store rooted at dir.
func NewResultStore(dir string, log *logger.Logger) *ResultStore {
	return &ResultStore{
		dir:    dir,
		logger: log,
	}
}

// Append writes a result record. Results are never mutated after creation.
func (r *ResultStore) Append(result Result) error {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}

	name := fmt.Sprintf("%s_%d.json", result.TaskID, result.Timestamp.UnixNano())
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := os.WriteFile(filepath.Join(r.dir, name), data, 0644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	return nil
}

// List returns all recorded results for a task id, or all results when
// id is empty.
func (r *ResultStore) List(taskID string) ([]Result, error) {
	entries, err := os.ReadDir(r.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read results directory: %w", err)
	}

	var results []Result
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if taskID != "" && !strings.HasPrefix(entry.Name(), taskID+"_") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(r.dir, entry.Name()))
		if err != nil {
			r.logger.Error("failed to read result file, skipping", err,
				logger.Field{Key: "file", Value: entry.Name()})
			continue
		}

		var result Result
		if err := json.Unmarshal(data, &result); err != nil {
			r.logger.Error("failed to parse result file, skipping", err,
				logger.Field{Key: "file", Value: entry.Name()})
			continue
		}
		results = append(results, result)
	}

	return results, nil
}
