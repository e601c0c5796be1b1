// Package workspace manages the on-disk layout of a Pulse workspace.
// The workspace is the root directory holding the runtime's durable state:
//   - tasks/: persisted task definitions
//   - pending/: work items awaiting delivery
//   - results/: immutable firing outcomes
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"pulse/internal/config"
)

const (
	// SubdirTasks holds persisted task definitions.
	SubdirTasks = "tasks"
	// SubdirPending holds work items awaiting delivery.
	SubdirPending = "pending"
	// SubdirResults holds immutable firing outcomes.
	SubdirResults = "results"
)

// Workspace represents a Pulse workspace with path management capabilities.
type Workspace struct {
	path     string // Expanded workspace path
	basePath string // Original path from config (may contain ~)
}

// New creates a new Workspace from the given configuration.
// The path from config is stored as-is in basePath and expanded in path.
func New(cfg config.WorkspaceConfig) *Workspace {
	return &Workspace{
		path:     expandHome(cfg.Path),
		basePath: cfg.Path,
	}
}

// Path returns the expanded workspace path.
func (w *Workspace) Path() string {
	return w.path
}

// BasePath returns the original path from config (may contain ~).
func (w *Workspace) BasePath() string {
	return w.basePath
}

// TasksDir returns the directory holding persisted task definitions.
func (w *Workspace) TasksDir() string {
	return w.Subpath(SubdirTasks)
}

// PendingDir returns the directory holding pending work items.
func (w *Workspace) PendingDir() string {
	return w.Subpath(SubdirPending)
}

// ResultsDir returns the directory holding task results.
func (w *Workspace) ResultsDir() string {
	return w.Subpath(SubdirResults)
}

// Subpath returns a path for a workspace subdirectory.
func (w *Workspace) Subpath(name string) string {
	return filepath.Join(w.path, name)
}

// EnsureDir creates the workspace directory if it doesn't exist.
func (w *Workspace) EnsureDir() error {
	if w.path == "" {
		return fmt.Errorf("workspace path is empty")
	}

	info, err := os.Stat(w.path)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("workspace path exists but is not a directory: %s", w.path)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("failed to access workspace path %s: %w", w.path, err)
	}

	if err := os.MkdirAll(w.path, 0755); err != nil {
		return fmt.Errorf("failed to create workspace directory %s: %w", w.path, err)
	}

	return nil
}

// EnsureSubpath creates a subdirectory within the workspace if it doesn't exist.
func (w *Workspace) EnsureSubpath(name string) error {
	if err := w.EnsureDir(); err != nil {
		return fmt.Errorf("failed to ensure workspace: %w", err)
	}

	if name == "" {
		return fmt.Errorf("subdirectory name is empty")
	}

	subpath := w.Subpath(name)

	info, err := os.Stat(subpath)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("subdirectory path exists but is not a directory: %s", subpath)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("failed to access subdirectory %s: %w", subpath, err)
	}

	if err := os.MkdirAll(subpath, 0755); err != nil {
		return fmt.Errorf("failed to create subdirectory %s: %w", subpath, err)
	}

	return nil
}

// EnsureLayout creates the workspace and all standard subdirectories.
func (w *Workspace) EnsureLayout() error {
	for _, name := range []string{SubdirTasks, SubdirPending, SubdirResults} {
		if err := w.EnsureSubpath(name); err != nil {
			return err
		}
	}
	return nil
}

// expandHome expands a leading ~ to the user's home directory.
func expandHome(path string) string {
	if len(path) > 0 && path[0] == '~' && (len(path) == 1 || path[1] == '/') {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if len(path) == 1 {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
