package schedule

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorage_SaveLoadDelete(t *testing.T) {
	storage := NewStorage(t.TempDir(), testLogger(t))

	at := time.Date(2026, 8, 23, 18, 0, 0, 0, time.UTC)
	task := &Task{
		ID:        "task-1",
		Name:      "reminder",
		Kind:      TaskScheduled,
		Trigger:   Trigger{At: &at},
		Action:    Action{Prompt: "remind me"},
		Enabled:   true,
		NextRun:   &at,
		CreatedAt: time.Now(),
	}
	require.NoError(t, storage.Save(task))

	tasks, err := storage.Load()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "task-1", tasks[0].ID)
	assert.Equal(t, "reminder", tasks[0].Name)
	require.NotNil(t, tasks[0].NextRun)
	assert.True(t, at.Equal(*tasks[0].NextRun))

	require.NoError(t, storage.Delete("task-1"))
	tasks, err = storage.Load()
	require.NoError(t, err)
	assert.Empty(t, tasks)

	// Deleting an absent task is not an error.
	assert.NoError(t, storage.Delete("task-1"))
}

func TestStorage_LoadMissingDir(t *testing.T) {
	storage := NewStorage(filepath.Join(t.TempDir(), "nope"), testLogger(t))

	tasks, err := storage.Load()
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestStorage_LoadSkipsCorruptRecords(t *testing.T) {
	dir := t.TempDir()
	storage := NewStorage(dir, testLogger(t))

	require.NoError(t, storage.Save(&Task{ID: "good", Name: "ok", Kind: TaskEvent, Action: Action{Prompt: "p"}}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{broken"), 0644))

	tasks, err := storage.Load()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "good", tasks[0].ID)
}

func TestResultStore_AppendAndFilter(t *testing.T) {
	store := NewResultStore(t.TempDir(), testLogger(t))

	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Append(Result{TaskID: "a", Success: true, Output: "one", Timestamp: base}))
	require.NoError(t, store.Append(Result{TaskID: "a", Success: false, Error: "boom", Timestamp: base.Add(time.Second)}))
	require.NoError(t, store.Append(Result{TaskID: "b", Success: true, Timestamp: base}))

	all, err := store.List("")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	forA, err := store.List("a")
	require.NoError(t, err)
	assert.Len(t, forA, 2)

	forMissing, err := store.List("zzz")
	require.NoError(t, err)
	assert.Empty(t, forMissing)
}
