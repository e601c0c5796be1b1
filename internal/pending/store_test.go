package pending

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pulse/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	return log
}

func TestStore_PutAndRead(t *testing.T) {
	store := NewStore(t.TempDir(), testLogger(t))

	firedAt := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	item := WorkItem{
		TaskID:   "task-1",
		TaskName: "ping",
		Prompt:   "say pong",
		FiredAt:  firedAt,
	}

	path, err := store.Put(item)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d_task-1.json", firedAt.UnixNano()), filepath.Base(path))

	got, err := store.Read(path)
	require.NoError(t, err)
	assert.Equal(t, item.TaskID, got.TaskID)
	assert.Equal(t, item.Prompt, got.Prompt)
	assert.True(t, item.FiredAt.Equal(got.FiredAt))
}

func TestStore_PutLeavesNoIntermediateFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, testLogger(t))

	_, err := store.Put(WorkItem{TaskID: "t", FiredAt: time.Now()})
	require.NoError(t, err)

	// The write-then-rename leaves exactly the final item behind; a
	// watcher listing or notified mid-Put never sees a partial record.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".json"))
}

func TestStore_ListInFireOrder(t *testing.T) {
	store := NewStore(t.TempDir(), testLogger(t))

	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"c", "a", "b"} {
		_, err := store.Put(WorkItem{TaskID: id, FiredAt: base.Add(time.Duration(i) * time.Second)})
		require.NoError(t, err)
	}

	paths, err := store.List()
	require.NoError(t, err)
	require.Len(t, paths, 3)

	var order []string
	for _, path := range paths {
		item, readErr := store.Read(path)
		require.NoError(t, readErr)
		order = append(order, item.TaskID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, order)
}

func TestStore_ListMissingDir(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "does-not-exist"), testLogger(t))

	paths, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestStore_ListSkipsNonItems(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, testLogger(t))

	_, err := store.Put(WorkItem{TaskID: "t", FiredAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	paths, err := store.List()
	require.NoError(t, err)
	assert.Len(t, paths, 1)
}

func TestStore_Delete(t *testing.T) {
	store := NewStore(t.TempDir(), testLogger(t))

	path, err := store.Put(WorkItem{TaskID: "t", FiredAt: time.Now()})
	require.NoError(t, err)

	require.NoError(t, store.Delete(path))

	err = store.Delete(path)
	assert.True(t, os.IsNotExist(err))
}
