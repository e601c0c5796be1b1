package tools

import (
	"context"
	"errors"
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

// stubTool is a configurable tool for registry and execution tests.
type stubTool struct {
	name    string
	execute func(args string) (string, error)
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub" }
func (s *stubTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}
func (s *stubTool) Execute(args string) (string, error) {
	return s.execute(args)
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()

	err := r.Register(&stubTool{name: "alpha", execute: func(string) (string, error) { return "a", nil }})
	require.NoError(t, err)

	tool, ok := r.Get("alpha")
	assert.True(t, ok)
	assert.Equal(t, "alpha", tool.Name())

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_RejectsInvalid(t *testing.T) {
	r := NewRegistry()

	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(&stubTool{name: ""}))
}

func TestRegistry_ListSortedByName(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Register(&stubTool{name: name, execute: func(string) (string, error) { return "", nil }}))
	}

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, "alpha", list[0].Name())
	assert.Equal(t, "mid", list[1].Name())
	assert.Equal(t, "zeta", list[2].Name())
}

func TestExecuteToolCall_NotFound(t *testing.T) {
	r := NewRegistry()

	result := ExecuteToolCall(r, ToolCall{ID: "1", Name: "nope"})
	assert.Contains(t, result.Error, "tool not found")
	assert.Equal(t, "1", result.ToolCallID)
}

func TestExecuteToolCall_Error(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubTool{
		name:    "fail",
		execute: func(string) (string, error) { return "", errors.New("boom") },
	}))

	result := ExecuteToolCall(r, ToolCall{ID: "1", Name: "fail"})
	assert.Equal(t, "boom", result.Error)
	assert.False(t, result.TimedOut)
}

func TestExecuteToolCall_PanicRecovered(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubTool{
		name:    "panicky",
		execute: func(string) (string, error) { panic("broken") },
	}))

	result := ExecuteToolCall(r, ToolCall{ID: "1", Name: "panicky"})
	assert.Contains(t, result.Error, "tool panic")
}

func TestExecuteToolCallWithContext_Timeout(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubTool{
		name: "slow",
		execute: func(string) (string, error) {
			time.Sleep(time.Second)
			return "too late", nil
		},
	}))

	cfg := &ExecutionConfig{Timeout: 20 * time.Millisecond}
	result := ExecuteToolCallWithContext(context.Background(), r, ToolCall{ID: "1", Name: "slow"}, cfg)
	assert.True(t, result.TimedOut)
	assert.Contains(t, result.Error, "cancelled")
}

func TestSystemTimeTool(t *testing.T) {
	tool := NewSystemTimeTool(testLogger(t))
	fixed := time.Date(2026, 8, 23, 12, 30, 0, 0, time.UTC)
	tool.now = func() time.Time { return fixed }

	out, err := tool.Execute("{}")
	require.NoError(t, err)
	assert.Contains(t, out, "RFC3339:")
	assert.Contains(t, out, "Human readable:")
	assert.Contains(t, out, "2026")
}
