package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Tool defines the interface that all tools must implement.
// A tool represents a function that can be called by the LLM agent.
type Tool interface {
	// Name returns the unique name of the tool.
	// This name is used to identify the tool in the function calling API.
	Name() string

	// Description returns a human-readable description of what the tool does.
	// This description helps the LLM understand when and how to use the tool.
	Description() string

	// Parameters returns a JSON Schema object describing the tool's input parameters.
	// The schema follows OpenAI function calling format.
	Parameters() map[string]interface{}

	// Execute runs the tool with the provided arguments.
	// args is a JSON-encoded string containing the tool's input parameters.
	Execute(args string) (string, error)
}

// ContextualTool is an optional interface that tools can implement to receive execution context.
// If a tool implements this interface, ExecuteWithContext will be called instead of Execute.
type ContextualTool interface {
	Tool

	// ExecuteWithContext runs the tool with the provided arguments and execution context.
	// The context can be used for cancellation, deadlines, and timeout handling.
	ExecuteWithContext(ctx context.Context, args string) (string, error)
}

// Registry manages the collection of available tools.
// It provides thread-safe operations for registering and retrieving tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry.
// If a tool with the same name already exists, it will be replaced.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("cannot register nil tool")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	r.tools[name] = tool
	return nil
}

// Get retrieves a tool by its name.
// Returns the tool and true if found, nil and false otherwise.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all registered tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })

	return tools
}

// ToSchema converts the registered tools to OpenAI-compatible function definitions.
func (r *Registry) ToSchema() []ToolDefinition {
	schemas := make([]ToolDefinition, 0)
	for _, tool := range r.List() {
		schemas = append(schemas, ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Parameters(),
		})
	}

	return schemas
}

// ToolDefinition represents a tool definition in OpenAI function calling format.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// ToolCall represents a tool call request from the LLM.
type ToolCall struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Arguments is a JSON string containing the tool's input parameters.
	Arguments string `json:"arguments"`
}

// ToolResult represents the result of executing a tool.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	Content    string `json:"content"`
	Error      string `json:"error,omitempty"`
	TimedOut   bool   `json:"timed_out,omitempty"`
}

// ExecutionConfig represents the configuration for tool execution.
type ExecutionConfig struct {
	Timeout        time.Duration // Timeout for tool execution
	DefaultTimeout time.Duration // Default timeout if not specified
}

// DefaultExecutionConfig returns the default execution configuration.
func DefaultExecutionConfig() *ExecutionConfig {
	return &ExecutionConfig{
		DefaultTimeout: 30 * time.Second,
	}
}

// ExecuteToolCall executes a tool call using the provided registry.
func ExecuteToolCall(registry *Registry, tc ToolCall) ToolResult {
	return ExecuteToolCallWithContext(context.Background(), registry, tc, nil)
}

// ExecuteToolCallWithContext executes a tool call with execution context and
// configuration. A tool failure is captured in the result, never returned as
// an error: the agent loop treats it as an observation and keeps going.
func ExecuteToolCallWithContext(ctx context.Context, registry *Registry, tc ToolCall, cfg *ExecutionConfig) ToolResult {
	tool, ok := registry.Get(tc.Name)
	if !ok {
		return ToolResult{
			ToolCallID: tc.ID,
			ToolName:   tc.Name,
			Error:      fmt.Sprintf("tool not found: %s", tc.Name),
		}
	}

	var timeout time.Duration
	if cfg != nil {
		timeout = cfg.Timeout
		if timeout == 0 {
			timeout = cfg.DefaultTimeout
		}
	}

	execCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type toolOutput struct {
		content string
		err     error
	}
	outputCh := make(chan toolOutput, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				outputCh <- toolOutput{err: fmt.Errorf("tool panic: %v", r)}
			}
		}()

		var content string
		var err error
		if ctxTool, ok := tool.(ContextualTool); ok {
			content, err = ctxTool.ExecuteWithContext(execCtx, tc.Arguments)
		} else {
			content, err = tool.Execute(tc.Arguments)
		}
		outputCh <- toolOutput{content: content, err: err}
	}()

	select {
	case out := <-outputCh:
		result := ToolResult{
			ToolCallID: tc.ID,
			ToolName:   tc.Name,
			Content:    out.content,
		}
		if out.err != nil {
			result.Error = out.err.Error()
		}
		return result
	case <-execCtx.Done():
		return ToolResult{
			ToolCallID: tc.ID,
			ToolName:   tc.Name,
			Error:      fmt.Sprintf("tool execution cancelled: %v", execCtx.Err()),
			TimedOut:   execCtx.Err() == context.DeadlineExceeded,
		}
	}
}
