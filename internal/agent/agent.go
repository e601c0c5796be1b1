// Package agent implements the reasoning loop that owns one conversation.
// The agent drives a Reasoning -> Acting -> Observation cycle against an LLM
// provider, executes requested tools, and accepts externally steered
// messages that are injected with priority at the loop's next checkpoint.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"pulse/internal/llm"
	"pulse/internal/logger"
	"pulse/internal/tools"
)

// ErrMaxIterations is returned when a run exceeds the configured loop bound
// without reaching a final answer.
var ErrMaxIterations = errors.New("reached maximum loop iterations")

// Config holds configuration for the agent.
type Config struct {
	Provider      llm.Provider
	Logger        *logger.Logger
	SystemPrompt  string
	Model         string
	MaxTokens     int
	Temperature   float64
	MaxIterations int
	ToolTimeout   *tools.ExecutionConfig
}

// Agent owns one conversation: the ordered message log, the FIFO steering
// queue and the running flag. The log and queue are mutated only by the
// agent's own methods; collaborators interact through Run, Steer, Continue
// and IsIdle.
type Agent struct {
	mu   sync.Mutex
	cond *sync.Cond

	provider llm.Provider
	logger   *logger.Logger
	tools    *tools.Registry
	config   Config

	systemPrompt string // base prompt without the tool listing
	messages     []llm.Message
	steering     []llm.Message
	running      bool
}

// New creates a new agent with an empty tool registry and a message log
// holding only the system message.
func New(cfg Config) (*Agent, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("LLM provider cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = 20
	}
	if cfg.ToolTimeout == nil {
		cfg.ToolTimeout = tools.DefaultExecutionConfig()
	}

	a := &Agent{
		provider:     cfg.Provider,
		logger:       cfg.Logger,
		tools:        tools.NewRegistry(),
		config:       cfg,
		systemPrompt: cfg.SystemPrompt,
	}
	a.cond = sync.NewCond(&a.mu)
	a.messages = []llm.Message{{Role: llm.RoleSystem, Content: a.renderSystemPrompt()}}

	return a, nil
}

// Run appends a user message and drives the loop to a final answer.
// If a run is already active it waits until the agent is idle; the agent
// signals idleness explicitly, so waiters block on a condition variable
// rather than polling.
func (a *Agent) Run(ctx context.Context, userText string) (string, error) {
	a.mu.Lock()
	for a.running {
		a.cond.Wait()
	}
	a.running = true
	a.messages = append(a.messages, llm.Message{Role: llm.RoleUser, Content: userText})
	a.mu.Unlock()

	return a.loop(ctx)
}

// Continue wakes an idle agent without new user input, typically after a
// Steer. If the agent is already running it is a no-op returning an empty
// string, never an error.
func (a *Agent) Continue(ctx context.Context) (string, error) {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return "", nil
	}
	a.running = true
	a.mu.Unlock()

	return a.loop(ctx)
}

// Steer appends a message to the steering queue. It never blocks and never
// inspects run state; the loop drains the queue in FIFO order at its next
// checkpoint, before issuing another model call.
func (a *Agent) Steer(msg llm.Message) {
	a.mu.Lock()
	a.steering = append(a.steering, msg)
	a.mu.Unlock()

	a.logger.Debug("message steered",
		logger.Field{Key: "role", Value: msg.Role},
		logger.Field{Key: "content_length", Value: len(msg.Content)})
}

// IsIdle reports whether no run is active.
func (a *Agent) IsIdle() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.running
}

// Messages returns a snapshot of the conversation log.
func (a *Agent) Messages() []llm.Message {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]llm.Message, len(a.messages))
	copy(out, a.messages)
	return out
}

// Clear resets the log to the system message only and empties the steering
// queue. The running flag is untouched.
func (a *Agent) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.messages = a.messages[:1]
	a.steering = nil
}

// RegisterTool adds or replaces a tool in the registry and regenerates the
// tool listing in the system message in place.
func (a *Agent) RegisterTool(tool tools.Tool) error {
	if err := a.tools.Register(tool); err != nil {
		return fmt.Errorf("failed to register tool %s: %w", tool.Name(), err)
	}

	a.mu.Lock()
	a.messages[0].Content = a.renderSystemPrompt()
	a.mu.Unlock()

	a.logger.Debug("tool registered", logger.Field{Key: "tool_name", Value: tool.Name()})
	return nil
}

// Tools returns the agent's tool registry.
func (a *Agent) Tools() *tools.Registry {
	return a.tools
}

// renderSystemPrompt combines the base prompt with the current tool listing.
func (a *Agent) renderSystemPrompt() string {
	list := a.tools.List()
	if len(list) == 0 {
		return a.systemPrompt
	}

	var b strings.Builder
	b.WriteString(a.systemPrompt)
	b.WriteString("\n\nAvailable tools:\n")
	for _, tool := range list {
		fmt.Fprintf(&b, "- %s: %s\n", tool.Name(), tool.Description())
	}
	return strings.TrimRight(b.String(), "\n")
}

// loop drives the conversation until the natural idle point: the log ends
// on a final assistant message and the steering queue is empty. The number
// of model calls is bounded by MaxIterations.
func (a *Agent) loop(ctx context.Context) (string, error) {
	defer func() {
		a.mu.Lock()
		a.running = false
		a.cond.Broadcast()
		a.mu.Unlock()
	}()

	calls := 0
	for {
		a.mu.Lock()

		// Steered messages take priority over calling the model: drain one
		// and re-check, so the whole queue lands in the log first.
		if len(a.steering) > 0 {
			msg := a.steering[0]
			a.steering = a.steering[1:]
			a.messages = append(a.messages, msg)
			a.mu.Unlock()
			continue
		}

		// Natural idle point: a final assistant answer with nothing queued.
		if last := a.lastMessageLocked(); last != nil &&
			last.Role == llm.RoleAssistant && len(last.ToolCalls) == 0 {
			text := last.Content
			a.mu.Unlock()
			return text, nil
		}

		reqMessages := make([]llm.Message, len(a.messages))
		copy(reqMessages, a.messages)
		a.mu.Unlock()

		if calls >= a.config.MaxIterations {
			a.logger.Error("loop aborted", ErrMaxIterations,
				logger.Field{Key: "max_iterations", Value: a.config.MaxIterations})
			return "", fmt.Errorf("%w (%d)", ErrMaxIterations, a.config.MaxIterations)
		}
		calls++

		resp, err := a.complete(ctx, reqMessages)
		if err != nil {
			return "", fmt.Errorf("completion call failed: %w", err)
		}

		if resp.FinishReason == llm.FinishReasonToolCalls && len(resp.ToolCalls) > 0 {
			a.handleToolCalls(ctx, resp)
			continue
		}

		a.mu.Lock()
		a.messages = append(a.messages, llm.Message{
			Role:    llm.RoleAssistant,
			Content: resp.Content,
		})
		a.mu.Unlock()
	}
}

// complete issues one model call with the full log and the tool catalogue.
func (a *Agent) complete(ctx context.Context, messages []llm.Message) (*llm.ChatResponse, error) {
	req := llm.ChatRequest{
		Messages:    messages,
		Model:       a.config.Model,
		Temperature: a.config.Temperature,
		MaxTokens:   a.config.MaxTokens,
	}

	if a.provider.SupportsToolCalling() {
		schemas := a.tools.ToSchema()
		if len(schemas) > 0 {
			req.Tools = make([]llm.ToolDefinition, len(schemas))
			for i, schema := range schemas {
				req.Tools[i] = llm.ToolDefinition{
					Name:        schema.Name,
					Description: schema.Description,
					Parameters:  schema.Parameters,
				}
			}
		}
	}

	return a.provider.Chat(ctx, req)
}

// handleToolCalls appends the assistant message carrying the requested
// calls, executes each tool in request order and appends one tool result
// message per call. Tool failures become textual error observations; the
// loop keeps going.
func (a *Agent) handleToolCalls(ctx context.Context, resp *llm.ChatResponse) {
	a.mu.Lock()
	a.messages = append(a.messages, llm.Message{
		Role:      llm.RoleAssistant,
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	})
	a.mu.Unlock()

	for _, tc := range resp.ToolCalls {
		result := tools.ExecuteToolCallWithContext(ctx, a.tools, tools.ToolCall{
			ID:        tc.ID,
			Name:      tc.Name,
			Arguments: tc.Arguments,
		}, a.config.ToolTimeout)

		content := result.Content
		if result.Error != "" {
			content = fmt.Sprintf("Error: %s", result.Error)
			a.logger.Warn("tool execution failed",
				logger.Field{Key: "tool_name", Value: tc.Name},
				logger.Field{Key: "error", Value: result.Error})
		}

		a.mu.Lock()
		a.messages = append(a.messages, llm.Message{
			Role:       llm.RoleTool,
			Content:    content,
			ToolCallID: tc.ID,
			ToolName:   tc.Name,
		})
		a.mu.Unlock()
	}
}

// lastMessageLocked returns the last log message; callers hold the lock.
func (a *Agent) lastMessageLocked() *llm.Message {
	if len(a.messages) == 0 {
		return nil
	}
	return &a.messages[len(a.messages)-1]
}
