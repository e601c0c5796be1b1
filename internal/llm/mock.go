package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockProvider is a mock implementation of the Provider interface for testing
// and offline runs.
type MockProvider struct {
	mu         sync.Mutex
	mode       MockMode        // Mode of operation
	responses  []string        // Pre-defined text responses (rotates through them)
	scripted   []*ChatResponse // Pre-defined full responses (consumed in order)
	index      int             // Current index in responses/scripted
	delay      time.Duration   // Simulated latency
	errorAfter int             // Number of successful calls before returning errors
	callCount  int             // Number of Chat() calls made
	requests   []ChatRequest   // Captured requests for assertions
}

// MockMode defines the operation mode of the mock provider.
type MockMode int

const (
	// MockModeEcho returns the last user message.
	MockModeEcho MockMode = iota

	// MockModeFixed returns responses in rotation (a single response repeats).
	MockModeFixed

	// MockModeScript returns pre-built ChatResponse values in order,
	// including tool-call responses.
	MockModeScript

	// MockModeError always returns an error.
	MockModeError
)

// MockConfig holds configuration for the mock provider.
type MockConfig struct {
	Mode       MockMode
	Responses  []string
	Script     []*ChatResponse
	Delay      time.Duration
	ErrorAfter int
}

// NewMockProvider creates a new mock LLM provider.
func NewMockProvider(cfg MockConfig) *MockProvider {
	return &MockProvider{
		mode:       cfg.Mode,
		responses:  cfg.Responses,
		scripted:   cfg.Script,
		delay:      cfg.Delay,
		errorAfter: cfg.ErrorAfter,
	}
}

// NewEchoProvider creates a mock provider that echoes user messages.
func NewEchoProvider() *MockProvider {
	return NewMockProvider(MockConfig{Mode: MockModeEcho})
}

// NewScriptProvider creates a mock provider that plays back the given
// responses in order. After the script is exhausted it returns a plain
// stop response.
func NewScriptProvider(script ...*ChatResponse) *MockProvider {
	return NewMockProvider(MockConfig{Mode: MockModeScript, Script: script})
}

// TextResponse builds a plain final-answer response for scripting.
func TextResponse(content string) *ChatResponse {
	return &ChatResponse{
		Content:      content,
		FinishReason: FinishReasonStop,
	}
}

// ToolCallResponse builds a tool-call response for scripting.
func ToolCallResponse(calls ...ToolCall) *ChatResponse {
	return &ChatResponse{
		FinishReason: FinishReasonToolCalls,
		ToolCalls:    calls,
	}
}

// Chat returns a canned response according to the configured mode.
func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount++
	m.requests = append(m.requests, req)

	if m.mode == MockModeError {
		return nil, fmt.Errorf("mock provider error (call %d)", m.callCount)
	}
	if m.errorAfter > 0 && m.callCount > m.errorAfter {
		return nil, fmt.Errorf("mock provider error after %d calls", m.errorAfter)
	}

	switch m.mode {
	case MockModeEcho:
		return TextResponse(lastUserContent(req.Messages)), nil

	case MockModeFixed:
		if len(m.responses) == 0 {
			return TextResponse(""), nil
		}
		resp := m.responses[m.index%len(m.responses)]
		m.index++
		return TextResponse(resp), nil

	case MockModeScript:
		if m.index >= len(m.scripted) {
			return TextResponse("ok"), nil
		}
		resp := m.scripted[m.index]
		m.index++
		return resp, nil
	}

	return TextResponse(""), nil
}

// SupportsToolCalling returns true so tool definitions are exercised in tests.
func (m *MockProvider) SupportsToolCalling() bool {
	return true
}

// GetDefaultModel returns the mock model identifier.
func (m *MockProvider) GetDefaultModel() string {
	return "mock"
}

// CallCount returns the number of Chat() calls made.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Requests returns a copy of all captured chat requests.
func (m *MockProvider) Requests() []ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChatRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// lastUserContent returns the content of the last user message, if any.
func lastUserContent(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
