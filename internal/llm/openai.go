package llm

import (
	"bytes"
	stdcontext "context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pulse/internal/logger"
	"pulse/internal/retry"
)

const (
	// OpenAIDefaultBaseURL is the default base URL for the OpenAI API.
	OpenAIDefaultBaseURL = "https://api.openai.com/v1"
	// OpenAIRequestTimeout is the default timeout for API requests.
	OpenAIRequestTimeout = 60 * time.Second
)

// OpenAIConfig contains configuration for the OpenAI-compatible provider.
type OpenAIConfig struct {
	APIKey         string `json:"api_key"`         // API key for authentication
	BaseURL        string `json:"base_url"`        // API base URL (for compatible endpoints)
	Model          string `json:"model"`           // Default model to use
	TimeoutSeconds int    `json:"timeout_seconds"` // Timeout for HTTP requests in seconds
}

// OpenAIProvider implements the Provider interface for OpenAI-compatible
// chat completion APIs.
type OpenAIProvider struct {
	client *http.Client
	config OpenAIConfig
	apiURL string
	logger *logger.Logger
}

// openaiRequest represents the request format for the chat completions endpoint.
type openaiRequest struct {
	Messages    []openaiMessage `json:"messages"`
	Model       string          `json:"model"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Tools       []openaiTool    `json:"tools,omitempty"`
	ToolChoice  string          `json:"tool_choice,omitempty"`
}

// openaiMessage represents a message in wire format.
type openaiMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
}

// openaiTool represents a tool definition in wire format.
type openaiTool struct {
	Type     string                 `json:"type"` // Always "function"
	Function map[string]interface{} `json:"function"`
}

// openaiResponse represents the response format from the API.
type openaiResponse struct {
	ID      string          `json:"id"`
	Object  string          `json:"object"`
	Created int64           `json:"created"`
	Model   string          `json:"model"`
	Choices []openaiChoice  `json:"choices"`
	Usage   openaiUsage     `json:"usage"`
	Error   *openaiAPIError `json:"error,omitempty"`
}

// openaiChoice represents a choice in the response.
type openaiChoice struct {
	Index        int           `json:"index"`
	Message      openaiMessage `json:"message"`
	FinishReason string        `json:"finish_reason,omitempty"`
}

// openaiToolCall represents a tool call in wire format.
type openaiToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Index    int    `json:"index,omitempty"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// openaiUsage represents token usage information.
type openaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// openaiAPIError represents an error payload from the API.
type openaiAPIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// NewOpenAIProvider creates a new OpenAIProvider instance.
func NewOpenAIProvider(cfg OpenAIConfig, log *logger.Logger) *OpenAIProvider {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = OpenAIDefaultBaseURL
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = OpenAIRequestTimeout
	}

	return &OpenAIProvider{
		client: &http.Client{
			Timeout: timeout,
		},
		config: cfg,
		apiURL: strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		logger: log,
	}
}

// HTTPError represents a non-2xx response from the API.
type HTTPError struct {
	StatusCode int    // HTTP status code
	Body       string // Response body
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error: status=%d, body=%s", e.StatusCode, e.Body)
}

// doRequest executes a single HTTP request against the completions endpoint.
func (p *OpenAIProvider) doRequest(ctx stdcontext.Context, reqBody []byte) (*openaiResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.config.APIKey))

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		p.logger.ErrorCtx(ctx, "failed to execute completion request", err)
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		p.logger.ErrorCtx(ctx, "failed to read response body", err)
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		p.logger.ErrorCtx(ctx, "completion API returned error status", nil,
			logger.Field{Key: "status_code", Value: httpResp.StatusCode},
			logger.Field{Key: "response_body", Value: string(respBody)})

		return nil, &HTTPError{
			StatusCode: httpResp.StatusCode,
			Body:       string(respBody),
		}
	}

	var apiResp openaiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		p.logger.ErrorCtx(ctx, "failed to unmarshal completion response", err,
			logger.Field{Key: "response_body", Value: string(respBody)})
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if apiResp.Error != nil {
		p.logger.ErrorCtx(ctx, "completion API returned error", nil,
			logger.Field{Key: "error_type", Value: apiResp.Error.Type},
			logger.Field{Key: "error_code", Value: apiResp.Error.Code},
			logger.Field{Key: "error_message", Value: apiResp.Error.Message})
		return nil, fmt.Errorf("API error: %s (code: %s): %s",
			apiResp.Error.Type, apiResp.Error.Code, apiResp.Error.Message)
	}

	return &apiResp, nil
}

// mapChatRequest maps an internal ChatRequest to wire format.
func (p *OpenAIProvider) mapChatRequest(req ChatRequest) openaiRequest {
	messages := make([]openaiMessage, len(req.Messages))
	for i, msg := range req.Messages {
		wire := openaiMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			wtc := openaiToolCall{ID: tc.ID, Type: "function"}
			wtc.Function.Name = tc.Name
			wtc.Function.Arguments = tc.Arguments
			wire.ToolCalls = append(wire.ToolCalls, wtc)
		}
		messages[i] = wire
	}

	apiReq := openaiRequest{
		Messages:    messages,
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if apiReq.Model == "" {
		apiReq.Model = p.config.Model
	}

	if len(req.Tools) > 0 {
		apiReq.Tools = make([]openaiTool, len(req.Tools))
		for i, tool := range req.Tools {
			apiReq.Tools[i] = openaiTool{
				Type: "function",
				Function: map[string]interface{}{
					"name":        tool.Name,
					"description": tool.Description,
					"parameters":  tool.Parameters,
				},
			}
		}
		apiReq.ToolChoice = "auto"
	}

	return apiReq
}

// mapChatResponse maps a wire response to the internal ChatResponse format.
func (p *OpenAIProvider) mapChatResponse(apiResp *openaiResponse) *ChatResponse {
	usage := Usage{
		PromptTokens:     apiResp.Usage.PromptTokens,
		CompletionTokens: apiResp.Usage.CompletionTokens,
		TotalTokens:      apiResp.Usage.TotalTokens,
	}

	if len(apiResp.Choices) == 0 {
		return &ChatResponse{
			Content:      "",
			FinishReason: FinishReasonError,
			ToolCalls:    []ToolCall{},
			Usage:        usage,
			Model:        apiResp.Model,
		}
	}

	choice := apiResp.Choices[0]

	toolCalls := make([]ToolCall, len(choice.Message.ToolCalls))
	for i, tc := range choice.Message.ToolCalls {
		toolCalls[i] = ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: normalizeArguments(tc.Function.Arguments),
		}
	}

	return &ChatResponse{
		Content:      choice.Message.Content,
		FinishReason: FinishReason(choice.FinishReason),
		ToolCalls:    toolCalls,
		Usage:        usage,
		Model:        apiResp.Model,
	}
}

// normalizeArguments degrades malformed tool-call argument JSON to an empty
// object instead of failing the completion call.
func normalizeArguments(args string) string {
	if strings.TrimSpace(args) == "" {
		return "{}"
	}
	if !json.Valid([]byte(args)) {
		return "{}"
	}
	return args
}

// Chat sends a chat completion request to the configured endpoint.
func (p *OpenAIProvider) Chat(ctx stdcontext.Context, req ChatRequest) (*ChatResponse, error) {
	p.logger.DebugCtx(ctx, "sending chat completion request",
		logger.Field{Key: "model", Value: req.Model},
		logger.Field{Key: "messages_count", Value: len(req.Messages)},
		logger.Field{Key: "tools_count", Value: len(req.Tools)})

	reqBody := p.mapChatRequest(req)
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Transient transport and rate-limit failures are retried with backoff;
	// auth and client errors surface immediately.
	apiResp, err := retry.Do(ctx, func() (*openaiResponse, error) {
		return p.doRequest(ctx, jsonBody)
	}, retry.Config{})
	if err != nil {
		return nil, err
	}

	resp := p.mapChatResponse(apiResp)

	p.logger.DebugCtx(ctx, "chat completion response received",
		logger.Field{Key: "finish_reason", Value: resp.FinishReason},
		logger.Field{Key: "content_length", Value: len(resp.Content)},
		logger.Field{Key: "tool_calls_count", Value: len(resp.ToolCalls)})

	return resp, nil
}

// SupportsToolCalling returns true; OpenAI-compatible endpoints support tool calling.
func (p *OpenAIProvider) SupportsToolCalling() bool {
	return true
}

// GetDefaultModel returns the configured default model.
func (p *OpenAIProvider) GetDefaultModel() string {
	return p.config.Model
}
