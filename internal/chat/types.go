package chat

import (
	"encoding/json"
	"fmt"
)

// Message roles understood by the chat-completion provider
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Finish reasons the orchestrator branches on
const (
	FinishToolCalls = "tool_calls"
	FinishStop      = "stop"
)

// Message is one entry of the conversation sent to the provider
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Reasoning  string     `json:"reasoning,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // Set when Role is "tool"
}

// ToolCall is a model-issued request to invoke a function tool
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the tool name and its JSON-encoded arguments
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool is a function declaration exposed to the model
type Tool struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

// FunctionDef describes one callable function with a JSON-Schema
// parameter object
type FunctionDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// Request is the body for POST /chat/completions
type Request struct {
	Model      string    `json:"model"`
	Messages   []Message `json:"messages"`
	Tools      []Tool    `json:"tools,omitempty"`
	ToolChoice string    `json:"tool_choice,omitempty"`
	Stream     bool      `json:"stream,omitempty"`
	MaxTokens  int       `json:"max_tokens,omitempty"`
}

// Usage reports token consumption for one call
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another call's usage into the receiver
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Choice is one completion alternative
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Response is the non-streaming response body, returned verbatim
type Response struct {
	ID      string   `json:"id"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// APIError is a provider-embedded error, either in a non-streaming
// body or inside a streaming frame. It is always fatal to the call.
type APIError struct {
	Message string          `json:"message"`
	Code    json.RawMessage `json:"code,omitempty"`
	Type    string          `json:"type,omitempty"`
}

func (e *APIError) Error() string {
	if len(e.Code) > 0 {
		return fmt.Sprintf("provider error: %s (code %s)", e.Message, string(e.Code))
	}
	return fmt.Sprintf("provider error: %s", e.Message)
}

// ToolCallDelta is a streamed fragment of a tool call. Index keys the
// accumulation; ID and the function name arrive with the first
// fragment for that index, argument text arrives in pieces.
type ToolCallDelta struct {
	Index    int    `json:"index"`
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function"`
}

// delta is the partial message inside one streaming frame
type delta struct {
	Content          string          `json:"content"`
	Reasoning        string          `json:"reasoning"`
	ReasoningContent string          `json:"reasoning_content"`
	ToolCalls        []ToolCallDelta `json:"tool_calls"`
}

// streamFrame is one decoded `data:` payload
type streamFrame struct {
	Choices []struct {
		Delta        delta   `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage    `json:"usage"`
	Error *APIError `json:"error"`
}

// StreamResult is the accumulated outcome of one streaming call
type StreamResult struct {
	Content      string
	Reasoning    string
	ToolCalls    []ToolCall
	FinishReason string
	Usage        Usage
}

// StreamHandler receives live events while a stream is consumed. Any
// field may be nil. Handlers run on the reading goroutine; ordering
// matches frame arrival.
type StreamHandler struct {
	OnContent   func(text string)
	OnReasoning func(text string)
	OnToolCalls func(deltas []ToolCallDelta)
}
