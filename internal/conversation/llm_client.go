package conversation

import "context"

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one conversation turn as supplied by the caller.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	TopP        float32
	// JSON asks the provider for a JSON-only response when it supports one.
	JSON bool
}

type LLMResponse struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// LLMClient is the text-completion collaborator.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

// ToolParam describes one argument of a tool.
type ToolParam struct {
	Name        string
	Type        string // string, integer or boolean
	Description string
	Required    bool
}

// ToolDefinition is a function the model may call.
type ToolDefinition struct {
	Name        string
	Description string
	Params      []ToolParam
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	Name string
	Args map[string]any
}

// ToolResult is the output returned to the model for a call.
type ToolResult struct {
	Name     string
	Response map[string]any
}

// ToolExchange is one round of calls and their results within a turn.
type ToolExchange struct {
	Calls   []ToolCall
	Results []ToolResult
}

// ToolRequest is a stateless tool-calling completion: prior history, the
// current user message as the last entry of Messages, and the exchanges
// already completed in this turn.
type ToolRequest struct {
	Model     string
	System    []string
	Messages  []ChatMessage
	Tools     []ToolDefinition
	Exchanges []ToolExchange
}

// ToolResponse is either final text or a set of calls to run.
type ToolResponse struct {
	Text  string
	Calls []ToolCall
	Usage TokenUsage
}

// ToolCallingClient is a collaborator that supports function calling.
type ToolCallingClient interface {
	CompleteWithTools(ctx context.Context, req ToolRequest) (ToolResponse, error)
}
