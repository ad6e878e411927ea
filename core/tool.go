package core

import "context"

// Tool is a callable capability the model can invoke by name.
type Tool interface {
	Name() string
	Description() string
	// InputSchema returns the JSON Schema (object) describing the input.
	InputSchema() map[string]any
	Call(ctx context.Context, input map[string]any) (ToolResult, error)
}

// ToolResult is the outcome of a tool call fed back into the conversation.
type ToolResult struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
}

// ToolLookup resolves tools by name.
type ToolLookup interface {
	Lookup(name string) (Tool, bool)
	List() []Tool
}

// ToolCallRecord is one tool invocation recorded on a RunContext.
type ToolCallRecord struct {
	Iteration int            `json:"iteration"`
	ToolUseID string         `json:"tool_use_id"`
	Name      string         `json:"name"`
	Input     map[string]any `json:"input"`
	Result    string         `json:"result"`
	IsError   bool           `json:"is_error"`
}
