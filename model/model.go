package model

import (
	"context"
	"errors"

	"github.com/hupe1980/flowstream/core"
)

// ErrStreamFailed wraps transport failures raised while a stream is open.
var ErrStreamFailed = errors.New("model stream failed")

// StopReason is the terminal signal of a single model response.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
)

// ToolDefinition declaratively exposes a callable tool to the model.
// InputSchema is a JSON Schema object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ToolDefinitions describes tools for a request.
func ToolDefinitions(tools []core.Tool) []ToolDefinition {
	if len(tools) == 0 {
		return nil
	}

	defs := make([]ToolDefinition, len(tools))
	for i, t := range tools {
		defs[i] = ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		}
	}

	return defs
}

// Request captures the normalized model input produced by the loop.
type Request struct {
	Model       string           `json:"model,omitempty"`
	System      string           `json:"system,omitempty"`
	Messages    []core.Message   `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
	Stream      bool             `json:"stream,omitempty"`
}

// Delta is one increment of a streamed response. Text carries a text
// fragment; Block carries a complete structured block (tool use); StopReason
// and Usage are set on the delta that ends the response.
type Delta struct {
	Text       string
	Block      core.Block
	StopReason StopReason
	Usage      *core.TokenUsage
}

// Response is a complete model turn.
type Response struct {
	ID         string          `json:"id,omitempty"`
	Content    []core.Block    `json:"content"`
	StopReason StopReason      `json:"stop_reason"`
	Usage      core.TokenUsage `json:"usage"`
}

// Text concatenates the text blocks of the response.
func (r *Response) Text() string { return core.JoinText(r.Content) }

// ToolUses returns the tool invocation blocks of the response.
func (r *Response) ToolUses() []core.ToolUseBlock { return core.ToolUses(r.Content) }

// Stream iterates the deltas of one streamed response.
//
//	for s.Next() {
//	    d := s.Current()
//	}
//	if err := s.Err(); err != nil { ... }
type Stream interface {
	Next() bool
	Current() Delta
	Err() error
	Close() error
}

// FinalMessager is implemented by streams that can assemble the complete
// response (with exact usage accounting) after the last delta.
type FinalMessager interface {
	FinalMessage() (*Response, bool)
}

// Info contains metadata about a client implementation.
type Info struct {
	Name              string `json:"name"`
	Provider          string `json:"provider"` // "openai", "anthropic", "scripted", etc.
	SupportsTools     bool   `json:"supports_tools"`
	SupportsStreaming bool   `json:"supports_streaming"`
}

// Client is the model transport consumed by the streaming loop.
type Client interface {
	// Stream opens a streamed response. An error means the stream could not
	// be opened at all.
	Stream(ctx context.Context, req Request) (Stream, error)

	// Complete performs a single non-streaming request.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the client implementation.
	Info() Info
}
