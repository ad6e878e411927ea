package core

import (
	"encoding/json"
	"strings"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType names the kind of a content block on the wire.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// Block represents a polymorphic segment of message content. Concrete block
// types implement the unexported isBlock marker enabling a closed set.
type Block interface {
	BlockType() BlockType
	isBlock()
}

// TextBlock is a plain text content segment.
type TextBlock struct {
	Text string `json:"text"`
}

func (TextBlock) BlockType() BlockType { return BlockText }
func (TextBlock) isBlock()             {}

// MarshalJSON renders {"type":"text","text":...}.
func (b TextBlock) MarshalJSON() ([]byte, error) {
	type alias TextBlock
	return json.Marshal(struct {
		Type BlockType `json:"type"`
		alias
	}{BlockText, alias(b)})
}

// ToolUseBlock is a model request to invoke a tool.
type ToolUseBlock struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

func (ToolUseBlock) BlockType() BlockType { return BlockToolUse }
func (ToolUseBlock) isBlock()             {}

// MarshalJSON renders {"type":"tool_use","id":...,"name":...,"input":...}.
func (b ToolUseBlock) MarshalJSON() ([]byte, error) {
	type alias ToolUseBlock
	if b.Input == nil {
		b.Input = map[string]any{}
	}
	return json.Marshal(struct {
		Type BlockType `json:"type"`
		alias
	}{BlockToolUse, alias(b)})
}

// ToolResultBlock carries the outcome of a tool invocation back to the model.
type ToolResultBlock struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error"`
}

func (ToolResultBlock) BlockType() BlockType { return BlockToolResult }
func (ToolResultBlock) isBlock()             {}

// MarshalJSON renders {"type":"tool_result",...}.
func (b ToolResultBlock) MarshalJSON() ([]byte, error) {
	type alias ToolResultBlock
	return json.Marshal(struct {
		Type BlockType `json:"type"`
		alias
	}{BlockToolResult, alias(b)})
}

// Message is one turn of the conversation history.
type Message struct {
	Role    Role    `json:"role"`
	Content []Block `json:"content"`
}

// NewUserMessage builds a user turn with a single text block.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: []Block{TextBlock{Text: text}}}
}

// NewAssistantMessage builds an assistant turn from the given blocks.
func NewAssistantMessage(blocks ...Block) Message {
	content := make([]Block, len(blocks))
	copy(content, blocks)
	return Message{Role: RoleAssistant, Content: content}
}

// NewToolResultMessage builds the user turn that answers a tool_use block.
func NewToolResultMessage(toolUseID, content string, isError bool) Message {
	return Message{
		Role: RoleUser,
		Content: []Block{ToolResultBlock{
			ToolUseID: toolUseID,
			Content:   content,
			IsError:   isError,
		}},
	}
}

// Text concatenates all text blocks of the message.
func (m Message) Text() string { return JoinText(m.Content) }

// ToolUses returns the tool invocation blocks of the message in order.
func (m Message) ToolUses() []ToolUseBlock { return ToolUses(m.Content) }

// JoinText concatenates the text of all TextBlocks in blocks.
func JoinText(blocks []Block) string {
	var sb strings.Builder
	for _, b := range blocks {
		if tb, ok := b.(TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return sb.String()
}

// ToolUses filters blocks down to tool invocations.
func ToolUses(blocks []Block) []ToolUseBlock {
	var out []ToolUseBlock
	for _, b := range blocks {
		if tu, ok := b.(ToolUseBlock); ok {
			out = append(out, tu)
		}
	}
	return out
}
