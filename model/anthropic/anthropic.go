// Package anthropic provides a model.Client for the Anthropic Messages API
// with real token streaming and a non-streaming path used for fallback.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/hupe1980/flowstream/core"
	"github.com/hupe1980/flowstream/model"
)

// Options configures the Anthropic client adapter (model id, temperature,
// max tokens, API key). Request fields override these per call.
type Options struct {
	Model          anthropic.Model
	Temperature    *float64
	MaxTokens      int64
	APIKey         string
	BaseURL        string
	RequestOptions []option.RequestOption
}

// Client wraps the Anthropic Messages API behind model.Client.
type Client struct {
	client *anthropic.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:     anthropic.ModelClaude3_5Sonnet20241022,
		MaxTokens: 4096,
	}
}

// NewClient creates a new Anthropic client using the official SDK.
func NewClient(optFns ...func(o *Options)) *Client {
	opts := defaultOptions()

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	clientOpts = append(clientOpts, opts.RequestOptions...)

	client := anthropic.NewClient(clientOpts...)

	return &Client{
		client: &client,
		opts:   opts,
	}
}

// NewClientFromSDK creates an adapter around an existing SDK client.
func NewClientFromSDK(client *anthropic.Client, optFns ...func(o *Options)) *Client {
	opts := defaultOptions()

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Client{
		client: client,
		opts:   opts,
	}
}

// Stream implements model.Client.
func (c *Client) Stream(ctx context.Context, req model.Request) (model.Stream, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	return &stream{raw: c.client.Messages.NewStreaming(ctx, params)}, nil
}

// Complete implements model.Client.
func (c *Client) Complete(ctx context.Context, req model.Request) (*model.Response, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	return toResponse(msg)
}

// Info returns metadata describing this Anthropic client implementation.
func (c *Client) Info() model.Info {
	return model.Info{
		Name:              string(c.opts.Model),
		Provider:          "anthropic",
		SupportsTools:     true,
		SupportsStreaming: true,
	}
}

func (c *Client) buildParams(req model.Request) (anthropic.MessageNewParams, error) {
	name := c.opts.Model
	if req.Model != "" {
		name = anthropic.Model(req.Model)
	}

	maxTokens := c.opts.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	messages, err := buildMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     name,
		Messages:  messages,
		MaxTokens: maxTokens,
	}

	temp := c.opts.Temperature
	if req.Temperature != nil {
		temp = req.Temperature
	}

	if temp != nil {
		params.Temperature = anthropic.Float(*temp)
	}

	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	return params, nil
}

// buildMessages converts the history, merging consecutive turns of the same
// role so all tool results answering one assistant turn share a message.
func buildMessages(history []core.Message) ([]anthropic.MessageParam, error) {
	var (
		messages []anthropic.MessageParam
		lastRole core.Role
	)

	for _, msg := range history {
		blocks, err := buildBlocks(msg.Content)
		if err != nil {
			return nil, err
		}

		if len(blocks) == 0 {
			continue
		}

		if len(messages) > 0 && msg.Role == lastRole {
			last := &messages[len(messages)-1]
			last.Content = append(last.Content, blocks...)
			continue
		}

		if msg.Role == core.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		} else {
			messages = append(messages, anthropic.NewUserMessage(blocks...))
		}

		lastRole = msg.Role
	}

	return messages, nil
}

func buildBlocks(content []core.Block) ([]anthropic.ContentBlockParamUnion, error) {
	out := make([]anthropic.ContentBlockParamUnion, 0, len(content))

	for _, b := range content {
		switch block := b.(type) {
		case core.TextBlock:
			if block.Text != "" {
				out = append(out, anthropic.NewTextBlock(block.Text))
			}
		case core.ToolUseBlock:
			input := block.Input
			if input == nil {
				input = map[string]any{}
			}
			out = append(out, anthropic.NewToolUseBlock(block.ID, input, block.Name))
		case core.ToolResultBlock:
			out = append(out, anthropic.NewToolResultBlock(block.ToolUseID, block.Content, block.IsError))
		default:
			return nil, fmt.Errorf("anthropic: unsupported block type %T", b)
		}
	}

	return out, nil
}

// buildTools converts tool definitions to Anthropic tool format.
func buildTools(defs []model.ToolDefinition) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, 0, len(defs))

	for _, def := range defs {
		toolParam := anthropic.ToolParam{
			Name:        def.Name,
			Description: anthropic.String(def.Description),
			InputSchema: anthropic.ToolInputSchemaParam{},
		}

		if def.InputSchema != nil {
			if properties, ok := def.InputSchema["properties"]; ok {
				toolParam.InputSchema.Properties = properties
			}
			toolParam.InputSchema.Required = requiredFields(def.InputSchema["required"])
		}

		tools = append(tools, anthropic.ToolUnionParam{OfTool: &toolParam})
	}

	return tools
}

func requiredFields(v any) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// toResponse converts a complete SDK message.
func toResponse(msg *anthropic.Message) (*model.Response, error) {
	resp := &model.Response{
		ID:         msg.ID,
		StopReason: model.StopReason(msg.StopReason),
		Usage: core.TokenUsage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}

	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			if b.Text != "" {
				resp.Content = append(resp.Content, core.TextBlock{Text: b.Text})
			}
		case anthropic.ToolUseBlock:
			input, err := decodeInput(b.Input)
			if err != nil {
				return nil, fmt.Errorf("anthropic: tool %s input: %w", b.Name, err)
			}
			resp.Content = append(resp.Content, core.ToolUseBlock{ID: b.ID, Name: b.Name, Input: input})
		}
	}

	return resp, nil
}

// decodeInput normalizes the SDK tool input (raw JSON or decoded value) to
// a map.
func decodeInput(raw any) (map[string]any, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}

	input := map[string]any{}
	if len(b) == 0 || string(b) == "null" {
		return input, nil
	}

	if err := json.Unmarshal(b, &input); err != nil {
		return nil, err
	}

	return input, nil
}

// stream adapts the SDK event stream. Text deltas are forwarded as they
// arrive; the accumulated message becomes the final response.
type stream struct {
	raw     *ssestream.Stream[anthropic.MessageStreamEventUnion]
	acc     anthropic.Message
	current model.Delta
	err     error
	done    bool
}

func (s *stream) Next() bool {
	if s.done {
		return false
	}

	for s.raw.Next() {
		event := s.raw.Current()
		if err := s.acc.Accumulate(event); err != nil {
			s.fail(err)
			return false
		}

		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				s.current = model.Delta{Text: delta.Text}
				return true
			}
		case anthropic.MessageDeltaEvent:
			s.current = model.Delta{
				StopReason: model.StopReason(ev.Delta.StopReason),
				Usage: &core.TokenUsage{
					InputTokens:  int(s.acc.Usage.InputTokens),
					OutputTokens: int(s.acc.Usage.OutputTokens),
				},
			}
			return true
		}
	}

	if err := s.raw.Err(); err != nil {
		s.fail(err)
		return false
	}

	s.done = true

	return false
}

func (s *stream) fail(err error) {
	s.err = fmt.Errorf("%w: anthropic: %w", model.ErrStreamFailed, err)
	s.done = true
}

func (s *stream) Current() model.Delta { return s.current }

func (s *stream) Err() error { return s.err }

func (s *stream) Close() error { return s.raw.Close() }

// FinalMessage implements model.FinalMessager once the stream ended cleanly.
func (s *stream) FinalMessage() (*model.Response, bool) {
	if !s.done || s.err != nil || s.acc.StopReason == "" {
		return nil, false
	}

	resp, err := toResponse(&s.acc)
	if err != nil {
		return nil, false
	}

	return resp, true
}
