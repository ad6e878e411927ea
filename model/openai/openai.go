// Package openai provides a model.Client using the OpenAI Chat Completions
// API (including streaming + function/tool calling). It adapts flowstream's
// normalized Request/Response structures into the SDK's message format and
// back.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/hupe1980/flowstream/core"
	"github.com/hupe1980/flowstream/model"
)

// aggCall aggregates partial tool call streaming deltas (id, name, arguments)
// allowing reconstruction of complete tool use blocks when the stream ends.
type aggCall struct{ id, name, args string }

// Options configure the OpenAI client adapter.
// Fields mirror a subset of Chat Completion parameters; request fields
// override them per call.
type Options struct {
	Model               string
	Temperature         *float64
	MaxCompletionTokens int64
	APIKey              string
	BaseURL             string
	RequestOptions      []option.RequestOption
}

// Client wraps the OpenAI Chat Completions API behind model.Client.
type Client struct {
	client *openai.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		MaxCompletionTokens: 4096,
	}
}

// NewClient creates a new OpenAI client using the official SDK.
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

	client := openai.NewClient(clientOpts...)

	return &Client{client: &client, opts: opts}
}

// NewClientFromSDK creates an adapter around an existing SDK client.
func NewClientFromSDK(client *openai.Client, optFns ...func(o *Options)) *Client {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Client{client: client, opts: opts}
}

// Stream implements model.Client.
func (c *Client) Stream(ctx context.Context, req model.Request) (model.Stream, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}

	return &stream{
		raw:     c.client.Chat.Completions.NewStreaming(ctx, params),
		toolAgg: map[int64]*aggCall{},
	}, nil
}

// Complete implements model.Client.
func (c *Client) Complete(ctx context.Context, req model.Request) (*model.Response, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: no choices returned")
	}

	ch0 := resp.Choices[0]
	out := &model.Response{
		ID:         resp.ID,
		StopReason: stopReason(ch0.FinishReason),
		Usage: core.TokenUsage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}

	if ch0.Message.Content != "" {
		out.Content = append(out.Content, core.TextBlock{Text: ch0.Message.Content})
	}

	for _, tc := range ch0.Message.ToolCalls {
		block, err := toolUse(tc.ID, tc.Function.Name, tc.Function.Arguments)
		if err != nil {
			return nil, err
		}
		out.Content = append(out.Content, block)
	}

	return out, nil
}

// Info returns metadata describing this OpenAI client implementation.
func (c *Client) Info() model.Info {
	return model.Info{
		Name:              c.opts.Model,
		Provider:          "openai",
		SupportsTools:     true,
		SupportsStreaming: true,
	}
}

// buildParams assembles the OpenAI request parameters including tool definitions.
func (c *Client) buildParams(req model.Request) (openai.ChatCompletionNewParams, error) {
	messages, err := buildMessages(req)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}

	name := c.opts.Model
	if req.Model != "" {
		name = req.Model
	}

	maxTokens := c.opts.MaxCompletionTokens
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               name,
		MaxCompletionTokens: openai.Int(maxTokens),
	}

	temp := c.opts.Temperature
	if req.Temperature != nil {
		temp = req.Temperature
	}
	if temp != nil {
		params.Temperature = openai.Float(*temp)
	}

	if len(req.Tools) == 0 {
		return params, nil
	}

	tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
	for i, tdef := range req.Tools {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tdef.Name,
				Description: openai.String(tdef.Description),
				Parameters:  tdef.InputSchema,
			},
		}
	}
	params.Tools = tools

	return params, nil
}

// buildMessages converts the history into chat messages. Tool result blocks
// become tool messages placed right after the assistant turn requesting them.
func buildMessages(req model.Request) ([]openai.ChatCompletionMessageParamUnion, error) {
	var messages []openai.ChatCompletionMessageParamUnion

	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}

	for _, msg := range req.Messages {
		var (
			text      strings.Builder
			toolCalls []openai.ChatCompletionMessageToolCallParam
			results   []openai.ChatCompletionMessageParamUnion
		)

		for _, b := range msg.Content {
			switch block := b.(type) {
			case core.TextBlock:
				text.WriteString(block.Text)
			case core.ToolUseBlock:
				args, err := json.Marshal(block.Input)
				if err != nil {
					return nil, fmt.Errorf("openai: encode tool %s input: %w", block.Name, err)
				}
				toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
					ID:   block.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      block.Name,
						Arguments: string(args),
					},
				})
			case core.ToolResultBlock:
				results = append(results, openai.ToolMessage(block.Content, block.ToolUseID))
			}
		}

		switch {
		case msg.Role == core.RoleAssistant && len(toolCalls) > 0:
			assistant := openai.ChatCompletionAssistantMessageParam{ToolCalls: toolCalls}
			if text.Len() > 0 {
				assistant.Content.OfString = openai.String(text.String())
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case msg.Role == core.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(text.String()))
		case len(results) > 0:
			messages = append(messages, results...)
			if text.Len() > 0 {
				messages = append(messages, openai.UserMessage(text.String()))
			}
		default:
			messages = append(messages, openai.UserMessage(text.String()))
		}
	}

	return messages, nil
}

func stopReason(finish string) model.StopReason {
	switch finish {
	case "stop":
		return model.StopEndTurn
	case "tool_calls", "function_call":
		return model.StopToolUse
	case "length":
		return model.StopMaxTokens
	default:
		return model.StopReason(finish)
	}
}

func toolUse(id, name, args string) (core.ToolUseBlock, error) {
	input := map[string]any{}
	if strings.TrimSpace(args) != "" {
		if err := json.Unmarshal([]byte(args), &input); err != nil {
			return core.ToolUseBlock{}, fmt.Errorf("openai: tool %s arguments: %w", name, err)
		}
	}
	return core.ToolUseBlock{ID: id, Name: name, Input: input}, nil
}

// stream adapts the SDK chunk stream. Text deltas are forwarded as they
// arrive; tool call fragments are aggregated into the final response.
type stream struct {
	raw     *ssestream.Stream[openai.ChatCompletionChunk]
	text    strings.Builder
	toolAgg map[int64]*aggCall
	finish  string
	id      string
	usage   core.TokenUsage
	current model.Delta
	err     error
	done    bool
}

func (s *stream) Next() bool {
	if s.done {
		return false
	}

	for s.raw.Next() {
		ck := s.raw.Current()
		if ck.ID != "" {
			s.id = ck.ID
		}

		if ck.Usage.PromptTokens > 0 || ck.Usage.CompletionTokens > 0 {
			s.usage = core.TokenUsage{
				InputTokens:  int(ck.Usage.PromptTokens),
				OutputTokens: int(ck.Usage.CompletionTokens),
			}
		}

		var delta model.Delta
		for _, ch := range ck.Choices {
			s.aggregateToolCalls(ch)
			if ch.Delta.Content != "" {
				s.text.WriteString(ch.Delta.Content)
				delta.Text += ch.Delta.Content
			}
			if ch.FinishReason != "" {
				s.finish = ch.FinishReason
				delta.StopReason = stopReason(ch.FinishReason)
			}
		}

		if delta.Text != "" || delta.StopReason != "" {
			s.current = delta
			return true
		}
	}

	if err := s.raw.Err(); err != nil {
		s.err = fmt.Errorf("%w: openai: %w", model.ErrStreamFailed, err)
	}

	s.done = true

	return false
}

func (s *stream) aggregateToolCalls(ch openai.ChatCompletionChunkChoice) {
	for _, tc := range ch.Delta.ToolCalls {
		ac, ok := s.toolAgg[tc.Index]
		if !ok {
			ac = &aggCall{}
			s.toolAgg[tc.Index] = ac
		}
		if tc.ID != "" {
			ac.id = tc.ID
		}
		if tc.Function.Name != "" {
			ac.name = tc.Function.Name
		}
		if tc.Function.Arguments != "" {
			ac.args += tc.Function.Arguments
		}
	}
}

func (s *stream) Current() model.Delta { return s.current }

func (s *stream) Err() error { return s.err }

func (s *stream) Close() error { return s.raw.Close() }

// FinalMessage implements model.FinalMessager once the stream ended cleanly.
func (s *stream) FinalMessage() (*model.Response, bool) {
	if !s.done || s.err != nil || s.finish == "" {
		return nil, false
	}

	resp := &model.Response{ID: s.id, StopReason: stopReason(s.finish), Usage: s.usage}
	if s.text.Len() > 0 {
		resp.Content = append(resp.Content, core.TextBlock{Text: s.text.String()})
	}

	indexes := make([]int64, 0, len(s.toolAgg))
	for i := range s.toolAgg {
		indexes = append(indexes, i)
	}
	sort.Slice(indexes, func(a, b int) bool { return indexes[a] < indexes[b] })

	for _, i := range indexes {
		ac := s.toolAgg[i]
		block, err := toolUse(ac.id, ac.name, ac.args)
		if err != nil {
			return nil, false
		}
		resp.Content = append(resp.Content, block)
	}

	return resp, true
}
