package testutil

import (
	"context"
	"maps"

	"github.com/hupe1980/flowstream/core"
	"github.com/hupe1980/flowstream/model"
)

// RunBuilder fluently assembles a core.RunContext for tests.
//
//	rc := NewRunBuilder().User("hi").MaxIterations(3).Tools(reg).Build()
type RunBuilder struct {
	ctx  context.Context
	opts core.RunContextOptions
}

// NewRunBuilder creates a builder with a background context.
func NewRunBuilder() *RunBuilder {
	return &RunBuilder{ctx: context.Background(), opts: core.RunContextOptions{State: map[string]any{}}}
}

// Context sets the parent context (chainable).
func (b *RunBuilder) Context(ctx context.Context) *RunBuilder { b.ctx = ctx; return b }

// FlowID pins the flow identifier (chainable).
func (b *RunBuilder) FlowID(id string) *RunBuilder { b.opts.FlowID = id; return b }

// User appends a user text message (chainable).
func (b *RunBuilder) User(text string) *RunBuilder {
	b.opts.Messages = append(b.opts.Messages, core.NewUserMessage(text))
	return b
}

// Tools sets the tool lookup (chainable).
func (b *RunBuilder) Tools(t core.ToolLookup) *RunBuilder { b.opts.Tools = t; return b }

// MaxIterations sets the per-run iteration limit (chainable).
func (b *RunBuilder) MaxIterations(n int) *RunBuilder { b.opts.MaxIterations = n; return b }

// System sets the system prompt (chainable).
func (b *RunBuilder) System(s string) *RunBuilder { b.opts.Params.System = s; return b }

// State merges kv into the initial run state (chainable).
func (b *RunBuilder) State(kv map[string]any) *RunBuilder { maps.Copy(b.opts.State, kv); return b }

// Build constructs the RunContext.
func (b *RunBuilder) Build() *core.RunContext {
	opts := b.opts
	return core.NewRunContext(b.ctx, func(o *core.RunContextOptions) { *o = opts })
}

// TextTurn scripts a model turn streaming tokens and ending the turn.
func TextTurn(tokens ...string) model.Turn {
	return model.Turn{Tokens: tokens, StopReason: model.StopEndTurn}
}

// ToolTurn scripts a model turn requesting a single tool call.
func ToolTurn(id, name string, input map[string]any, tokens ...string) model.Turn {
	return model.Turn{
		Tokens:     tokens,
		Blocks:     []core.Block{core.ToolUseBlock{ID: id, Name: name, Input: input}},
		StopReason: model.StopToolUse,
	}
}
