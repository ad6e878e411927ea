// Package flow provides the streaming execution loop that drives a model
// conversation to completion.
//
// A run alternates between model turns and tool dispatch. Each model turn is
// streamed token by token into a content buffer while every delta is emitted
// through the engine as a token.received event; tool invocations requested by
// the model are resolved against the run's tools, executed and fed back into
// the conversation. The loop ends when the model signals end_turn (Completed),
// when the iteration limit is reached (Failed) or on cancellation or any
// unexpected error inside an iteration (Failed).
//
// Request assembly is pipelined through RequestProcessors so callers can
// adjust what is sent to the model without touching the loop itself.
package flow

import (
	"github.com/hupe1980/flowstream/core"
	"github.com/hupe1980/flowstream/model"
)

// Flow drives a RunContext to a terminal state.
type Flow interface {
	// Run executes the flow synchronously. It returns nil when the run
	// completed and the failure otherwise; the RunContext records the same
	// outcome.
	Run(rc *core.RunContext) error
}

// RequestProcessor processes the request before sending it to the model.
type RequestProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessRequest modifies the request before model execution.
	ProcessRequest(rc *core.RunContext, req *model.Request) error
}

// RequestProcessorFunc adapts a function to RequestProcessor.
type RequestProcessorFunc struct {
	ID string
	Fn func(rc *core.RunContext, req *model.Request) error
}

// Name implements RequestProcessor.
func (p RequestProcessorFunc) Name() string { return p.ID }

// ProcessRequest implements RequestProcessor.
func (p RequestProcessorFunc) ProcessRequest(rc *core.RunContext, req *model.Request) error {
	return p.Fn(rc, req)
}

// IterationCallback fires after each iteration's response is recorded.
type IterationCallback func(iteration int, resp *model.Response, rc *core.RunContext)

// ToolCallback fires after each tool invocation.
type ToolCallback func(name string, input map[string]any, result core.ToolResult)
