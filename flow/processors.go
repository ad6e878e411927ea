package flow

import (
	"fmt"

	"github.com/hupe1980/flowstream/core"
	internalutil "github.com/hupe1980/flowstream/internal/util"
	"github.com/hupe1980/flowstream/model"
)

// DefaultProcessors returns the processors every loop starts with: model
// parameters, system instructions, conversation contents and tool
// definitions.
func DefaultProcessors(system string) []RequestProcessor {
	return []RequestProcessor{
		NewParamsProcessor(),
		NewInstructionsProcessor(system),
		NewContentsProcessor(),
		NewToolsProcessor(),
	}
}

// ParamsProcessor copies the run's model parameters onto the request.
type ParamsProcessor struct{}

// NewParamsProcessor creates a new params processor.
func NewParamsProcessor() *ParamsProcessor { return &ParamsProcessor{} }

// Name returns the processor's identifier.
func (p *ParamsProcessor) Name() string { return "params" }

// ProcessRequest sets model, token limit and temperature.
func (p *ParamsProcessor) ProcessRequest(rc *core.RunContext, req *model.Request) error {
	req.Model = rc.Params.Model
	req.MaxTokens = rc.Params.MaxTokens
	req.Temperature = rc.Params.Temperature
	return nil
}

// InstructionsProcessor handles system prompt processing. The run's own
// system prompt wins over the processor default; either is rendered as a
// text/template against the run state.
type InstructionsProcessor struct {
	fallback string
}

// NewInstructionsProcessor creates a new instructions processor with a
// default system prompt used when the run carries none.
func NewInstructionsProcessor(system string) *InstructionsProcessor {
	return &InstructionsProcessor{fallback: system}
}

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest renders the system prompt.
func (p *InstructionsProcessor) ProcessRequest(rc *core.RunContext, req *model.Request) error {
	instructions := rc.Params.System
	if instructions == "" {
		instructions = p.fallback
	}

	if instructions == "" {
		return nil
	}

	rendered, err := internalutil.RenderTemplate(instructions, rc.State())
	if err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	rc.LogDebug("flow.instruction.resolved", "length", len(rendered))

	req.System = rendered

	return nil
}

// ContentsProcessor adds the conversation history to the request.
type ContentsProcessor struct{}

// NewContentsProcessor creates a new contents processor.
func NewContentsProcessor() *ContentsProcessor { return &ContentsProcessor{} }

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest copies the current message history.
func (p *ContentsProcessor) ProcessRequest(rc *core.RunContext, req *model.Request) error {
	req.Messages = rc.Messages()
	return nil
}

// ToolsProcessor declares the run's tools to the model.
type ToolsProcessor struct{}

// NewToolsProcessor creates a new tools processor.
func NewToolsProcessor() *ToolsProcessor { return &ToolsProcessor{} }

// Name returns the processor's identifier.
func (p *ToolsProcessor) Name() string { return "tools" }

// ProcessRequest sets the tool definitions.
func (p *ToolsProcessor) ProcessRequest(rc *core.RunContext, req *model.Request) error {
	req.Tools = model.ToolDefinitions(rc.ListTools())
	return nil
}
