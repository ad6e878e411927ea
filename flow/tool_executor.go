package flow

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/hupe1980/flowstream/core"
)

// DefaultToolTimeout bounds a single tool invocation.
const DefaultToolTimeout = 30 * time.Second

// ToolExecutor resolves and runs the tool invocations of one model turn.
// Implementations must:
//   - Never panic (recover internally and return an error result)
//   - Return exactly one result per invocation
//   - Report unknown tools as error results rather than failing
type ToolExecutor interface {
	Execute(rc *core.RunContext, use core.ToolUseBlock) core.ToolResult
}

// ToolExecutorConfig configures the default executor.
type ToolExecutorConfig struct {
	// Timeout bounds each call; 0 disables the bound.
	Timeout time.Duration
}

// sequentialToolExecutor is the default implementation. Invocations run one
// at a time in the order the model requested them.
type sequentialToolExecutor struct {
	cfg ToolExecutorConfig
}

// NewToolExecutor constructs the default executor with the given config.
func NewToolExecutor(cfg ToolExecutorConfig) ToolExecutor {
	return &sequentialToolExecutor{cfg: cfg}
}

// UnknownToolResult is the result fed back for a tool name that does not
// resolve.
func UnknownToolResult(name string) core.ToolResult {
	return core.ToolResult{Content: fmt.Sprintf("Unknown tool: %s", name), IsError: true}
}

type callOutcome struct {
	result core.ToolResult
	err    error
}

func (e *sequentialToolExecutor) Execute(rc *core.RunContext, use core.ToolUseBlock) core.ToolResult {
	impl, ok := rc.LookupTool(use.Name)
	if !ok {
		rc.LogWarn("flow.tool.unknown", "tool", use.Name, "tool_use_id", use.ID)
		return UnknownToolResult(use.Name)
	}

	ctx := rc.Context
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	input := use.Input
	if input == nil {
		input = map[string]any{}
	}

	start := time.Now()
	done := make(chan callOutcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				rc.LogError("flow.tool.panic", "tool", use.Name, "recover", r)
				done <- callOutcome{err: panicError(r)}
			}
		}()

		res, err := impl.Call(ctx, input)
		done <- callOutcome{result: res, err: err}
	}()

	var out callOutcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out = callOutcome{err: ctx.Err()}
	}

	dur := time.Since(start)

	callErr := out.err
	if callErr == nil && out.result.IsError {
		callErr = errors.New(out.result.Content)
	}

	rc.LogToolCall(use.Name, dur, callErr)

	if out.err == nil {
		return out.result
	}

	switch {
	case errors.Is(out.err, context.DeadlineExceeded):
		return core.ToolResult{Content: fmt.Sprintf("Tool %s timed out after %s", use.Name, e.cfg.Timeout), IsError: true}
	case errors.Is(out.err, context.Canceled):
		return core.ToolResult{Content: fmt.Sprintf("Tool %s cancelled", use.Name), IsError: true}
	}

	var pErr *panicErr
	if errors.As(out.err, &pErr) {
		return core.ToolResult{Content: fmt.Sprintf("Tool %s panicked: %v", use.Name, pErr.val), IsError: true}
	}

	return core.ToolResult{Content: out.err.Error(), IsError: true}
}

// panicError converts a recovered panic value to an error carrying the stack.
func panicError(r any) error { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }
