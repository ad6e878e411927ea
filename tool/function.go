package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/hupe1980/flowstream/core"
	"github.com/hupe1980/flowstream/internal/util"
	"github.com/hupe1980/flowstream/logging"
)

// Func is the implementation wrapped by a FunctionTool. It receives the
// already validated input.
type Func func(ctx context.Context, input map[string]any) (any, error)

// FunctionToolOptions configures a FunctionTool.
type FunctionToolOptions struct {
	// Logger receives tool.call.* records. Defaults to a no-op logger.
	Logger logging.Logger
}

// FunctionTool is a generic adapter that exposes a plain Go function as a
// core.Tool.
//
// Responsibilities:
//   - Holds the JSON Schema describing accepted input, compiled once with gojsonschema
//   - Validates model supplied input against that schema before execution
//   - Invokes the wrapped function with the caller's context
//   - Renders the returned value as the textual content fed back to the model
//   - Normalizes error handling so callers receive *ToolError with consistent codes:
//     SCHEMA_ERROR      -> the declared schema does not compile
//     VALIDATION_ERROR  -> schema / argument mismatch
//     EXECUTION_ERROR   -> underlying function returned an error (non-ToolError)
//     (custom codes preserved if the function returns *ToolError directly)
//
// Concurrency:
//
//	A FunctionTool has no internal mutable state after construction and is safe for
//	concurrent use by multiple goroutines.
//
// Returned result:
//
//	A string is used verbatim, a core.ToolResult is passed through and any other
//	value is JSON encoded. Implement core.Tool directly for anything richer.
type FunctionTool struct {
	name        string
	description string
	schema      map[string]any
	compiled    *gojsonschema.Schema
	compileErr  error
	fn          Func
	logger      logging.Logger
}

var _ core.Tool = (*FunctionTool)(nil)

// NewFunctionTool constructs a FunctionTool from explicit schema and function.
//
// Example:
//
//	sumTool := NewFunctionTool(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "a": map[string]any{"type": "number"},
//	      "b": map[string]any{"type": "number"},
//	    },
//	    "required": []string{"a", "b"},
//	  },
//	  func(ctx context.Context, input map[string]any) (any, error) {
//	    return input["a"].(float64) + input["b"].(float64), nil
//	  },
//	)
func NewFunctionTool(name, description string, schema map[string]any, fn Func, optFns ...func(o *FunctionToolOptions)) *FunctionTool {
	opts := FunctionToolOptions{
		Logger: logging.NoOpLogger{},
	}

	for _, optFn := range optFns {
		optFn(&opts)
	}

	if schema == nil {
		schema = map[string]any{"type": "object", "properties": map[string]any{}}
	}

	compiled, err := util.CompileSchema(schema)

	return &FunctionTool{
		name:        name,
		description: description,
		schema:      schema,
		compiled:    compiled,
		compileErr:  err,
		fn:          fn,
		logger:      opts.Logger,
	}
}

// NewFunctionToolFromStruct derives the input schema from a struct using
// reflection, equivalent to util.CreateSchema(structType).
//
// Example:
//
//	type SumArgs struct {
//	  A float64 `json:"a" description:"First addend"`
//	  B float64 `json:"b" description:"Second addend"`
//	}
//
//	sumTool := NewFunctionToolFromStruct("calculate_sum", "Calculate the sum of two numbers", SumArgs{}, sum)
func NewFunctionToolFromStruct(name, description string, structType any, fn Func, optFns ...func(o *FunctionToolOptions)) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), fn, optFns...)
}

// Name returns the unique tool name used in tool definitions and routing.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the short natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// InputSchema returns the JSON schema describing expected input.
func (t *FunctionTool) InputSchema() map[string]any { return t.schema }

// Call validates input against the declared schema then invokes the
// underlying function.
//
// Error Semantics:
//
//	*ToolError (returned directly)  -> forwarded unchanged
//	schema compile failure          -> *ToolError{Code: "SCHEMA_ERROR"}
//	validation failure              -> *ToolError{Code: "VALIDATION_ERROR"}
//	other error                     -> *ToolError{Code: "EXECUTION_ERROR"}
func (t *FunctionTool) Call(ctx context.Context, input map[string]any) (core.ToolResult, error) {
	start := time.Now()

	t.logger.Debug("tool.call.start", "tool", t.name)

	if t.compileErr != nil {
		return core.ToolResult{}, &ToolError{
			Tool:    t.name,
			Message: t.compileErr.Error(),
			Code:    CodeSchema,
		}
	}

	if err := util.ValidateParameters(input, t.compiled); err != nil {
		t.logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())

		return core.ToolResult{}, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
		}
	}

	out, err := t.fn(ctx, input)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			t.logger.Error("tool.call.error", "tool", t.name, "error", toolErr.Message)

			return core.ToolResult{}, toolErr
		}

		t.logger.Error("tool.call.error", "tool", t.name, "error", err.Error())

		return core.ToolResult{}, &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    CodeExecution,
			Details: err,
		}
	}

	t.logger.Info("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())

	return FormatResult(out), nil
}

// FormatResult renders a tool return value as a ToolResult.
func FormatResult(v any) core.ToolResult {
	switch r := v.(type) {
	case core.ToolResult:
		return r
	case *core.ToolResult:
		if r == nil {
			return core.ToolResult{}
		}
		return *r
	case string:
		return core.ToolResult{Content: r}
	case []byte:
		return core.ToolResult{Content: string(r)}
	case nil:
		return core.ToolResult{}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return core.ToolResult{Content: fmt.Sprintf("%v", v)}
	}

	return core.ToolResult{Content: string(b)}
}
