package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/flowstream/logging"
)

type captureLogger struct {
	entries []captured
}

type captured struct {
	level string
	msg   string
	args  []any
}

func (c *captureLogger) record(level, msg string, args []any) {
	c.entries = append(c.entries, captured{level: level, msg: msg, args: args})
}

func (c *captureLogger) Debug(msg string, args ...any) { c.record("debug", msg, args) }
func (c *captureLogger) Info(msg string, args ...any)  { c.record("info", msg, args) }
func (c *captureLogger) Warn(msg string, args ...any)  { c.record("warn", msg, args) }
func (c *captureLogger) Error(msg string, args ...any) { c.record("error", msg, args) }

func TestLoggerAdapter_PrependsFlowID(t *testing.T) {
	logger := &captureLogger{}
	rc := NewRunContext(context.Background(), func(o *RunContextOptions) {
		o.FlowID = "flow-7"
		o.Logger = logger
	})

	rc.LogWarn("flow.tool.unknown", "tool", "x")
	rc.LogInfo("plain")

	require.Len(t, logger.entries, 2)
	assert.Equal(t, []any{"flow_id", "flow-7", "tool", "x"}, logger.entries[0].args)
	assert.Equal(t, []any{"flow_id", "flow-7"}, logger.entries[1].args)
}

func TestLoggerAdapter_ExecutionFallback(t *testing.T) {
	logger := &captureLogger{}
	rc := NewRunContext(context.Background(), func(o *RunContextOptions) {
		o.FlowID = "f"
		o.Logger = logger
	})

	rc.LogFlowExecution(2, time.Second, nil)
	rc.LogToolCall("add", time.Millisecond, errors.New("bad input"))

	require.Len(t, logger.entries, 2)
	assert.Equal(t, "info", logger.entries[0].level)
	assert.Equal(t, "flow.execution.completed", logger.entries[0].msg)
	assert.Equal(t, "error", logger.entries[1].level)
	assert.Equal(t, "tool.call.failed", logger.entries[1].msg)
	assert.Contains(t, logger.entries[1].args, "bad input")
}

func TestLoggerAdapter_StructuredLoggerCarriesFlow(t *testing.T) {
	var buf bytes.Buffer
	sl := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Format: "json", Output: &buf})

	rc := NewRunContext(context.Background(), func(o *RunContextOptions) {
		o.FlowID = "flow-9"
		o.Logger = sl
	})

	rc.LogFlowExecution(3, time.Second, errors.New("limit"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "flow.execution.failed", rec["msg"])
	assert.Equal(t, "flow-9", rec["flow_id"])
	assert.Equal(t, "limit", rec["error"])
	assert.EqualValues(t, 3, rec["iterations"])
}

func TestLoggerAdapter_NilLogger(t *testing.T) {
	rc := NewRunContext(context.Background())
	assert.NotPanics(t, func() {
		rc.LogError("x")
		rc.LogToolCall("t", 0, nil)
		rc.LogFlowExecution(0, 0, nil)
	})
}
