package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LogLevelDebug, false},
		{"INFO", LogLevelInfo, false},
		{"", LogLevelInfo, false},
		{"warning", LogLevelWarn, false},
		{"error", LogLevelError, false},
		{"loud", LogLevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStructuredLogger_KeyValueAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelDebug, Format: "json", Output: &buf}).
		WithComponent("engine").
		WithFlow("flow-1")

	l.Warn("engine.emit.queue_full", "event_type", "token.received")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "engine.emit.queue_full", rec["msg"])
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "engine", rec["component"])
	assert.Equal(t, "flow-1", rec["flow_id"])
	assert.Equal(t, "token.received", rec["event_type"])
}

func TestStructuredLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelWarn, Output: &buf})

	l.Debug("hidden")
	l.Info("hidden")
	assert.Zero(t, buf.Len())

	l.Error("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestStructuredLogger_WithIsolation(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(&LoggerConfig{Level: LogLevelInfo, Output: &buf})
	_ = base.WithContext("k", "v")

	base.Info("plain")
	assert.NotContains(t, buf.String(), `"k"`)
}

func TestStructuredLogger_DomainHelpers(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelInfo, Output: &buf})

	l.LogToolCall("search", time.Millisecond, false, errors.New("boom"))
	assert.Contains(t, buf.String(), "tool.call.failed")
	assert.Contains(t, buf.String(), "boom")

	buf.Reset()
	l.LogModelCall("claude", 12, time.Millisecond, true, nil)
	assert.Contains(t, buf.String(), "model.call.completed")

	buf.Reset()
	l.LogFlowExecution("f", 3, time.Second, true, nil)
	assert.Contains(t, buf.String(), "flow.execution.completed")
}

func TestStructuredLogger_LogFlowExecutionFlowID(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf})

	base.LogFlowExecution("f-1", 2, time.Second, true, nil)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "f-1", rec["flow_id"])

	buf.Reset()
	base.WithFlow("f-2").LogFlowExecution("f-2", 2, time.Second, false, errors.New("boom"))

	assert.Equal(t, 1, strings.Count(buf.String(), `"flow_id"`))
	assert.Contains(t, buf.String(), "flow.execution.failed")
}

func TestNoOpLogger(t *testing.T) {
	var l Logger = NoOpLogger{}
	assert.NotPanics(t, func() {
		l.Debug("x")
		l.Info("x")
		l.Warn("x")
		l.Error("x", "k", 1)
	})
}
