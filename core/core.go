package core

import (
	"time"

	"github.com/hupe1980/flowstream/logging"
)

// loggerAdapter wraps a logging.Logger scoped to one flow and exposes
// convenience methods (LogDebug/LogInfo/LogWarn/LogError). Every record
// carries flow_id: a StructuredLogger gets it through WithFlow, any other
// logger as a leading key/value pair. A nil logger becomes a NoOpLogger.
type loggerAdapter struct {
	logger logging.Logger
	flowID string
	attrs  []any
}

// newLoggerAdapter constructs a loggerAdapter for flowID with a non-nil logger.
func newLoggerAdapter(l logging.Logger, flowID string) *loggerAdapter {
	if l == nil {
		l = logging.NoOpLogger{}
	}

	la := &loggerAdapter{logger: l, flowID: flowID}

	if sl, ok := l.(*logging.StructuredLogger); ok {
		la.logger = sl.WithFlow(flowID)
	} else {
		la.attrs = []any{"flow_id", flowID}
	}

	return la
}

// Logger returns the underlying logger.
func (l *loggerAdapter) Logger() logging.Logger {
	return l.logger
}

func (l *loggerAdapter) with(args []any) []any {
	if len(l.attrs) == 0 {
		return args
	}

	out := make([]any, 0, len(l.attrs)+len(args))
	out = append(out, l.attrs...)

	return append(out, args...)
}

// LogDebug logs a debug message.
func (l *loggerAdapter) LogDebug(msg string, args ...any) {
	l.logger.Debug(msg, l.with(args)...)
}

// LogInfo logs an info message.
func (l *loggerAdapter) LogInfo(msg string, args ...any) {
	l.logger.Info(msg, l.with(args)...)
}

// LogWarn logs a warning message.
func (l *loggerAdapter) LogWarn(msg string, args ...any) {
	l.logger.Warn(msg, l.with(args)...)
}

// LogError logs an error message.
func (l *loggerAdapter) LogError(msg string, args ...any) {
	l.logger.Error(msg, l.with(args)...)
}

// LogFlowExecution records the outcome of the flow. err is nil on success.
func (l *loggerAdapter) LogFlowExecution(iterations int, dur time.Duration, err error) {
	if el, ok := l.logger.(logging.ExecutionLogger); ok {
		el.LogFlowExecution(l.flowID, iterations, dur, err == nil, err)
		return
	}

	args := []any{"iterations", iterations, "duration", dur, "success", err == nil}
	if err != nil {
		l.LogError("flow.execution.failed", append(args, "error", err.Error())...)
		return
	}

	l.LogInfo("flow.execution.completed", args...)
}

// LogToolCall records one tool invocation of the flow. err is nil on success.
func (l *loggerAdapter) LogToolCall(tool string, dur time.Duration, err error) {
	if el, ok := l.logger.(logging.ExecutionLogger); ok {
		el.LogToolCall(tool, dur, err == nil, err)
		return
	}

	args := []any{"tool_name", tool, "duration", dur, "success", err == nil}
	if err != nil {
		l.LogError("tool.call.failed", append(args, "error", err.Error())...)
		return
	}

	l.LogInfo("tool.call.completed", args...)
}
