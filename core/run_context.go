package core

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/hupe1980/flowstream/logging"
)

// RunStatus is the terminal-or-not state of a run.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// Phase is the position of the streaming loop within an iteration.
type Phase string

const (
	PhaseRunning       Phase = "running"
	PhaseAwaitingModel Phase = "awaiting_model"
	PhaseStreaming     Phase = "streaming"
	PhaseToolDispatch  Phase = "tool_dispatch"
	PhaseCompleted     Phase = "completed"
	PhaseFailed        Phase = "failed"
)

// ModelParams are the per-run request parameters forwarded to the model.
type ModelParams struct {
	Model       string
	System      string
	MaxTokens   int
	Temperature *float64
}

// RunContext carries execution state for one flow run.
// It aggregates:
//   - The ambient cancellation Context
//   - The flow identifier
//   - Message history and tool lookup
//   - Model parameters and the iteration limiter
//   - Completion or failure state, token usage and tool call records
//
// The loop mutates it while observers may read from other goroutines; all
// accessors are guarded by an RWMutex. Persistence is the caller's concern.
type RunContext struct {
	Context context.Context
	FlowID  string
	Tools   ToolLookup
	Params  ModelParams
	Limiter *IterationLimiter

	mu        sync.RWMutex
	messages  []Message
	status    RunStatus
	phase     Phase
	answer    string
	errMsg    string
	usage     TokenUsage
	toolCalls []ToolCallRecord
	state     map[string]any
	startedAt time.Time
	endedAt   time.Time

	*loggerAdapter
}

// RunContextOptions configures NewRunContext.
type RunContextOptions struct {
	FlowID        string
	Tools         ToolLookup
	Params        ModelParams
	MaxIterations int
	Messages      []Message
	State         map[string]any
	Logger        logging.Logger
}

// NewRunContext constructs a pending RunContext.
func NewRunContext(ctx context.Context, optFns ...func(o *RunContextOptions)) *RunContext {
	opts := RunContextOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if opts.FlowID == "" {
		opts.FlowID = NewID()
	}

	rc := &RunContext{
		Context:       ctx,
		FlowID:        opts.FlowID,
		Tools:         opts.Tools,
		Params:        opts.Params,
		Limiter:       NewIterationLimiter(opts.MaxIterations),
		status:        StatusPending,
		phase:         PhaseRunning,
		state:         map[string]any{},
		loggerAdapter: newLoggerAdapter(opts.Logger, opts.FlowID),
	}

	rc.messages = append(rc.messages, opts.Messages...)
	maps.Copy(rc.state, opts.State)

	return rc
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// Messages returns a copy of the conversation history.
func (rc *RunContext) Messages() []Message {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	out := make([]Message, len(rc.messages))
	copy(out, rc.messages)

	return out
}

// AddMessage appends msgs to the history.
func (rc *RunContext) AddMessage(msgs ...Message) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.messages = append(rc.messages, msgs...)
}

// LookupTool resolves a tool by name. A context without tools finds nothing.
func (rc *RunContext) LookupTool(name string) (Tool, bool) {
	if rc.Tools == nil {
		return nil, false
	}
	return rc.Tools.Lookup(name)
}

// ListTools returns the tools available to the model.
func (rc *RunContext) ListTools() []Tool {
	if rc.Tools == nil {
		return nil
	}
	return rc.Tools.List()
}

// Start moves a pending context to running.
func (rc *RunContext) Start() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.status == StatusPending {
		rc.status = StatusRunning
		rc.startedAt = time.Now()
	}
}

// SetPhase records the loop position. Terminal contexts ignore it.
func (rc *RunContext) SetPhase(p Phase) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.terminal() {
		return
	}
	rc.phase = p
}

// Phase returns the current loop position.
func (rc *RunContext) Phase() Phase {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	return rc.phase
}

// Status returns the run status.
func (rc *RunContext) Status() RunStatus {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	return rc.status
}

// IsCompleted reports whether the run ended successfully.
func (rc *RunContext) IsCompleted() bool { return rc.Status() == StatusCompleted }

// IsFailed reports whether the run ended with an error.
func (rc *RunContext) IsFailed() bool { return rc.Status() == StatusFailed }

// IsTerminal reports whether the run reached completed or failed.
func (rc *RunContext) IsTerminal() bool {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	return rc.terminal()
}

func (rc *RunContext) terminal() bool {
	return rc.status == StatusCompleted || rc.status == StatusFailed
}

// Complete marks the run successful with answer. Only the first terminal
// transition is recorded; it returns false if the run had already ended.
func (rc *RunContext) Complete(answer string) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.terminal() {
		return false
	}

	rc.status = StatusCompleted
	rc.phase = PhaseCompleted
	rc.answer = answer
	rc.endedAt = time.Now()

	return true
}

// Fail marks the run failed with message. Only the first terminal
// transition is recorded; it returns false if the run had already ended.
func (rc *RunContext) Fail(message string) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.terminal() {
		return false
	}

	rc.status = StatusFailed
	rc.phase = PhaseFailed
	rc.errMsg = message
	rc.endedAt = time.Now()

	return true
}

// Answer returns the final answer of a completed run.
func (rc *RunContext) Answer() string {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	return rc.answer
}

// ErrorMessage returns the failure message of a failed run.
func (rc *RunContext) ErrorMessage() string {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	return rc.errMsg
}

// AddUsage accumulates token usage.
func (rc *RunContext) AddUsage(u TokenUsage) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.usage = rc.usage.Add(u)
}

// Usage returns the accumulated token usage.
func (rc *RunContext) Usage() TokenUsage {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	return rc.usage
}

// RecordToolCall appends a tool invocation record.
func (rc *RunContext) RecordToolCall(rec ToolCallRecord) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rec.Input = maps.Clone(rec.Input)
	rc.toolCalls = append(rc.toolCalls, rec)
}

// ToolCalls returns a copy of the recorded tool invocations.
func (rc *RunContext) ToolCalls() []ToolCallRecord {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	out := make([]ToolCallRecord, len(rc.toolCalls))
	copy(out, rc.toolCalls)

	return out
}

// GetState returns a value from the free-form state map.
func (rc *RunContext) GetState(k string) (any, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	v, ok := rc.state[k]

	return v, ok
}

// SetState stores a value in the free-form state map.
func (rc *RunContext) SetState(k string, v any) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.state[k] = v
}

// State returns a copy of the free-form state map.
func (rc *RunContext) State() map[string]any {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	return maps.Clone(rc.state)
}

// Duration returns the elapsed run time (up to now for running contexts).
func (rc *RunContext) Duration() time.Duration {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	switch {
	case rc.startedAt.IsZero():
		return 0
	case rc.endedAt.IsZero():
		return time.Since(rc.startedAt)
	default:
		return rc.endedAt.Sub(rc.startedAt)
	}
}

// RunSnapshot is a consistent read-only copy of a RunContext.
type RunSnapshot struct {
	FlowID     string           `json:"flow_id"`
	Status     RunStatus        `json:"status"`
	Phase      Phase            `json:"phase"`
	Iterations int              `json:"iterations"`
	Answer     string           `json:"answer,omitempty"`
	Error      string           `json:"error,omitempty"`
	Usage      TokenUsage       `json:"usage"`
	ToolCalls  []ToolCallRecord `json:"tool_calls"`
	Messages   int              `json:"messages"`
}

// Snapshot returns a consistent copy of the observable run state.
func (rc *RunContext) Snapshot() RunSnapshot {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	calls := make([]ToolCallRecord, len(rc.toolCalls))
	copy(calls, rc.toolCalls)

	return RunSnapshot{
		FlowID:     rc.FlowID,
		Status:     rc.status,
		Phase:      rc.phase,
		Iterations: rc.Limiter.Count(),
		Answer:     rc.answer,
		Error:      rc.errMsg,
		Usage:      rc.usage,
		ToolCalls:  calls,
		Messages:   len(rc.messages),
	}
}
