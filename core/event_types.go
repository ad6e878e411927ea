package core

// EventType identifies what an Event describes. The set of values is closed:
// every Event carries one of the constants declared below. The string values
// are part of the wire contract with transport consumers and must not change.
type EventType string

// Flow lifecycle.
const (
	EventFlowStarted   EventType = "flow.started"
	EventFlowCompleted EventType = "flow.completed"
	EventFlowFailed    EventType = "flow.failed"
	EventFlowPaused    EventType = "flow.paused"
	EventFlowResumed   EventType = "flow.resumed"
)

// Token streaming.
const (
	EventTokenReceived EventType = "token.received"
	EventTokenChunk    EventType = "token.chunk"
)

// Iteration.
const (
	EventIterationStarted   EventType = "iteration.started"
	EventIterationCompleted EventType = "iteration.completed"
	EventIterationFailed    EventType = "iteration.failed"
)

// Tool execution.
const (
	EventToolStarted   EventType = "tool.started"
	EventToolCompleted EventType = "tool.completed"
	EventToolFailed    EventType = "tool.failed"
)

// Progress.
const (
	EventProgressUpdate EventType = "progress.update"
	EventStepStarted    EventType = "step.started"
	EventStepCompleted  EventType = "step.completed"
)

// Message.
const (
	EventMessageAdded   EventType = "add_message"
	EventMessageRemoved EventType = "remove_message"
)

// Vertex / build compatibility with graph-based consumers.
const (
	EventVertexStarted  EventType = "vertex.started"
	EventVertexEnd      EventType = "end_vertex"
	EventVerticesSorted EventType = "vertices_sorted"
	EventBuildStart     EventType = "build_start"
	EventBuildEnd       EventType = "build_end"
)

// Diagnostics.
const (
	EventError   EventType = "error"
	EventWarning EventType = "warning"
	EventInfo    EventType = "info"
)

var eventTypes = []EventType{
	EventFlowStarted, EventFlowCompleted, EventFlowFailed, EventFlowPaused, EventFlowResumed,
	EventTokenReceived, EventTokenChunk,
	EventIterationStarted, EventIterationCompleted, EventIterationFailed,
	EventToolStarted, EventToolCompleted, EventToolFailed,
	EventProgressUpdate, EventStepStarted, EventStepCompleted,
	EventMessageAdded, EventMessageRemoved,
	EventVertexStarted, EventVertexEnd, EventVerticesSorted, EventBuildStart, EventBuildEnd,
	EventError, EventWarning, EventInfo,
}

var knownEventTypes = func() map[EventType]struct{} {
	m := make(map[EventType]struct{}, len(eventTypes))
	for _, t := range eventTypes {
		m[t] = struct{}{}
	}
	return m
}()

// Types returns the full event type vocabulary in declaration order.
func Types() []EventType {
	out := make([]EventType, len(eventTypes))
	copy(out, eventTypes)
	return out
}

// Valid reports whether t is one of the declared event types.
func (t EventType) Valid() bool {
	_, ok := knownEventTypes[t]
	return ok
}

// String implements fmt.Stringer.
func (t EventType) String() string { return string(t) }

// IsTerminal reports whether t ends a flow (completed or failed).
func (t EventType) IsTerminal() bool {
	return t == EventFlowCompleted || t == EventFlowFailed
}

// Payload keys used by the event factories.
const (
	KeyFlowID        = "flow_id"
	KeyToken         = "token"
	KeyChunk         = "chunk"
	KeyIndex         = "index"
	KeyIteration     = "iteration"
	KeyMaxIterations = "max_iterations"
	KeyUsage         = "usage"
	KeyTool          = "tool"
	KeyToolUseID     = "tool_use_id"
	KeyInput         = "input"
	KeyResult        = "result"
	KeyIsError       = "is_error"
	KeyError         = "error"
	KeyMessage       = "message"
	KeyDetails       = "details"
	KeyAnswer        = "answer"
	KeyIterations    = "iterations"
	KeyStep          = "step"
	KeyTotal         = "total"
	KeyPercent       = "percent"
	KeyVertexID      = "vertex_id"
	KeyVertexIDs     = "vertex_ids"
	KeySuccess       = "success"
	KeyRole          = "role"
	KeyMessageID     = "message_id"
	KeyReplay        = "replay"
)

// requiredKeys documents the payload keys each factory guarantees.
var requiredKeys = map[EventType][]string{
	EventFlowStarted:        {KeyFlowID},
	EventFlowCompleted:      {KeyFlowID},
	EventFlowFailed:         {KeyFlowID, KeyError},
	EventFlowPaused:         {KeyFlowID},
	EventFlowResumed:        {KeyFlowID},
	EventTokenReceived:      {KeyToken},
	EventTokenChunk:         {KeyChunk},
	EventIterationStarted:   {KeyIteration},
	EventIterationCompleted: {KeyIteration},
	EventIterationFailed:    {KeyIteration, KeyError},
	EventToolStarted:        {KeyTool, KeyInput},
	EventToolCompleted:      {KeyTool, KeyResult},
	EventToolFailed:         {KeyTool, KeyError},
	EventProgressUpdate:     {KeyStep, KeyTotal},
	EventStepStarted:        {KeyStep},
	EventStepCompleted:      {KeyStep},
	EventMessageAdded:       {KeyRole},
	EventMessageRemoved:     {KeyMessageID},
	EventVertexStarted:      {KeyVertexID},
	EventVertexEnd:          {KeyVertexID},
	EventVerticesSorted:     {KeyVertexIDs},
	EventBuildStart:         {KeyFlowID},
	EventBuildEnd:           {KeyFlowID, KeySuccess},
	EventError:              {KeyMessage},
	EventWarning:            {KeyMessage},
	EventInfo:               {KeyMessage},
}

// RequiredKeys returns the payload keys the factory for t always sets.
func RequiredKeys(t EventType) []string {
	keys := requiredKeys[t]
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}
