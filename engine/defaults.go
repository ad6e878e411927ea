package engine

import "github.com/hupe1980/flowstream/core"

// EventNamePrefix is the reserved prefix every registered event name carries.
const EventNamePrefix = "on_"

type namedType struct {
	name string
	typ  core.EventType
}

// defaultEvents is the standard vocabulary shared with graph-based consumers.
var defaultEvents = []namedType{
	{"on_token", core.EventTokenReceived},
	{"on_error", core.EventError},
	{"on_end", core.EventFlowCompleted},
	{"on_message", core.EventMessageAdded},
	{"on_remove_message", core.EventMessageRemoved},
	{"on_end_vertex", core.EventVertexEnd},
	{"on_build_start", core.EventBuildStart},
	{"on_build_end", core.EventBuildEnd},
}

// streamingEvents covers the streaming loop vocabulary.
var streamingEvents = []namedType{
	{"on_token_received", core.EventTokenReceived},
	{"on_iteration_started", core.EventIterationStarted},
	{"on_iteration_completed", core.EventIterationCompleted},
	{"on_tool_started", core.EventToolStarted},
	{"on_tool_completed", core.EventToolCompleted},
	{"on_progress", core.EventProgressUpdate},
	{"on_flow_started", core.EventFlowStarted},
	{"on_flow_completed", core.EventFlowCompleted},
	{"on_flow_failed", core.EventFlowFailed},
}

// RegisterDefaultEvents binds the standard names (on_token, on_error, on_end,
// on_message, on_remove_message, on_end_vertex, on_build_start, on_build_end)
// without callbacks. Existing bindings of the same names are overwritten.
func (m *Manager) RegisterDefaultEvents() {
	m.registerAll(defaultEvents)
}

// RegisterStreamingEvents binds the streaming loop names (on_token_received,
// on_iteration_started, on_tool_started, on_flow_completed, ...) without
// callbacks.
func (m *Manager) RegisterStreamingEvents() {
	m.registerAll(streamingEvents)
}

func (m *Manager) registerAll(events []namedType) {
	for _, e := range events {
		// The tables only hold valid names and types.
		_ = m.RegisterEvent(e.name, e.typ, nil)
	}
}
