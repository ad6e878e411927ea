package core

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"time"

	"github.com/google/uuid"
)

// Event is an immutable record of something that happened during flow
// execution. It captures:
//   - Type, one of the constants of the closed EventType vocabulary
//   - Data, a type-specific payload documented per factory
//   - A high precision UTC timestamp
//   - An identifier unique per event
//
// Events are constructed once through a factory (NewTokenEvent,
// NewToolStartedEvent, ...) and must be treated as read-only afterwards: the
// same value is handed to the queue, to registered callbacks and to every
// listener.
type Event struct {
	Type      EventType
	Data      map[string]any
	Timestamp time.Time
	ID        string
}

// NewEvent creates an event of type t with a copy of data, a fresh id and the
// current timestamp. Prefer the typed factories for documented payloads.
func NewEvent(t EventType, data map[string]any) Event {
	payload := make(map[string]any, len(data))
	maps.Copy(payload, data)

	return Event{
		Type:      t,
		Data:      payload,
		Timestamp: time.Now().UTC(),
		ID:        NewID(),
	}
}

// NewID generates a new unique identifier for events, listeners and flows.
func NewID() string { return uuid.NewString() }

// Get returns the payload value stored under key.
func (e Event) Get(key string) (any, bool) {
	v, ok := e.Data[key]
	return v, ok
}

// GetString returns the payload value under key if it is a string.
func (e Event) GetString(key string) string {
	s, _ := e.Data[key].(string)
	return s
}

// UnixSeconds returns the timestamp as fractional seconds since Unix epoch.
func (e Event) UnixSeconds() float64 { return float64(e.Timestamp.UnixNano()) / 1e9 }

// Validate checks that the type belongs to the vocabulary and that every key
// the corresponding factory guarantees is present.
func (e Event) Validate() error {
	if !e.Type.Valid() {
		return fmt.Errorf("unknown event type %q", e.Type)
	}

	for _, k := range requiredKeys[e.Type] {
		if _, ok := e.Data[k]; !ok {
			return fmt.Errorf("event %s missing required key %q", e.Type, k)
		}
	}

	return nil
}

type wireEvent struct {
	Type      EventType      `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp float64        `json:"timestamp"`
	ID        string         `json:"id"`
}

// MarshalJSON renders the {type, data, timestamp, id} body used on the wire.
// The timestamp is encoded as fractional Unix seconds.
func (e Event) MarshalJSON() ([]byte, error) {
	data := e.Data
	if data == nil {
		data = map[string]any{}
	}

	return json.Marshal(wireEvent{
		Type:      e.Type,
		Data:      data,
		Timestamp: e.UnixSeconds(),
		ID:        e.ID,
	})
}

// UnmarshalJSON decodes the wire body produced by MarshalJSON.
func (e *Event) UnmarshalJSON(b []byte) error {
	var w wireEvent
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	sec, frac := math.Modf(w.Timestamp)

	e.Type = w.Type
	e.Data = w.Data
	e.Timestamp = time.Unix(int64(sec), int64(frac*1e9)).UTC()
	e.ID = w.ID

	return nil
}

// NewFlowStartedEvent marks the beginning of a flow. Extra data is merged
// into the payload.
func NewFlowStartedEvent(flowID string, data map[string]any) Event {
	ev := NewEvent(EventFlowStarted, data)
	ev.Data[KeyFlowID] = flowID
	return ev
}

// NewFlowCompletedEvent marks a successful flow carrying its final answer.
func NewFlowCompletedEvent(flowID, answer string, data map[string]any) Event {
	ev := NewEvent(EventFlowCompleted, data)
	ev.Data[KeyFlowID] = flowID
	ev.Data[KeyAnswer] = answer
	return ev
}

// NewFlowFailedEvent marks a failed flow. A nil err yields an empty message.
func NewFlowFailedEvent(flowID string, err error) Event {
	return NewEvent(EventFlowFailed, map[string]any{
		KeyFlowID: flowID,
		KeyError:  errorString(err),
	})
}

// NewFlowPausedEvent marks a flow paused by its owner.
func NewFlowPausedEvent(flowID string) Event {
	return NewEvent(EventFlowPaused, map[string]any{KeyFlowID: flowID})
}

// NewFlowResumedEvent marks a previously paused flow resuming.
func NewFlowResumedEvent(flowID string) Event {
	return NewEvent(EventFlowResumed, map[string]any{KeyFlowID: flowID})
}

// NewTokenEvent carries one streamed text delta (never the cumulative text)
// tagged with the iteration that produced it.
func NewTokenEvent(token string, iteration int) Event {
	return NewEvent(EventTokenReceived, map[string]any{
		KeyToken:     token,
		KeyIteration: iteration,
	})
}

// NewTokenChunkEvent carries a batched chunk of text with its sequence index.
func NewTokenChunkEvent(chunk string, index int) Event {
	return NewEvent(EventTokenChunk, map[string]any{
		KeyChunk: chunk,
		KeyIndex: index,
	})
}

// NewIterationStartedEvent marks the beginning of iteration n (1-based).
func NewIterationStartedEvent(iteration int) Event {
	return NewEvent(EventIterationStarted, map[string]any{KeyIteration: iteration})
}

// NewIterationCompletedEvent marks the end of iteration n with the token
// usage reported for that model call.
func NewIterationCompletedEvent(iteration int, usage TokenUsage) Event {
	return NewEvent(EventIterationCompleted, map[string]any{
		KeyIteration: iteration,
		KeyUsage:     usage.Map(),
	})
}

// NewIterationFailedEvent marks iteration n as failed.
func NewIterationFailedEvent(iteration int, err error) Event {
	return NewEvent(EventIterationFailed, map[string]any{
		KeyIteration: iteration,
		KeyError:     errorString(err),
	})
}

// NewToolStartedEvent is emitted before a tool runs.
func NewToolStartedEvent(tool, toolUseID string, input map[string]any) Event {
	return NewEvent(EventToolStarted, map[string]any{
		KeyTool:      tool,
		KeyToolUseID: toolUseID,
		KeyInput:     cloneInput(input),
	})
}

// NewToolCompletedEvent is emitted after a tool ran, successfully or not.
// Error-flagged results are still completions: the result is fed back to the
// model.
func NewToolCompletedEvent(tool, toolUseID string, input map[string]any, result string, isError bool) Event {
	return NewEvent(EventToolCompleted, map[string]any{
		KeyTool:      tool,
		KeyToolUseID: toolUseID,
		KeyInput:     cloneInput(input),
		KeyResult:    result,
		KeyIsError:   isError,
	})
}

// NewToolFailedEvent reports a tool that could not produce any result.
func NewToolFailedEvent(tool, toolUseID string, err error) Event {
	return NewEvent(EventToolFailed, map[string]any{
		KeyTool:      tool,
		KeyToolUseID: toolUseID,
		KeyError:     errorString(err),
	})
}

// NewProgressEvent reports progress as step of total with an optional message.
func NewProgressEvent(step, total int, message string) Event {
	percent := 0.0
	if total > 0 {
		percent = float64(step) / float64(total) * 100
	}

	return NewEvent(EventProgressUpdate, map[string]any{
		KeyStep:    step,
		KeyTotal:   total,
		KeyPercent: percent,
		KeyMessage: message,
	})
}

// NewStepStartedEvent marks the start of a named step.
func NewStepStartedEvent(step string) Event {
	return NewEvent(EventStepStarted, map[string]any{KeyStep: step})
}

// NewStepCompletedEvent marks the end of a named step.
func NewStepCompletedEvent(step string) Event {
	return NewEvent(EventStepCompleted, map[string]any{KeyStep: step})
}

// NewMessageAddedEvent reports a message appended to the conversation.
func NewMessageAddedEvent(messageID string, role Role, text string) Event {
	return NewEvent(EventMessageAdded, map[string]any{
		KeyMessageID: messageID,
		KeyRole:      string(role),
		KeyMessage:   text,
	})
}

// NewMessageRemovedEvent reports a message removed from the conversation.
func NewMessageRemovedEvent(messageID string) Event {
	return NewEvent(EventMessageRemoved, map[string]any{KeyMessageID: messageID})
}

// NewVertexStartedEvent reports a graph vertex starting to build.
func NewVertexStartedEvent(vertexID string) Event {
	return NewEvent(EventVertexStarted, map[string]any{KeyVertexID: vertexID})
}

// NewVertexEndEvent reports a graph vertex finishing with its outputs.
func NewVertexEndEvent(vertexID string, data map[string]any) Event {
	ev := NewEvent(EventVertexEnd, data)
	ev.Data[KeyVertexID] = vertexID
	return ev
}

// NewVerticesSortedEvent reports the build order of graph vertices.
func NewVerticesSortedEvent(vertexIDs []string) Event {
	ids := make([]string, len(vertexIDs))
	copy(ids, vertexIDs)
	return NewEvent(EventVerticesSorted, map[string]any{KeyVertexIDs: ids})
}

// NewBuildStartEvent reports a graph build starting.
func NewBuildStartEvent(flowID string) Event {
	return NewEvent(EventBuildStart, map[string]any{KeyFlowID: flowID})
}

// NewBuildEndEvent reports a graph build finishing.
func NewBuildEndEvent(flowID string, success bool) Event {
	return NewEvent(EventBuildEnd, map[string]any{
		KeyFlowID:  flowID,
		KeySuccess: success,
	})
}

// NewErrorEvent reports a failure to live consumers. details may be nil.
func NewErrorEvent(message string, details map[string]any) Event {
	return newDiagnostic(EventError, message, details)
}

// NewWarningEvent reports a recoverable problem. details may be nil.
func NewWarningEvent(message string, details map[string]any) Event {
	return newDiagnostic(EventWarning, message, details)
}

// NewInfoEvent reports an informational message. details may be nil.
func NewInfoEvent(message string, details map[string]any) Event {
	return newDiagnostic(EventInfo, message, details)
}

func newDiagnostic(t EventType, message string, details map[string]any) Event {
	ev := NewEvent(t, nil)
	ev.Data[KeyMessage] = message
	if len(details) > 0 {
		ev.Data[KeyDetails] = maps.Clone(details)
	}
	return ev
}

func cloneInput(input map[string]any) map[string]any {
	if input == nil {
		return map[string]any{}
	}
	return maps.Clone(input)
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
