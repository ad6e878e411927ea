package testutil

import (
	"sync"
	"time"

	"github.com/hupe1980/flowstream/core"
)

// EventBuilder provides a fluent helper for constructing events in tests.
// Example:
//
//	ev := NewEventBuilder(core.EventTokenReceived).With("token", "hi").ID("ev-1").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type EventBuilder struct {
	typ  core.EventType
	data map[string]any
	id   string
	at   time.Time
}

// NewEventBuilder creates a builder for an event of type t.
func NewEventBuilder(t core.EventType) *EventBuilder {
	return &EventBuilder{typ: t, data: map[string]any{}}
}

// With sets one payload entry (chainable).
func (b *EventBuilder) With(key string, value any) *EventBuilder { b.data[key] = value; return b }

// ID overrides the auto-generated event ID (chainable). Use mainly in tests where determinism matters.
func (b *EventBuilder) ID(id string) *EventBuilder { b.id = id; return b }

// At pins the timestamp (chainable).
func (b *EventBuilder) At(ts time.Time) *EventBuilder { b.at = ts; return b }

// Build constructs the core.Event value.
func (b *EventBuilder) Build() core.Event {
	ev := core.NewEvent(b.typ, b.data)
	if b.id != "" {
		ev.ID = b.id
	}
	if !b.at.IsZero() {
		ev.Timestamp = b.at.UTC()
	}
	return ev
}

// Recorder collects events delivered to it. Its Listen method matches the
// engine listener signature.
type Recorder struct {
	mu     sync.Mutex
	events []core.Event
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Listen records ev.
func (r *Recorder) Listen(ev core.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, ev)

	return nil
}

// Events returns a copy of all recorded events in delivery order.
func (r *Recorder) Events() []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]core.Event, len(r.events))
	copy(out, r.events)

	return out
}

// Types returns the recorded event types in delivery order.
func (r *Recorder) Types() []core.EventType {
	events := r.Events()

	out := make([]core.EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}

	return out
}

// OfType returns the recorded events of type t.
func (r *Recorder) OfType(t core.EventType) []core.Event {
	var out []core.Event
	for _, ev := range r.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// Tokens concatenates the token payloads of every token.received event.
func (r *Recorder) Tokens() string {
	s := ""
	for _, ev := range r.OfType(core.EventTokenReceived) {
		s += ev.GetString(core.KeyToken)
	}
	return s
}

// Reset forgets all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = nil
}
