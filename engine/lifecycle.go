package engine

import (
	"fmt"
	"maps"
	"time"

	"github.com/hupe1980/flowstream/core"
	"github.com/hupe1980/flowstream/logging"
)

// LifecyclePhase identifies the flow lifecycle point a LifecycleEvent reports.
//
// The Manager translates flow.started, flow.completed and flow.failed events
// into this coarser representation for observer systems that predate the
// streaming event vocabulary. All other event types are not translated.
type LifecyclePhase string

const (
	// LifecycleFlowStart is reported for flow.started.
	LifecycleFlowStart LifecyclePhase = "flow_start"

	// LifecycleFlowEnd is reported for flow.completed.
	LifecycleFlowEnd LifecyclePhase = "flow_end"

	// LifecycleFlowError is reported for flow.failed.
	LifecycleFlowError LifecyclePhase = "flow_error"
)

// LifecycleEvent is the legacy lifecycle representation of a flow event.
type LifecycleEvent struct {
	Phase     LifecyclePhase
	FlowID    string
	EventID   string
	Timestamp time.Time

	// Error carries the failure message of LifecycleFlowError.
	Error string

	// Data is a copy of the originating event payload.
	Data map[string]any
}

// LifecycleObserver receives lifecycle translations.
//
// Implementations should be fast: observers run synchronously on the
// emitting goroutine after all listeners. A returned error or panic is
// logged and counted; it never reaches the emitter.
type LifecycleObserver interface {
	OnLifecycle(ev LifecycleEvent) error
}

// LifecycleObserverFunc wraps a function as a LifecycleObserver.
//
// Example:
//
//	mgr.AddObserver(engine.LifecycleObserverFunc(func(ev engine.LifecycleEvent) error {
//	    log.Printf("flow %s: %s", ev.FlowID, ev.Phase)
//	    return nil
//	}))
type LifecycleObserverFunc func(ev LifecycleEvent) error

// OnLifecycle calls f.
func (f LifecycleObserverFunc) OnLifecycle(ev LifecycleEvent) error { return f(ev) }

// ToLifecycle translates a flow event. ok is false for event types without a
// lifecycle counterpart.
func ToLifecycle(ev core.Event) (le LifecycleEvent, ok bool) {
	var phase LifecyclePhase

	switch ev.Type {
	case core.EventFlowStarted:
		phase = LifecycleFlowStart
	case core.EventFlowCompleted:
		phase = LifecycleFlowEnd
	case core.EventFlowFailed:
		phase = LifecycleFlowError
	default:
		return LifecycleEvent{}, false
	}

	le = LifecycleEvent{
		Phase:     phase,
		FlowID:    ev.GetString(core.KeyFlowID),
		EventID:   ev.ID,
		Timestamp: ev.Timestamp,
		Data:      maps.Clone(ev.Data),
	}

	if phase == LifecycleFlowError {
		le.Error = ev.GetString(core.KeyError)
	}

	return le, true
}

func (m *Manager) notifyObservers(observers []LifecycleObserver, ev core.Event) {
	le, ok := ToLifecycle(ev)
	if !ok {
		return
	}

	for _, o := range observers {
		fn := func(core.Event) error { return o.OnLifecycle(le) }
		if !m.invoke("observer", fmt.Sprintf("%T", o), fn, ev) {
			m.observerFailures.Add(1)
		}
	}
}

// LoggingObserver writes every lifecycle event to a logger.
//
// Example:
//
//	mgr := engine.NewManager(func(o *engine.Options) {
//	    o.Observers = append(o.Observers, engine.NewLoggingObserver(logger))
//	})
type LoggingObserver struct {
	logger logging.Logger
}

// NewLoggingObserver creates a logging observer. A nil logger discards.
func NewLoggingObserver(logger logging.Logger) *LoggingObserver {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &LoggingObserver{logger: logger}
}

// OnLifecycle logs the event; failures are logged at error level.
func (o *LoggingObserver) OnLifecycle(ev LifecycleEvent) error {
	if ev.Phase == LifecycleFlowError {
		o.logger.Error("engine.lifecycle", "phase", string(ev.Phase), "flow_id", ev.FlowID, "error", ev.Error)
		return nil
	}

	o.logger.Info("engine.lifecycle", "phase", string(ev.Phase), "flow_id", ev.FlowID)

	return nil
}
