package engine

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/flowstream/core"
	"github.com/hupe1980/flowstream/logging"
)

// Handler consumes an emitted event. Both registration callbacks and
// listeners use it. A returned error or a panic is logged and counted by the
// Manager and never reaches the emitter.
type Handler func(ev core.Event) error

// RegisteredEvent binds a symbolic name to an event type and an optional
// callback.
type RegisteredEvent struct {
	Name     string
	Type     core.EventType
	Callback Handler
}

// Options configures a Manager.
type Options struct {
	// QueueSize bounds the internal event queue. Ignored when Queue is set.
	// Defaults to core.DefaultQueueSize.
	QueueSize int

	// Queue lets the caller share a pre-built queue with a transport.
	Queue *core.EventQueue

	// Observers receive the lifecycle translation of flow events.
	Observers []LifecycleObserver

	// RegisterDefaults binds the default and streaming vocabularies at
	// construction.
	RegisterDefaults bool

	// Logger defaults to logging.NoOpLogger.
	Logger logging.Logger
}

// Stats is a point-in-time view of Manager counters.
type Stats struct {
	Emitted          int64           `json:"emitted"`
	Rejected         int64           `json:"rejected"`
	NotReady         int64           `json:"not_ready"`
	CallbackFailures int64           `json:"callback_failures"`
	ListenerFailures int64           `json:"listener_failures"`
	ObserverFailures int64           `json:"observer_failures"`
	Listeners        int             `json:"listeners"`
	Registered       int             `json:"registered"`
	Queue            core.QueueStats `json:"queue"`
}

type listenerEntry struct {
	id string
	fn Handler
}

// Manager is the event hub between the streaming loop and its consumers.
//
// Every emission is first offered to the bounded queue, then dispatched to
// the callbacks of all registered names bound to the event type (in
// registration order), then to every listener (in subscription order), and
// finally translated for lifecycle observers. Dispatch continues when the
// queue rejects the event: listeners never miss an event because the queue
// is full.
//
// Consumer failures are isolated. An error or panic in one callback, listener
// or observer is logged and counted; the remaining consumers still run and
// Emit never returns an error because of them.
//
// Dispatch is synchronous on the emitting goroutine. Registration and
// subscription are safe for concurrent use, including from within a handler.
type Manager struct {
	queue  *core.EventQueue
	logger logging.Logger

	mu        sync.RWMutex
	events    []RegisteredEvent
	index     map[string]int
	listeners []listenerEntry
	observers []LifecycleObserver
	ready     bool

	emitted          atomic.Int64
	rejected         atomic.Int64
	notReady         atomic.Int64
	callbackFailures atomic.Int64
	listenerFailures atomic.Int64
	observerFailures atomic.Int64
}

// NewManager creates an initialized Manager.
func NewManager(optFns ...func(o *Options)) *Manager {
	opts := Options{
		QueueSize: core.DefaultQueueSize,
		Logger:    logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	queue := opts.Queue
	if queue == nil {
		queue = core.NewEventQueue(opts.QueueSize)
	}

	m := &Manager{
		queue:     queue,
		logger:    opts.Logger,
		index:     map[string]int{},
		observers: append([]LifecycleObserver(nil), opts.Observers...),
	}

	m.Initialize()

	if opts.RegisterDefaults {
		m.RegisterDefaultEvents()
		m.RegisterStreamingEvents()
	}

	return m
}

// Queue returns the queue transports drain.
func (m *Manager) Queue() *core.EventQueue { return m.queue }

// RegisterEvent binds name to t with an optional callback. Re-registering a
// name overwrites its binding in place, keeping its dispatch position.
func (m *Manager) RegisterEvent(name string, t core.EventType, cb Handler) error {
	if name == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidEventName)
	}

	if !strings.HasPrefix(name, EventNamePrefix) || len(name) == len(EventNamePrefix) {
		return fmt.Errorf("%w: %q must start with %q", ErrInvalidEventName, name, EventNamePrefix)
	}

	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidEventType, t)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	reg := RegisteredEvent{Name: name, Type: t, Callback: cb}
	if i, ok := m.index[name]; ok {
		m.events[i] = reg
		return nil
	}

	m.index[name] = len(m.events)
	m.events = append(m.events, reg)

	return nil
}

// UnregisterEvent removes a binding. It reports whether name was registered.
func (m *Manager) UnregisterEvent(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.index[name]
	if !ok {
		return false
	}

	m.events = append(m.events[:i:i], m.events[i+1:]...)
	delete(m.index, name)

	for j := i; j < len(m.events); j++ {
		m.index[m.events[j].Name] = j
	}

	return true
}

// Lookup returns the binding registered under name.
func (m *Manager) Lookup(name string) (RegisteredEvent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.index[name]
	if !ok {
		return RegisteredEvent{}, false
	}

	return m.events[i], true
}

// RegisteredEvents returns all bindings in registration order.
func (m *Manager) RegisteredEvents() []RegisteredEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]RegisteredEvent, len(m.events))
	copy(out, m.events)

	return out
}

// Subscribe adds a listener receiving every event and returns its id.
func (m *Manager) Subscribe(fn Handler) string {
	id := core.NewID()

	m.mu.Lock()
	m.listeners = append(m.listeners, listenerEntry{id: id, fn: fn})
	m.mu.Unlock()

	return id
}

// Unsubscribe removes a listener. It reports whether id was subscribed.
func (m *Manager) Unsubscribe(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, l := range m.listeners {
		if l.id == id {
			m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
			return true
		}
	}

	return false
}

// ClearListeners removes every listener.
func (m *Manager) ClearListeners() {
	m.mu.Lock()
	m.listeners = nil
	m.mu.Unlock()
}

// ListenerCount returns the number of subscribed listeners.
func (m *Manager) ListenerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.listeners)
}

// AddObserver attaches a lifecycle observer.
func (m *Manager) AddObserver(o LifecycleObserver) {
	m.mu.Lock()
	m.observers = append(m.observers, o)
	m.mu.Unlock()
}

// Emit builds an event of type t from data and dispatches it. See EmitEvent.
func (m *Manager) Emit(t core.EventType, data map[string]any) bool {
	return m.EmitEvent(core.NewEvent(t, data))
}

// EmitNamed emits an event of the type bound to name.
func (m *Manager) EmitNamed(name string, data map[string]any) (bool, error) {
	reg, ok := m.Lookup(name)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}

	if !m.IsReady() {
		m.notReady.Add(1)
		return false, ErrNotReady
	}

	return m.EmitEvent(core.NewEvent(reg.Type, data)), nil
}

// EmitEvent offers ev to the queue and dispatches it to consumers. It returns
// whether the queue admitted the event; consumers are notified either way.
// Events of unknown type and emissions after Teardown are discarded and
// return false.
func (m *Manager) EmitEvent(ev core.Event) bool {
	if !ev.Type.Valid() {
		m.logger.Warn("engine.emit.invalid_type", "event_type", string(ev.Type))
		return false
	}

	if ev.ID == "" {
		ev.ID = core.NewID()
	}

	if ev.Data == nil {
		ev.Data = map[string]any{}
	}

	m.mu.RLock()
	ready := m.ready
	callbacks := m.callbacksFor(ev.Type)
	listeners := append([]listenerEntry(nil), m.listeners...)
	observers := append([]LifecycleObserver(nil), m.observers...)
	m.mu.RUnlock()

	if !ready {
		m.notReady.Add(1)
		m.logger.Warn("engine.emit.not_ready", "event_type", string(ev.Type), "event_id", ev.ID)
		return false
	}

	m.emitted.Add(1)

	admitted := m.queue.Enqueue(ev)
	if !admitted {
		m.rejected.Add(1)
		m.logger.Warn("engine.emit.queue_full",
			"event_type", string(ev.Type),
			"event_id", ev.ID,
			"max_size", m.queue.MaxSize(),
			"dropped", m.queue.DroppedEvents(),
		)
	}

	for _, reg := range callbacks {
		if !m.invoke("callback", reg.Name, reg.Callback, ev) {
			m.callbackFailures.Add(1)
		}
	}

	for _, l := range listeners {
		if !m.invoke("listener", l.id, l.fn, ev) {
			m.listenerFailures.Add(1)
		}
	}

	if len(observers) > 0 {
		m.notifyObservers(observers, ev)
	}

	return admitted
}

// callbacksFor must be called with m.mu held.
func (m *Manager) callbacksFor(t core.EventType) []RegisteredEvent {
	var out []RegisteredEvent
	for _, reg := range m.events {
		if reg.Type == t && reg.Callback != nil {
			out = append(out, reg)
		}
	}
	return out
}

// invoke runs fn and reports whether it succeeded.
func (m *Manager) invoke(kind, id string, fn Handler, ev core.Event) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			m.logger.Warn("engine."+kind+".panic",
				"consumer", id,
				"event_type", string(ev.Type),
				"event_id", ev.ID,
				"panic", fmt.Sprint(r),
			)
		}
	}()

	if err := fn(ev); err != nil {
		m.logger.Warn("engine."+kind+".failed",
			"consumer", id,
			"event_type", string(ev.Type),
			"event_id", ev.ID,
			"error", err.Error(),
		)
		return false
	}

	return true
}

// Initialize marks the manager ready. Calling it again has no effect.
func (m *Manager) Initialize() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ready {
		return
	}

	m.ready = true
	m.logger.Debug("engine.initialized", "queue_size", m.queue.MaxSize())
}

// Teardown clears listeners, drains the queue and marks the manager not
// ready. Registered names survive so a later Initialize re-arms the manager.
func (m *Manager) Teardown() {
	m.mu.Lock()
	m.listeners = nil
	m.ready = false
	m.mu.Unlock()

	m.queue.Clear()
	m.logger.Debug("engine.teardown")
}

// IsReady reports whether the manager accepts emissions.
func (m *Manager) IsReady() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.ready
}

// Stats returns a snapshot of the manager counters.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	listeners, registered := len(m.listeners), len(m.events)
	m.mu.RUnlock()

	return Stats{
		Emitted:          m.emitted.Load(),
		Rejected:         m.rejected.Load(),
		NotReady:         m.notReady.Load(),
		CallbackFailures: m.callbackFailures.Load(),
		ListenerFailures: m.listenerFailures.Load(),
		ObserverFailures: m.observerFailures.Load(),
		Listeners:        listeners,
		Registered:       registered,
		Queue:            m.queue.Stats(),
	}
}
