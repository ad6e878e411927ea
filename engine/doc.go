// Package engine implements the event hub of flowstream.
//
// The Manager sits between the streaming loop and every consumer of its
// events. It owns the bounded event queue drained by transports, the
// registry of symbolic event names, the listener set and the lifecycle
// observers.
//
// # Registration
//
// Names bind to event types and optionally to a callback. Names must start
// with "on_"; re-registering a name overwrites the binding:
//
//	mgr := engine.NewManager()
//	mgr.RegisterDefaultEvents()
//	_ = mgr.RegisterEvent("on_token", core.EventTokenReceived, func(ev core.Event) error {
//	    fmt.Print(ev.GetString(core.KeyToken))
//	    return nil
//	})
//	_, _ = mgr.EmitNamed("on_token", map[string]any{"token": "hi"})
//
// # Emission
//
// Emit and EmitEvent attempt queue admission first and then notify the
// registered callbacks, the listeners and the lifecycle observers, in that
// order. Queue rejection is reported through the return value, the dropped
// counter and a warning log; it never suppresses notification.
//
// # Failure isolation
//
// Handlers that return an error or panic are logged and counted in Stats.
// No consumer failure propagates to the emitter or to other consumers.
//
// # Lifecycle
//
// NewManager returns a ready manager. Teardown clears listeners, drains the
// queue and marks it not ready; emissions are then discarded until
// Initialize is called again.
package engine
