package engine

import "errors"

var (
	// ErrInvalidEventName is returned when a registration name is empty or
	// does not start with EventNamePrefix.
	ErrInvalidEventName = errors.New("invalid event name")

	// ErrInvalidEventType is returned when a registration targets a type
	// outside the event vocabulary.
	ErrInvalidEventType = errors.New("invalid event type")

	// ErrUnknownEvent is returned by EmitNamed for unregistered names.
	ErrUnknownEvent = errors.New("unknown event name")

	// ErrNotReady is returned by EmitNamed after Teardown.
	ErrNotReady = errors.New("event manager not ready")
)
