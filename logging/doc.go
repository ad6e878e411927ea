// Package logging provides a minimal logging interface and adapters for flowstream.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the event manager, the streaming loop and the SSE writer use for
// observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - StructuredLogger with component/flow context and domain helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	mgr := engine.NewManager(func(o *engine.Options) { o.Logger = logger })
//
// Messages are dotted event names (engine.emit.queue_full) followed by
// key/value attributes.
package logging
