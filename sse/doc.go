// Package sse streams engine events to HTTP clients as Server-Sent-Events.
//
// Every event becomes one frame
//
//	event: <type>
//	data: {"type":...,"data":{...},"timestamp":...,"id":"..."}
//
// terminated by a blank line. Stream drains an event queue into a Writer
// until the flow reaches flow.completed or flow.failed, reporting events the
// bounded queue had to drop as warning frames; Handler wires both behind an
// http.Handler.
package sse
