// Package core provides the foundational domain types shared by every
// flowstream component. It defines:
//
//   - Events (immutable records of what happened during a flow) and the
//     closed event type vocabulary
//   - The bounded EventQueue with drop-on-full semantics
//   - Server-Sent-Events framing for transport consumers
//   - Conversation messages and content blocks (text, tool use, tool result)
//   - RunContext, the mutable execution scope of a single flow
//   - The Tool interface resolved by name during tool dispatch
//
// The package intentionally keeps orchestration (event fan-out, the execution
// loop, model transports) out of scope, exposing small types that the engine,
// flow and model packages build upon.
package core
