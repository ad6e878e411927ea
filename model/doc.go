// Package model defines the provider-agnostic abstractions and concrete
// helpers for interacting with language models inside flowstream.
//
// Core goals:
//   - Express streaming as an iterator of deltas plus an optional final message
//   - Keep a non-streaming Complete path for fallback
//   - Normalize tool definitions and tool use blocks across vendors
//   - Facilitate deterministic testing (ScriptedClient)
//
// Providers (model/anthropic, model/openai) implement Client so the
// streaming loop remains decoupled from vendor SDKs.
package model
