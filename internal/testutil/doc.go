// Package testutil contains helper builders and utilities used across tests
// to reduce boilerplate when scripting model turns, constructing run
// contexts and recording emitted events. They are not intended for
// production usage.
package testutil
