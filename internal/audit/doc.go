// Package audit provides the asynchronous audit event model and dispatcher
// used by the authkit engine.
//
// Events are forwarded to a caller-supplied sink by a single dispatcher
// goroutine; emission never blocks foreground authentication work beyond the
// configured buffering policy (drop-if-full counts dropped events instead of
// waiting).
//
// # What this package must NOT do
//
//   - Include token strings or key material in events; only opaque ids.
//   - Be imported outside the authkit module (the root package re-exports the
//     sink types).
package audit
