// Package rate provides the fixed-window admission-control primitive behind
// Engine.Admit.
//
// # Window semantics
//
// Fixed-window counters: one atomic increment per request, window TTL set on
// the first hit, count reset on rollover. The increment IS the decision —
// there is no separate check step, so concurrent callers for the same key can
// never over-admit. Redis keys use the "<prefix>:rw:" namespace.
//
// # Failure policy
//
// When the counter backend is unreachable the limiter applies the configured
// policy: fail-closed rejects (safe default), fail-open admits. Either way the
// storage error is surfaced to the caller for accounting.
//
// # What this package must NOT do
//
//   - Implement per-operation throttle policy (that belongs to the engine).
//   - Be imported outside the authkit module.
package rate
