// Package authkit provides a framework-independent authentication core with
// short-lived JWT access tokens, rotating single-use refresh tokens, a
// Redis-backed revocation ledger, and fixed-window request admission control.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authkit is the public surface. It exposes [Engine], [Builder], [Config],
// value types (TokenPair, Decision, MetricsSnapshot, etc.) and the exported
// error taxonomy. Flow orchestration, rate limiting, and audit dispatch live
// under internal/ and are never exported. The [token] and [ledger]
// subpackages are importable for callers that embed the codec or swap the
// ledger backend.
//
// # What this package must NOT do
//
//   - Own user records or credentials; identity lookup is delegated to the
//     caller-supplied [UserProvider].
//   - Consult the revocation ledger on the access-token verification path.
//     VerifyAccess is stateless: logout invalidates refresh tokens only, and
//     outstanding access tokens remain valid until their own short expiry.
//     That is a deliberate latency/consistency trade-off.
//   - Expose Redis clients, internal stores, or encoding details in its
//     public API.
//
// # Performance contract
//
// VerifyAccess is the hot path. It is pure CPU (one HMAC verification), takes
// no locks and performs no ledger round-trips. Login, Refresh, Logout, and
// Admit are allowed one ledger or counter round-trip per call.
package authkit
