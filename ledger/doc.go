// Package ledger tracks revoked refresh-token identifiers so logout and
// rotation-reuse detection work across concurrent callers.
//
// # Semantics
//
// An id present in the ledger is invalid regardless of signature validity.
// Entries carry a TTL equal to the remaining refresh lifetime: once the token
// would have expired on its own, the entry is moot and eligible for
// collection. RevokeOnce is the rotation primitive — exactly one caller racing
// on the same id observes first=true.
//
// # Backends
//
// [Redis] delegates atomicity to SET NX and garbage collection to key TTLs.
// [Memory] is a mutex-guarded map for embedded deployments and tests; its
// Sweep removes entries past expiry and is meant to run on an independent
// periodic schedule.
//
// # What this package must NOT do
//
//   - Parse or verify tokens.
//   - Store full tokens; only opaque identifiers ever reach the ledger.
package ledger
