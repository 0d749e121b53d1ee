// Package token implements the signed token codec used by authkit: compact,
// URL-safe JWTs carrying subject identity, token kind, a unique token id, and
// a refresh lineage id.
//
// # Wire format
//
// HMAC-signed JWS compact serialization (HS256/HS384/HS512). The kind claim
// is part of the signed payload, so an access token can never be replayed as
// a refresh token or vice versa. Signature comparison is constant-time inside
// golang-jwt.
//
// # What this package must NOT do
//
//   - Perform I/O. Issue and Parse are pure CPU.
//   - Track revocation state; that belongs to the ledger package.
//   - Leak key material in error messages.
package token
