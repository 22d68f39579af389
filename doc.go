// Package authgate provides the security core of a client application:
// session/token lifecycle management, per-identity login attempt guarding,
// credential validation and sanitization, and a hardened outbound request
// dispatcher with automatic authentication header injection.
//
// The package is designed for concurrent callers: Manager and Dispatcher
// methods are safe to call from multiple goroutines after initialization
// through [Builder.Build].
//
// # Architecture boundaries
//
// authgate is the public surface. It exposes [Manager], [Dispatcher],
// [Builder], [Config], and value types (Identity, TokenPair, SecurityReport,
// MetricsSnapshot). Internal coordination — attempt windows, audit dispatch —
// lives under internal/ and is never exported directly. Session persistence
// and credential validation live in the tokenstore and validator
// subpackages.
//
// # What this package must NOT do
//
//   - Hash or store passwords at rest; secret verification belongs to the
//     [Authenticator] implementation (an upstream identity provider).
//   - Expose Redis clients, stored blobs, or attempt records in its public
//     API; consumers only see the authenticated identity and typed errors.
//   - Retry a request after [ErrSessionExpired]; the forced logout has
//     already cleared the session and only a fresh login recovers it.
package authgate
