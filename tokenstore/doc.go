// Package tokenstore provides encrypted at-rest persistence for the active
// session, using a compact binary session encoding sealed with an AEAD.
//
// # Binary encoding
//
// Sessions are serialized to a versioned binary format before sealing. The
// encoder is append-only: new versions add fields but never reinterpret old
// ones.
//
// # Architecture boundaries
//
// This package owns the [Store] backends (memory and Redis), the [Session]
// snapshot model, and the [Cipher]. It does NOT interpret tokens, decide
// when a session is established, or enforce authentication policy — those
// responsibilities belong to the Manager.
//
// # What this package must NOT do
//
//   - Import authgate (no upward imports).
//   - Persist plaintext token material through any backend.
//   - Inspect the sealed blobs it stores; backends move opaque bytes only.
package tokenstore
