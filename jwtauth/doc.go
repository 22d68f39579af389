// Package jwtauth provides a self-contained [authgate.Authenticator] that
// mints HS256 access tokens and rotates opaque single-use refresh tokens
// against a pluggable user source.
//
// It exists so a deployment without an external identity provider can run
// the full session lifecycle, and so tests have a realistic provider.
//
// # Architecture boundaries
//
// This package owns token minting, refresh rotation, and user lookup. It
// does NOT touch attempt guarding, persistence, or notifications — those
// belong to the Manager that wraps it.
//
// # What this package must NOT do
//
//   - Store plaintext secrets outside the supplied [UserSource].
//   - Hand out a refresh token that can be redeemed twice.
package jwtauth
