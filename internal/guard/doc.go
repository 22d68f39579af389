// Package guard bounds the rate of authentication attempts per identity
// to blunt credential-stuffing and brute-force attacks.
//
// A record is a sliding window of failure timestamps keyed by the
// normalized identity plus an action name. Timestamps older than the
// window are pruned before every read and write; once the remaining
// count reaches the configured maximum the identity is locked out until
// the oldest attempt ages out or the record is cleared by a successful
// authentication. There is no manual unlock.
package guard
