package guard

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrUnavailable indicates the guard backend is unreachable. Callers
// should fail closed: an attempt that cannot be checked is not allowed.
var ErrUnavailable = errors.New("guard backend unavailable")

// Config holds the attempt window parameters.
type Config struct {
	// MaxAttempts is the failure count at which the identity locks.
	MaxAttempts int
	// Window is the sliding interval over which failures count.
	Window time.Duration
}

// Store tracks failed authentication attempts per identity and action.
// Implementations must serialize read-modify-write per key so that two
// concurrent checks cannot both be allowed once the limit is reached.
type Store interface {
	// CheckAllowed prunes expired attempts for identity+action and
	// reports whether another attempt may proceed.
	CheckAllowed(ctx context.Context, identity, action string) (bool, error)
	// RecordFailure appends the current timestamp to the record.
	RecordFailure(ctx context.Context, identity, action string) error
	// Clear removes the record entirely.
	Clear(ctx context.Context, identity, action string) error
}

// Key normalizes an identity+action pair into the record key. Identities
// are case-folded so "A@b.com" and "a@b.com" share one window.
func Key(identity, action string) string {
	return strings.ToLower(strings.TrimSpace(identity)) + ":" + action
}
