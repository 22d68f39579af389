package tokenstore

import (
	"context"
	"errors"
	"time"
)

// ErrNoSession is returned by [Store.Load] when no persisted session
// exists, or when the persisted session has passed its TTL.
var ErrNoSession = errors.New("no persisted session")

// ErrUnavailable is returned when the backing store cannot be reached.
var ErrUnavailable = errors.New("token store unavailable")

// Store persists a single opaque sealed blob per installation. Backends do
// not read the blob; sealing and opening happen above this interface.
type Store interface {
	// Save persists the sealed blob with the given TTL. A ttl <= 0
	// persists without expiry.
	Save(ctx context.Context, sealed []byte, ttl time.Duration) error

	// Load returns the persisted sealed blob, or [ErrNoSession].
	Load(ctx context.Context) ([]byte, error)

	// Clear removes the persisted blob. Clearing an empty store is a
	// no-op, not an error.
	Clear(ctx context.Context) error
}
