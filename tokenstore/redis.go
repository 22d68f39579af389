package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Redis-backed [Store]. The blob is sealed before it reaches
// this type, so a compromised Redis instance sees ciphertext only.
type Redis struct {
	redis redis.UniversalClient
	key   string
}

// NewRedis creates a Redis-backed [Store]. prefix namespaces the key;
// storageKey identifies the slot within that namespace.
func NewRedis(client redis.UniversalClient, prefix, storageKey string) *Redis {
	return &Redis{
		redis: client,
		key:   prefix + ":" + storageKey,
	}
}

func (r *Redis) Save(ctx context.Context, sealed []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.redis.Set(ctx, r.key, sealed, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *Redis) Load(ctx context.Context) ([]byte, error) {
	data, err := r.redis.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return data, nil
}

func (r *Redis) Clear(ctx context.Context) error {
	if err := r.redis.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
