package guard

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis is the shared guard backend: a sorted set per key holds one
// member per failed attempt scored by its unix-nano timestamp, so
// pruning is a single ZREMRANGEBYSCORE. Each mutation is one atomic
// round trip; cross-process interleavings resolve last-writer-wins.
type Redis struct {
	client redis.UniversalClient
	cfg    Config
	prefix string
	now    func() time.Time
}

// NewRedis creates a guard store backed by the given Redis client.
func NewRedis(client redis.UniversalClient, prefix string, cfg Config) *Redis {
	return &Redis{
		client: client,
		cfg:    cfg,
		prefix: prefix,
		now:    time.Now,
	}
}

func (r *Redis) key(identity, action string) string {
	return r.prefix + ":att:" + Key(identity, action)
}

// CheckAllowed implements [Store].
func (r *Redis) CheckAllowed(ctx context.Context, identity, action string) (bool, error) {
	key := r.key(identity, action)
	cutoff := strconv.FormatInt(r.now().Add(-r.cfg.Window).UnixNano(), 10)

	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", cutoff)
	card := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return card.Val() < int64(r.cfg.MaxAttempts), nil
}

// RecordFailure implements [Store].
func (r *Redis) RecordFailure(ctx context.Context, identity, action string) error {
	key := r.key(identity, action)
	now := r.now()
	cutoff := strconv.FormatInt(now.Add(-r.cfg.Window).UnixNano(), 10)

	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", cutoff)
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: uuid.NewString(),
	})
	// Key expires with the window so abandoned records age out on their own.
	pipe.Expire(ctx, key, r.cfg.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return nil
}

// Clear implements [Store].
func (r *Redis) Clear(ctx context.Context, identity, action string) error {
	if err := r.client.Del(ctx, r.key(identity, action)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
