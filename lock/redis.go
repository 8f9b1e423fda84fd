package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// Redis is a distributed Locker backed by bsm/redislock.
//
// The TTL bounds how long a crashed holder can block a key. It must be
// comfortably longer than one append (a single short transaction).
type Redis struct {
	client *redislock.Client
	prefix string
	ttl    time.Duration
	retry  redislock.RetryStrategy
	onErr  func(key string, err error)
}

// RedisOptions configures a Redis locker. Zero values take defaults.
type RedisOptions struct {
	Prefix       string        // key namespace, default "stock-ledger:lock:"
	TTL          time.Duration // default 10s
	RetryBackoff time.Duration // default 25ms
	MaxRetries   int           // default 200

	// OnReleaseError is called when a release fails, typically because the
	// TTL expired before the holder finished.
	OnReleaseError func(key string, err error)
}

func NewRedis(client redis.UniversalClient, opts RedisOptions) *Redis {
	if opts.Prefix == "" {
		opts.Prefix = "stock-ledger:lock:"
	}
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Second
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 25 * time.Millisecond
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 200
	}
	return &Redis{
		client: redislock.New(client),
		prefix: opts.Prefix,
		ttl:    opts.TTL,
		retry:  redislock.LimitRetry(redislock.LinearBackoff(opts.RetryBackoff), opts.MaxRetries),
		onErr:  opts.OnReleaseError,
	}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	l, err := r.client.Obtain(ctx, r.prefix+key, r.ttl, &redislock.Options{RetryStrategy: r.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	return func() {
		// Release even if the caller's context was cancelled meanwhile.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := l.Release(rctx); err != nil && r.onErr != nil {
			r.onErr(key, err)
		}
	}, nil
}
