package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/autopeer-io/roverhub/pkg/options"
)

// Lease decides whether this process runs the current pass.
type Lease interface {
	Acquire(ctx context.Context) (bool, error)
}

// LocalLease always grants the pass. It is enough for a single replica.
type LocalLease struct{}

func (LocalLease) Acquire(context.Context) (bool, error) { return true, nil }

// RedisLease grants the pass to whichever replica sets the key first. The key
// expires on its own; it is never deleted, so a replica that just finished a
// pass cannot hand it straight to another one.
type RedisLease struct {
	client  *redis.Client
	key     string
	ttl     time.Duration
	timeout time.Duration
	owner   string
}

// Connect initializes a Redis client from URL or host:port input.
func Connect(addr string) (*redis.Client, error) {
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opt, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: addr}), nil
}

func NewRedisLease(client *redis.Client, opts *options.RedisOptions) *RedisLease {
	return &RedisLease{
		client:  client,
		key:     opts.LockKey,
		ttl:     opts.LockTTL,
		timeout: opts.Timeout,
		owner:   uuid.NewString(),
	}
}

func (l *RedisLease) Acquire(ctx context.Context) (bool, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	ok, err := l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", l.key, err)
	}
	return ok, nil
}

func (l *RedisLease) Close() error {
	return l.client.Close()
}
