package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrScript increments the counter and starts the window on the first hit.
// Runs atomically on the server.
var incrScript = redis.NewScript(`
local c = redis.call('INCR', KEYS[1])
if c == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {c, redis.call('PTTL', KEYS[1])}
`)

// RedisLimiter shares counters through Redis so every server instance
// enforces one budget per caller.
type RedisLimiter struct {
	client redis.Scripter
	opts   Options
	prefix string
}

func NewRedisLimiter(client redis.Scripter, opts Options) *RedisLimiter {
	return &RedisLimiter{client: client, opts: opts.withDefaults(), prefix: "doorkeeper:ratelimit:"}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := incrScript.Run(ctx, l.client, []string{l.prefix + l.opts.storeKey(key)}, l.opts.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit store: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("rate limit store: unexpected reply %v", res)
	}

	ttl := time.Duration(res[1]) * time.Millisecond
	if ttl < 0 {
		ttl = l.opts.Window
	}
	return decide(l.opts, int(res[0]), ttl), nil
}

// NewRedisClient parses url, connects and pings.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("error pinging redis: %w", err)
	}
	return client, nil
}
