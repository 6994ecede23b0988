package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "agrl:"

// incrementScript bumps the counter, reads its TTL, and sets the TTL only
// when none exists so the window boundary is fixed at first use.
var incrementScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisCounter is a Counter backed by a Redis deployment.
type RedisCounter struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisCounter wraps client. An empty prefix selects "agrl:".
func NewRedisCounter(client redis.UniversalClient, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisCounter{
		redis:  client,
		prefix: prefix,
	}
}

// Name implements Counter.
func (c *RedisCounter) Name() string {
	return BackendRedis
}

// Increment implements Counter in a single round trip.
func (c *RedisCounter) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	vals, err := incrementScript.Run(ctx, c.redis, []string{c.prefix + key}, windowMillis(window)).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
	}
	if len(vals) != 2 {
		return 0, 0, fmt.Errorf("%w: expected 2 values, got %d", ErrCounterResponse, len(vals))
	}

	return vals[0], time.Duration(vals[1]) * time.Millisecond, nil
}

func windowMillis(window time.Duration) int64 {
	ms := window.Milliseconds()
	if ms < 1 {
		return 1
	}
	return ms
}
