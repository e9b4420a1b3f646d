package numerator

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	corenumerator "inspecta/internal/core/numerator"
)

// DefaultRedisKeyPrefix namespaces counter keys.
const DefaultRedisKeyPrefix = "inspecta"

// raiseScript sets KEYS[1] to ARGV[1] unless it is already higher.
var raiseScript = redis.NewScript(`
local cur = tonumber(redis.call("GET", KEYS[1]) or "0")
local floor = tonumber(ARGV[1])
if floor > cur then
  redis.call("SET", KEYS[1], floor)
  return floor
end
return cur
`)

// RedisCounter keeps counters as plain integer keys. INCRBY is atomic on the
// server, which makes it safe across processes.
type RedisCounter struct {
	client    redis.Cmdable
	keyPrefix string
}

var _ Counter = (*RedisCounter)(nil)

// NewRedisCounter creates a Redis-backed counter.
func NewRedisCounter(client redis.Cmdable, keyPrefix string) *RedisCounter {
	if keyPrefix == "" {
		keyPrefix = DefaultRedisKeyPrefix
	}
	return &RedisCounter{client: client, keyPrefix: keyPrefix}
}

func (c *RedisCounter) redisKey(key corenumerator.Key) string {
	return fmt.Sprintf("%s:seq:%s:%d", c.keyPrefix, key.Prefix, key.Year)
}

// Increment implements Counter.
func (c *RedisCounter) Increment(ctx context.Context, key corenumerator.Key, delta int64) (int64, error) {
	val, err := c.client.IncrBy(ctx, c.redisKey(key), delta).Result()
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", key, err)
	}
	return val, nil
}

// Set implements Counter.
func (c *RedisCounter) Set(ctx context.Context, key corenumerator.Key, value int64) error {
	if err := c.client.Set(ctx, c.redisKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Raise implements Counter.
func (c *RedisCounter) Raise(ctx context.Context, key corenumerator.Key, floor int64) (int64, error) {
	val, err := raiseScript.Run(ctx, c.client, []string{c.redisKey(key)}, floor).Int64()
	if err != nil {
		return 0, fmt.Errorf("raise %s: %w", key, err)
	}
	return val, nil
}

// Current implements Counter.
func (c *RedisCounter) Current(ctx context.Context, key corenumerator.Key) (int64, error) {
	val, err := c.client.Get(ctx, c.redisKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("current %s: %w", key, err)
	}
	return val, nil
}
