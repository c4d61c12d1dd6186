package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/geoguard/geoguard/pkg/observability"
)

// fixedWindow counts a request and starts the window on the first one.
// Returns the count and the window's remaining milliseconds.
var fixedWindow = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisLimitStore shares budgets between instances with a fixed window
// counter per key. A window admits Limit.Capacity requests.
type RedisLimitStore struct {
	client *redis.Client
}

// NewRedisLimitStore creates a RedisLimitStore
func NewRedisLimitStore(client *redis.Client) *RedisLimitStore {
	return &RedisLimitStore{client: client}
}

// Take implements LimitStore.Take
func (s *RedisLimitStore) Take(ctx context.Context, key string, limit Limit) (Decision, error) {
	res, err := fixedWindow.Run(ctx, s.client, []string{key}, limit.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis error: %w", err)
	}
	count, ttl := res[0], time.Duration(res[1])*time.Millisecond

	capacity := int64(limit.Capacity())
	d := Decision{Allowed: count <= capacity, Remaining: int(max(capacity-count, 0))}
	if !d.Allowed {
		d.Reset = ttl
	}
	return d, nil
}

// Reset clears a key's window
func (s *RedisLimitStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// TTL reports how long a key's window has left
func (s *RedisLimitStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	return s.client.PTTL(ctx, key).Result()
}

// HealthCheck pings Redis
func (s *RedisLimitStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// NewDistributedRateLimitMiddleware is NewRateLimitMiddleware with budgets
// kept in Redis. It fails open when Redis is unreachable.
func NewDistributedRateLimitMiddleware(client *redis.Client, logger *observability.Logger) *RateLimitMiddleware {
	return newRateLimitMiddleware(NewRedisLimitStore(client), "geoguard:ratelimit:", logger)
}

// NewDistributedCredentialRateLimitMiddleware is the Redis-backed form of
// NewCredentialRateLimitMiddleware
func NewDistributedCredentialRateLimitMiddleware(client *redis.Client, logger *observability.Logger) *RateLimitMiddleware {
	m := newRateLimitMiddleware(NewRedisLimitStore(client), "geoguard:ratelimit:credential:", logger)
	m.anonymous = CredentialLimit()
	m.byAddress = true
	return m
}
