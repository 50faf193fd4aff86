package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
redis.call('ZADD', key, now, ARGV[3])
redis.call('PEXPIRE', key, window)

return redis.call('ZCARD', key)
`)

// RateLimitRedisStore is a ratelimit.Store shared across instances. Each key
// is a sorted set of request timestamps in milliseconds.
type RateLimitRedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRateLimitRedisStore creates a Redis-backed rate limit store.
func NewRateLimitRedisStore(client redis.UniversalClient) *RateLimitRedisStore {
	return &RateLimitRedisStore{
		client: client,
		prefix: "ratelimit:",
		now:    time.Now,
	}
}

func (r *RateLimitRedisStore) Record(ctx context.Context, key string, window time.Duration) (int64, error) {
	return slidingWindowScript.Run(ctx, r.client, []string{r.prefix + key},
		r.now().UnixMilli(),
		window.Milliseconds(),
		uuid.NewString(),
	).Int64()
}
