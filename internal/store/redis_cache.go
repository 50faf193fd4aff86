package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/redirect-engine/internal/cache"
)

// RedisEntryCache is the shared tier of the resolution cache. Entries,
// tombstones included, are hashes that expire with the ttl chosen by the
// local tier.
type RedisEntryCache struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisEntryCache creates a Redis-backed cache.Remote.
func NewRedisEntryCache(client redis.UniversalClient) *RedisEntryCache {
	return &RedisEntryCache{
		client: client,
		prefix: "resolve:",
	}
}

func (r *RedisEntryCache) Get(ctx context.Context, code string) (cache.Entry, bool, error) {
	fields, err := r.client.HGetAll(ctx, r.prefix+code).Result()
	if err != nil {
		return cache.Entry{}, false, err
	}

	if len(fields) == 0 {
		return cache.Entry{}, false, nil
	}

	return cache.Entry{
		Code:      code,
		TargetURL: fields["target_url"],
		Active:    fields["active"] == "1",
		Found:     fields["found"] == "1",
		ExpiresAt: parseOptionalTime(fields["expires_at"]),
		CachedAt:  parseTime(fields["cached_at"]),
	}, true, nil
}

func (r *RedisEntryCache) Set(ctx context.Context, e cache.Entry, ttl time.Duration) error {
	key := r.prefix + e.Code

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, map[string]any{
		"target_url": e.TargetURL,
		"active":     formatBool(e.Active),
		"found":      formatBool(e.Found),
		"expires_at": formatOptionalTime(e.ExpiresAt),
		"cached_at":  e.CachedAt.UnixNano(),
	})
	pipe.PExpire(ctx, key, ttl)

	_, err := pipe.Exec(ctx)

	return err
}

func (r *RedisEntryCache) Delete(ctx context.Context, code string) error {
	return r.client.Del(ctx, r.prefix+code).Err()
}

var _ cache.Remote = (*RedisEntryCache)(nil)
