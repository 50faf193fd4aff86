package store

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/redirect-engine/internal/keypool"
)

// RedisKeyPool is a keypool.Store shared by every server instance. SPOP
// removes a member atomically, so no two instances receive the same code.
type RedisKeyPool struct {
	client redis.UniversalClient
	key    string
}

// NewRedisKeyPool creates a key pool stored in a Redis set.
func NewRedisKeyPool(client redis.UniversalClient) *RedisKeyPool {
	return &RedisKeyPool{
		client: client,
		key:    "keypool:available",
	}
}

func (r *RedisKeyPool) Pop(ctx context.Context) (string, error) {
	code, err := r.client.SPop(ctx, r.key).Result()
	if err != nil {
		if isNil(err) {
			return "", keypool.ErrEmpty
		}

		return "", err
	}

	return code, nil
}

func (r *RedisKeyPool) Push(ctx context.Context, codes ...string) error {
	if len(codes) == 0 {
		return nil
	}

	members := make([]any, len(codes))
	for i, c := range codes {
		members[i] = c
	}

	return r.client.SAdd(ctx, r.key, members...).Err()
}

func (r *RedisKeyPool) Len(ctx context.Context) (int64, error) {
	return r.client.SCard(ctx, r.key).Result()
}

var _ keypool.Store = (*RedisKeyPool)(nil)
