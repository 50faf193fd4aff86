package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/redirect-engine/internal/shortener"
)

var insertScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1],
	'target_url', ARGV[1],
	'owner', ARGV[2],
	'created_at', ARGV[3],
	'expires_at', ARGV[4],
	'is_active', ARGV[5],
	'click_count', 0)
return 1
`)

var deactivateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], 'is_active', '0')
return 1
`)

var incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
return redis.call('HINCRBY', KEYS[1], 'click_count', ARGV[1])
`)

// RedisStore is a Redis implementation of shortener.Repository. Each mapping
// is a hash under prefix+code.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a new Redis-backed mapping store.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "mapping:",
	}
}

func (r *RedisStore) InsertIfAbsent(ctx context.Context, m *shortener.Mapping) error {
	inserted, err := insertScript.Run(ctx, r.client, []string{r.key(m.Code)},
		m.TargetURL,
		m.Owner,
		m.CreatedAt.UnixNano(),
		formatOptionalTime(m.ExpiresAt),
		formatBool(m.Active),
	).Int()
	if err != nil {
		return err
	}

	if inserted == 0 {
		return shortener.ErrAlreadyExists
	}

	return nil
}

func (r *RedisStore) Get(ctx context.Context, code shortener.Code) (*shortener.Mapping, error) {
	fields, err := r.client.HGetAll(ctx, r.key(code)).Result()
	if err != nil {
		return nil, err
	}

	if len(fields) == 0 {
		return nil, shortener.ErrNotFound
	}

	m := &shortener.Mapping{
		Code:      code,
		TargetURL: fields["target_url"],
		Owner:     fields["owner"],
		CreatedAt: parseTime(fields["created_at"]),
		ExpiresAt: parseOptionalTime(fields["expires_at"]),
		Active:    fields["is_active"] == "1",
	}

	m.ClickCount, _ = strconv.ParseInt(fields["click_count"], 10, 64)

	return m, nil
}

func (r *RedisStore) Deactivate(ctx context.Context, code shortener.Code) error {
	found, err := deactivateScript.Run(ctx, r.client, []string{r.key(code)}).Int()
	if err != nil {
		return err
	}

	if found == 0 {
		return shortener.ErrNotFound
	}

	return nil
}

func (r *RedisStore) IncrementClickCount(ctx context.Context, code shortener.Code, delta int64) error {
	n, err := incrementScript.Run(ctx, r.client, []string{r.key(code)}, delta).Int64()
	if err != nil {
		return err
	}

	if n < 0 {
		return shortener.ErrNotFound
	}

	return nil
}

func (r *RedisStore) key(code shortener.Code) string {
	return r.prefix + string(code)
}

var _ shortener.Repository = (*RedisStore)(nil)

func formatBool(b bool) string {
	if b {
		return "1"
	}

	return "0"
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}

	return strconv.FormatInt(t.UnixNano(), 10)
}

func parseTime(s string) time.Time {
	nanos, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}

	return time.Unix(0, nanos).UTC()
}

func parseOptionalTime(s string) *time.Time {
	if s == "" {
		return nil
	}

	t := parseTime(s)

	return &t
}

// isNil reports a missing redis key.
func isNil(err error) bool {
	return errors.Is(err, redis.Nil)
}
