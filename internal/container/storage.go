package container

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/redirect-engine/internal/shortener"
	"github.com/serroba/redirect-engine/internal/store"
	"go.uber.org/zap"
)

const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Redis owns the shared client so the injector can close it.
type Redis struct {
	Client redis.UniversalClient
}

func (r *Redis) Shutdown() error {
	return r.Client.Close()
}

// RedisPackage provides *Redis.
func RedisPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*Redis, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})

		logger.Info("redis client created", zap.String("addr", opts.RedisAddr))

		return &Redis{Client: client}, nil
	})
}

// PostgresPackage provides *store.PostgresStore. The schema is managed by the
// migrate command.
func PostgresPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*store.PostgresStore, error) {
		opts := do.MustInvoke[*Options](i)

		if opts.DatabaseURL == "" {
			return nil, errors.New("database url is required for the postgres store")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pool, err := pgxpool.New(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres pool: %w", err)
		}

		s := store.NewPostgresStore(pool)

		if err := s.Ping(ctx); err != nil {
			pool.Close()

			return nil, fmt.Errorf("postgres ping: %w", err)
		}

		return s, nil
	})
}

// RepositoryPackage provides the shortener.Repository selected by Options.Store.
func RepositoryPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (shortener.Repository, error) {
		opts := do.MustInvoke[*Options](i)

		switch opts.Store {
		case StoreMemory:
			return store.NewMemoryStore(), nil
		case StoreRedis:
			return store.NewRedisStore(do.MustInvoke[*Redis](i).Client), nil
		case StorePostgres:
			return do.Invoke[*store.PostgresStore](i)
		default:
			return nil, fmt.Errorf("unknown store %q", opts.Store)
		}
	})
}
