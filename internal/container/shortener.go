package container

import (
	"fmt"

	"github.com/samber/do"
	"github.com/serroba/redirect-engine/internal/analytics"
	"github.com/serroba/redirect-engine/internal/base62"
	"github.com/serroba/redirect-engine/internal/cache"
	"github.com/serroba/redirect-engine/internal/clicks"
	"github.com/serroba/redirect-engine/internal/idgen"
	"github.com/serroba/redirect-engine/internal/keypool"
	"github.com/serroba/redirect-engine/internal/messaging"
	"github.com/serroba/redirect-engine/internal/shortener"
	"github.com/serroba/redirect-engine/internal/store"
	"go.uber.org/zap"
)

const (
	CodeSourceSnowflake = "snowflake"
	CodeSourceKeyPool   = "keypool"
)

// CachePackage provides the resolution cache, backed by Redis when
// Options.RemoteCache is set.
func CachePackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*cache.Cache, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		cfg := cache.DefaultConfig()
		cfg.Size = opts.CacheSize
		cfg.TTL = seconds(opts.CacheTTLSeconds)
		cfg.NegativeTTL = seconds(opts.NegativeTTLSeconds)

		cacheOpts := []cache.Option{cache.WithLogger(logger)}
		if opts.RemoteCache {
			cacheOpts = append(cacheOpts, cache.WithRemote(store.NewRedisEntryCache(do.MustInvoke[*Redis](i).Client)))
		}

		return cache.New(cfg, cacheOpts...)
	})
}

// CodeSourcePackage provides the base62 codec and the shortener.CodeSource
// selected by Options.CodeSource.
func CodeSourcePackage(i *do.Injector) {
	do.Provide(i, func(_ *do.Injector) (*base62.Codec, error) {
		alphabet, err := base62.Lookup(base62.CurrentVersion)
		if err != nil {
			return nil, err
		}

		return base62.New(base62.WithAlphabet(alphabet))
	})

	do.Provide(i, func(i *do.Injector) (shortener.CodeSource, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		switch opts.CodeSource {
		case CodeSourceSnowflake:
			ids, err := idgen.New(int64(opts.InstanceID))
			if err != nil {
				return nil, err
			}

			logger.Info("snowflake code source", zap.Int("instance", opts.InstanceID))

			return shortener.NewSnowflakeSource(ids, do.MustInvoke[*base62.Codec](i)), nil
		case CodeSourceKeyPool:
			var keys keypool.Store = keypool.NewMemoryStore()
			if opts.Store != StoreMemory {
				keys = store.NewRedisKeyPool(do.MustInvoke[*Redis](i).Client)
			}

			cfg := keypool.DefaultConfig()
			cfg.CodeLength = opts.KeyPoolCodeLength

			return keypool.New(keys, cfg, logger)
		default:
			return nil, fmt.Errorf("unknown code source %q", opts.CodeSource)
		}
	})
}

// ClicksPackage provides the click worker pool. Clicks are published as
// events when Options.Events is set and counted in the store directly
// otherwise.
func ClicksPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*clicks.Pool, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		var sink clicks.Sink = clicks.NewRepositorySink(do.MustInvoke[shortener.Repository](i))
		if opts.Events {
			sink = do.MustInvoke[*analytics.Publisher](i)
		}

		return clicks.NewPool(sink, clicks.Config{
			Workers:    opts.ClickWorkers,
			BufferSize: opts.ClickBuffer,
		}, logger), nil
	})
}

// ShortenerPackage provides the allocator and redirector.
func ShortenerPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*shortener.Allocator, error) {
		opts := do.MustInvoke[*Options](i)

		var allocOpts []shortener.AllocatorOption
		if opts.Events {
			allocOpts = append(allocOpts, shortener.WithCreatedHook(do.MustInvoke[*analytics.Publisher](i).OnCreated))
		}

		return shortener.NewAllocator(
			do.MustInvoke[shortener.Repository](i),
			do.MustInvoke[shortener.CodeSource](i),
			do.MustInvoke[*cache.Cache](i),
			do.MustInvoke[*zap.Logger](i),
			allocOpts...,
		), nil
	})

	do.Provide(i, func(i *do.Injector) (*shortener.Redirector, error) {
		opts := do.MustInvoke[*Options](i)

		return shortener.NewRedirector(
			do.MustInvoke[shortener.Repository](i),
			do.MustInvoke[*cache.Cache](i),
			do.MustInvoke[*zap.Logger](i),
			shortener.WithPermanentRedirects(opts.PermanentRedirect),
			shortener.WithClickRecorder(do.MustInvoke[*clicks.Pool](i)),
		), nil
	})
}

// PublisherGroupPackage provides the Redis streams publisher group and the
// analytics publisher on top of it.
func PublisherGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		pub, err := messaging.NewRedisPublisher(do.MustInvoke[*Redis](i).Client, do.MustInvoke[*zap.Logger](i))
		if err != nil {
			return nil, err
		}

		return messaging.NewPublisherGroup(pub), nil
	})

	do.Provide(i, func(i *do.Injector) (*analytics.Publisher, error) {
		group := do.MustInvoke[*messaging.PublisherGroup](i)

		return analytics.NewPublisher(group.Publisher(), do.MustInvoke[*zap.Logger](i)), nil
	})
}
