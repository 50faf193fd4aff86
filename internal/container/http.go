package container

import (
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/do"
	"github.com/serroba/redirect-engine/internal/base62"
	"github.com/serroba/redirect-engine/internal/handlers"
	"github.com/serroba/redirect-engine/internal/health"
	"github.com/serroba/redirect-engine/internal/metrics"
	"github.com/serroba/redirect-engine/internal/middleware"
	"github.com/serroba/redirect-engine/internal/ratelimit"
	"github.com/serroba/redirect-engine/internal/shortener"
	"github.com/serroba/redirect-engine/internal/store"
	"go.uber.org/zap"
)

// RateLimitPackage provides the policy limiter.
func RateLimitPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*ratelimit.PolicyLimiter, error) {
		opts := do.MustInvoke[*Options](i)

		var s ratelimit.Store

		switch opts.RateLimitStore {
		case "memory":
			s = store.NewRateLimitMemoryStore()
		case "redis":
			s = store.NewRateLimitRedisStore(do.MustInvoke[*Redis](i).Client)
		default:
			return nil, fmt.Errorf("unknown rate limit store %q", opts.RateLimitStore)
		}

		policy := ratelimit.NewPolicy(ratelimit.PolicyConfig{
			GlobalPerMinute:  int64(opts.GlobalPerMinute),
			ReadPerMinute:    int64(opts.ReadPerMinute),
			WritePerMinute:   int64(opts.WritePerMinute),
			ResolvePerMinute: int64(opts.ResolvePerMinute),
		})

		return ratelimit.NewPolicyLimiter(s, policy), nil
	})
}

// HealthPackage provides the health handler, checking whichever backends the
// options select.
func HealthPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*health.Handler, error) {
		opts := do.MustInvoke[*Options](i)
		checks := make(map[string]health.Checker)

		if usesRedis(opts) {
			checks["redis"] = health.NewRedisChecker(do.MustInvoke[*Redis](i).Client)
		}

		if opts.Store == StorePostgres {
			checks["postgres"] = do.MustInvoke[*store.PostgresStore](i)
		}

		return health.NewHandler(checks, do.MustInvoke[*zap.Logger](i)), nil
	})
}

// HTTPPackage provides the chi router and the huma API with every route and
// middleware registered. /metrics is served by chi outside the API.
func HTTPPackage(i *do.Injector) {
	do.Provide(i, func(_ *do.Injector) (*chi.Mux, error) {
		router := chi.NewMux()

		metrics.Register(prometheus.DefaultRegisterer)
		router.Handle("/metrics", promhttp.Handler())

		return router, nil
	})

	do.Provide(i, func(i *do.Injector) (huma.API, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		router := do.MustInvoke[*chi.Mux](i)

		api := humachi.New(router, huma.DefaultConfig("Redirect Engine", "1.0.0"))

		api.UseMiddleware(middleware.RequestMeta(api))
		api.UseMiddleware(middleware.PolicyRateLimiter(
			api,
			do.MustInvoke[*ratelimit.PolicyLimiter](i),
			ratelimit.NewOperationScopeResolver(),
			logger,
		))

		urlHandler := handlers.NewURLHandler(
			do.MustInvoke[*shortener.Allocator](i),
			do.MustInvoke[*shortener.Redirector](i),
			do.MustInvoke[*base62.Codec](i),
			opts.PublicBaseURL(),
			logger,
		)

		health.RegisterRoutes(api, do.MustInvoke[*health.Handler](i))
		handlers.RegisterRoutes(api, urlHandler)

		return api, nil
	})
}

func usesRedis(opts *Options) bool {
	return opts.Store == StoreRedis ||
		opts.RemoteCache ||
		opts.Events ||
		opts.RateLimitStore == "redis" ||
		(opts.CodeSource == CodeSourceKeyPool && opts.Store != StoreMemory)
}
