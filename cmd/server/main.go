package main

import (
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/samber/do"
	"github.com/serroba/redirect-engine/internal/container"
	"github.com/serroba/redirect-engine/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newInjector(options *container.Options) *do.Injector {
	injector := do.New()

	do.ProvideValue(injector, options)

	for _, register := range []func(*do.Injector){
		container.LoggerPackage,
		container.TracingPackage,
		container.RedisPackage,
		container.PostgresPackage,
		container.RepositoryPackage,
		container.CachePackage,
		container.CodeSourcePackage,
		container.PublisherGroupPackage,
		container.ClicksPackage,
		container.ShortenerPackage,
		container.RateLimitPackage,
		container.HealthPackage,
		container.HTTPPackage,
		container.ServerPackage,
	} {
		register(injector)
	}

	return injector
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply PostgreSQL schema migrations",
		Run: humacli.WithOptions(func(_ *cobra.Command, _ []string, options *container.Options) {
			injector := do.New()
			do.ProvideValue(injector, options)
			container.LoggerPackage(injector)

			logger := do.MustInvoke[*zap.Logger](injector)

			res, err := store.Migrate(options.DatabaseURL)
			if err != nil {
				logger.Fatal("migration failed", zap.Error(err))
			}

			logger.Info("schema up to date",
				zap.Uint("from", res.From),
				zap.Uint("to", res.To),
				zap.Bool("applied", res.Applied),
			)
		}),
	}
}

func main() {
	// .env is optional; flags and SERVICE_* variables still apply.
	_ = godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, options *container.Options) {
		injector := newInjector(options)
		logger := do.MustInvoke[*zap.Logger](injector)

		hooks.OnStart(func() {
			server := do.MustInvoke[*container.Server](injector)

			logger.Info("redirect engine starting",
				zap.String("store", options.Store),
				zap.String("code_source", options.CodeSource),
				zap.String("base_url", options.PublicBaseURL()),
			)

			if err := server.ListenAndServe(); err != nil {
				logger.Fatal("server failed", zap.Error(err))
			}
		})

		hooks.OnStop(func() {
			// The server stops first, then click workers drain, then clients close.
			if err := injector.Shutdown(); err != nil {
				logger.Error("shutdown error", zap.Error(err))
			}

			logger.Info("shutdown complete")
			_ = logger.Sync()
		})
	})

	cli.Root().AddCommand(migrateCommand())
	cli.Run()
}
