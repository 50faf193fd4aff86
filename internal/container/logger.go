package container

import (
	"fmt"

	"github.com/samber/do"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerPackage provides the *zap.Logger.
func LoggerPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*zap.Logger, error) {
		opts := do.MustInvoke[*Options](i)

		level, err := zapcore.ParseLevel(opts.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}

		var cfg zap.Config

		switch opts.LogFormat {
		case "json":
			cfg = zap.NewProductionConfig()
		case "console", "":
			cfg = zap.NewDevelopmentConfig()
		default:
			return nil, fmt.Errorf("unknown log format %q", opts.LogFormat)
		}

		cfg.Level = zap.NewAtomicLevelAt(level)

		return cfg.Build()
	})
}
