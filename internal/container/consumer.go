package container

import (
	"github.com/samber/do"
	"github.com/serroba/redirect-engine/internal/analytics"
	analyticsstore "github.com/serroba/redirect-engine/internal/analytics/store"
	"github.com/serroba/redirect-engine/internal/messaging"
	"github.com/serroba/redirect-engine/internal/shortener"
	"go.uber.org/zap"
)

// ConsumerGroupPackage provides the analytics consumer group: access events
// increment click counts, everything is logged.
func ConsumerGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		sub, err := messaging.NewRedisSubscriber(do.MustInvoke[*Redis](i).Client, opts.ConsumerGroup, logger)
		if err != nil {
			return nil, err
		}

		counter := analytics.NewClickCounter(
			do.MustInvoke[shortener.Repository](i),
			analyticsstore.NewNoop(logger),
			logger,
		)

		group := messaging.NewConsumerGroup(sub, logger)
		analytics.RegisterConsumers(group, sub, counter, logger,
			messaging.WithHandlerTimeout(seconds(opts.HandlerTimeoutSeconds)))

		return group, nil
	})
}
