package analytics

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/redirect-engine/internal/messaging"
	"github.com/serroba/redirect-engine/internal/shortener"
	"go.uber.org/zap"
)

// ClickCounter is a Store that folds access events into the mapping's click
// count before handing them to next.
type ClickCounter struct {
	repo   shortener.Repository
	next   Store
	logger *zap.Logger
}

// NewClickCounter wraps next with click counting against repo.
func NewClickCounter(repo shortener.Repository, next Store, logger *zap.Logger) *ClickCounter {
	return &ClickCounter{repo: repo, next: next, logger: logger}
}

func (c *ClickCounter) SaveURLCreated(ctx context.Context, event *URLCreatedEvent) error {
	return c.next.SaveURLCreated(ctx, event)
}

// SaveURLAccessed increments the click count. Events for codes the store does
// not know are acknowledged, since redelivery cannot fix them.
func (c *ClickCounter) SaveURLAccessed(ctx context.Context, event *URLAccessedEvent) error {
	err := c.repo.IncrementClickCount(ctx, shortener.Code(event.Code), 1)

	switch {
	case errors.Is(err, shortener.ErrNotFound):
		c.logger.Warn("click for unknown code", zap.String("code", event.Code))
	case err != nil:
		return fmt.Errorf("increment click count for %s: %w", event.Code, err)
	}

	return c.next.SaveURLAccessed(ctx, event)
}

// RegisterConsumers adds one consumer per analytics topic to group, all
// feeding store.
func RegisterConsumers(
	group *messaging.ConsumerGroup,
	sub message.Subscriber,
	store Store,
	logger *zap.Logger,
	opts ...messaging.ConsumerOption,
) {
	group.Add(messaging.NewConsumer(sub, TopicURLCreated, store.SaveURLCreated, logger, opts...))
	group.Add(messaging.NewConsumer(sub, TopicURLAccessed, store.SaveURLAccessed, logger, opts...))
}

var _ Store = (*ClickCounter)(nil)
