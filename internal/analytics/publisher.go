package analytics

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/redirect-engine/internal/clicks"
	"github.com/serroba/redirect-engine/internal/messaging"
	"github.com/serroba/redirect-engine/internal/requestmeta"
	"github.com/serroba/redirect-engine/internal/shortener"
	"go.uber.org/zap"
)

// Publisher turns domain activity into analytics events.
type Publisher struct {
	publishCreated  messaging.Publish[URLCreatedEvent]
	publishAccessed messaging.Publish[URLAccessedEvent]
	logger          *zap.Logger
}

// NewPublisher creates a publisher emitting on TopicURLCreated and TopicURLAccessed.
func NewPublisher(pub message.Publisher, logger *zap.Logger) *Publisher {
	return &Publisher{
		publishCreated:  messaging.NewPublishFunc[URLCreatedEvent](pub, TopicURLCreated),
		publishAccessed: messaging.NewPublishFunc[URLAccessedEvent](pub, TopicURLAccessed),
		logger:          logger,
	}
}

// OnCreated publishes a URLCreatedEvent. Failures are logged, never returned:
// the mapping is already stored.
func (p *Publisher) OnCreated(ctx context.Context, m *shortener.Mapping) {
	meta := requestmeta.FromContext(ctx)
	event := &URLCreatedEvent{
		Code:      string(m.Code),
		TargetURL: m.TargetURL,
		Owner:     m.Owner,
		CreatedAt: m.CreatedAt,
		ExpiresAt: m.ExpiresAt,
		ClientIP:  meta.ClientIP,
		UserAgent: meta.UserAgent,
	}

	if err := p.publishCreated(ctx, event); err != nil {
		p.logger.Error("failed to publish url created event",
			zap.String("code", event.Code),
			zap.Error(err),
		)
	}
}

// Record publishes a URLAccessedEvent for a click.
func (p *Publisher) Record(ctx context.Context, e clicks.Event) error {
	return p.publishAccessed(ctx, &URLAccessedEvent{
		Code:       string(e.Code),
		AccessedAt: e.At,
		ClientIP:   e.Meta.ClientIP,
		UserAgent:  e.Meta.UserAgent,
		Referrer:   e.Meta.Referrer,
	})
}

var _ clicks.Sink = (*Publisher)(nil)
