package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/redirect-engine/internal/metrics"
	"go.uber.org/zap"
)

// DefaultHandlerTimeout bounds a single handler invocation.
const DefaultHandlerTimeout = 10 * time.Second

// ErrAlreadyStarted is returned by Start on a running consumer.
var ErrAlreadyStarted = errors.New("consumer already started")

// Outcomes recorded per message.
const (
	OutcomeHandled   = "handled"
	OutcomeRetry     = "retry"
	OutcomeMalformed = "malformed"
)

// Handler processes one decoded event.
type Handler[T any] func(ctx context.Context, event *T) error

// ConsumerOption tunes a Consumer.
type ConsumerOption func(*consumerSettings)

type consumerSettings struct {
	handlerTimeout time.Duration
}

// WithHandlerTimeout caps how long the handler may take per message. A
// handler that overruns sees its context cancelled and the message is nacked.
func WithHandlerTimeout(d time.Duration) ConsumerOption {
	return func(s *consumerSettings) {
		if d > 0 {
			s.handlerTimeout = d
		}
	}
}

// Consumer decodes JSON messages from one topic into T and feeds them to a
// handler, one at a time. Handler errors nack the message for redelivery.
// Payloads that fail to decode are acked and logged.
type Consumer[T any] struct {
	subscriber message.Subscriber
	topic      string
	handle     Handler[T]
	settings   consumerSettings
	logger     *zap.Logger

	started atomic.Bool
	stop    context.CancelFunc
	stopped chan struct{}
}

// NewConsumer creates a consumer for topic. Nothing is read until Start.
func NewConsumer[T any](
	subscriber message.Subscriber,
	topic string,
	handle Handler[T],
	logger *zap.Logger,
	opts ...ConsumerOption,
) *Consumer[T] {
	settings := consumerSettings{handlerTimeout: DefaultHandlerTimeout}
	for _, opt := range opts {
		opt(&settings)
	}

	return &Consumer[T]{
		subscriber: subscriber,
		topic:      topic,
		handle:     handle,
		settings:   settings,
		logger:     logger.With(zap.String("topic", topic)),
		stopped:    make(chan struct{}),
	}
}

func (c *Consumer[T]) Topic() string {
	return c.topic
}

// Start subscribes and processes messages in the background until ctx is
// cancelled, Shutdown is called, or the subscription closes.
func (c *Consumer[T]) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	ctx, c.stop = context.WithCancel(ctx)

	msgs, err := c.subscriber.Subscribe(ctx, c.topic)
	if err != nil {
		c.stop()
		close(c.stopped)

		return err
	}

	go c.run(ctx, msgs)

	return nil
}

func (c *Consumer[T]) run(ctx context.Context, msgs <-chan *message.Message) {
	defer close(c.stopped)

	for {
		var (
			msg *message.Message
			ok  bool
		)

		select {
		case <-ctx.Done():
			return
		case msg, ok = <-msgs:
		}

		if !ok {
			return
		}

		metrics.EventsConsumed.WithLabelValues(c.topic, c.process(ctx, msg)).Inc()
	}
}

func (c *Consumer[T]) process(ctx context.Context, msg *message.Message) string {
	log := c.logger.With(zap.String("message_uuid", msg.UUID))

	event := new(T)
	if err := json.Unmarshal(msg.Payload, event); err != nil {
		log.Error("dropping undecodable event", zap.Error(err))
		msg.Ack()

		return OutcomeMalformed
	}

	handlerCtx, cancel := context.WithTimeout(ctx, c.settings.handlerTimeout)
	defer cancel()

	if err := c.handle(handlerCtx, event); err != nil {
		log.Warn("event handler failed, requesting redelivery", zap.Error(err))
		msg.Nack()

		return OutcomeRetry
	}

	msg.Ack()
	log.Debug("event handled")

	return OutcomeHandled
}

// Shutdown stops reading and waits for the message in progress. It is a
// no-op on a consumer that was never started.
func (c *Consumer[T]) Shutdown() error {
	if !c.started.Load() {
		return nil
	}

	c.stop()
	<-c.stopped

	return nil
}
