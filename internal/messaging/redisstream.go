package messaging

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisPublisher creates a Redis Streams publisher.
func NewRedisPublisher(client redis.UniversalClient, logger *zap.Logger) (*redisstream.Publisher, error) {
	pub, err := redisstream.NewPublisher(redisstream.PublisherConfig{
		Client:     client,
		Marshaller: redisstream.DefaultMarshallerUnmarshaller{},
	}, NewZapLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("redis stream publisher: %w", err)
	}

	return pub, nil
}

// NewRedisSubscriber creates a Redis Streams subscriber in consumerGroup, so
// each event is handled by one consumer instance of the group.
func NewRedisSubscriber(client redis.UniversalClient, consumerGroup string, logger *zap.Logger) (*redisstream.Subscriber, error) {
	sub, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
		Client:        client,
		Unmarshaller:  redisstream.DefaultMarshallerUnmarshaller{},
		ConsumerGroup: consumerGroup,
	}, NewZapLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("redis stream subscriber: %w", err)
	}

	return sub, nil
}
