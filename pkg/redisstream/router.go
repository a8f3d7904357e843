// Package redisstream builds the watermill bus widget events travel on: an
// in-process channel by default, Redis Streams when enabled so other processes
// can follow a widget.
package redisstream

import (
	"context"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/go-go-golems/webchat-embed/pkg/config"
	"github.com/go-go-golems/webchat-embed/pkg/logging"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Bus is a publisher/subscriber pair sharing one transport.
type Bus struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber

	// set for Redis-backed buses
	client redis.UniversalClient
	group  string

	closers []func() error
}

// PrepareTopic makes a Redis-backed subscriber start at the current tail of
// topic, so events left over from an earlier run with the same widget id are
// not replayed. It does nothing for the in-memory bus.
func (b *Bus) PrepareTopic(ctx context.Context, topic string) error {
	if b.client == nil {
		return nil
	}
	return EnsureGroupAtTail(ctx, b.client, topic, b.group)
}

func (b *Bus) Close() error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// BuildBus returns a Redis Streams bus when s.RedisEnabled is set and an
// in-memory bus otherwise.
func BuildBus(s config.EventsSettings) (*Bus, error) {
	logger := logging.NewWatermill(log.Logger)
	if !s.RedisEnabled {
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
		return &Bus{Publisher: ch, Subscriber: ch, closers: []func() error{ch.Close}}, nil
	}
	client := redis.NewClient(&redis.Options{Addr: s.RedisAddr})
	return BuildRedisBus(client, s.RedisGroup, s.RedisConsumer, logger)
}

// BuildRedisBus wires a Redis Streams publisher and subscriber on client.
func BuildRedisBus(client redis.UniversalClient, group, consumer string, logger watermill.LoggerAdapter) (*Bus, error) {
	marshaler := rstream.DefaultMarshallerUnmarshaller{}

	pub, err := rstream.NewPublisher(rstream.PublisherConfig{
		Client:     client,
		Marshaller: marshaler,
	}, logger)
	if err != nil {
		return nil, errors.Wrap(err, "redis stream publisher")
	}

	sub, err := rstream.NewSubscriber(rstream.SubscriberConfig{
		Client:        client,
		Unmarshaller:  marshaler,
		ConsumerGroup: group,
		Consumer:      consumer,
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, errors.Wrap(err, "redis stream subscriber")
	}

	return &Bus{
		Publisher:  pub,
		Subscriber: sub,
		client:     client,
		group:      group,
		closers:    []func() error{client.Close, pub.Close, sub.Close},
	}, nil
}

// EnsureGroupAtTail creates the consumer group for a stream at the tail ($) if
// it doesn't exist, so a fresh consumer does not replay the whole history.
func EnsureGroupAtTail(ctx context.Context, client redis.UniversalClient, stream, group string) error {
	err := client.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err != nil {
		if strings.Contains(err.Error(), "BUSYGROUP") {
			return nil
		}
		return err
	}
	log.Info().Str("stream", stream).Str("group", group).Msg("created redis consumer group at $ (tail)")
	return nil
}
