// Package events publishes exam lifecycle events to the rest of the platform.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"

	"github.com/stemsi/jlpt-proctor/internal/config"
)

// Publisher emits JSON events on a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Bus is a watermill publisher/subscriber pair. It runs on an in-process
// channel by default and on Kafka when brokers are configured.
type Bus struct {
	pub     message.Publisher
	sub     message.Subscriber
	backend string
	log     zerolog.Logger
}

// NewBus picks the backend from configuration.
func NewBus(cfg *config.Config, log zerolog.Logger) (*Bus, error) {
	log = log.With().Str("component", "events").Logger()
	if len(cfg.KafkaBrokers) == 0 {
		return NewInProcessBus(log), nil
	}

	wlog := NewLoggerAdapter(log)
	pub, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   cfg.KafkaBrokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, wlog)
	if err != nil {
		return nil, fmt.Errorf("create kafka publisher: %w", err)
	}

	// No consumer group: every instance sees every event for its live monitors.
	sub, err := kafka.NewSubscriber(kafka.SubscriberConfig{
		Brokers:     cfg.KafkaBrokers,
		Unmarshaler: kafka.DefaultMarshaler{},
	}, wlog)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create kafka subscriber: %w", err)
	}

	log.Info().Strs("brokers", cfg.KafkaBrokers).Msg("Event bus using Kafka")
	return &Bus{pub: pub, sub: sub, backend: "kafka", log: log}, nil
}

// NewInProcessBus creates a bus backed by a Go channel.
func NewInProcessBus(log zerolog.Logger) *Bus {
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, NewLoggerAdapter(log))
	return &Bus{pub: ch, sub: ch, backend: "gochannel", log: log}
}

// Backend names the transport in use.
func (b *Bus) Backend() string { return b.backend }

// Publish encodes payload as JSON and sends it on topic.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", topic, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.SetContext(ctx)
	if err := b.pub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}

// Subscribe streams raw messages on topic until ctx is cancelled.
// Each message must be acked.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.sub.Subscribe(ctx, topic)
}

// Close shuts down both sides of the bus.
func (b *Bus) Close() error {
	pubErr := b.pub.Close()
	if b.sub != nil && any(b.sub) != any(b.pub) {
		if err := b.sub.Close(); err != nil {
			return err
		}
	}
	return pubErr
}
