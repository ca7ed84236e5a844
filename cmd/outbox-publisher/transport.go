package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/hydrofarm-backend/pkg/config"
)

// message is one outbox row ready for the wire. Topic is the logical topic from
// the registry. Key is the aggregate id; Kafka partitions on it.
type message struct {
	Topic      string
	Key        string
	Data       []byte
	Attributes map[string]string
}

type publisher interface {
	Name() string
	Ping(context.Context) error
	Publish(context.Context, message) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type kafkaProducer interface {
	Ping(context.Context) error
	Publish(ctx context.Context, key string, value []byte, headers map[string]string) error
}

// newPublisher picks the transport named by cfg.Transport. Only the client for
// that transport needs to be non-nil.
func newPublisher(cfg config.OutboxConfig, ps pubSubClient, kp kafkaProducer) (publisher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Transport)) {
	case config.OutboxTransportKafka:
		if kp == nil {
			return nil, errors.New("kafka producer is required")
		}
		return &kafkaPublisher{producer: kp}, nil
	case config.OutboxTransportPubSub, "":
		if ps == nil {
			return nil, errors.New("pubsub client is required")
		}
		return &pubSubPublisher{client: ps}, nil
	default:
		return nil, fmt.Errorf("unknown outbox transport %q", cfg.Transport)
	}
}

type pubSubPublisher struct {
	client pubSubClient
}

func (p *pubSubPublisher) Name() string { return config.OutboxTransportPubSub }

func (p *pubSubPublisher) Ping(ctx context.Context) error { return p.client.Ping(ctx) }

func (p *pubSubPublisher) Publish(ctx context.Context, msg message) error {
	pub := p.client.Publisher(msg.Topic)
	if pub == nil {
		return errUnroutable{topic: msg.Topic}
	}
	result := pub.Publish(ctx, &gcppubsub.Message{
		Data:       msg.Data,
		Attributes: msg.Attributes,
	})
	_, err := result.Get(ctx)
	return err
}

type kafkaPublisher struct {
	producer kafkaProducer
}

func (p *kafkaPublisher) Name() string { return config.OutboxTransportKafka }

func (p *kafkaPublisher) Ping(ctx context.Context) error { return p.producer.Ping(ctx) }

// Publish writes every event to the single configured Kafka topic. The
// registry topic travels as a header so consumers can still filter.
func (p *kafkaPublisher) Publish(ctx context.Context, msg message) error {
	headers := make(map[string]string, len(msg.Attributes)+1)
	for k, v := range msg.Attributes {
		headers[k] = v
	}
	headers["topic"] = msg.Topic
	return p.producer.Publish(ctx, msg.Key, msg.Data, headers)
}

type errUnroutable struct {
	topic string
}

func (e errUnroutable) Error() string {
	return fmt.Sprintf("no publisher configured for topic %s", e.topic)
}
