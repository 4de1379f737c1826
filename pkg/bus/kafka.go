// Package bus publishes persisted messages to Kafka for downstream
// consumers (archival, search indexing, sibling relays). Delivery to live
// sessions never waits on the bus.
package bus

import (
	"context"
	"encoding/json"

	"github.com/mahaj/relay/pkg/model"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type Sink interface {
	Publish(ctx context.Context, msg *model.Message) error
}

// Kafka writes message events keyed by conversation id, so one conversation
// always lands on one partition in order.
type Kafka struct {
	writer *kafka.Writer
	log    zerolog.Logger
}

func NewKafka(brokers []string, topic string, log zerolog.Logger) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		},
		log: log.With().Str("component", "bus").Logger(),
	}
}

func (k *Kafka) Publish(ctx context.Context, msg *model.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.ConversationID),
		Value: payload,
		Time:  msg.CreatedAt,
	})
}

func (k *Kafka) Close() error { return k.writer.Close() }

// Nop discards events; used in tests and when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, *model.Message) error { return nil }
