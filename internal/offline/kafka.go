package offline

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSender publishes items to a topic, keyed by item id so redeliveries land
// on the same partition and can be compacted or deduplicated downstream.
type KafkaSender struct {
	w messageWriter
}

// NewKafkaSender returns a sender writing to topic on brokers.
func NewKafkaSender(brokers []string, topic string) *KafkaSender {
	return &KafkaSender{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}}
}

// Send writes one message and waits for the acknowledgement.
func (k *KafkaSender) Send(ctx context.Context, it Item) error {
	msg := kafka.Message{
		Key:   []byte(it.ID),
		Value: it.Payload,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(it.Kind)},
		},
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", it.Kind, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *KafkaSender) Close() error {
	return k.w.Close()
}
