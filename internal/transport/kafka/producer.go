package kafka

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/IBM/sarama"

	"tekmax-dispatch/internal/service/dispatch"
)

// Producer publishes delivery status changes. Messages are keyed by
// delivery id so that every delivery's changes land on one partition in
// order.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewProducer creates a Kafka producer. Returns nil when Kafka is not
// configured; a nil Producer silently drops publishes.
func NewProducer(brokers []string, topic string) (*Producer, error) {
	if len(brokers) == 0 || strings.TrimSpace(topic) == "" {
		return nil, nil
	}

	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return &Producer{producer: p, topic: topic}, nil
}

// StatusChanged publishes one status change.
func (p *Producer) StatusChanged(_ context.Context, change dispatch.StatusChange) error {
	if p == nil {
		return nil
	}

	value, err := json.Marshal(FromChange(change))
	if err != nil {
		return err
	}

	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(change.DeliveryID.String()),
		Value: sarama.ByteEncoder(value),
	})
	return err
}

// Close shuts the underlying producer down.
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.producer.Close()
}
