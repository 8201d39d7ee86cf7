package repository

import (
	"context"
	"fmt"

	"PairSpread/internal/domain/models"
)

// messagePublisher is satisfied by *kafka.Producer.
type messagePublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// KafkaSignalPublisher publishes report snapshots keyed by pair so one pair
// stays on one partition.
type KafkaSignalPublisher struct {
	producer messagePublisher
	topic    string
}

func NewKafkaSignalPublisher(producer messagePublisher, topic string) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{producer: producer, topic: topic}
}

func (p *KafkaSignalPublisher) PublishSnapshot(ctx context.Context, s models.SignalSnapshot) error {
	if err := p.producer.Publish(ctx, p.topic, []byte(s.Pair), s); err != nil {
		return fmt.Errorf("publish snapshot %s: %w", s.Pair, err)
	}
	return nil
}
