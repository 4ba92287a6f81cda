package notify

import (
	"context"
	"log"
	"time"

	"github.com/IBM/sarama"
)

// MessageStore is the outbox surface the relay drains.
type MessageStore interface {
	NextBatch(ctx context.Context, limit int) ([]Message, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// Relay moves committed outbox messages onto Kafka, where the platform
// messaging system picks them up. One relay instance drains the table;
// delivery is at-least-once, consumers deduplicate by message id.
type Relay struct {
	store    MessageStore
	producer sarama.SyncProducer
	interval time.Duration
	batch    int
}

// NewRelay builds a relay over the given store and producer.
func NewRelay(store MessageStore, producer sarama.SyncProducer) *Relay {
	return &Relay{
		store:    store,
		producer: producer,
		interval: 2 * time.Second,
		batch:    50,
	}
}

// NewProducer connects a synchronous Kafka producer.
func NewProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	return sarama.NewSyncProducer(brokers, cfg)
}

// Run drains the outbox until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Drain(ctx); err != nil {
				log.Printf("outbox relay: drain: %v", err)
			}
		}
	}
}

// Drain publishes one batch of pending messages.
func (r *Relay) Drain(ctx context.Context) error {
	msgs, err := r.store.NextBatch(ctx, r.batch)
	if err != nil {
		return err
	}

	for _, m := range msgs {
		_, _, err := r.producer.SendMessage(&sarama.ProducerMessage{
			Topic: m.Topic,
			Key:   sarama.StringEncoder(m.ID),
			Value: sarama.ByteEncoder(m.Payload),
		})
		if err != nil {
			log.Printf("outbox relay: publish %s to %s: %v", m.ID, m.Topic, err)
			if err := r.store.MarkFailed(ctx, m.ID); err != nil {
				return err
			}
			continue
		}
		if err := r.store.MarkSent(ctx, m.ID); err != nil {
			return err
		}
	}
	return nil
}
