package events

import (
	"context"
	"encoding/json"
	"fmt"

	"helpinghands_backend/internal/logger"

	"github.com/IBM/sarama"
)

type SaramaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// SaramaPublisher пишет события в один топик; ключ сообщения - payment id,
// поэтому события одного платежа попадают в одну партицию по порядку.
type SaramaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewSaramaPublisher(cfg SaramaConfig) (*SaramaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are not configured")
	}
	topic := cfg.Topic
	if topic == "" {
		topic = "donations"
	}

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	if cfg.ClientID != "" {
		config.ClientID = cfg.ClientID
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to start kafka producer: %w", err)
	}
	return NewSaramaPublisherFromProducer(producer, topic), nil
}

// NewSaramaPublisherFromProducer - для тестов с sarama/mocks
func NewSaramaPublisherFromProducer(producer sarama.SyncProducer, topic string) *SaramaPublisher {
	return &SaramaPublisher{producer: producer, topic: topic}
}

func (p *SaramaPublisher) Publish(ctx context.Context, event DonationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.PaymentID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-type"), Value: []byte(event.Type)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send %s message: %w", event.Type, err)
	}

	logger.CtxDebug(ctx, "Published donation event",
		"type", event.Type,
		"payment_id", event.PaymentID,
		"partition", partition,
		"offset", offset,
	)
	return nil
}

func (p *SaramaPublisher) Close() error {
	return p.producer.Close()
}
