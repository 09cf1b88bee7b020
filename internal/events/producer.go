package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jogardn/restaurant-storefront/pkg/models"
)

type KafkaProducer struct {
	producer sarama.SyncProducer
	logger   *logrus.Logger
	now      func() time.Time
}

func NewKafkaProducer(brokers []string, logger *logrus.Logger) (*KafkaProducer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Version = sarama.V2_6_0_0

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewKafkaProducerWith(producer, logger), nil
}

// NewKafkaProducerWith wraps an existing sarama producer.
func NewKafkaProducerWith(producer sarama.SyncProducer, logger *logrus.Logger) *KafkaProducer {
	return &KafkaProducer{
		producer: producer,
		logger:   logger,
		now:      time.Now,
	}
}

func (p *KafkaProducer) PublishOrderSubmitted(ctx context.Context, event OrderSubmittedEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	event.EventTime = p.now().UTC()
	return p.publish(ctx, OrderSubmittedTopic, event.SessionID, event)
}

func (p *KafkaProducer) PublishReservationCreated(ctx context.Context, event ReservationCreatedEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	event.EventTime = p.now().UTC()
	return p.publish(ctx, ReservationCreatedTopic, event.SessionID, event)
}

func (p *KafkaProducer) PublishWaiterCalled(ctx context.Context, event WaiterCalledEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	event.EventTime = p.now().UTC()
	// keyed by table so calls for one table stay ordered
	return p.publish(ctx, WaiterCalledTopic, event.TableNumber, event)
}

func (p *KafkaProducer) PublishStatus(ctx context.Context, event models.StatusEvent) error {
	return p.publish(ctx, StatusTopic, string(event.Kind), event)
}

func (p *KafkaProducer) publish(ctx context.Context, topic, key string, event interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", topic, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(data),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).WithField("topic", topic).Error("Failed to send message to Kafka")
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"topic":     topic,
		"partition": partition,
		"offset":    offset,
		"key":       key,
	}).Info("Event published to Kafka")
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.producer.Close()
}
