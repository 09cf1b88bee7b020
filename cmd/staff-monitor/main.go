package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"

	"github.com/jogardn/restaurant-storefront/internal/events"
)

// staff-monitor prints every order, reservation and waiter call published by
// the storefront replicas, for a screen on the restaurant floor.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	kafkaBrokers := getEnv("KAFKA_BROKERS", "localhost:9092")

	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Version = sarama.V2_6_0_0

	consumer, err := sarama.NewConsumerGroup(strings.Split(kafkaBrokers, ","), getEnv("KAFKA_GROUP_ID", "staff-monitor-group"), config)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create staff monitor consumer")
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := &ticketHandler{logger: logger}
	topics := []string{events.OrderSubmittedTopic, events.ReservationCreatedTopic, events.WaiterCalledTopic}

	go func() {
		for ctx.Err() == nil {
			if err := consumer.Consume(ctx, topics, handler); err != nil {
				logger.WithError(err).Error("Error consuming storefront events")
				time.Sleep(2 * time.Second)
			}
		}
	}()

	logger.WithField("topics", topics).Info("Staff monitor started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down staff monitor...")
}

type ticketHandler struct {
	logger *logrus.Logger
}

func (h *ticketHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *ticketHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *ticketHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		ticket, err := describe(message.Topic, message.Value)
		if err != nil {
			h.logger.WithError(err).WithFields(logrus.Fields{
				"topic":  message.Topic,
				"offset": message.Offset,
			}).Warn("Skipping unreadable event")
			session.MarkMessage(message, "")
			continue
		}

		fmt.Printf("\n=== %s ===\n%s\n", time.Now().Format("15:04:05"), ticket)
		session.MarkMessage(message, "")
	}
	return nil
}

func describe(topic string, value []byte) (string, error) {
	switch topic {
	case events.OrderSubmittedTopic:
		var e events.OrderSubmittedEvent
		if err := json.Unmarshal(value, &e); err != nil {
			return "", err
		}
		where := "takeaway"
		if e.TableNumber != "" {
			where = "table " + e.TableNumber
		}
		return fmt.Sprintf("NEW ORDER (%s, %s)\nItems: %d  Subtotal: %s", e.OrderType, where, e.ItemCount, e.Subtotal), nil

	case events.ReservationCreatedTopic:
		var e events.ReservationCreatedEvent
		if err := json.Unmarshal(value, &e); err != nil {
			return "", err
		}
		return fmt.Sprintf("RESERVATION\n%d guests on %s at %s", e.Guests, e.Date, e.Time), nil

	case events.WaiterCalledTopic:
		var e events.WaiterCalledEvent
		if err := json.Unmarshal(value, &e); err != nil {
			return "", err
		}
		return fmt.Sprintf("WAITER CALLED\nTable %s: %s", e.TableNumber, e.Reason), nil
	}
	return "", fmt.Errorf("unexpected topic %q", topic)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
