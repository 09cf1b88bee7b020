package events

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jogardn/restaurant-storefront/pkg/models"
)

const (
	OrderSubmittedTopic     = "order.submitted"
	ReservationCreatedTopic = "reservation.created"
	WaiterCalledTopic       = "waiter.called"
	StatusTopic             = "restaurant.status"
)

type OrderSubmittedEvent struct {
	EventID     string           `json:"event_id"`
	SessionID   string           `json:"session_id"`
	OrderType   models.OrderType `json:"order_type"`
	TableNumber string           `json:"table_number,omitempty"`
	ItemCount   int              `json:"item_count"`
	Subtotal    string           `json:"subtotal"`
	Endpoint    string           `json:"endpoint"`
	Shape       string           `json:"shape"`
	EventTime   time.Time        `json:"event_time"`
}

type ReservationCreatedEvent struct {
	EventID   string    `json:"event_id"`
	SessionID string    `json:"session_id"`
	Guests    int       `json:"guests"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Shape     string    `json:"shape"`
	EventTime time.Time `json:"event_time"`
}

type WaiterCalledEvent struct {
	EventID     string    `json:"event_id"`
	SessionID   string    `json:"session_id"`
	TableNumber string    `json:"table_number"`
	Reason      string    `json:"reason"`
	Shape       string    `json:"shape"`
	EventTime   time.Time `json:"event_time"`
}

// Publisher emits storefront domain events. Publishing is best effort for
// callers: a failed publish never undoes the action it describes.
type Publisher interface {
	PublishOrderSubmitted(ctx context.Context, event OrderSubmittedEvent) error
	PublishReservationCreated(ctx context.Context, event ReservationCreatedEvent) error
	PublishWaiterCalled(ctx context.Context, event WaiterCalledEvent) error
	PublishStatus(ctx context.Context, event models.StatusEvent) error
	Close() error
}

// NopPublisher is used when no Kafka brokers are configured.
type NopPublisher struct {
	Logger *logrus.Logger
}

func (p NopPublisher) log(topic string) error {
	if p.Logger != nil {
		p.Logger.WithField("topic", topic).Debug("Event publishing disabled")
	}
	return nil
}

func (p NopPublisher) PublishOrderSubmitted(context.Context, OrderSubmittedEvent) error {
	return p.log(OrderSubmittedTopic)
}

func (p NopPublisher) PublishReservationCreated(context.Context, ReservationCreatedEvent) error {
	return p.log(ReservationCreatedTopic)
}

func (p NopPublisher) PublishWaiterCalled(context.Context, WaiterCalledEvent) error {
	return p.log(WaiterCalledTopic)
}

func (p NopPublisher) PublishStatus(context.Context, models.StatusEvent) error {
	return p.log(StatusTopic)
}

func (p NopPublisher) Close() error {
	return nil
}
